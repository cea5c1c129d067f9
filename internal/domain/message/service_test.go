package message

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeRepo struct {
	byID   map[int64]*Message
	nextID int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: make(map[int64]*Message), nextID: 1}
}

func (r *fakeRepo) Create(_ context.Context, m *Message) error {
	m.ID = r.nextID
	r.nextID++
	cp := *m
	r.byID[m.ID] = &cp
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id int64) (*Message, error) {
	m, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *fakeRepo) UpdateStatus(_ context.Context, id int64, status string, sentAt *time.Time, failureReason *string) error {
	m, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	m.Status = status
	if sentAt != nil {
		m.SentAt = sentAt
	}
	m.FailureReason = failureReason
	return nil
}

func (r *fakeRepo) List(_ context.Context, filter Filter, limit, offset int) ([]*Message, int, error) {
	var out []*Message
	for _, m := range r.byID {
		if filter.Status != "" && m.Status != filter.Status {
			continue
		}
		if filter.Type != "" && m.Type != filter.Type {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (r *fakeRepo) ListDue(_ context.Context, now time.Time, limit int) ([]*Message, error) {
	var due []*Message
	for _, m := range r.byID {
		if m.Status == StatusPending && m.ScheduledAt != nil && !m.ScheduledAt.After(now) {
			cp := *m
			due = append(due, &cp)
		}
	}
	return due, nil
}

type fakeTemplateRepo struct {
	byID   map[int64]*Template
	nextID int64
}

func newFakeTemplateRepo() *fakeTemplateRepo {
	return &fakeTemplateRepo{byID: make(map[int64]*Template), nextID: 1}
}

func (r *fakeTemplateRepo) Create(_ context.Context, t *Template) error {
	t.ID = r.nextID
	r.nextID++
	cp := *t
	r.byID[t.ID] = &cp
	return nil
}

func (r *fakeTemplateRepo) GetByID(_ context.Context, id int64) (*Template, error) {
	t, ok := r.byID[id]
	if !ok {
		return nil, ErrTemplateNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *fakeTemplateRepo) Update(_ context.Context, t *Template) error {
	if _, ok := r.byID[t.ID]; !ok {
		return ErrTemplateNotFound
	}
	cp := *t
	r.byID[t.ID] = &cp
	return nil
}

func (r *fakeTemplateRepo) List(_ context.Context, activeOnly bool) ([]*Template, error) {
	var out []*Template
	for _, t := range r.byID {
		if activeOnly && !t.Active {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

type fakeGateway struct {
	delivered []int64
	err       error
}

func (g *fakeGateway) Deliver(_ context.Context, m *Message) error {
	if g.err != nil {
		return g.err
	}
	g.delivered = append(g.delivered, m.ID)
	return nil
}

func fixture() (*Service, *fakeRepo, *fakeTemplateRepo, *fakeGateway) {
	repo := newFakeRepo()
	templates := newFakeTemplateRepo()
	gw := &fakeGateway{}
	return NewService(repo, templates, gw, nil), repo, templates, gw
}

func baseMessage() *Message {
	phone := "+15551230000"
	return &Message{
		SenderID:       uuid.New(),
		RecipientPhone: &phone,
		Type:           TypeSMS,
		Content:        "see you tomorrow at 10",
	}
}

func TestSend_ImmediateDispatch(t *testing.T) {
	svc, repo, _, gw := fixture()

	m := baseMessage()
	if err := svc.Send(context.Background(), m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Status != StatusSent {
		t.Errorf("expected sent status, got %s", m.Status)
	}
	if m.SentAt == nil {
		t.Error("expected sent_at to be stamped")
	}
	if len(gw.delivered) != 1 {
		t.Errorf("expected one gateway delivery, got %d", len(gw.delivered))
	}
	stored, _ := repo.GetByID(context.Background(), m.ID)
	if stored.Status != StatusSent {
		t.Errorf("status not persisted, got %s", stored.Status)
	}
}

func TestSend_GatewayFailureMarksFailed(t *testing.T) {
	svc, repo, _, gw := fixture()
	gw.err = errors.New("provider unreachable")

	m := baseMessage()
	if err := svc.Send(context.Background(), m); err != nil {
		t.Fatalf("gateway rejection must not error the caller: %v", err)
	}
	if m.Status != StatusFailed {
		t.Errorf("expected failed status, got %s", m.Status)
	}
	stored, _ := repo.GetByID(context.Background(), m.ID)
	if stored.FailureReason == nil || *stored.FailureReason != "provider unreachable" {
		t.Errorf("expected failure reason persisted, got %v", stored.FailureReason)
	}
}

func TestSend_RequiresRecipient(t *testing.T) {
	svc, _, _, _ := fixture()

	m := baseMessage()
	m.RecipientPhone = nil
	if err := svc.Send(context.Background(), m); err == nil {
		t.Fatal("expected error for missing recipient")
	}
}

func TestSend_RejectsUnknownType(t *testing.T) {
	svc, _, _, _ := fixture()

	m := baseMessage()
	m.Type = "fax"
	if err := svc.Send(context.Background(), m); err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func TestSend_FillsContentFromTemplate(t *testing.T) {
	svc, _, templates, _ := fixture()

	tpl := &Template{Name: "reminder", Content: "your appointment is tomorrow", CreatedBy: uuid.New()}
	if err := svc.CreateTemplate(context.Background(), tpl); err != nil {
		t.Fatalf("create template: %v", err)
	}

	m := baseMessage()
	m.Content = ""
	m.TemplateID = &tpl.ID
	if err := svc.Send(context.Background(), m); err != nil {
		t.Fatalf("send: %v", err)
	}
	if m.Content != tpl.Content {
		t.Errorf("expected template content, got %q", m.Content)
	}

	tpl.Active = false
	if err := templates.Update(context.Background(), tpl); err != nil {
		t.Fatalf("deactivate template: %v", err)
	}
	m2 := baseMessage()
	m2.Content = ""
	m2.TemplateID = &tpl.ID
	if err := svc.Send(context.Background(), m2); err == nil {
		t.Fatal("expected error for inactive template")
	}
}

func TestSend_FutureScheduleStaysPending(t *testing.T) {
	svc, _, _, gw := fixture()

	m := baseMessage()
	at := time.Now().Add(time.Hour)
	m.ScheduledAt = &at
	if err := svc.Send(context.Background(), m); err != nil {
		t.Fatalf("send: %v", err)
	}
	if m.Status != StatusPending {
		t.Errorf("expected pending, got %s", m.Status)
	}
	if len(gw.delivered) != 0 {
		t.Error("scheduled message must not reach the gateway yet")
	}
}

func TestSend_RejectsPastSchedule(t *testing.T) {
	svc, _, _, _ := fixture()

	m := baseMessage()
	at := time.Now().Add(-time.Minute)
	m.ScheduledAt = &at
	if err := svc.Send(context.Background(), m); err == nil {
		t.Fatal("expected error for past scheduled time")
	}
}

func TestDispatchDue_SendsOnlyDue(t *testing.T) {
	svc, repo, _, gw := fixture()

	due := baseMessage()
	soon := time.Now().Add(time.Minute)
	due.ScheduledAt = &soon
	if err := svc.Send(context.Background(), due); err != nil {
		t.Fatalf("send due: %v", err)
	}

	later := baseMessage()
	far := time.Now().Add(time.Hour)
	later.ScheduledAt = &far
	if err := svc.Send(context.Background(), later); err != nil {
		t.Fatalf("send later: %v", err)
	}

	svc.now = func() time.Time { return time.Now().Add(5 * time.Minute) }
	n, err := svc.DispatchDue(context.Background(), 100)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 dispatched, got %d", n)
	}
	if len(gw.delivered) != 1 || gw.delivered[0] != due.ID {
		t.Errorf("wrong message dispatched: %v", gw.delivered)
	}
	stored, _ := repo.GetByID(context.Background(), later.ID)
	if stored.Status != StatusPending {
		t.Errorf("future message must stay pending, got %s", stored.Status)
	}
}

func TestConfirmDelivery(t *testing.T) {
	svc, _, _, _ := fixture()

	m := baseMessage()
	if err := svc.Send(context.Background(), m); err != nil {
		t.Fatalf("send: %v", err)
	}

	got, err := svc.ConfirmDelivery(context.Background(), m.ID, true, "")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if got.Status != StatusDelivered {
		t.Errorf("expected delivered, got %s", got.Status)
	}

	if _, err := svc.ConfirmDelivery(context.Background(), m.ID, false, "bounced"); err == nil {
		t.Fatal("expected error confirming a non-sent message")
	}
}

func TestConfirmDelivery_Failure(t *testing.T) {
	svc, _, _, _ := fixture()

	m := baseMessage()
	if err := svc.Send(context.Background(), m); err != nil {
		t.Fatalf("send: %v", err)
	}

	got, err := svc.ConfirmDelivery(context.Background(), m.ID, false, "number unreachable")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if got.Status != StatusFailed {
		t.Errorf("expected failed, got %s", got.Status)
	}
	if got.FailureReason == nil || *got.FailureReason != "number unreachable" {
		t.Errorf("expected failure reason, got %v", got.FailureReason)
	}
}

func TestSendBulk(t *testing.T) {
	svc, repo, _, _ := fixture()

	m := baseMessage()
	m.RecipientPhone = nil
	recipients := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}

	sent, err := svc.SendBulk(context.Background(), m, recipients)
	if err != nil {
		t.Fatalf("bulk send: %v", err)
	}
	if len(sent) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(sent))
	}
	if len(repo.byID) != 3 {
		t.Errorf("expected 3 stored rows, got %d", len(repo.byID))
	}
	for i, s := range sent {
		if s.RecipientID == nil || *s.RecipientID != recipients[i] {
			t.Errorf("message %d has wrong recipient", i)
		}
	}

	if _, err := svc.SendBulk(context.Background(), m, nil); err == nil {
		t.Fatal("expected error for empty recipient list")
	}
}

func TestTemplateCRUD(t *testing.T) {
	svc, _, _, _ := fixture()

	if err := svc.CreateTemplate(context.Background(), &Template{Name: "x"}); err == nil {
		t.Fatal("expected error for missing content")
	}

	tpl := &Template{Name: "reminder", Content: "see you soon", Category: "reminder", CreatedBy: uuid.New()}
	if err := svc.CreateTemplate(context.Background(), tpl); err != nil {
		t.Fatalf("create: %v", err)
	}
	if !tpl.Active {
		t.Error("new templates start active")
	}

	tpl.Active = false
	if err := svc.UpdateTemplate(context.Background(), tpl); err != nil {
		t.Fatalf("update: %v", err)
	}

	active, err := svc.ListTemplates(context.Background(), true)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("expected no active templates, got %d", len(active))
	}
	all, err := svc.ListTemplates(context.Background(), false)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("expected one template, got %d", len(all))
	}
}
