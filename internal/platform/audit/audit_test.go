package audit

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/therapyhub/therapyhub/internal/platform/db"
	"github.com/therapyhub/therapyhub/internal/platform/tenant"
)

// fakeTx satisfies pgx.Tx through embedding; only Exec is exercised here.
type fakeTx struct {
	pgx.Tx
	execErr error
	execs   []string
	args    [][]interface{}
}

func (f *fakeTx) Exec(_ context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	f.execs = append(f.execs, sql)
	f.args = append(f.args, args)
	return pgconn.CommandTag{}, nil
}

func TestRecordWritesEntry(t *testing.T) {
	tx := &fakeTx{}
	sink := NewSink(nil, zerolog.Nop())
	ctx := db.WithTx(context.Background(), tx)

	pid := uuid.New()
	sink.Record(ctx, Entry{
		PrincipalID:  pid,
		Action:       ActionCreate,
		ResourceType: "patient",
	})

	if len(tx.execs) != 1 {
		t.Fatalf("expected one insert, got %d", len(tx.execs))
	}
	if !strings.Contains(tx.execs[0], "INSERT INTO audit_log") {
		t.Errorf("unexpected statement: %s", tx.execs[0])
	}
	if tx.args[0][0] != pid {
		t.Errorf("expected principal id as first arg, got %v", tx.args[0][0])
	}
}

func TestRecordSwallowsWriteFailure(t *testing.T) {
	tx := &fakeTx{execErr: fmt.Errorf("relation audit_log does not exist")}
	sink := NewSink(nil, zerolog.Nop())
	ctx := db.WithTx(context.Background(), tx)

	// Must not panic or propagate anything.
	sink.Record(ctx, Entry{PrincipalID: uuid.New(), Action: ActionUpdate, ResourceType: "note"})
}

func TestRecordAccessUsesTenantContext(t *testing.T) {
	tx := &fakeTx{}
	sink := NewSink(nil, zerolog.Nop())

	pid := uuid.New()
	ctx := db.WithTx(context.Background(), tx)
	ctx = tenant.WithCurrent(ctx, "clinic-a", &tenant.Access{PrincipalID: pid, Role: tenant.RoleMember})

	sink.RecordAccess(ctx, "GET", "/api/v1/tenants/clinic-a/patients", "10.0.0.1", "test-agent")

	if len(tx.args) != 1 {
		t.Fatalf("expected one insert, got %d", len(tx.args))
	}
	if tx.args[0][0] != pid {
		t.Errorf("expected principal from tenant context, got %v", tx.args[0][0])
	}
	if tx.args[0][1] != ActionAccess {
		t.Errorf("expected access action, got %v", tx.args[0][1])
	}
}

func TestSinkImplementsAccessRecorder(t *testing.T) {
	var _ tenant.AccessRecorder = NewSink(nil, zerolog.Nop())
}
