package message

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/therapyhub/therapyhub/internal/platform/tenant"
	"github.com/therapyhub/therapyhub/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts messaging endpoints on the tenant-scoped group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/messages", h.List)
	g.GET("/messages/:id", h.Get)
	g.GET("/message-templates", h.ListTemplates)

	write := g.Group("", tenant.RequirePermission(tenant.PermManageMessages))
	write.POST("/messages", h.Send)
	write.POST("/messages/bulk", h.SendBulk)
	write.POST("/messages/dispatch", h.DispatchDue)
	write.POST("/messages/:id/delivery", h.ConfirmDelivery)
	write.POST("/calls", h.InitiateCall)
	write.POST("/message-templates", h.CreateTemplate)
	write.PUT("/message-templates/:id", h.UpdateTemplate)
}

type sendRequest struct {
	RecipientID    *uuid.UUID `json:"recipient_id"`
	RecipientPhone *string    `json:"recipient_phone"`
	Type           string     `json:"type"`
	Content        string     `json:"content"`
	TemplateID     *int64     `json:"template_id"`
	ScheduledAt    *time.Time `json:"scheduled_at"`
}

func (r sendRequest) toMessage(sender uuid.UUID) *Message {
	return &Message{
		SenderID:       sender,
		RecipientID:    r.RecipientID,
		RecipientPhone: r.RecipientPhone,
		Type:           r.Type,
		Content:        r.Content,
		TemplateID:     r.TemplateID,
		ScheduledAt:    r.ScheduledAt,
	}
}

func (h *Handler) Send(c echo.Context) error {
	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m := req.toMessage(tenant.CurrentPrincipalID(c.Request().Context()))
	if err := h.svc.Send(c.Request().Context(), m); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) SendBulk(c echo.Context) error {
	var req struct {
		sendRequest
		RecipientIDs []uuid.UUID `json:"recipient_ids"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m := req.toMessage(tenant.CurrentPrincipalID(c.Request().Context()))
	sent, err := h.svc.SendBulk(c.Request().Context(), m, req.RecipientIDs)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, sent)
}

// InitiateCall records an outbound call through the gateway. The body may
// carry notes that become the call record's content.
func (h *Handler) InitiateCall(c echo.Context) error {
	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.Type = TypeCall
	if req.Content == "" {
		req.Content = "call initiated"
	}
	m := req.toMessage(tenant.CurrentPrincipalID(c.Request().Context()))
	if err := h.svc.Send(c.Request().Context(), m); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) DispatchDue(c echo.Context) error {
	limit := 100
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}
	dispatched, err := h.svc.DispatchDue(c.Request().Context(), limit)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"dispatched": dispatched})
}

func (h *Handler) ConfirmDelivery(c echo.Context) error {
	id, err := parseID(c, "invalid message id")
	if err != nil {
		return err
	}
	var req struct {
		Delivered bool   `json:"delivered"`
		Reason    string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m, err := h.svc.ConfirmDelivery(c.Request().Context(), id, req.Delivered, req.Reason)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c, "invalid message id")
	if err != nil {
		return err
	}
	m, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) List(c echo.Context) error {
	p := pagination.FromContext(c)
	filter := Filter{
		Type:   c.QueryParam("type"),
		Status: c.QueryParam("status"),
	}
	if v := c.QueryParam("principal_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid principal_id")
		}
		filter.PrincipalID = id
	}
	if v := c.QueryParam("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "since must be RFC 3339")
		}
		filter.Since = t
	}

	messages, total, err := h.svc.List(c.Request().Context(), filter, p.Limit, p.Offset)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(messages, total, p.Limit, p.Offset))
}

func (h *Handler) CreateTemplate(c echo.Context) error {
	var t Template
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t.CreatedBy = tenant.CurrentPrincipalID(c.Request().Context())
	if err := h.svc.CreateTemplate(c.Request().Context(), &t); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, &t)
}

func (h *Handler) UpdateTemplate(c echo.Context) error {
	id, err := parseID(c, "invalid template id")
	if err != nil {
		return err
	}
	existing, err := h.svc.GetTemplate(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	var t Template
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t.ID = id
	t.CreatedBy = existing.CreatedBy
	if err := h.svc.UpdateTemplate(c.Request().Context(), &t); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, &t)
}

func (h *Handler) ListTemplates(c echo.Context) error {
	activeOnly := c.QueryParam("include_inactive") == ""
	templates, err := h.svc.ListTemplates(c.Request().Context(), activeOnly)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, templates)
}

func parseID(c echo.Context, msg string) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, msg)
	}
	return id, nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrTemplateNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, tenant.ErrNoTenant):
		return echo.NewHTTPError(http.StatusInternalServerError, "no tenant routing for request")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
