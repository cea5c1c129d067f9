package note

import (
	"errors"
	"net/http"
	"strconv"

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

// RegisterRoutes mounts note endpoints on the tenant-scoped group. Any
// member can write notes; template management is admin work.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/appointments/:id/notes", h.ListByAppointment)
	g.POST("/appointments/:id/notes", h.Create)
	g.GET("/patients/:id/notes", h.ListByPatient)
	g.GET("/notes/:id", h.Get)
	g.PUT("/notes/:id", h.Update)
	g.DELETE("/notes/:id", h.Delete)
	g.GET("/note-templates", h.ListTemplates)

	admin := g.Group("", tenant.RequireAdmin())
	admin.POST("/note-templates", h.CreateTemplate)
	admin.PUT("/note-templates/:id", h.UpdateTemplate)
}

func (h *Handler) Create(c echo.Context) error {
	appointmentID, err := parseID(c, "invalid appointment id")
	if err != nil {
		return err
	}
	var n Note
	if err := c.Bind(&n); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	n.AppointmentID = appointmentID
	if err := h.svc.Create(c.Request().Context(), &n); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, &n)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c, "invalid note id")
	if err != nil {
		return err
	}
	n, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := parseID(c, "invalid note id")
	if err != nil {
		return err
	}
	var req struct {
		Content  string `json:"content"`
		NoteType string `json:"note_type"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	n, err := h.svc.Update(c.Request().Context(), id, req.Content, req.NoteType)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c, "invalid note id")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListByAppointment(c echo.Context) error {
	appointmentID, err := parseID(c, "invalid appointment id")
	if err != nil {
		return err
	}
	notes, err := h.svc.ListByAppointment(c.Request().Context(), appointmentID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, notes)
}

func (h *Handler) ListByPatient(c echo.Context) error {
	patientID, err := parseID(c, "invalid patient id")
	if err != nil {
		return err
	}
	p := pagination.FromContext(c)
	notes, total, err := h.svc.ListByPatient(c.Request().Context(), patientID, p.Limit, p.Offset)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(notes, total, p.Limit, p.Offset))
}

func (h *Handler) CreateTemplate(c echo.Context) error {
	var t Template
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
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
	var t Template
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t.ID = id
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
	case errors.Is(err, ErrNotAuthor):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, tenant.ErrNoTenant):
		return echo.NewHTTPError(http.StatusInternalServerError, "no tenant routing for request")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
