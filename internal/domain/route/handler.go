package route

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/therapyhub/therapyhub/internal/platform/tenant"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts route planning endpoints on the tenant-scoped group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/routes/today", h.Today)
	g.GET("/routes/:id", h.Get)
	g.GET("/clinicians/:clinician_id/routes", h.ListByClinician)

	write := g.Group("", tenant.RequirePermission(tenant.PermManageRoutes))
	write.POST("/routes/plan", h.Plan)
	write.PUT("/routes/:id/stops/:stop_id/status", h.UpdateStopStatus)
	write.PUT("/routes/:id/stops/:stop_id/notes", h.UpdateStopNotes)
	write.POST("/routes/:id/cancel", h.Cancel)
	write.DELETE("/routes/:id", h.Delete)
}

func (h *Handler) Plan(c echo.Context) error {
	var req struct {
		ClinicianID uuid.UUID `json:"clinician_id"`
		RouteDate   string    `json:"route_date"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ClinicianID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "clinician_id is required")
	}
	date, err := time.Parse("2006-01-02", req.RouteDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "route_date must be YYYY-MM-DD")
	}

	rt, err := h.svc.Plan(c.Request().Context(), req.ClinicianID, date)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, rt)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c, "id", "invalid route id")
	if err != nil {
		return err
	}
	rt, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, rt)
}

func (h *Handler) Today(c echo.Context) error {
	routes, err := h.svc.Today(c.Request().Context())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, routes)
}

func (h *Handler) ListByClinician(c echo.Context) error {
	clinicianID, err := uuid.Parse(c.Param("clinician_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid clinician id")
	}
	var from, to time.Time
	if v := c.QueryParam("start_date"); v != "" {
		if from, err = time.Parse("2006-01-02", v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "start_date must be YYYY-MM-DD")
		}
	}
	if v := c.QueryParam("end_date"); v != "" {
		if to, err = time.Parse("2006-01-02", v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "end_date must be YYYY-MM-DD")
		}
	}
	routes, err := h.svc.ListByClinician(c.Request().Context(), clinicianID, from, to)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, routes)
}

func (h *Handler) UpdateStopStatus(c echo.Context) error {
	routeID, err := parseID(c, "id", "invalid route id")
	if err != nil {
		return err
	}
	stopID, err := parseID(c, "stop_id", "invalid stop id")
	if err != nil {
		return err
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Status == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "status is required")
	}
	stop, err := h.svc.UpdateStopStatus(c.Request().Context(), routeID, stopID, req.Status)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, stop)
}

func (h *Handler) UpdateStopNotes(c echo.Context) error {
	routeID, err := parseID(c, "id", "invalid route id")
	if err != nil {
		return err
	}
	stopID, err := parseID(c, "stop_id", "invalid stop id")
	if err != nil {
		return err
	}
	var req struct {
		VisitNotes string `json:"visit_notes"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	stop, err := h.svc.UpdateStopNotes(c.Request().Context(), routeID, stopID, req.VisitNotes)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, stop)
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := parseID(c, "id", "invalid route id")
	if err != nil {
		return err
	}
	rt, err := h.svc.Cancel(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, rt)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c, "id", "invalid route id")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func parseID(c echo.Context, param, msg string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, msg)
	}
	return id, nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrStopNotFound), errors.Is(err, ErrNoAppointments):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotAssigned):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, tenant.ErrNoTenant):
		return echo.NewHTTPError(http.StatusInternalServerError, "no tenant routing for request")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
