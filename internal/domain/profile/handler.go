package profile

import (
	"errors"
	"net/http"

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

// RegisterRoutes mounts profile endpoints on the tenant-scoped group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/profiles/me", h.GetMine)
	g.PUT("/profiles/me", h.UpsertMine)
	g.GET("/profiles/:principal_id", h.Get)

	admin := g.Group("", tenant.RequireAdmin())
	admin.GET("/profiles", h.List)
	admin.PUT("/profiles/:principal_id", h.Upsert)
}

func (h *Handler) GetMine(c echo.Context) error {
	p, err := h.svc.Get(c.Request().Context(), tenant.CurrentPrincipalID(c.Request().Context()))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpsertMine(c echo.Context) error {
	var p Profile
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.PrincipalID = tenant.CurrentPrincipalID(c.Request().Context())
	if err := h.svc.Upsert(c.Request().Context(), &p); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, &p)
}

func (h *Handler) Get(c echo.Context) error {
	principalID, err := uuid.Parse(c.Param("principal_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid principal id")
	}
	p, err := h.svc.Get(c.Request().Context(), principalID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Upsert(c echo.Context) error {
	principalID, err := uuid.Parse(c.Param("principal_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid principal id")
	}
	var p Profile
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.PrincipalID = principalID
	if err := h.svc.Upsert(c.Request().Context(), &p); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, &p)
}

func (h *Handler) List(c echo.Context) error {
	profiles, err := h.svc.List(c.Request().Context())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, profiles)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotSelf):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, tenant.ErrNoTenant):
		return echo.NewHTTPError(http.StatusInternalServerError, "no tenant routing for request")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
