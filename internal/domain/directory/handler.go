package directory

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/therapyhub/therapyhub/internal/platform/auth"
	"github.com/therapyhub/therapyhub/internal/platform/tenant"
	"github.com/therapyhub/therapyhub/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterAuthRoutes mounts registration and login on the public group and
// token/tenant management on the authenticated group.
func (h *Handler) RegisterAuthRoutes(public, authed *echo.Group) {
	public.POST("/auth/register", h.Register)
	public.POST("/auth/login", h.Login)

	authed.POST("/auth/switch-tenant", h.SwitchTenant)
	authed.GET("/tenants", h.ListMyTenants)
	authed.POST("/tenants", h.CreateTenant)
}

// RegisterTenantRoutes mounts tenant administration on the tenant-scoped
// group. The tenant middleware has already validated membership; the role
// guards narrow further.
func (h *Handler) RegisterTenantRoutes(g *echo.Group) {
	g.GET("", h.GetCurrentTenant)

	admin := g.Group("", tenant.RequireAdmin())
	admin.PUT("", h.UpdateTenant)
	admin.GET("/members", h.ListMemberships)
	admin.POST("/members", h.Invite)
	admin.PUT("/members/:id", h.UpdateMembership)
	admin.DELETE("/members/:id", h.RevokeMembership)

	owner := g.Group("", tenant.RequireRole(tenant.RoleOwner))
	owner.POST("/deactivate", h.DeactivateTenant)
}

// RegisterLifecycleRoutes mounts reactivate and drop on the authenticated
// group, outside the tenant middleware. The middleware rejects inactive
// tenants wholesale, so these two operations resolve ownership themselves —
// otherwise a deactivated tenant could never be reactivated or destroyed.
func (h *Handler) RegisterLifecycleRoutes(g *echo.Group) {
	g.POST("/tenants/:tenant_slug/reactivate", h.ReactivateTenant)
	g.DELETE("/tenants/:tenant_slug", h.DropTenant)
}

// -- Auth handlers --

type registerRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	FullName   string `json:"full_name"`
	TenantName string `json:"tenant_name"`
	TenantSlug string `json:"tenant_slug"`
}

func (h *Handler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	res, err := h.svc.Register(c.Request().Context(), RegisterInput{
		Username:   req.Username,
		Email:      req.Email,
		Password:   req.Password,
		FullName:   req.FullName,
		TenantName: req.TenantName,
		TenantSlug: req.TenantSlug,
	})
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, res)
}

type loginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	TenantSlug string `json:"tenant_slug"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	res, err := h.svc.Login(c.Request().Context(), req.Username, req.Password, req.TenantSlug)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, res)
}

type switchTenantRequest struct {
	TenantSlug string `json:"tenant_slug"`
}

func (h *Handler) SwitchTenant(c echo.Context) error {
	principalID := auth.PrincipalIDFromContext(c.Request().Context())
	if principalID == uuid.Nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	var req switchTenantRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.TenantSlug == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "tenant_slug is required")
	}

	res, err := h.svc.SwitchTenant(c.Request().Context(), principalID, req.TenantSlug)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, res)
}

// -- Tenant handlers --

type createTenantRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

func (h *Handler) CreateTenant(c echo.Context) error {
	principalID := auth.PrincipalIDFromContext(c.Request().Context())
	if principalID == uuid.Nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	var req createTenantRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}

	t, err := h.svc.CreateTenant(c.Request().Context(), req.Name, req.Slug, principalID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) ListMyTenants(c echo.Context) error {
	principalID := auth.PrincipalIDFromContext(c.Request().Context())
	if principalID == uuid.Nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	tenants, err := h.svc.ListMyTenants(c.Request().Context(), principalID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, tenants)
}

func (h *Handler) GetCurrentTenant(c echo.Context) error {
	access := tenant.CurrentAccess(c.Request().Context())
	if access == nil {
		return echo.NewHTTPError(http.StatusNotFound, "tenant not resolved")
	}
	t, err := h.svc.GetTenant(c.Request().Context(), access.TenantID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, t)
}

type updateTenantRequest struct {
	Name         string  `json:"name"`
	ContactEmail *string `json:"contact_email"`
	ContactPhone *string `json:"contact_phone"`
	Timezone     string  `json:"timezone"`
	Plan         string  `json:"plan"`
	LogoURL      *string `json:"logo_url"`
}

func (h *Handler) UpdateTenant(c echo.Context) error {
	access := tenant.CurrentAccess(c.Request().Context())
	t, err := h.svc.GetTenant(c.Request().Context(), access.TenantID)
	if err != nil {
		return mapError(err)
	}

	var req updateTenantRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Name != "" {
		t.Name = req.Name
	}
	if req.ContactEmail != nil {
		t.ContactEmail = req.ContactEmail
	}
	if req.ContactPhone != nil {
		t.ContactPhone = req.ContactPhone
	}
	if req.Timezone != "" {
		t.Timezone = req.Timezone
	}
	if req.Plan != "" {
		t.Plan = req.Plan
	}
	if req.LogoURL != nil {
		t.LogoURL = req.LogoURL
	}

	if err := h.svc.UpdateTenant(c.Request().Context(), t); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) DeactivateTenant(c echo.Context) error {
	access := tenant.CurrentAccess(c.Request().Context())
	if err := h.svc.DeactivateTenant(c.Request().Context(), access.TenantID); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ReactivateTenant(c echo.Context) error {
	principalID := auth.PrincipalIDFromContext(c.Request().Context())
	slug := c.Param("tenant_slug")
	if err := h.svc.ReactivateTenantBySlug(c.Request().Context(), principalID, slug); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DropTenant(c echo.Context) error {
	// Destroying a practice requires explicit confirmation of the slug.
	slug := c.Param("tenant_slug")
	if c.QueryParam("confirm") != slug {
		return echo.NewHTTPError(http.StatusBadRequest,
			"pass confirm=<tenant slug> to destroy this tenant and all of its data")
	}

	principalID := auth.PrincipalIDFromContext(c.Request().Context())
	if err := h.svc.DropTenantBySlug(c.Request().Context(), principalID, slug); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Membership handlers --

type inviteRequest struct {
	PrincipalID uuid.UUID       `json:"principal_id"`
	Role        string          `json:"role"`
	Overrides   map[string]bool `json:"permission_overrides"`
}

func (h *Handler) Invite(c echo.Context) error {
	access := tenant.CurrentAccess(c.Request().Context())

	var req inviteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.PrincipalID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "principal_id is required")
	}

	m, err := h.svc.Invite(c.Request().Context(), access.TenantID, req.PrincipalID, req.Role, req.Overrides)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) ListMemberships(c echo.Context) error {
	access := tenant.CurrentAccess(c.Request().Context())
	p := pagination.FromContext(c)

	memberships, total, err := h.svc.ListMemberships(c.Request().Context(), access.TenantID, p.Limit, p.Offset)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(memberships, total, p.Limit, p.Offset))
}

type updateMembershipRequest struct {
	Role      string          `json:"role"`
	Overrides map[string]bool `json:"permission_overrides"`
}

func (h *Handler) UpdateMembership(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid membership id")
	}

	var req updateMembershipRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	access := tenant.CurrentAccess(c.Request().Context())
	m := &Membership{
		ID:                  id,
		TenantID:            access.TenantID,
		Role:                req.Role,
		PermissionOverrides: req.Overrides,
		Active:              true,
	}
	if err := h.svc.UpdateMembership(c.Request().Context(), m); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) RevokeMembership(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid membership id")
	}
	if err := h.svc.RevokeMembership(c.Request().Context(), id); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// mapError translates service errors into HTTP errors.
func mapError(err error) error {
	switch {
	case errors.Is(err, tenant.ErrTenantNotFound),
		errors.Is(err, ErrPrincipalNotFound),
		errors.Is(err, ErrMembershipNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, tenant.ErrTenantInactive),
		errors.Is(err, tenant.ErrAccessDenied),
		errors.Is(err, ErrAccountInactive):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrAccountLocked):
		return echo.NewHTTPError(http.StatusTooManyRequests, err.Error())
	case errors.Is(err, ErrSlugTaken),
		errors.Is(err, ErrUsernameTaken),
		errors.Is(err, ErrEmailTaken),
		errors.Is(err, ErrMembershipExists),
		errors.Is(err, tenant.ErrSchemaExists):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, tenant.ErrInvalidIdentifier):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var provErr *tenant.ProvisionError
	if errors.As(err, &provErr) {
		return echo.NewHTTPError(http.StatusInternalServerError, "tenant provisioning failed")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
