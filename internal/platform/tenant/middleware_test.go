package tenant

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/therapyhub/therapyhub/internal/platform/auth"
)

// fakeRouter runs the body without touching a database.
type fakeRouter struct {
	routed []string
	err    error
}

func (f *fakeRouter) ScopedRouting(ctx context.Context, slug string, fn func(ctx context.Context) error) error {
	if f.err != nil {
		return f.err
	}
	f.routed = append(f.routed, slug)
	return fn(ctx)
}

type fakeValidator struct {
	access *Access
	err    error
}

func (f *fakeValidator) ValidateAccess(_ context.Context, principalID uuid.UUID, slug string) (*Access, error) {
	if f.err != nil {
		return nil, f.err
	}
	a := *f.access
	a.PrincipalID = principalID
	return &a, nil
}

type fakeRecorder struct {
	calls int
	slug  string
}

func (f *fakeRecorder) RecordAccess(ctx context.Context, method, path, ip, userAgent string) {
	f.calls++
	f.slug = CurrentSlug(ctx)
}

func newTenantRequest(principalID uuid.UUID, slug string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/tenants/"+slug+"/patients", nil)
	if principalID != uuid.Nil {
		ctx := context.WithValue(req.Context(), auth.PrincipalIDKey, principalID)
		req = req.WithContext(ctx)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("tenant_slug")
	c.SetParamValues(slug)
	return c, rec
}

func TestRequirePopulatesContext(t *testing.T) {
	pid := uuid.New()
	tid := uuid.New()
	router := &fakeRouter{}
	validator := &fakeValidator{access: &Access{
		TenantID:    tid,
		Role:        RoleMember,
		Permissions: EffectivePermissions(RoleMember, nil),
	}}
	recorder := &fakeRecorder{}

	c, _ := newTenantRequest(pid, "clinic-a")

	var gotSlug string
	var gotAccess *Access
	handler := Require(router, validator, recorder, zerolog.Nop())(func(c echo.Context) error {
		ctx := c.Request().Context()
		gotSlug = CurrentSlug(ctx)
		gotAccess = CurrentAccess(ctx)
		return c.NoContent(http.StatusOK)
	})

	if err := handler(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if gotSlug != "clinic-a" {
		t.Errorf("expected clinic-a in context, got %q", gotSlug)
	}
	if gotAccess == nil || gotAccess.PrincipalID != pid || gotAccess.TenantID != tid {
		t.Errorf("unexpected access snapshot: %+v", gotAccess)
	}
	if len(router.routed) != 1 || router.routed[0] != "clinic-a" {
		t.Errorf("expected scoped routing to clinic-a, got %v", router.routed)
	}
	if recorder.calls != 1 || recorder.slug != "clinic-a" {
		t.Errorf("expected one access record inside the scope, got %d for %q", recorder.calls, recorder.slug)
	}
}

func TestRequireRejectsMissingTenant(t *testing.T) {
	c, _ := newTenantRequest(uuid.New(), "")
	handler := Require(&fakeRouter{}, &fakeValidator{}, nil, zerolog.Nop())(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	err := handler(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing tenant, got %v", err)
	}
}

func TestRequireRejectsInvalidSlug(t *testing.T) {
	c, _ := newTenantRequest(uuid.New(), "Bad_Slug")
	handler := Require(&fakeRouter{}, &fakeValidator{}, nil, zerolog.Nop())(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	err := handler(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid slug, got %v", err)
	}
}

func TestRequireRejectsUnauthenticated(t *testing.T) {
	c, _ := newTenantRequest(uuid.Nil, "clinic-a")
	handler := Require(&fakeRouter{}, &fakeValidator{}, nil, zerolog.Nop())(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	err := handler(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestRequireMapsValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"tenant not found", ErrTenantNotFound, http.StatusNotFound},
		{"tenant inactive", ErrTenantInactive, http.StatusForbidden},
		{"access denied", ErrAccessDenied, http.StatusForbidden},
	}

	for _, tc := range cases {
		c, _ := newTenantRequest(uuid.New(), "clinic-a")
		router := &fakeRouter{}
		handler := Require(router, &fakeValidator{err: tc.err}, nil, zerolog.Nop())(func(c echo.Context) error {
			return c.NoContent(http.StatusOK)
		})

		err := handler(c)
		httpErr, ok := err.(*echo.HTTPError)
		if !ok || httpErr.Code != tc.code {
			t.Errorf("%s: expected %d, got %v", tc.name, tc.code, err)
		}
		if len(router.routed) != 0 {
			t.Errorf("%s: routing must not happen when validation fails", tc.name)
		}
	}
}

func TestRequireMapsRoutingFailures(t *testing.T) {
	c, _ := newTenantRequest(uuid.New(), "clinic-a")
	validator := &fakeValidator{access: &Access{Role: RoleMember}}
	router := &fakeRouter{err: &RoutingError{Schema: "clinic-a", Op: "route", Err: context.DeadlineExceeded}}
	handler := Require(router, validator, nil, zerolog.Nop())(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	err := handler(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for routing failure, got %v", err)
	}
}

func TestRequireRoleAndPermissionGuards(t *testing.T) {
	run := func(access *Access, guard echo.MiddlewareFunc) error {
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if access != nil {
			req = req.WithContext(WithCurrent(req.Context(), "clinic-a", access))
		}
		c := e.NewContext(req, httptest.NewRecorder())
		return guard(func(c echo.Context) error {
			return c.NoContent(http.StatusOK)
		})(c)
	}

	member := &Access{Role: RoleMember, Permissions: EffectivePermissions(RoleMember, nil)}
	admin := &Access{Role: RoleAdmin, Permissions: EffectivePermissions(RoleAdmin, nil)}
	boosted := &Access{Role: RoleMember, Permissions: EffectivePermissions(RoleMember, map[string]bool{PermManageUsers: true})}

	if err := run(member, RequireAdmin()); err == nil {
		t.Error("member must not pass the admin guard")
	}
	if err := run(admin, RequireAdmin()); err != nil {
		t.Errorf("admin must pass the admin guard, got %v", err)
	}
	if err := run(member, RequirePermission(PermManageUsers)); err == nil {
		t.Error("member must not manage users by default")
	}
	if err := run(boosted, RequirePermission(PermManageUsers)); err != nil {
		t.Errorf("override must grant manage_users, got %v", err)
	}
	if err := run(member, RequirePermission(PermManagePatients)); err != nil {
		t.Errorf("member must manage patients by default, got %v", err)
	}
	if err := run(nil, RequireAdmin()); err == nil {
		t.Error("missing access snapshot must be rejected")
	}
}
