package tenant

// Membership roles form a closed set. Per-membership permission overrides
// are merged on top of these defaults when access is validated.
const (
	RoleOwner     = "owner"
	RoleAdmin     = "admin"
	RoleManager   = "manager"
	RoleMember    = "member"
	RoleScheduler = "scheduler"
)

// Permission names used across the tenant-scoped API surface.
const (
	PermManageUsers        = "manage_users"
	PermManageSettings     = "manage_settings"
	PermManageBilling      = "manage_billing"
	PermViewReports        = "view_reports"
	PermManagePatients     = "manage_patients"
	PermManageAppointments = "manage_appointments"
	PermManageMessages     = "manage_messages"
	PermManageRoutes       = "manage_routes"
)

var roleDefaults = map[string]map[string]bool{
	RoleOwner: {
		PermManageUsers: true, PermManageSettings: true, PermManageBilling: true,
		PermViewReports: true, PermManagePatients: true, PermManageAppointments: true,
		PermManageMessages: true, PermManageRoutes: true,
	},
	RoleAdmin: {
		PermManageUsers: true, PermManageSettings: true, PermManageBilling: true,
		PermViewReports: true, PermManagePatients: true, PermManageAppointments: true,
		PermManageMessages: true, PermManageRoutes: true,
	},
	RoleManager: {
		PermManageUsers: true, PermViewReports: true, PermManagePatients: true,
		PermManageAppointments: true, PermManageMessages: true, PermManageRoutes: true,
	},
	RoleMember: {
		PermManagePatients: true, PermManageAppointments: true, PermManageMessages: true,
	},
	RoleScheduler: {
		PermManageAppointments: true, PermManageRoutes: true,
	},
}

// ValidRole reports whether role belongs to the closed role set.
func ValidRole(role string) bool {
	_, ok := roleDefaults[role]
	return ok
}

// EffectivePermissions merges per-membership overrides over the role's
// default permission set. Overrides can both grant and revoke.
func EffectivePermissions(role string, overrides map[string]bool) map[string]bool {
	perms := make(map[string]bool, len(roleDefaults[role])+len(overrides))
	for p, v := range roleDefaults[role] {
		perms[p] = v
	}
	for p, v := range overrides {
		perms[p] = v
	}
	return perms
}
