package auth

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Role is a user's access level.
type Role string

const (
	RoleAdministrator Role = "administrator"
	RoleModerator     Role = "moderator"
	RolePatient       Role = "patient"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdministrator, RoleModerator, RolePatient:
		return true
	}
	return false
}

// Staff reports whether r is a staff role.
func (r Role) Staff() bool {
	return r == RoleAdministrator || r == RoleModerator
}

// Capability names a discrete permission consulted at the route level.
type Capability string

const (
	CapViewOwnRecords  Capability = "view_own_records"
	CapViewAnyRecord   Capability = "view_any_record"
	CapManagePatients  Capability = "manage_patients"
	CapCreateAnalysis  Capability = "create_analysis"
	CapSetStatus       Capability = "set_analysis_status"
	CapViewStatistics  Capability = "view_statistics"
	CapManageUsers     Capability = "manage_users"
	CapManageCatalog   Capability = "manage_catalog"
)

// capabilities maps each role to its granted capability set.
var capabilities = map[Role]map[Capability]bool{
	RoleAdministrator: {
		CapViewOwnRecords: true,
		CapViewAnyRecord:  true,
		CapManagePatients: true,
		CapCreateAnalysis: true,
		CapSetStatus:      true,
		CapViewStatistics: true,
		CapManageUsers:    true,
		CapManageCatalog:  true,
	},
	RoleModerator: {
		CapViewOwnRecords: true,
		CapViewAnyRecord:  true,
		CapManagePatients: true,
		CapCreateAnalysis: true,
		CapSetStatus:      true,
		CapViewStatistics: true,
	},
	RolePatient: {
		CapViewOwnRecords: true,
	},
}

// Allows reports whether the given role holds the given capability.
func Allows(role Role, cap Capability) bool {
	return capabilities[role][cap]
}

// RequireCapability returns middleware that rejects callers whose role lacks
// the capability. It must run after JWTMiddleware.
func RequireCapability(cap Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ident, ok := IdentityFromContext(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if !Allows(ident.Role, cap) {
				return echo.NewHTTPError(http.StatusForbidden,
					fmt.Sprintf("role %s may not %s", ident.Role, cap))
			}
			return next(c)
		}
	}
}
