package rbac

import "strings"

// Role is a closed enumeration of staff roles plus the implicit portal
// client role. A user may hold several roles at once; authorization is an
// OR across the held set.
type Role string

const (
	RoleSuperAdmin       Role = "SUPER_ADMIN"
	RoleAdministrator    Role = "ADMINISTRATOR"
	RoleClinicalDirector Role = "CLINICAL_DIRECTOR"
	RoleSupervisor       Role = "SUPERVISOR"
	RoleClinician        Role = "CLINICIAN"
	RoleIntern           Role = "INTERN"
	RoleBillingStaff     Role = "BILLING_STAFF"
	RoleOfficeManager    Role = "OFFICE_MANAGER"
	RoleScheduler        Role = "SCHEDULER"
	RoleFrontDesk        Role = "FRONT_DESK"
	RoleReceptionist     Role = "RECEPTIONIST"

	// RolePortalClient is never stored on a staff user. It is assigned by
	// the authenticator to portal principals only.
	RolePortalClient Role = "PORTAL_CLIENT"
)

// Role categories. These drive the precomputed context flags and must stay
// closed: a new role is not authorized for anything until it is placed in a
// category here.
var (
	adminRoles = map[Role]struct{}{
		RoleSuperAdmin:       {},
		RoleAdministrator:    {},
		RoleClinicalDirector: {},
	}

	clinicalRoles = map[Role]struct{}{
		RoleClinicalDirector: {},
		RoleSupervisor:       {},
		RoleClinician:        {},
		RoleIntern:           {},
	}

	// schedulingRoles are the operational roles that need schedule
	// visibility without clinical content. Clinical and admin roles reach
	// appointments through their own rules, not through this set.
	schedulingRoles = map[Role]struct{}{
		RoleFrontDesk:     {},
		RoleScheduler:     {},
		RoleReceptionist:  {},
		RoleOfficeManager: {},
	}

	allRoles = map[Role]struct{}{
		RoleSuperAdmin:       {},
		RoleAdministrator:    {},
		RoleClinicalDirector: {},
		RoleSupervisor:       {},
		RoleClinician:        {},
		RoleIntern:           {},
		RoleBillingStaff:     {},
		RoleOfficeManager:    {},
		RoleScheduler:        {},
		RoleFrontDesk:        {},
		RoleReceptionist:     {},
		RolePortalClient:     {},
	}
)

// ValidRole reports whether name is a member of the closed role enumeration.
func ValidRole(name string) bool {
	_, ok := allRoles[Role(strings.ToUpper(strings.TrimSpace(name)))]
	return ok
}

// NormalizeRoles converts the two historical role representations (a single
// role column, or a role-set column) into one deduplicated set. Unknown
// names are dropped rather than granted. The result is stable: normalizing
// an already-normalized set returns the same set.
func NormalizeRoles(legacy string, names []string) []Role {
	seen := make(map[Role]struct{}, len(names)+1)
	out := make([]Role, 0, len(names)+1)

	add := func(name string) {
		r := Role(strings.ToUpper(strings.TrimSpace(name)))
		if _, ok := allRoles[r]; !ok {
			return
		}
		if _, ok := seen[r]; ok {
			return
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}

	add(legacy)
	for _, name := range names {
		add(name)
	}
	return out
}
