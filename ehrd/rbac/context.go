package rbac

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/xerrors"
)

// Principal is the authenticated identity for the current request. It is
// produced by exactly one authentication path, lives for one request, and is
// never persisted.
type Principal struct {
	ID    uuid.UUID
	Roles []Role
	// OrganizationID is set for staff principals that belong to an
	// organization. Super admins and portal clients may leave it unset.
	OrganizationID uuid.NullUUID
	// ClientID is the owning client record, set only for portal principals.
	ClientID uuid.NullUUID
}

// IsPortal reports whether the principal authenticated through the portal
// path.
func (p Principal) IsPortal() bool {
	for _, r := range p.Roles {
		if r == RolePortalClient {
			return true
		}
	}
	return false
}

// AllowedClients is the set of client ids a clinical principal may reach
// without a further assignment check. A nil map means "not applicable"
// (non-clinical role); an empty map means "clinical role with zero
// assignments" and must deny everything.
type AllowedClients map[uuid.UUID]struct{}

// Contains reports set membership. A nil set contains nothing.
func (a AllowedClients) Contains(id uuid.UUID) bool {
	_, ok := a[id]
	return ok
}

// Sorted returns the member ids in a stable order for predicate
// compilation.
func (a AllowedClients) Sorted() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(a))
	for id := range a {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
	return ids
}

// Context is the immutable permission snapshot derived once per request
// from a Principal. No decision function or filter compiler mutates it, so
// it is safe to reuse across every check within one request. It must never
// be cached across requests: assignments change between requests.
type Context struct {
	UserID         uuid.UUID
	Roles          []Role
	OrganizationID uuid.NullUUID

	IsSuperAdmin    bool
	IsAdmin         bool
	IsClinicalStaff bool
	IsBillingStaff  bool

	// IsPortalClient marks a portal principal. PortalClientID is the only
	// client record such a principal may ever reach.
	IsPortalClient bool
	PortalClientID uuid.UUID

	// AllowedClientIDs is populated only for clinical staff. See
	// AllowedClients for the nil/empty distinction.
	AllowedClientIDs AllowedClients
}

// HasRole reports whether the context's role set contains r.
func (c Context) HasRole(r Role) bool {
	for _, held := range c.Roles {
		if held == r {
			return true
		}
	}
	return false
}

func (c Context) hasSchedulingRole() bool {
	for _, held := range c.Roles {
		if _, ok := schedulingRoles[held]; ok {
			return true
		}
	}
	return false
}

// hasBillingVisibility extends the billing flag with OFFICE_MANAGER, which
// sits in the billing category of the production role catalog. SCHEDULER
// and FRONT_DESK never see billing data.
func (c Context) hasBillingVisibility() bool {
	return c.IsBillingStaff || c.HasRole(RoleOfficeManager)
}

// AccessRef is the minimal ownership snapshot of a protected resource,
// enough to run every decision rule without fetching the full row.
type AccessRef struct {
	ClientID       uuid.UUID
	ClinicianID    uuid.UUID
	OrganizationID uuid.UUID
}

// VerifyClinicianClientRelationshipParams asks the assignment store whether
// any clinical relationship links the clinician to the client: primary
// assignment, secondary assignment, or appointment history.
type VerifyClinicianClientRelationshipParams struct {
	ClinicianID uuid.UUID
	ClientID    uuid.UUID
}

// Store is the read-only collaborator surface the engine needs. Every
// lookup returns an explicit error for "not found" rather than a zero
// value, so the fail-closed policy is enforced at the type level. The
// application's database.Store satisfies this interface.
type Store interface {
	GetUserOrganization(ctx context.Context, userID uuid.UUID) (uuid.NullUUID, error)
	GetClientOrganization(ctx context.Context, clientID uuid.UUID) (uuid.UUID, error)
	// GetAssignedClientIDs returns clients for whom the clinician is the
	// primary or secondary clinician.
	GetAssignedClientIDs(ctx context.Context, clinicianID uuid.UUID) ([]uuid.UUID, error)
	GetSuperviseeClinicianIDs(ctx context.Context, supervisorID uuid.UUID) ([]uuid.UUID, error)
	VerifyClinicianClientRelationship(ctx context.Context, arg VerifyClinicianClientRelationshipParams) (bool, error)
	GetAppointmentAccessRef(ctx context.Context, id uuid.UUID) (AccessRef, error)
	GetClinicalNoteAccessRef(ctx context.Context, id uuid.UUID) (AccessRef, error)
}

// ErrNotAuthenticated is returned when a context is requested for a
// principal with no authenticated role.
var ErrNotAuthenticated = xerrors.New("rbac: principal is not authenticated")

// BuildContext derives the access context for one request. The context is
// built fresh per request and must not be reused across requests.
func BuildContext(ctx context.Context, store Store, principal Principal) (Context, error) {
	if len(principal.Roles) == 0 {
		return Context{}, ErrNotAuthenticated
	}

	roles := NormalizeRoles("", roleNames(principal.Roles))
	if len(roles) == 0 {
		return Context{}, ErrNotAuthenticated
	}

	out := Context{
		UserID: principal.ID,
		Roles:  roles,
	}

	for _, r := range roles {
		if r == RoleSuperAdmin {
			out.IsSuperAdmin = true
		}
		if _, ok := adminRoles[r]; ok {
			out.IsAdmin = true
		}
		if _, ok := clinicalRoles[r]; ok {
			out.IsClinicalStaff = true
		}
		if r == RoleBillingStaff {
			out.IsBillingStaff = true
		}
		if r == RolePortalClient {
			out.IsPortalClient = true
		}
	}

	if out.IsPortalClient {
		if !principal.ClientID.Valid {
			return Context{}, xerrors.New("rbac: portal principal has no client id")
		}
		out.PortalClientID = principal.ClientID.UUID
		org, err := store.GetClientOrganization(ctx, out.PortalClientID)
		if err != nil {
			return Context{}, xerrors.Errorf("lookup portal client organization: %w", err)
		}
		out.OrganizationID = uuid.NullUUID{UUID: org, Valid: true}
		return out, nil
	}

	// Super admin scope is global; skip the directory round trip.
	if !out.IsSuperAdmin {
		org, err := store.GetUserOrganization(ctx, principal.ID)
		if err != nil {
			return Context{}, xerrors.Errorf("lookup user organization: %w", err)
		}
		out.OrganizationID = org
	}

	if out.IsClinicalStaff {
		allowed, err := resolveAllowedClients(ctx, store, principal.ID, out.HasRole(RoleSupervisor))
		if err != nil {
			return Context{}, xerrors.Errorf("resolve assigned clients: %w", err)
		}
		out.AllowedClientIDs = allowed
	}

	return out, nil
}

// resolveAllowedClients computes the union of the principal's own
// assignments and, for supervisors, their supervisees' assignments. The
// result is always non-nil: a clinical role with zero assignments gets an
// empty set, which denies everything, never "no constraint".
func resolveAllowedClients(ctx context.Context, store Store, clinicianID uuid.UUID, supervisor bool) (AllowedClients, error) {
	allowed := AllowedClients{}

	own, err := store.GetAssignedClientIDs(ctx, clinicianID)
	if err != nil {
		return nil, xerrors.Errorf("own assignments: %w", err)
	}
	for _, id := range own {
		allowed[id] = struct{}{}
	}

	if supervisor {
		supervisees, err := store.GetSuperviseeClinicianIDs(ctx, clinicianID)
		if err != nil {
			return nil, xerrors.Errorf("supervisees: %w", err)
		}
		for _, sup := range supervisees {
			ids, err := store.GetAssignedClientIDs(ctx, sup)
			if err != nil {
				return nil, xerrors.Errorf("supervisee %s assignments: %w", sup, err)
			}
			for _, id := range ids {
				allowed[id] = struct{}{}
			}
		}
	}

	return allowed, nil
}

func roleNames(roles []Role) []string {
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, string(r))
	}
	return names
}
