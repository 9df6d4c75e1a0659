package rbac

import "github.com/google/uuid"

// CompileFilter produces a list predicate equivalent to the per-record
// decision function for the resource type: for every context and every
// existing resource instance, filter.Eval(instance) equals the decision on
// that instance's id. If the two ever disagree, a list endpoint becomes an
// IDOR vector, so changes here must move in lockstep with authz.go. An
// unknown resource type is a caller contract violation and panics.
func CompileFilter(actx Context, resourceType string) AuthorizeFilter {
	switch resourceType {
	case ResourceClient:
		return CompileClientFilter(actx)
	case ResourceAppointment:
		return CompileAppointmentFilter(actx)
	case ResourceClinicalNote:
		return CompileClinicalNoteFilter(actx)
	case ResourceBillingRecord:
		return CompileBillingFilter(actx)
	default:
		panic("developer error: unknown resource type " + resourceType)
	}
}

// CompileClientFilter mirrors Engine.CanAccessClient.
func CompileClientFilter(actx Context) AuthorizeFilter {
	if actx.IsPortalClient {
		return eq(varTerm(VarID), strTerm(actx.PortalClientID.String()))
	}
	if actx.IsSuperAdmin {
		return matchAll()
	}

	var branches []Expression
	if actx.IsAdmin && actx.OrganizationID.Valid {
		branches = append(branches, eq(varTerm(VarOrg), strTerm(actx.OrganizationID.UUID.String())))
	}
	if actx.IsBillingStaff {
		branches = append(branches, matchAll())
	}
	if actx.IsClinicalStaff {
		branches = append(branches, member(varTerm(VarID), uuidStrings(actx.AllowedClientIDs.Sorted())))
	}
	return or(branches...)
}

// CompileAppointmentFilter mirrors Engine.CanAccessAppointment. The
// clinical branch is an OR of a direct clinician match and allowed-client
// membership: a clinician may have historical appointments with a client
// from before a formal assignment existed.
func CompileAppointmentFilter(actx Context) AuthorizeFilter {
	if actx.IsPortalClient {
		return eq(varTerm(VarClientID), strTerm(actx.PortalClientID.String()))
	}
	if actx.IsSuperAdmin {
		return matchAll()
	}

	var branches []Expression
	if actx.hasSchedulingRole() {
		branches = append(branches, matchAll())
	}
	if actx.IsAdmin && actx.OrganizationID.Valid {
		branches = append(branches, eq(varTerm(VarOrg), strTerm(actx.OrganizationID.UUID.String())))
	}
	if actx.IsBillingStaff {
		branches = append(branches, matchAll())
	}
	if actx.IsClinicalStaff {
		branches = append(branches, or(
			eq(varTerm(VarClinicianID), strTerm(actx.UserID.String())),
			member(varTerm(VarClientID), uuidStrings(actx.AllowedClientIDs.Sorted())),
		))
	}
	return or(branches...)
}

// CompileClinicalNoteFilter mirrors Engine.CanAccessClinicalNote: billing
// staff match nothing, and every staff branch is organization-bound.
func CompileClinicalNoteFilter(actx Context) AuthorizeFilter {
	if actx.IsPortalClient {
		return eq(varTerm(VarClientID), strTerm(actx.PortalClientID.String()))
	}
	if actx.IsSuperAdmin {
		return matchAll()
	}
	if actx.IsBillingStaff && !actx.IsAdmin {
		return matchNone()
	}
	if !actx.OrganizationID.Valid {
		return matchNone()
	}

	orgMatch := eq(varTerm(VarOrg), strTerm(actx.OrganizationID.UUID.String()))

	var branches []Expression
	if actx.IsAdmin {
		branches = append(branches, matchAll())
	}
	if actx.IsClinicalStaff {
		branches = append(branches, or(
			eq(varTerm(VarClinicianID), strTerm(actx.UserID.String())),
			member(varTerm(VarClientID), uuidStrings(actx.AllowedClientIDs.Sorted())),
		))
	}
	return and(orgMatch, or(branches...))
}

// CompileBillingFilter mirrors Engine.CanAccessBillingData over billing
// rows keyed by their associated client id.
func CompileBillingFilter(actx Context) AuthorizeFilter {
	if actx.IsPortalClient {
		return eq(varTerm(VarClientID), strTerm(actx.PortalClientID.String()))
	}
	if actx.IsSuperAdmin {
		return matchAll()
	}
	if actx.IsAdmin || actx.hasBillingVisibility() {
		return matchAll()
	}
	if actx.IsClinicalStaff {
		return member(varTerm(VarClientID), uuidStrings(actx.AllowedClientIDs.Sorted()))
	}
	return matchNone()
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
