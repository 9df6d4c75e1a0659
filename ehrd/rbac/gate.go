package rbac

import (
	"context"

	"cdr.dev/slog"
	"github.com/google/uuid"
)

// GateDecision is the outcome of the first-phase client access check.
type GateDecision string

const (
	// GateAllowed is a final grant: no further verification is needed.
	GateAllowed GateDecision = "allowed"
	// GatePendingVerification is a provisional pass. The caller MUST call
	// VerifyPendingAssignment and receive true before returning any PHI
	// for the target client. PHI returned in between is a security defect.
	GatePendingVerification GateDecision = "pending_verification"
	// GateDenied is a final deny.
	GateDenied GateDecision = "denied"
)

// GateResult is the explicit return value of the gate phase. It is threaded
// through the caller rather than attached to request state, so a pending
// verification cannot be silently dropped or read before it is set.
type GateResult struct {
	Decision GateDecision
	// ClientID is the target to verify when Decision is
	// GatePendingVerification.
	ClientID uuid.UUID
}

// Final reports whether the result needs no second phase.
func (g GateResult) Final() bool {
	return g.Decision != GatePendingVerification
}

// GateClientAccess is the fast first-phase check run where a request first
// names a target client id. Admin and operational roles resolve here
// exactly as in the client decision table. Clinician, supervisor, and
// intern roles with no overriding grant get a provisional pass instead of
// the full assignment-store round trip; portal principals never do, their
// check is plain equality.
func (e *Engine) GateClientAccess(ctx context.Context, actx Context, clientID uuid.UUID) GateResult {
	ctx, span := e.startSpan(ctx, "rbac.GateClientAccess", actx, clientID)
	defer span.End()

	if actx.IsPortalClient {
		if actx.PortalClientID == clientID {
			return GateResult{Decision: GateAllowed}
		}
		return GateResult{Decision: GateDenied}
	}
	if actx.IsSuperAdmin {
		return GateResult{Decision: GateAllowed}
	}
	if actx.IsAdmin && actx.OrganizationID.Valid {
		org, err := e.store.GetClientOrganization(ctx, clientID)
		if err == nil && org == actx.OrganizationID.UUID {
			return GateResult{Decision: GateAllowed}
		}
		if err != nil {
			e.logLookupFailure(ctx, "client organization", err)
		}
	}
	if actx.IsBillingStaff {
		return GateResult{Decision: GateAllowed}
	}
	if actx.IsClinicalStaff {
		return GateResult{
			Decision: GatePendingVerification,
			ClientID: clientID,
		}
	}
	return GateResult{Decision: GateDenied}
}

// VerifyPendingAssignment completes the second phase for a provisional gate
// pass. It asks the assignment store directly whether the principal is the
// primary or secondary clinician, has any appointment history with the
// client, or supervises a clinician who does. Any store failure or empty
// result verifies to false; a canceled context denies rather than retries.
func (e *Engine) VerifyPendingAssignment(ctx context.Context, actx Context, pending GateResult) bool {
	switch pending.Decision {
	case GateAllowed:
		return true
	case GateDenied:
		return false
	case GatePendingVerification:
	default:
		panic("developer error: unknown gate decision " + string(pending.Decision))
	}

	ctx, span := e.startSpan(ctx, "rbac.VerifyPendingAssignment", actx, pending.ClientID)
	defer span.End()

	ok, err := e.store.VerifyClinicianClientRelationship(ctx, VerifyClinicianClientRelationshipParams{
		ClinicianID: actx.UserID,
		ClientID:    pending.ClientID,
	})
	if err != nil {
		e.logLookupFailure(ctx, "clinician-client relationship", err)
		return false
	}
	if ok {
		return true
	}

	if !actx.HasRole(RoleSupervisor) {
		return false
	}

	supervisees, err := e.store.GetSuperviseeClinicianIDs(ctx, actx.UserID)
	if err != nil {
		e.logLookupFailure(ctx, "supervisees", err)
		return false
	}
	for _, sup := range supervisees {
		if ctx.Err() != nil {
			return false
		}
		ok, err := e.store.VerifyClinicianClientRelationship(ctx, VerifyClinicianClientRelationshipParams{
			ClinicianID: sup,
			ClientID:    pending.ClientID,
		})
		if err != nil {
			e.logLookupFailure(ctx, "supervisee relationship", err)
			return false
		}
		if ok {
			return true
		}
	}
	return false
}

// GateThenVerify runs both phases back to back for callers with no hot-path
// reason to split them.
func (e *Engine) GateThenVerify(ctx context.Context, actx Context, clientID uuid.UUID) bool {
	gate := e.GateClientAccess(ctx, actx, clientID)
	if gate.Decision == GateDenied {
		return false
	}
	granted := e.VerifyPendingAssignment(ctx, actx, gate)
	if !granted && gate.Decision == GatePendingVerification {
		e.log.Debug(ctx, "gate pass failed verification",
			slog.F("user_id", actx.UserID),
			slog.F("client_id", clientID),
		)
	}
	return granted
}
