package rbac

import (
	"context"

	"cdr.dev/slog"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Engine evaluates access decisions against an injected store. All decision
// methods are total: they return false on any collaborator failure and
// never panic for well-formed input. The engine holds no cross-request
// state; a single instance is shared by every request.
//
// Each rule branch either grants access or falls through to the next, so a
// principal holding several roles gets the union of what each role grants.
// The only exception is the clinical-note billing exclusion, which is a
// hard deny by policy.
type Engine struct {
	store  Store
	log    slog.Logger
	tracer trace.Tracer
}

func NewEngine(store Store, log slog.Logger) *Engine {
	return &Engine{
		store:  store,
		log:    log,
		tracer: otel.Tracer("ehrd/rbac"),
	}
}

// CanAccess dispatches to the per-kind decision function. For billing
// records the id is interpreted as the associated client id. An unknown
// resource type is a caller contract violation and panics.
func (e *Engine) CanAccess(ctx context.Context, actx Context, resourceType string, id uuid.UUID) bool {
	switch resourceType {
	case ResourceClient:
		return e.CanAccessClient(ctx, actx, id)
	case ResourceAppointment:
		return e.CanAccessAppointment(ctx, actx, id)
	case ResourceClinicalNote:
		return e.CanAccessClinicalNote(ctx, actx, id)
	case ResourceBillingRecord:
		return e.CanAccessBillingData(ctx, actx, &id)
	default:
		panic("developer error: unknown resource type " + resourceType)
	}
}

// CanAccessClient reports whether the context may access the client record.
func (e *Engine) CanAccessClient(ctx context.Context, actx Context, clientID uuid.UUID) bool {
	ctx, span := e.startSpan(ctx, "rbac.CanAccessClient", actx, clientID)
	defer span.End()

	if actx.IsPortalClient {
		return actx.PortalClientID == clientID
	}
	if actx.IsSuperAdmin {
		return true
	}
	if actx.IsAdmin && actx.OrganizationID.Valid {
		org, err := e.store.GetClientOrganization(ctx, clientID)
		if err == nil && org == actx.OrganizationID.UUID {
			return true
		}
		if err != nil {
			e.logLookupFailure(ctx, "client organization", err)
		}
	}
	if actx.IsBillingStaff {
		return true
	}
	if actx.IsClinicalStaff && actx.AllowedClientIDs.Contains(clientID) {
		return true
	}
	return false
}

// CanAccessAppointment reports whether the context may access the
// appointment. A non-existent appointment denies for every role.
func (e *Engine) CanAccessAppointment(ctx context.Context, actx Context, appointmentID uuid.UUID) bool {
	ctx, span := e.startSpan(ctx, "rbac.CanAccessAppointment", actx, appointmentID)
	defer span.End()

	ref, err := e.store.GetAppointmentAccessRef(ctx, appointmentID)
	if err != nil {
		e.logLookupFailure(ctx, "appointment", err)
		return false
	}

	if actx.IsPortalClient {
		return ref.ClientID == actx.PortalClientID
	}
	if actx.IsSuperAdmin {
		return true
	}
	if actx.hasSchedulingRole() {
		return true
	}
	if actx.IsAdmin && actx.OrganizationID.Valid && ref.OrganizationID == actx.OrganizationID.UUID {
		return true
	}
	if actx.IsBillingStaff {
		return true
	}
	if actx.IsClinicalStaff {
		if ref.ClinicianID == actx.UserID {
			return true
		}
		if actx.AllowedClientIDs.Contains(ref.ClientID) {
			return true
		}
	}
	return false
}

// CanAccessClinicalNote reports whether the context may access the note.
// This is strictly narrower than appointment access: billing staff are
// denied outright, and clinical access additionally requires the owning
// client's organization to match the context's.
func (e *Engine) CanAccessClinicalNote(ctx context.Context, actx Context, noteID uuid.UUID) bool {
	ctx, span := e.startSpan(ctx, "rbac.CanAccessClinicalNote", actx, noteID)
	defer span.End()

	ref, err := e.store.GetClinicalNoteAccessRef(ctx, noteID)
	if err != nil {
		e.logLookupFailure(ctx, "clinical note", err)
		return false
	}

	if actx.IsPortalClient {
		return ref.ClientID == actx.PortalClientID
	}
	if actx.IsSuperAdmin {
		return true
	}
	if actx.IsBillingStaff && !actx.IsAdmin {
		return false
	}
	if !actx.OrganizationID.Valid || ref.OrganizationID != actx.OrganizationID.UUID {
		return false
	}
	if actx.IsAdmin {
		return true
	}
	if actx.IsClinicalStaff {
		if ref.ClinicianID == actx.UserID {
			return true
		}
		if actx.AllowedClientIDs.Contains(ref.ClientID) {
			return true
		}
	}
	return false
}

// CanAccessBillingData reports whether the context may access billing data,
// optionally scoped to one client. Clinical staff get billing visibility
// only for a named client in their assignment set, never organization-wide.
func (e *Engine) CanAccessBillingData(ctx context.Context, actx Context, clientID *uuid.UUID) bool {
	var target uuid.UUID
	if clientID != nil {
		target = *clientID
	}
	_, span := e.startSpan(ctx, "rbac.CanAccessBillingData", actx, target)
	defer span.End()

	if actx.IsPortalClient {
		return clientID != nil && *clientID == actx.PortalClientID
	}
	if actx.IsSuperAdmin {
		return true
	}
	if actx.IsAdmin || actx.hasBillingVisibility() {
		return true
	}
	if actx.IsClinicalStaff && clientID != nil && actx.AllowedClientIDs.Contains(*clientID) {
		return true
	}
	return false
}

// Authorize is the error-shaped form of CanAccess for callers that
// propagate denials as errors. The returned error's text is safe to show
// a caller; the decision inputs ride along for logging only.
func (e *Engine) Authorize(ctx context.Context, actx Context, resourceType string, id uuid.UUID) error {
	if e.CanAccess(ctx, actx, resourceType, id) {
		return nil
	}
	return Forbidden(nil, actx.UserID.String(), resourceType, id.String())
}

// CompileFilter produces the list predicate equivalent to the per-record
// decision for the resource type. An unknown resource type panics.
func (e *Engine) CompileFilter(ctx context.Context, actx Context, resourceType string) AuthorizeFilter {
	_, span := e.tracer.Start(ctx, "rbac.CompileFilter", trace.WithAttributes(
		attribute.String("user_id", actx.UserID.String()),
		attribute.String("resource_type", resourceType),
	))
	defer span.End()

	return CompileFilter(actx, resourceType)
}

func (e *Engine) startSpan(ctx context.Context, name string, actx Context, resourceID uuid.UUID) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("user_id", actx.UserID.String()),
		attribute.String("resource_id", resourceID.String()),
	))
}

// logLookupFailure records a collaborator failure that resolved to a deny.
// The caller sees a plain denial; the reason lives only in the logs.
func (e *Engine) logLookupFailure(ctx context.Context, what string, err error) {
	e.log.Warn(ctx, "rbac lookup failed, denying access",
		slog.F("lookup", what),
		slog.Error(err),
	)
}
