package database

import (
	"context"

	"github.com/google/uuid"

	"github.com/mentalspace/ehr/ehrd/rbac"
)

// Store is the data access surface consumed by the authentication and
// access-control layers. It is constructed once at process startup and
// injected everywhere; nothing reaches it through a package-level
// singleton. From the engine's perspective every method is read-only
// except UpdateSessionLastUsed and InsertAuditLog.
//
// "Not found" is always the explicit ErrNoRows error, never a zero value,
// so fail-closed handling cannot be forgotten at a call site.
type Store interface {
	rbac.Store

	GetUserByID(ctx context.Context, id uuid.UUID) (User, error)
	GetSessionByID(ctx context.Context, id string) (Session, error)
	UpdateSessionLastUsed(ctx context.Context, arg UpdateSessionLastUsedParams) error
	GetPortalAccountByClientID(ctx context.Context, clientID uuid.UUID) (PortalAccount, error)
	GetClientByID(ctx context.Context, id uuid.UUID) (Client, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (Appointment, error)
	GetClinicalNoteByID(ctx context.Context, id uuid.UUID) (ClinicalNote, error)

	// The authorized list queries apply a compiled filter so that a list
	// can never return a row the per-record decision would deny.
	GetAuthorizedClients(ctx context.Context, filter rbac.AuthorizeFilter) ([]Client, error)
	GetAuthorizedAppointments(ctx context.Context, filter rbac.AuthorizeFilter) ([]Appointment, error)
	GetAuthorizedClinicalNotes(ctx context.Context, filter rbac.AuthorizeFilter) ([]ClinicalNote, error)
	GetAuthorizedBillingRecords(ctx context.Context, filter rbac.AuthorizeFilter) ([]BillingRecord, error)

	InsertAuditLog(ctx context.Context, arg InsertAuditLogParams) error

	Ping(ctx context.Context) error
}
