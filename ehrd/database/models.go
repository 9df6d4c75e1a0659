package database

import (
	"time"

	"github.com/google/uuid"
)

type UserStatus string

const (
	UserStatusActive   UserStatus = "ACTIVE"
	UserStatusInactive UserStatus = "INACTIVE"
)

// User is a staff member. Role carries the deprecated single-role column
// that predates role sets; rbac.NormalizeRoles folds both shapes together.
type User struct {
	ID             uuid.UUID     `db:"id" json:"id"`
	Email          string        `db:"email" json:"email"`
	Role           string        `db:"role" json:"role"`
	Roles          []string      `db:"roles" json:"roles"`
	OrganizationID uuid.NullUUID `db:"organization_id" json:"organization_id"`
	SupervisorID   uuid.NullUUID `db:"supervisor_id" json:"supervisor_id"`
	Status         UserStatus    `db:"status" json:"status"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// Session is an opaque staff credential. The wire token is
// "<id>-<secret>"; only the sha256 of the secret is stored.
type Session struct {
	ID           string    `db:"id" json:"id"`
	HashedSecret []byte    `db:"hashed_secret" json:"-"`
	UserID       uuid.UUID `db:"user_id" json:"user_id"`
	ExpiresAt    time.Time `db:"expires_at" json:"expires_at"`
	LastUsed     time.Time `db:"last_used" json:"last_used"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type UpdateSessionLastUsedParams struct {
	ID       string    `db:"id" json:"id"`
	LastUsed time.Time `db:"last_used" json:"last_used"`
}

type PortalAccountStatus string

const (
	PortalAccountStatusActive              PortalAccountStatus = "ACTIVE"
	PortalAccountStatusPendingVerification PortalAccountStatus = "PENDING_VERIFICATION"
	PortalAccountStatusSuspended           PortalAccountStatus = "SUSPENDED"
	PortalAccountStatusLocked              PortalAccountStatus = "LOCKED"
)

// PortalAccount is a client's portal login. Portal access is a grant on
// top of the account existing and being active.
type PortalAccount struct {
	ID                  uuid.UUID           `db:"id" json:"id"`
	ClientID            uuid.UUID           `db:"client_id" json:"client_id"`
	Email               string              `db:"email" json:"email"`
	Status              PortalAccountStatus `db:"status" json:"status"`
	PortalAccessGranted bool                `db:"portal_access_granted" json:"portal_access_granted"`
	CreatedAt           time.Time           `db:"created_at" json:"created_at"`
}

type ClientStatus string

const (
	ClientStatusActive     ClientStatus = "ACTIVE"
	ClientStatusInactive   ClientStatus = "INACTIVE"
	ClientStatusDischarged ClientStatus = "DISCHARGED"
)

// Client is the clinical record subject. Assignment columns drive the
// allowed-client computation for clinical staff.
type Client struct {
	ID                   uuid.UUID     `db:"id" json:"id"`
	OrganizationID       uuid.UUID     `db:"organization_id" json:"organization_id"`
	Status               ClientStatus  `db:"status" json:"status"`
	PrimaryClinicianID   uuid.NullUUID `db:"primary_clinician_id" json:"primary_clinician_id"`
	SecondaryClinicianID uuid.NullUUID `db:"secondary_clinician_id" json:"secondary_clinician_id"`
	CreatedAt            time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time     `db:"updated_at" json:"updated_at"`
}

type Appointment struct {
	ID             uuid.UUID `db:"id" json:"id"`
	ClientID       uuid.UUID `db:"client_id" json:"client_id"`
	ClinicianID    uuid.UUID `db:"clinician_id" json:"clinician_id"`
	OrganizationID uuid.UUID `db:"organization_id" json:"organization_id"`
	StartsAt       time.Time `db:"starts_at" json:"starts_at"`
	EndsAt         time.Time `db:"ends_at" json:"ends_at"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

type ClinicalNote struct {
	ID             uuid.UUID `db:"id" json:"id"`
	ClientID       uuid.UUID `db:"client_id" json:"client_id"`
	ClinicianID    uuid.UUID `db:"clinician_id" json:"clinician_id"`
	OrganizationID uuid.UUID `db:"organization_id" json:"organization_id"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

type BillingRecord struct {
	ID             uuid.UUID `db:"id" json:"id"`
	ClientID       uuid.UUID `db:"client_id" json:"client_id"`
	OrganizationID uuid.UUID `db:"organization_id" json:"organization_id"`
	AmountCents    int64     `db:"amount_cents" json:"amount_cents"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

type AuditOutcome string

const (
	AuditOutcomeGranted AuditOutcome = "GRANTED"
	AuditOutcomeDenied  AuditOutcome = "DENIED"
)

type InsertAuditLogParams struct {
	ID           uuid.UUID    `db:"id" json:"id"`
	Time         time.Time    `db:"time" json:"time"`
	PrincipalID  uuid.UUID    `db:"principal_id" json:"principal_id"`
	ResourceType string       `db:"resource_type" json:"resource_type"`
	ResourceID   string       `db:"resource_id" json:"resource_id"`
	Action       string       `db:"action" json:"action"`
	Outcome      AuditOutcome `db:"outcome" json:"outcome"`
	Reason       string       `db:"reason" json:"reason"`
	RequestID    uuid.UUID    `db:"request_id" json:"request_id"`
}
