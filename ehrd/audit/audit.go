// Package audit records every access decision made about protected
// health information. Recording is observational: a recorder failure is
// logged and never changes the outcome of the request it describes.
package audit

import (
	"context"

	"cdr.dev/slog"
	"github.com/google/uuid"

	"github.com/mentalspace/ehr/ehrd/database"
	"github.com/mentalspace/ehr/ehrd/database/dbtime"
)

// AccessEvent is one decision about one resource.
type AccessEvent struct {
	PrincipalID  uuid.UUID
	ResourceType string
	ResourceID   string
	Action       string
	Granted      bool
	// Reason is a short machine-readable cause, e.g. "pending_verification_failed".
	Reason    string
	RequestID uuid.UUID
}

type Auditor interface {
	Export(ctx context.Context, event AccessEvent) error
}

func NewNop() Auditor {
	return nop{}
}

type nop struct{}

func (nop) Export(context.Context, AccessEvent) error {
	return nil
}

// NewSlog returns an Auditor that writes events to the structured log.
// Useful in development and as a tee alongside the store-backed recorder.
func NewSlog(log slog.Logger) Auditor {
	return slogAuditor{log: log}
}

type slogAuditor struct {
	log slog.Logger
}

func (a slogAuditor) Export(ctx context.Context, event AccessEvent) error {
	a.log.Info(ctx, "access decision",
		slog.F("principal_id", event.PrincipalID),
		slog.F("resource_type", event.ResourceType),
		slog.F("resource_id", event.ResourceID),
		slog.F("action", event.Action),
		slog.F("granted", event.Granted),
		slog.F("reason", event.Reason),
		slog.F("request_id", event.RequestID),
	)
	return nil
}

// NewStore returns an Auditor that persists events through the database.
func NewStore(db database.Store) Auditor {
	return storeAuditor{db: db}
}

type storeAuditor struct {
	db database.Store
}

func (a storeAuditor) Export(ctx context.Context, event AccessEvent) error {
	outcome := database.AuditOutcomeDenied
	if event.Granted {
		outcome = database.AuditOutcomeGranted
	}
	return a.db.InsertAuditLog(ctx, database.InsertAuditLogParams{
		ID:           uuid.New(),
		Time:         dbtime.Now(),
		PrincipalID:  event.PrincipalID,
		ResourceType: event.ResourceType,
		ResourceID:   event.ResourceID,
		Action:       event.Action,
		Outcome:      outcome,
		Reason:       event.Reason,
		RequestID:    event.RequestID,
	})
}
