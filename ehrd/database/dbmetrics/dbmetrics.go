package dbmetrics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mentalspace/ehr/ehrd/database"
	"github.com/mentalspace/ehr/ehrd/rbac"
)

// metricsStore wraps a database.Store and records query latencies. Every
// request runs several authorization lookups, so this is the cheapest
// place to watch for a slow assignment store before it turns into denied
// requests.
type metricsStore struct {
	s       database.Store
	queries *prometheus.HistogramVec
}

var _ database.Store = (*metricsStore)(nil)

// New wraps db and registers its metrics on reg.
func New(db database.Store, reg prometheus.Registerer) database.Store {
	queries := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ehrd",
		Subsystem: "db",
		Name:      "query_duration_seconds",
		Help:      "Latency of database store queries, by query name.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"query"})
	reg.MustRegister(queries)

	return &metricsStore{
		s:       db,
		queries: queries,
	}
}

func (m *metricsStore) observe(query string, start time.Time) {
	m.queries.WithLabelValues(query).Observe(time.Since(start).Seconds())
}

func (m *metricsStore) Ping(ctx context.Context) error {
	defer m.observe("Ping", time.Now())
	return m.s.Ping(ctx)
}

func (m *metricsStore) GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error) {
	defer m.observe("GetUserByID", time.Now())
	return m.s.GetUserByID(ctx, id)
}

func (m *metricsStore) GetSessionByID(ctx context.Context, id string) (database.Session, error) {
	defer m.observe("GetSessionByID", time.Now())
	return m.s.GetSessionByID(ctx, id)
}

func (m *metricsStore) UpdateSessionLastUsed(ctx context.Context, arg database.UpdateSessionLastUsedParams) error {
	defer m.observe("UpdateSessionLastUsed", time.Now())
	return m.s.UpdateSessionLastUsed(ctx, arg)
}

func (m *metricsStore) GetPortalAccountByClientID(ctx context.Context, clientID uuid.UUID) (database.PortalAccount, error) {
	defer m.observe("GetPortalAccountByClientID", time.Now())
	return m.s.GetPortalAccountByClientID(ctx, clientID)
}

func (m *metricsStore) GetClientByID(ctx context.Context, id uuid.UUID) (database.Client, error) {
	defer m.observe("GetClientByID", time.Now())
	return m.s.GetClientByID(ctx, id)
}

func (m *metricsStore) GetAppointmentByID(ctx context.Context, id uuid.UUID) (database.Appointment, error) {
	defer m.observe("GetAppointmentByID", time.Now())
	return m.s.GetAppointmentByID(ctx, id)
}

func (m *metricsStore) GetClinicalNoteByID(ctx context.Context, id uuid.UUID) (database.ClinicalNote, error) {
	defer m.observe("GetClinicalNoteByID", time.Now())
	return m.s.GetClinicalNoteByID(ctx, id)
}

func (m *metricsStore) GetUserOrganization(ctx context.Context, userID uuid.UUID) (uuid.NullUUID, error) {
	defer m.observe("GetUserOrganization", time.Now())
	return m.s.GetUserOrganization(ctx, userID)
}

func (m *metricsStore) GetClientOrganization(ctx context.Context, clientID uuid.UUID) (uuid.UUID, error) {
	defer m.observe("GetClientOrganization", time.Now())
	return m.s.GetClientOrganization(ctx, clientID)
}

func (m *metricsStore) GetAssignedClientIDs(ctx context.Context, clinicianID uuid.UUID) ([]uuid.UUID, error) {
	defer m.observe("GetAssignedClientIDs", time.Now())
	return m.s.GetAssignedClientIDs(ctx, clinicianID)
}

func (m *metricsStore) GetSuperviseeClinicianIDs(ctx context.Context, supervisorID uuid.UUID) ([]uuid.UUID, error) {
	defer m.observe("GetSuperviseeClinicianIDs", time.Now())
	return m.s.GetSuperviseeClinicianIDs(ctx, supervisorID)
}

func (m *metricsStore) VerifyClinicianClientRelationship(ctx context.Context, arg rbac.VerifyClinicianClientRelationshipParams) (bool, error) {
	defer m.observe("VerifyClinicianClientRelationship", time.Now())
	return m.s.VerifyClinicianClientRelationship(ctx, arg)
}

func (m *metricsStore) GetAppointmentAccessRef(ctx context.Context, id uuid.UUID) (rbac.AccessRef, error) {
	defer m.observe("GetAppointmentAccessRef", time.Now())
	return m.s.GetAppointmentAccessRef(ctx, id)
}

func (m *metricsStore) GetClinicalNoteAccessRef(ctx context.Context, id uuid.UUID) (rbac.AccessRef, error) {
	defer m.observe("GetClinicalNoteAccessRef", time.Now())
	return m.s.GetClinicalNoteAccessRef(ctx, id)
}

func (m *metricsStore) GetAuthorizedClients(ctx context.Context, filter rbac.AuthorizeFilter) ([]database.Client, error) {
	defer m.observe("GetAuthorizedClients", time.Now())
	return m.s.GetAuthorizedClients(ctx, filter)
}

func (m *metricsStore) GetAuthorizedAppointments(ctx context.Context, filter rbac.AuthorizeFilter) ([]database.Appointment, error) {
	defer m.observe("GetAuthorizedAppointments", time.Now())
	return m.s.GetAuthorizedAppointments(ctx, filter)
}

func (m *metricsStore) GetAuthorizedClinicalNotes(ctx context.Context, filter rbac.AuthorizeFilter) ([]database.ClinicalNote, error) {
	defer m.observe("GetAuthorizedClinicalNotes", time.Now())
	return m.s.GetAuthorizedClinicalNotes(ctx, filter)
}

func (m *metricsStore) GetAuthorizedBillingRecords(ctx context.Context, filter rbac.AuthorizeFilter) ([]database.BillingRecord, error) {
	defer m.observe("GetAuthorizedBillingRecords", time.Now())
	return m.s.GetAuthorizedBillingRecords(ctx, filter)
}

func (m *metricsStore) InsertAuditLog(ctx context.Context, arg database.InsertAuditLogParams) error {
	defer m.observe("InsertAuditLog", time.Now())
	return m.s.InsertAuditLog(ctx, arg)
}
