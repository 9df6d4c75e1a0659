package dbfake

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/mentalspace/ehr/ehrd/database"
	"github.com/mentalspace/ehr/ehrd/rbac"
)

var _ database.Store = (*FakeQuerier)(nil)

// New returns an in-memory fake of the database. It is used by tests and
// by local development; list queries apply compiled filters through
// Eval, so it exercises the exact predicate the SQL store renders into a
// WHERE clause. The concrete type is returned so tests can seed fixture
// rows through the Insert helpers, which are deliberately absent from the
// read-only Store surface.
func New() *FakeQuerier {
	return &FakeQuerier{
		data: &data{
			users:          make([]database.User, 0),
			sessions:       make([]database.Session, 0),
			portalAccounts: make([]database.PortalAccount, 0),
			clients:        make([]database.Client, 0),
			appointments:   make([]database.Appointment, 0),
			clinicalNotes:  make([]database.ClinicalNote, 0),
			billingRecords: make([]database.BillingRecord, 0),
			auditLogs:      make([]database.InsertAuditLogParams, 0),
		},
	}
}

// FakeQuerier replicates database functionality to enable quick testing.
type FakeQuerier struct {
	mutex sync.RWMutex
	*data
}

type data struct {
	users          []database.User
	sessions       []database.Session
	portalAccounts []database.PortalAccount
	clients        []database.Client
	appointments   []database.Appointment
	clinicalNotes  []database.ClinicalNote
	billingRecords []database.BillingRecord
	auditLogs      []database.InsertAuditLogParams
}

func (q *FakeQuerier) Ping(_ context.Context) error {
	return nil
}

func (q *FakeQuerier) GetUserByID(_ context.Context, id uuid.UUID) (database.User, error) {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	for _, user := range q.users {
		if user.ID == id {
			return user, nil
		}
	}
	return database.User{}, database.ErrNoRows
}

func (q *FakeQuerier) GetSessionByID(_ context.Context, id string) (database.Session, error) {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	for _, session := range q.sessions {
		if session.ID == id {
			return session, nil
		}
	}
	return database.Session{}, database.ErrNoRows
}

func (q *FakeQuerier) UpdateSessionLastUsed(_ context.Context, arg database.UpdateSessionLastUsedParams) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	for i, session := range q.sessions {
		if session.ID == arg.ID {
			session.LastUsed = arg.LastUsed
			q.sessions[i] = session
			return nil
		}
	}
	return database.ErrNoRows
}

func (q *FakeQuerier) GetPortalAccountByClientID(_ context.Context, clientID uuid.UUID) (database.PortalAccount, error) {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	for _, account := range q.portalAccounts {
		if account.ClientID == clientID {
			return account, nil
		}
	}
	return database.PortalAccount{}, database.ErrNoRows
}

func (q *FakeQuerier) GetClientByID(_ context.Context, id uuid.UUID) (database.Client, error) {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	for _, client := range q.clients {
		if client.ID == id {
			return client, nil
		}
	}
	return database.Client{}, database.ErrNoRows
}

func (q *FakeQuerier) GetAppointmentByID(_ context.Context, id uuid.UUID) (database.Appointment, error) {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	for _, appointment := range q.appointments {
		if appointment.ID == id {
			return appointment, nil
		}
	}
	return database.Appointment{}, database.ErrNoRows
}

func (q *FakeQuerier) GetClinicalNoteByID(_ context.Context, id uuid.UUID) (database.ClinicalNote, error) {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	for _, note := range q.clinicalNotes {
		if note.ID == id {
			return note, nil
		}
	}
	return database.ClinicalNote{}, database.ErrNoRows
}

func (q *FakeQuerier) GetUserOrganization(ctx context.Context, userID uuid.UUID) (uuid.NullUUID, error) {
	user, err := q.GetUserByID(ctx, userID)
	if err != nil {
		return uuid.NullUUID{}, err
	}
	return user.OrganizationID, nil
}

func (q *FakeQuerier) GetClientOrganization(ctx context.Context, clientID uuid.UUID) (uuid.UUID, error) {
	client, err := q.GetClientByID(ctx, clientID)
	if err != nil {
		return uuid.UUID{}, err
	}
	return client.OrganizationID, nil
}

func (q *FakeQuerier) GetAssignedClientIDs(_ context.Context, clinicianID uuid.UUID) ([]uuid.UUID, error) {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	ids := make([]uuid.UUID, 0)
	for _, client := range q.clients {
		if (client.PrimaryClinicianID.Valid && client.PrimaryClinicianID.UUID == clinicianID) ||
			(client.SecondaryClinicianID.Valid && client.SecondaryClinicianID.UUID == clinicianID) {
			ids = append(ids, client.ID)
		}
	}
	return ids, nil
}

func (q *FakeQuerier) GetSuperviseeClinicianIDs(_ context.Context, supervisorID uuid.UUID) ([]uuid.UUID, error) {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	ids := make([]uuid.UUID, 0)
	for _, user := range q.users {
		if user.SupervisorID.Valid && user.SupervisorID.UUID == supervisorID {
			ids = append(ids, user.ID)
		}
	}
	return ids, nil
}

func (q *FakeQuerier) VerifyClinicianClientRelationship(_ context.Context, arg rbac.VerifyClinicianClientRelationshipParams) (bool, error) {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	for _, client := range q.clients {
		if client.ID != arg.ClientID {
			continue
		}
		if client.PrimaryClinicianID.Valid && client.PrimaryClinicianID.UUID == arg.ClinicianID {
			return true, nil
		}
		if client.SecondaryClinicianID.Valid && client.SecondaryClinicianID.UUID == arg.ClinicianID {
			return true, nil
		}
	}
	for _, appointment := range q.appointments {
		if appointment.ClientID == arg.ClientID && appointment.ClinicianID == arg.ClinicianID {
			return true, nil
		}
	}
	return false, nil
}

func (q *FakeQuerier) GetAppointmentAccessRef(ctx context.Context, id uuid.UUID) (rbac.AccessRef, error) {
	appointment, err := q.GetAppointmentByID(ctx, id)
	if err != nil {
		return rbac.AccessRef{}, err
	}
	return appointment.AccessRef(), nil
}

func (q *FakeQuerier) GetClinicalNoteAccessRef(ctx context.Context, id uuid.UUID) (rbac.AccessRef, error) {
	note, err := q.GetClinicalNoteByID(ctx, id)
	if err != nil {
		return rbac.AccessRef{}, err
	}
	return note.AccessRef(), nil
}

func (q *FakeQuerier) GetAuthorizedClients(_ context.Context, filter rbac.AuthorizeFilter) ([]database.Client, error) {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	out := make([]database.Client, 0)
	for _, client := range q.clients {
		if filter.Eval(client.RBACObject()) {
			out = append(out, client)
		}
	}
	return out, nil
}

func (q *FakeQuerier) GetAuthorizedAppointments(_ context.Context, filter rbac.AuthorizeFilter) ([]database.Appointment, error) {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	out := make([]database.Appointment, 0)
	for _, appointment := range q.appointments {
		if filter.Eval(appointment.RBACObject()) {
			out = append(out, appointment)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartsAt.Before(out[j].StartsAt)
	})
	return out, nil
}

func (q *FakeQuerier) GetAuthorizedClinicalNotes(_ context.Context, filter rbac.AuthorizeFilter) ([]database.ClinicalNote, error) {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	out := make([]database.ClinicalNote, 0)
	for _, note := range q.clinicalNotes {
		if filter.Eval(note.RBACObject()) {
			out = append(out, note)
		}
	}
	return out, nil
}

func (q *FakeQuerier) GetAuthorizedBillingRecords(_ context.Context, filter rbac.AuthorizeFilter) ([]database.BillingRecord, error) {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	out := make([]database.BillingRecord, 0)
	for _, record := range q.billingRecords {
		if filter.Eval(record.RBACObject()) {
			out = append(out, record)
		}
	}
	return out, nil
}

func (q *FakeQuerier) InsertAuditLog(_ context.Context, arg database.InsertAuditLogParams) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.auditLogs = append(q.auditLogs, arg)
	return nil
}

// Seeding helpers. Tests insert fixture rows directly; these are not part
// of the database.Store surface.

func (q *FakeQuerier) InsertUser(user database.User) database.User {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	for i, existing := range q.users {
		if existing.ID == user.ID {
			q.users[i] = user
			return user
		}
	}
	q.users = append(q.users, user)
	return user
}

func (q *FakeQuerier) InsertSession(session database.Session) database.Session {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	for i, existing := range q.sessions {
		if existing.ID == session.ID {
			q.sessions[i] = session
			return session
		}
	}
	q.sessions = append(q.sessions, session)
	return session
}

func (q *FakeQuerier) InsertPortalAccount(account database.PortalAccount) database.PortalAccount {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	for i, existing := range q.portalAccounts {
		if existing.ClientID == account.ClientID {
			q.portalAccounts[i] = account
			return account
		}
	}
	q.portalAccounts = append(q.portalAccounts, account)
	return account
}

func (q *FakeQuerier) InsertClient(client database.Client) database.Client {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	for i, existing := range q.clients {
		if existing.ID == client.ID {
			q.clients[i] = client
			return client
		}
	}
	q.clients = append(q.clients, client)
	return client
}

func (q *FakeQuerier) InsertAppointment(appointment database.Appointment) database.Appointment {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	q.appointments = append(q.appointments, appointment)
	return appointment
}

func (q *FakeQuerier) InsertClinicalNote(note database.ClinicalNote) database.ClinicalNote {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	q.clinicalNotes = append(q.clinicalNotes, note)
	return note
}

func (q *FakeQuerier) InsertBillingRecord(record database.BillingRecord) database.BillingRecord {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	q.billingRecords = append(q.billingRecords, record)
	return record
}

// AuditLogs returns a copy of the recorded audit events.
func (q *FakeQuerier) AuditLogs() []database.InsertAuditLogParams {
	q.mutex.RLock()
	defer q.mutex.RUnlock()
	out := make([]database.InsertAuditLogParams, len(q.auditLogs))
	copy(out, q.auditLogs)
	return out
}
