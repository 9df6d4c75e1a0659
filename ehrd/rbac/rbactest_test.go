package rbac_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"

	"github.com/mentalspace/ehr/ehrd/database"
	"github.com/mentalspace/ehr/ehrd/database/dbfake"
	"github.com/mentalspace/ehr/ehrd/rbac"
	"github.com/mentalspace/ehr/testutil"
)

// fixture is a two-organization world exercised by most tests in this
// package. Org 1 holds the interesting principals; org 2 exists to prove
// cross-organization isolation.
type fixture struct {
	db     *dbfake.FakeQuerier
	engine *rbac.Engine

	org1 uuid.UUID
	org2 uuid.UUID

	superAdmin uuid.UUID
	admin1     uuid.UUID
	admin2     uuid.UUID
	billing1   uuid.UUID
	officeMgr1 uuid.UUID
	scheduler1 uuid.UUID
	clinician1 uuid.UUID
	clinician2 uuid.UUID
	supervisor uuid.UUID
	intern1    uuid.UUID

	// clientA is assigned to clinician1 in org1. clientB belongs to org1
	// but is assigned to nobody in the fixture's focus. clientC is in
	// org2.
	clientA uuid.UUID
	clientB uuid.UUID
	clientC uuid.UUID

	apptA uuid.UUID
	apptC uuid.UUID
	noteA uuid.UUID
	noteC uuid.UUID
	billA uuid.UUID
	billC uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		db:   dbfake.New(),
		org1: uuid.New(),
		org2: uuid.New(),
	}
	f.engine = rbac.NewEngine(f.db, testutil.Logger(t))

	f.superAdmin = f.user(t, "root@example.com", "SUPER_ADMIN", uuid.NullUUID{})
	f.admin1 = f.user(t, "admin1@example.com", "ADMINISTRATOR", org(f.org1))
	f.admin2 = f.user(t, "admin2@example.com", "ADMINISTRATOR", org(f.org2))
	f.billing1 = f.user(t, "billing1@example.com", "BILLING_STAFF", org(f.org1))
	f.officeMgr1 = f.user(t, "om1@example.com", "OFFICE_MANAGER", org(f.org1))
	f.scheduler1 = f.user(t, "sched1@example.com", "SCHEDULER", org(f.org1))
	f.clinician1 = f.user(t, "clin1@example.com", "CLINICIAN", org(f.org1))
	f.clinician2 = f.user(t, "clin2@example.com", "CLINICIAN", org(f.org1))
	f.supervisor = f.user(t, "sup1@example.com", "SUPERVISOR", org(f.org1))
	f.intern1 = f.user(t, "intern1@example.com", "INTERN", org(f.org1))

	// clinician1 reports to the supervisor.
	f.setSupervisor(t, f.clinician1, f.supervisor)

	f.clientA = f.client(t, f.org1, nullUUID(f.clinician1))
	f.clientB = f.client(t, f.org1, uuid.NullUUID{})
	f.clientC = f.client(t, f.org2, uuid.NullUUID{})

	f.apptA = f.appointment(t, f.clientA, f.clinician1, f.org1)
	f.apptC = f.appointment(t, f.clientC, uuid.New(), f.org2)
	f.noteA = f.note(t, f.clientA, f.clinician1, f.org1)
	f.noteC = f.note(t, f.clientC, uuid.New(), f.org2)
	f.billA = f.billing(t, f.clientA, f.org1)
	f.billC = f.billing(t, f.clientC, f.org2)

	return f
}

func (f *fixture) user(t *testing.T, email, role string, orgID uuid.NullUUID) uuid.UUID {
	t.Helper()
	u := f.db.InsertUser(database.User{
		ID:             uuid.New(),
		Email:          email,
		Role:           role,
		OrganizationID: orgID,
		Status:         database.UserStatusActive,
	})
	return u.ID
}

func (f *fixture) setSupervisor(t *testing.T, clinicianID, supervisorID uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	u, err := f.db.GetUserByID(ctx, clinicianID)
	require.NoError(t, err)
	u.SupervisorID = nullUUID(supervisorID)
	f.db.InsertUser(u)
}

func (f *fixture) client(t *testing.T, orgID uuid.UUID, primary uuid.NullUUID) uuid.UUID {
	t.Helper()
	c := f.db.InsertClient(database.Client{
		ID:                 uuid.New(),
		OrganizationID:     orgID,
		Status:             database.ClientStatusActive,
		PrimaryClinicianID: primary,
	})
	return c.ID
}

func (f *fixture) appointment(t *testing.T, clientID, clinicianID, orgID uuid.UUID) uuid.UUID {
	t.Helper()
	a := f.db.InsertAppointment(database.Appointment{
		ID:             uuid.New(),
		ClientID:       clientID,
		ClinicianID:    clinicianID,
		OrganizationID: orgID,
	})
	return a.ID
}

func (f *fixture) note(t *testing.T, clientID, clinicianID, orgID uuid.UUID) uuid.UUID {
	t.Helper()
	n := f.db.InsertClinicalNote(database.ClinicalNote{
		ID:             uuid.New(),
		ClientID:       clientID,
		ClinicianID:    clinicianID,
		OrganizationID: orgID,
	})
	return n.ID
}

func (f *fixture) billing(t *testing.T, clientID, orgID uuid.UUID) uuid.UUID {
	t.Helper()
	b := f.db.InsertBillingRecord(database.BillingRecord{
		ID:             uuid.New(),
		ClientID:       clientID,
		OrganizationID: orgID,
		AmountCents:    15000,
	})
	return b.ID
}

// actx builds the permission snapshot for a staff user exactly the way
// the middleware does.
func (f *fixture) actx(t *testing.T, userID uuid.UUID) rbac.Context {
	t.Helper()
	ctx := context.Background()
	u, err := f.db.GetUserByID(ctx, userID)
	require.NoError(t, err)
	actx, err := rbac.BuildContext(ctx, f.db, rbac.Principal{
		ID:             u.ID,
		Roles:          rbac.NormalizeRoles(u.Role, u.Roles),
		OrganizationID: u.OrganizationID,
	})
	require.NoError(t, err)
	return actx
}

// portalActx builds the snapshot for a portal principal owning clientID.
func (f *fixture) portalActx(t *testing.T, clientID uuid.UUID) rbac.Context {
	t.Helper()
	actx, err := rbac.BuildContext(context.Background(), f.db, rbac.Principal{
		ID:       uuid.New(),
		Roles:    []rbac.Role{rbac.RolePortalClient},
		ClientID: nullUUID(clientID),
	})
	require.NoError(t, err)
	return actx
}

func nullUUID(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: true}
}

func org(id uuid.UUID) uuid.NullUUID {
	return nullUUID(id)
}

// failStore wraps a working store and fails selected lookups, proving
// that collaborator failures always resolve to a deny.
type failStore struct {
	rbac.Store
}

var errStore = xerrors.New("store unavailable")

func (failStore) GetClientOrganization(context.Context, uuid.UUID) (uuid.UUID, error) {
	return uuid.UUID{}, errStore
}

func (failStore) GetAppointmentAccessRef(context.Context, uuid.UUID) (rbac.AccessRef, error) {
	return rbac.AccessRef{}, errStore
}

func (failStore) GetClinicalNoteAccessRef(context.Context, uuid.UUID) (rbac.AccessRef, error) {
	return rbac.AccessRef{}, errStore
}

func (failStore) VerifyClinicianClientRelationship(context.Context, rbac.VerifyClinicianClientRelationshipParams) (bool, error) {
	return false, errStore
}

func (failStore) GetSuperviseeClinicianIDs(context.Context, uuid.UUID) ([]uuid.UUID, error) {
	return nil, errStore
}
