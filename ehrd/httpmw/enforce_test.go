package httpmw_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/mentalspace/ehr/ehrd/audit"
	"github.com/mentalspace/ehr/ehrd/database"
	"github.com/mentalspace/ehr/ehrd/database/dbfake"
	"github.com/mentalspace/ehr/ehrd/database/dbtime"
	"github.com/mentalspace/ehr/ehrd/httpmw"
	"github.com/mentalspace/ehr/ehrd/rbac"
	"github.com/mentalspace/ehr/testutil"
)

// world is a minimal seeded store plus the fully assembled middleware
// chain, the way a server wires it.
type world struct {
	db     *dbfake.FakeQuerier
	router chi.Router

	org     uuid.UUID
	clientA uuid.UUID
	clientB uuid.UUID
	apptA   uuid.UUID
	noteA   uuid.UUID

	clinToken   string
	adminToken  string
	portalToken string
}

func newWorld(t *testing.T) *world {
	t.Helper()

	w := &world{
		db:  dbfake.New(),
		org: uuid.New(),
	}
	log := testutil.Logger(t)
	engine := rbac.NewEngine(w.db, log)
	auditor := audit.NewStore(w.db)

	clinician := w.db.InsertUser(database.User{
		ID:             uuid.New(),
		Email:          "clin@example.com",
		Role:           "CLINICIAN",
		OrganizationID: uuid.NullUUID{UUID: w.org, Valid: true},
		Status:         database.UserStatusActive,
	})
	admin := w.db.InsertUser(database.User{
		ID:             uuid.New(),
		Email:          "admin@example.com",
		Role:           "ADMINISTRATOR",
		OrganizationID: uuid.NullUUID{UUID: w.org, Valid: true},
		Status:         database.UserStatusActive,
	})

	w.clientA = w.db.InsertClient(database.Client{
		ID:                 uuid.New(),
		OrganizationID:     w.org,
		Status:             database.ClientStatusActive,
		PrimaryClinicianID: uuid.NullUUID{UUID: clinician.ID, Valid: true},
	}).ID
	w.clientB = w.db.InsertClient(database.Client{
		ID:             uuid.New(),
		OrganizationID: w.org,
		Status:         database.ClientStatusActive,
	}).ID
	w.apptA = w.db.InsertAppointment(database.Appointment{
		ID:             uuid.New(),
		ClientID:       w.clientA,
		ClinicianID:    clinician.ID,
		OrganizationID: w.org,
	}).ID
	w.noteA = w.db.InsertClinicalNote(database.ClinicalNote{
		ID:             uuid.New(),
		ClientID:       w.clientA,
		ClinicianID:    clinician.ID,
		OrganizationID: w.org,
	}).ID

	w.clinToken = seedSession(t, w.db, clinician.ID)
	w.adminToken = seedSession(t, w.db, admin.ID)

	w.db.InsertPortalAccount(database.PortalAccount{
		ID:                  uuid.New(),
		ClientID:            w.clientA,
		Email:               "portal@example.com",
		Status:              database.PortalAccountStatusActive,
		PortalAccessGranted: true,
	})
	w.portalToken = signPortalToken(t, w.clientA, portalSecret, nil)

	enforce := httpmw.EnforceConfig{Engine: engine, Auditor: auditor}

	r := chi.NewRouter()
	r.Use(
		httpmw.AttachRequestID,
		httpmw.Logger(log),
		httpmw.ExtractPrincipal(httpmw.AuthConfig{
			DB:           w.db,
			PortalSecret: portalSecret,
			Log:          log,
		}),
		httpmw.ExtractAccessContext(w.db, log),
	)
	r.Route("/clients/{client}", func(r chi.Router) {
		r.Use(httpmw.EnforceClientAccess(enforce, "client"))
		r.Get("/", ok)
		r.Get("/billing", ok)
	})
	r.With(httpmw.EnforceResourceAccess(enforce, rbac.ResourceAppointment, "appointment")).
		Get("/appointments/{appointment}", ok)
	r.With(httpmw.EnforceResourceAccess(enforce, rbac.ResourceClinicalNote, "note")).
		Get("/notes/{note}", ok)
	w.router = r

	return w
}

func ok(rw http.ResponseWriter, _ *http.Request) {
	rw.WriteHeader(http.StatusOK)
}

func seedSession(t *testing.T, db *dbfake.FakeQuerier, userID uuid.UUID) string {
	t.Helper()
	token, id, hashedSecret, err := httpmw.GenerateSessionToken()
	require.NoError(t, err)
	db.InsertSession(database.Session{
		ID:           id,
		HashedSecret: hashedSecret,
		UserID:       userID,
		ExpiresAt:    dbtime.Now().Add(time.Hour),
		LastUsed:     dbtime.Now(),
	})
	return token
}

func (w *world) get(t *testing.T, token, path string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, path, nil)
	r.Header.Set("Authorization", "Bearer "+token)
	rw := httptest.NewRecorder()
	w.router.ServeHTTP(rw, r)
	return rw
}

func TestEnforceClientAccess(t *testing.T) {
	t.Parallel()

	t.Run("AssignedClinicianAllowed", func(t *testing.T) {
		t.Parallel()
		w := newWorld(t)
		rw := w.get(t, w.clinToken, "/clients/"+w.clientA.String()+"/")
		require.Equal(t, http.StatusOK, rw.Code)

		logs := w.db.AuditLogs()
		require.Len(t, logs, 1)
		require.Equal(t, database.AuditOutcomeGranted, logs[0].Outcome)
		require.Equal(t, rbac.ResourceClient, logs[0].ResourceType)
		require.Equal(t, w.clientA.String(), logs[0].ResourceID)
	})

	t.Run("UnassignedClinicianDenied", func(t *testing.T) {
		t.Parallel()
		w := newWorld(t)
		rw := w.get(t, w.clinToken, "/clients/"+w.clientB.String()+"/")
		require.Equal(t, http.StatusForbidden, rw.Code)

		logs := w.db.AuditLogs()
		require.Len(t, logs, 1)
		require.Equal(t, database.AuditOutcomeDenied, logs[0].Outcome)
		require.Equal(t, "pending_verification_failed", logs[0].Reason)
	})

	t.Run("AdminSameOrgAllowed", func(t *testing.T) {
		t.Parallel()
		w := newWorld(t)
		rw := w.get(t, w.adminToken, "/clients/"+w.clientB.String()+"/")
		require.Equal(t, http.StatusOK, rw.Code)
	})

	t.Run("PortalOwnRecordAllowed", func(t *testing.T) {
		t.Parallel()
		w := newWorld(t)
		rw := w.get(t, w.portalToken, "/clients/"+w.clientA.String()+"/")
		require.Equal(t, http.StatusOK, rw.Code)
	})

	t.Run("PortalOtherRecordDenied", func(t *testing.T) {
		t.Parallel()
		w := newWorld(t)
		rw := w.get(t, w.portalToken, "/clients/"+w.clientB.String()+"/")
		require.Equal(t, http.StatusForbidden, rw.Code)
	})

	t.Run("MalformedIDDeniedNotRevealed", func(t *testing.T) {
		t.Parallel()
		w := newWorld(t)
		rw := w.get(t, w.adminToken, "/clients/not-a-uuid/")
		require.Equal(t, http.StatusForbidden, rw.Code)
	})

	t.Run("UnknownIDSameShapeAsDenied", func(t *testing.T) {
		t.Parallel()
		w := newWorld(t)
		unknown := w.get(t, w.clinToken, "/clients/"+uuid.NewString()+"/")
		denied := w.get(t, w.clinToken, "/clients/"+w.clientB.String()+"/")
		require.Equal(t, http.StatusForbidden, unknown.Code)
		require.Equal(t, denied.Code, unknown.Code)
		require.Equal(t, denied.Body.String(), unknown.Body.String())
	})
}

func TestEnforceResourceAccess(t *testing.T) {
	t.Parallel()

	t.Run("ClinicianOwnAppointment", func(t *testing.T) {
		t.Parallel()
		w := newWorld(t)
		rw := w.get(t, w.clinToken, "/appointments/"+w.apptA.String())
		require.Equal(t, http.StatusOK, rw.Code)
	})

	t.Run("NonexistentAppointmentDenied", func(t *testing.T) {
		t.Parallel()
		w := newWorld(t)
		rw := w.get(t, w.adminToken, "/appointments/"+uuid.NewString())
		require.Equal(t, http.StatusForbidden, rw.Code)
	})

	t.Run("PortalOwnNote", func(t *testing.T) {
		t.Parallel()
		w := newWorld(t)
		rw := w.get(t, w.portalToken, "/notes/"+w.noteA.String())
		require.Equal(t, http.StatusOK, rw.Code)
	})

	t.Run("AuditRecordsRequestID", func(t *testing.T) {
		t.Parallel()
		w := newWorld(t)
		rw := w.get(t, w.clinToken, "/notes/"+w.noteA.String())
		require.Equal(t, http.StatusOK, rw.Code)

		logs := w.db.AuditLogs()
		require.Len(t, logs, 1)
		require.NotEqual(t, uuid.Nil, logs[0].RequestID)
		require.Equal(t, rw.Header().Get("X-Request-Id"), logs[0].RequestID.String())
	})
}
