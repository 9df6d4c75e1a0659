package audit_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mentalspace/ehr/ehrd/audit"
	"github.com/mentalspace/ehr/ehrd/database"
	"github.com/mentalspace/ehr/ehrd/database/dbfake"
	"github.com/mentalspace/ehr/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func event(granted bool) audit.AccessEvent {
	return audit.AccessEvent{
		PrincipalID:  uuid.New(),
		ResourceType: "client",
		ResourceID:   uuid.NewString(),
		Action:       "GET",
		Granted:      granted,
		Reason:       "gate_allowed",
		RequestID:    uuid.New(),
	}
}

func TestStoreAuditor(t *testing.T) {
	t.Parallel()

	db := dbfake.New()
	auditor := audit.NewStore(db)
	ctx := testutil.Context(t, testutil.WaitShort)

	granted := event(true)
	denied := event(false)
	require.NoError(t, auditor.Export(ctx, granted))
	require.NoError(t, auditor.Export(ctx, denied))

	logs := db.AuditLogs()
	require.Len(t, logs, 2)
	require.Equal(t, database.AuditOutcomeGranted, logs[0].Outcome)
	require.Equal(t, granted.PrincipalID, logs[0].PrincipalID)
	require.Equal(t, granted.RequestID, logs[0].RequestID)
	require.Equal(t, database.AuditOutcomeDenied, logs[1].Outcome)
}

func TestNopAuditor(t *testing.T) {
	t.Parallel()

	ctx := testutil.Context(t, testutil.WaitShort)
	require.NoError(t, audit.NewNop().Export(ctx, event(true)))
}

func TestBackground(t *testing.T) {
	t.Parallel()

	t.Run("DrainsOnClose", func(t *testing.T) {
		t.Parallel()
		db := dbfake.New()
		bg := audit.NewBackground(audit.NewStore(db), testutil.Logger(t))
		ctx := testutil.Context(t, testutil.WaitShort)

		for i := 0; i < 10; i++ {
			require.NoError(t, bg.Export(ctx, event(true)))
		}
		bg.Close()
		require.Len(t, db.AuditLogs(), 10)
	})

	t.Run("ExportAfterCloseFallsBackToLog", func(t *testing.T) {
		t.Parallel()
		db := dbfake.New()
		bg := audit.NewBackground(audit.NewStore(db), testutil.Logger(t))
		bg.Close()

		ctx := testutil.Context(t, testutil.WaitShort)
		require.NoError(t, bg.Export(ctx, event(false)))
		require.Empty(t, db.AuditLogs())
	})

	t.Run("CloseTwice", func(t *testing.T) {
		t.Parallel()
		bg := audit.NewBackground(audit.NewNop(), testutil.Logger(t))
		bg.Close()
		bg.Close()
	})
}
