// service/reconciliation_service_test.go
package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calltoleap/gatekeeper/audit"
	"github.com/calltoleap/gatekeeper/dao"
	logger "github.com/calltoleap/gatekeeper/logging"
	"github.com/calltoleap/gatekeeper/service"
	"github.com/calltoleap/gatekeeper/test/mock"
	"github.com/calltoleap/gatekeeper/util"
)

type reconcileFixture struct {
	store   *mock.FakeStore
	chat    *mock.FakeChatService
	audit   *mock.RecordingAuditService
	records *dao.RecordDAO
	locks   util.RowLocker
	poller  *service.ReconciliationService
}

func newReconcileFixture(t *testing.T) *reconcileFixture {
	t.Helper()

	store := mock.NewFakeStore()
	chatSvc := mock.NewFakeChatService()
	chatSvc.AddRole("r-premium", "PrivateChannelAccess", 5)

	records, err := dao.NewRecordDAO(store, "Members!A2:E", "Cancellations!A2:C")
	require.NoError(t, err)

	auditSvc := mock.NewRecordingAuditService()
	roleSync := service.NewRoleSyncService(chatSvc)
	notifications := util.NewNotificationService(chatSvc, "ops-channel")
	locks := util.NewKeyedMutex()

	poller := service.NewReconciliationService(
		records, roleSync, chatSvc, notifications, auditSvc, locks,
		[]string{"PrivateChannelAccess"}, 10*time.Millisecond)

	return &reconcileFixture{
		store:   store,
		chat:    chatSvc,
		audit:   auditSvc,
		records: records,
		locks:   locks,
		poller:  poller,
	}
}

func TestReconciliationService(t *testing.T) {
	logger.InitLogger(t.TempDir())
	defer logger.Sync()
	ctx := context.Background()

	t.Run("CancellationRevokesAndResets", func(t *testing.T) {
		f := newReconcileFixture(t)
		f.store.SetRow("Members", 2, []string{"", "", "alice@x.com", "used", "user-1"})
		f.store.SetRow("Cancellations", 2, []string{"alice@x.com", "2024-05-01", ""})
		f.chat.AddMember("user-1", "alice", "r-premium")

		require.NoError(t, f.poller.RunCycle(ctx))

		assert.False(t, f.chat.MemberHasRole("user-1", "r-premium"))
		assert.Equal(t, []string{"", "", "alice@x.com", "", ""}, f.store.Row("Members", 2))
		assert.Nil(t, f.store.Row("Cancellations", 2))
		require.Len(t, f.chat.DirectMessages["user-1"], 1)
		assert.Contains(t, f.chat.DirectMessages["user-1"][0], "cancelled")
		assert.Equal(t, []string{audit.ActionRevoked}, f.audit.Actions())
	})

	t.Run("SecondCycleIsIdempotent", func(t *testing.T) {
		f := newReconcileFixture(t)
		f.store.SetRow("Members", 2, []string{"", "", "alice@x.com", "used", "user-1"})
		f.store.SetRow("Cancellations", 2, []string{"alice@x.com", "", ""})
		f.chat.AddMember("user-1", "alice", "r-premium")

		require.NoError(t, f.poller.RunCycle(ctx))
		mutations := f.store.Mutations()

		require.NoError(t, f.poller.RunCycle(ctx))
		assert.Equal(t, mutations, f.store.Mutations())
	})

	t.Run("CaseInsensitiveEmailMatch", func(t *testing.T) {
		f := newReconcileFixture(t)
		f.store.SetRow("Members", 2, []string{"", "", "Alice@X.com", "used", "user-1"})
		f.store.SetRow("Cancellations", 2, []string{"alice@x.COM", "", ""})
		f.chat.AddMember("user-1", "alice", "r-premium")

		require.NoError(t, f.poller.RunCycle(ctx))
		assert.False(t, f.chat.MemberHasRole("user-1", "r-premium"))
		assert.Nil(t, f.store.Row("Cancellations", 2))
	})

	t.Run("DepartedHolderStillConverges", func(t *testing.T) {
		f := newReconcileFixture(t)
		f.store.SetRow("Members", 2, []string{"", "", "alice@x.com", "used", "gone-user"})
		f.store.SetRow("Cancellations", 2, []string{"alice@x.com", "", ""})

		require.NoError(t, f.poller.RunCycle(ctx))

		assert.Equal(t, []string{"", "", "alice@x.com", "", ""}, f.store.Row("Members", 2))
		assert.Nil(t, f.store.Row("Cancellations", 2))
		assert.Equal(t, []string{audit.ActionMemberUnresolvable}, f.audit.Actions())
	})

	t.Run("OrphanEntryCleared", func(t *testing.T) {
		f := newReconcileFixture(t)
		f.store.SetRow("Members", 2, []string{"", "", "bob@x.com", "", ""})
		f.store.SetRow("Cancellations", 2, []string{"nobody@x.com", "", ""})

		require.NoError(t, f.poller.RunCycle(ctx))

		assert.Nil(t, f.store.Row("Cancellations", 2))
		assert.Equal(t, []string{"", "", "bob@x.com", "", ""}, f.store.Row("Members", 2))
		assert.Equal(t, 0, f.chat.RevokeCalls)
	})

	t.Run("UnclaimedRecordClearedWithoutRevoke", func(t *testing.T) {
		f := newReconcileFixture(t)
		f.store.SetRow("Members", 2, []string{"", "", "alice@x.com", "", ""})
		f.store.SetRow("Cancellations", 2, []string{"alice@x.com", "", ""})

		require.NoError(t, f.poller.RunCycle(ctx))

		assert.Nil(t, f.store.Row("Cancellations", 2))
		assert.Equal(t, 0, f.chat.RevokeCalls)
	})

	t.Run("ClaimLandedMidCycleSurvives", func(t *testing.T) {
		f := newReconcileFixture(t)
		f.store.SetRow("Members", 2, []string{"", "", "alice@x.com", "", ""})
		f.store.SetRow("Cancellations", 2, []string{"alice@x.com", "", ""})
		f.chat.AddMember("user-1", "alice")

		notifications := util.NewNotificationService(f.chat, "ops-channel")
		verifier := service.NewVerificationService(
			f.records, service.NewRoleSyncService(f.chat), notifications, f.audit,
			f.locks, []string{"PrivateChannelAccess"}, "")

		// Claim the row after the cycle has loaded both tables but before
		// it processes the entry. The claim marks the row used and clears
		// the entry; the cycle must not roll either back.
		gets := 0
		f.store.AfterGet = func() {
			gets++
			if gets == 2 {
				f.store.AfterGet = nil
				_, err := verifier.Verify(ctx, "user-1", "alice@x.com")
				require.NoError(t, err)
			}
		}

		require.NoError(t, f.poller.RunCycle(ctx))

		assert.Equal(t, []string{"", "", "alice@x.com", "used", "user-1"}, f.store.Row("Members", 2))
		assert.True(t, f.chat.MemberHasRole("user-1", "r-premium"))
		assert.Nil(t, f.store.Row("Cancellations", 2))
		assert.Equal(t, 0, f.chat.RevokeCalls)
	})

	t.Run("ResetFailureLeavesEntryPending", func(t *testing.T) {
		f := newReconcileFixture(t)
		f.store.SetRow("Members", 2, []string{"", "", "alice@x.com", "used", "user-1"})
		f.store.SetRow("Cancellations", 2, []string{"alice@x.com", "", ""})
		f.chat.AddMember("user-1", "alice", "r-premium")
		f.store.UpdateErr = assert.AnError

		require.NoError(t, f.poller.RunCycle(ctx))

		// The entry must survive so the next cycle retries the reset.
		assert.NotNil(t, f.store.Row("Cancellations", 2))
	})

	t.Run("EmptyCycleMutatesNothing", func(t *testing.T) {
		f := newReconcileFixture(t)
		f.store.SetRow("Members", 2, []string{"", "", "alice@x.com", "used", "user-1"})

		require.NoError(t, f.poller.RunCycle(ctx))
		assert.Equal(t, 0, f.store.Mutations())
	})

	t.Run("RunStopsOnCancel", func(t *testing.T) {
		f := newReconcileFixture(t)
		runCtx, cancel := context.WithCancel(context.Background())

		finished := make(chan struct{})
		go func() {
			f.poller.Run(runCtx)
			close(finished)
		}()

		time.Sleep(30 * time.Millisecond)
		cancel()
		select {
		case <-finished:
		case <-time.After(2 * time.Second):
			t.Fatal("poller did not stop after cancel")
		}
	})
}
