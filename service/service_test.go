package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wandertrip/loyalty-engine/catalog"
	"github.com/wandertrip/loyalty-engine/progression"
	"github.com/wandertrip/loyalty-engine/progression/store"
	"github.com/wandertrip/loyalty-engine/service"
	"github.com/wandertrip/loyalty-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestService(t *testing.T) *service.Service {
	t.Helper()
	return service.New(store.NewMemory(), catalog.Default())
}

// =============================================================================
// PROGRESS TESTS
// =============================================================================

func TestSubmitProgress_CompletesAchievement(t *testing.T) {
	// GIVEN: dawn-patrol with target 3 and 150 XP
	// WHEN: Three +1 grants arrive
	// THEN: The achievement completes, XP and points are credited once

	svc := newTestService(t)
	ctx := context.Background()

	var p *progression.Projection
	var err error
	for i := 1; i <= 3; i++ {
		p, err = svc.SubmitProgress(ctx, "user-1", "dawn-patrol", 1, fmt.Sprintf("req-%d", i))
		require.NoError(t, err)
	}

	assert.Equal(t, int64(3), p.Seq)
	assert.Equal(t, int64(150), p.TotalXP)
	assert.Equal(t, int64(150), p.PointsBalance)
	assert.True(t, p.Progress("dawn-patrol").Completed)
	assert.True(t, p.Unlocked("first-light"))

	// Reads agree with the returned projection.
	got, err := svc.GetState(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestSubmitProgress_RequiresRequestID(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.SubmitProgress(context.Background(), "user-1", "dawn-patrol", 1, "")
	assert.ErrorIs(t, err, progression.ErrMissingRequestID)
}

func TestSubmitProgress_ValidationLeavesStateIntact(t *testing.T) {
	// GIVEN: A user with some progress
	// WHEN: A grant names an unknown achievement
	// THEN: The error carries the prior state and nothing is appended

	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.SubmitProgress(ctx, "user-1", "dawn-patrol", 1, "req-1")
	require.NoError(t, err)

	p, err := svc.SubmitProgress(ctx, "user-1", "moon-landing", 1, "req-2")
	assert.ErrorIs(t, err, progression.ErrUnknownAchievement)
	require.NotNil(t, p, "prior projection is returned alongside the error")
	assert.Equal(t, int64(1), p.Seq)

	history, err := svc.History(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, history, 1, "rejected event must not reach the ledger")
}

func TestSubmitProgress_DuplicateRequestIDIsNoOp(t *testing.T) {
	// GIVEN: A grant applied under req-once
	// WHEN: The same request id is submitted again
	// THEN: No second append, no double count, current state returned

	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.SubmitProgress(ctx, "user-1", "dawn-patrol", 2, "req-once")
	require.NoError(t, err)

	second, err := svc.SubmitProgress(ctx, "user-1", "dawn-patrol", 2, "req-once")
	require.NoError(t, err)

	assert.Equal(t, first.Seq, second.Seq)
	assert.Equal(t, int64(2), second.Progress("dawn-patrol").Count)

	history, err := svc.History(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestSubmitProgress_ConcurrentGrantsAllLand(t *testing.T) {
	// GIVEN: city-wanderer with target 10
	// WHEN: Ten goroutines each grant +1 with distinct request ids
	// THEN: Every grant lands exactly once and the achievement completes

	svc := newTestService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.SubmitProgress(ctx, "user-1", "city-wanderer", 1, fmt.Sprintf("req-%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	p, err := svc.GetState(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), p.Seq)
	assert.Equal(t, int64(10), p.Progress("city-wanderer").Count)
	assert.True(t, p.Progress("city-wanderer").Completed)
	assert.Equal(t, int64(250), p.TotalXP, "completion must credit exactly once")
}

func TestSubmitProgress_UsersAreIndependent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.SubmitProgress(ctx, "user-a", "dawn-patrol", 3, "req-1")
	require.NoError(t, err)

	p, err := svc.GetState(ctx, "user-b")
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.Seq)
	assert.Equal(t, int64(0), p.TotalXP)
}

// =============================================================================
// REDEMPTION TESTS
// =============================================================================

func TestSubmitRedemption_SpendsPoints(t *testing.T) {
	// GIVEN: 400 points from completing five-star-nights
	// WHEN: A 300-point lounge pass is redeemed
	// THEN: Balance drops to 100, XP untouched, record returned

	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.SubmitProgress(ctx, "user-1", "five-star-nights", 3, "req-grant")
	require.NoError(t, err)

	p, rec, err := svc.SubmitRedemption(ctx, "user-1", "lounge-pass", "req-redeem")
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, int64(100), p.PointsBalance)
	assert.Equal(t, int64(400), p.TotalXP)
	assert.Equal(t, int64(300), rec.PointsSpent)
	assert.Equal(t, int64(100), rec.ResultingBalance)
	assert.Equal(t, "req-redeem", rec.RequestID)
}

func TestSubmitRedemption_RetryDoesNotDoubleCharge(t *testing.T) {
	// GIVEN: A redemption applied under req-redeem
	// WHEN: The client retries the exact same request
	// THEN: The balance is unchanged and the original record comes back

	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.SubmitProgress(ctx, "user-1", "five-star-nights", 3, "req-grant")
	require.NoError(t, err)

	first, firstRec, err := svc.SubmitRedemption(ctx, "user-1", "lounge-pass", "req-redeem")
	require.NoError(t, err)
	require.Equal(t, int64(100), first.PointsBalance)

	retry, retryRec, err := svc.SubmitRedemption(ctx, "user-1", "lounge-pass", "req-redeem")
	require.NoError(t, err)
	require.NotNil(t, retryRec)

	assert.Equal(t, int64(100), retry.PointsBalance, "retry must not charge again")
	assert.Equal(t, firstRec.Seq, retryRec.Seq)
	assert.Len(t, retry.Redemptions, 1)

	history, err := svc.History(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, history, 2, "grant plus one redemption")
}

func TestSubmitRedemption_InsufficientPointsRejected(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.SubmitProgress(ctx, "user-1", "dawn-patrol", 3, "req-grant") // 150 points
	require.NoError(t, err)

	p, rec, err := svc.SubmitRedemption(ctx, "user-1", "lounge-pass", "req-redeem") // costs 300
	assert.ErrorIs(t, err, progression.ErrInsufficientPoints)
	assert.Nil(t, rec)
	require.NotNil(t, p)
	assert.Equal(t, int64(150), p.PointsBalance, "balance untouched on rejection")

	history, err := svc.History(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestSubmitRedemption_UnavailableRewardRejected(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	// Plenty of points, but heli-transfer is switched off.
	_, err := svc.SubmitProgress(ctx, "user-1", "five-star-nights", 3, "req-1")
	require.NoError(t, err)
	_, err = svc.SubmitProgress(ctx, "user-1", "summit-seeker", 5, "req-2")
	require.NoError(t, err)
	_, err = svc.SubmitProgress(ctx, "user-1", "city-wanderer", 10, "req-3")
	require.NoError(t, err)

	_, _, err = svc.SubmitRedemption(ctx, "user-1", "heli-transfer", "req-4")
	assert.ErrorIs(t, err, progression.ErrRewardUnavailable)
}

// =============================================================================
// REBUILD TESTS
// =============================================================================

func TestGetState_ColdRebuildFromLedger(t *testing.T) {
	// A fresh service over the same store must reconstruct identical state.
	mem := store.NewMemory()
	cat := catalog.Default()
	ctx := context.Background()

	svc1 := service.New(mem, cat)
	_, err := svc1.SubmitProgress(ctx, "user-1", "dawn-patrol", 3, "req-1")
	require.NoError(t, err)
	_, _, err = svc1.SubmitRedemption(ctx, "user-1", "late-checkout", "req-2")
	require.NoError(t, err)

	warm, err := svc1.GetState(ctx, "user-1")
	require.NoError(t, err)

	svc2 := service.New(mem, cat)
	cold, err := svc2.GetState(ctx, "user-1")
	require.NoError(t, err)

	assert.Equal(t, warm, cold)
}

func TestGetState_CorruptSnapshotFallsBackToReplay(t *testing.T) {
	// GIVEN: A snapshot overwritten with garbage bytes
	// WHEN: A fresh service reads the user
	// THEN: The ledger wins; state is rebuilt by full replay

	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cat := catalog.Default()
	ctx := context.Background()

	svc1 := service.New(st, cat)
	_, err = svc1.SubmitProgress(ctx, "user-1", "dawn-patrol", 3, "req-1")
	require.NoError(t, err)
	warm, err := svc1.GetState(ctx, "user-1")
	require.NoError(t, err)

	require.NoError(t, st.SaveSnapshot(ctx, "user-1", 1, []byte("{garbage")))

	svc2 := service.New(st, cat)
	cold, err := svc2.GetState(ctx, "user-1")
	require.NoError(t, err)

	assert.Equal(t, warm.Seq, cold.Seq)
	assert.Equal(t, warm.TotalXP, cold.TotalXP)
	assert.True(t, cold.Progress("dawn-patrol").Completed)
}

func TestGetState_StaleSnapshotSeqFallsBackToReplay(t *testing.T) {
	// GIVEN: A snapshot whose recorded seq disagrees with its payload
	// WHEN: A fresh service reads the user
	// THEN: The snapshot is discarded and the ledger is replayed in full

	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cat := catalog.Default()
	ctx := context.Background()

	svc1 := service.New(st, cat)
	_, err = svc1.SubmitProgress(ctx, "user-1", "five-star-nights", 3, "req-1")
	require.NoError(t, err)

	// Payload claims seq 1, row claims seq 5.
	require.NoError(t, st.SaveSnapshot(ctx, "user-1", 5, []byte(`{"user_id":"user-1","seq":1}`)))

	svc2 := service.New(st, cat)
	cold, err := svc2.GetState(ctx, "user-1")
	require.NoError(t, err)

	assert.Equal(t, int64(1), cold.Seq)
	assert.Equal(t, int64(400), cold.TotalXP)
	assert.Equal(t, int64(400), cold.PointsBalance)
}

// ctxGuardedStore fails reads once the caller's context is done, like a
// real database driver would.
type ctxGuardedStore struct {
	*store.Memory
}

func (s ctxGuardedStore) ReadFrom(ctx context.Context, userID string, afterSeq int64) ([]progression.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Memory.ReadFrom(ctx, userID, afterSeq)
}

func TestGetState_CanceledCallerDoesNotPoisonSharedRebuild(t *testing.T) {
	// GIVEN: A cold cache and a reader whose context is already canceled
	// WHEN: That reader triggers the collapsed rebuild
	// THEN: The rebuild still completes from the ledger

	mem := store.NewMemory()
	cat := catalog.Default()

	svc1 := service.New(mem, cat)
	_, err := svc1.SubmitProgress(context.Background(), "user-1", "dawn-patrol", 3, "req-1")
	require.NoError(t, err)

	svc2 := service.New(ctxGuardedStore{mem}, cat)
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	p, err := svc2.GetState(canceled, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(150), p.TotalXP)
}

func TestGetState_SnapshotRebuild(t *testing.T) {
	// With a snapshot-capable store, a fresh service rolls the snapshot
	// forward instead of replaying the whole ledger.
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cat := catalog.Default()
	ctx := context.Background()

	svc1 := service.New(st, cat)
	_, err = svc1.SubmitProgress(ctx, "user-1", "five-star-nights", 3, "req-1")
	require.NoError(t, err)
	_, _, err = svc1.SubmitRedemption(ctx, "user-1", "lounge-pass", "req-2")
	require.NoError(t, err)

	// Snapshot written at seq 2 by the submits above.
	seq, _, ok, err := st.LoadSnapshot(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), seq)

	warm, err := svc1.GetState(ctx, "user-1")
	require.NoError(t, err)

	svc2 := service.New(st, cat)
	cold, err := svc2.GetState(ctx, "user-1")
	require.NoError(t, err)

	assert.Equal(t, warm.Seq, cold.Seq)
	assert.Equal(t, warm.TotalXP, cold.TotalXP)
	assert.Equal(t, warm.PointsBalance, cold.PointsBalance)
	assert.Len(t, cold.Redemptions, 1)
}
