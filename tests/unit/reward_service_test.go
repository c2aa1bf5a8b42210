package unit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	rewardservice "questline/contexts/player-progression/reward-service"
	"questline/contexts/player-progression/reward-service/adapters/memory"
	"questline/contexts/player-progression/reward-service/adapters/ranking"
	"questline/contexts/player-progression/reward-service/domain/entities"
	domainerrors "questline/contexts/player-progression/reward-service/domain/errors"
	"questline/contexts/player-progression/reward-service/ports"
	httptransport "questline/contexts/player-progression/reward-service/transport/http"
)

// 2026-08-19 is a Wednesday, outside the weekend bonus.
var baseTime = time.Date(2026, time.August, 19, 10, 0, 0, 0, time.UTC)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fakeLedger struct {
	failing bool
	batches [][]ports.SyncIntent
	seen    map[string]int
}

func (l *fakeLedger) SubmitRewardBatch(_ context.Context, intents []ports.SyncIntent) error {
	if l.failing {
		return domainerrors.ErrLedgerUnavailable
	}
	if l.seen == nil {
		l.seen = make(map[string]int)
	}
	l.batches = append(l.batches, append([]ports.SyncIntent(nil), intents...))
	for _, intent := range intents {
		l.seen[intent.EventID]++
	}
	return nil
}

type testEnv struct {
	module   rewardservice.Module
	store    *memory.Store
	notifier *memory.Notifier
	clock    *fakeClock
	ledger   *fakeLedger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	clock := &fakeClock{now: baseTime}
	ledger := &fakeLedger{}
	notifier := memory.NewNotifier()

	module := rewardservice.NewModule(rewardservice.Dependencies{
		Catalog:            entities.NewActionCatalog(entities.DefaultActions()),
		Profiles:           store,
		Guard:              store,
		Queue:              store,
		Ledger:             ledger,
		Rankings:           ranking.NewStore(),
		Snapshots:          store,
		Notifier:           notifier,
		Idempotency:        store,
		Clock:              clock,
		IDGenerator:        store,
		RankShiftThreshold: 5,
		TopCutoff:          10,
		QueueHighWater:     1000,
		SnapshotTop:        100,
		IdempotencyTTL:     7 * 24 * time.Hour,
	})
	return &testEnv{module: module, store: store, notifier: notifier, clock: clock, ledger: ledger}
}

func (e *testEnv) award(t *testing.T, userID string, actionID string) httptransport.AwardRewardResponse {
	t.Helper()
	resp, err := e.module.Handler.AwardRewardHandler(context.Background(), httptransport.AwardRewardRequest{
		UserID:   userID,
		ActionID: actionID,
	}, "")
	if err != nil {
		t.Fatalf("award %s/%s failed: %v", userID, actionID, err)
	}
	return resp
}

func TestAwardGrantsXPAndLevelsUp(t *testing.T) {
	env := newTestEnv(t)

	resp := env.award(t, "alice", "first_trade")
	if resp.Data.Amount != 100 {
		t.Fatalf("expected 100 XP, got %d", resp.Data.Amount)
	}
	if resp.Data.TotalXP != 100 {
		t.Fatalf("expected total 100, got %d", resp.Data.TotalXP)
	}
	if resp.Data.Level != 2 || !resp.Data.LeveledUp {
		t.Fatalf("expected level up to 2, got level %d (leveled_up=%v)", resp.Data.Level, resp.Data.LeveledUp)
	}

	profile, err := env.module.Handler.GetProfileHandler(context.Background(), "alice")
	if err != nil {
		t.Fatalf("get profile failed: %v", err)
	}
	if profile.Data.TotalXP != 100 || profile.Data.Level != 2 || profile.Data.Streak != 1 {
		t.Fatalf("unexpected profile: %+v", profile.Data)
	}
}

func TestAwardRejectsUnknownAction(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.module.Handler.AwardRewardHandler(context.Background(), httptransport.AwardRewardRequest{
		UserID:   "alice",
		ActionID: "teleport",
	}, "")
	if !errors.Is(err, domainerrors.ErrInvalidAction) {
		t.Fatalf("expected ErrInvalidAction, got %v", err)
	}
}

func TestCooldownRejectsRapidRepeat(t *testing.T) {
	env := newTestEnv(t)

	first := env.award(t, "alice", "trade_executed")

	env.clock.Advance(10 * time.Second)
	_, err := env.module.Handler.AwardRewardHandler(context.Background(), httptransport.AwardRewardRequest{
		UserID:   "alice",
		ActionID: "trade_executed",
	}, "")
	if !errors.Is(err, domainerrors.ErrThrottled) {
		t.Fatalf("expected ErrThrottled, got %v", err)
	}

	// The rejected attempt must not change durable state.
	profile, err := env.module.Handler.GetProfileHandler(context.Background(), "alice")
	if err != nil {
		t.Fatalf("get profile failed: %v", err)
	}
	if profile.Data.TotalXP != first.Data.TotalXP {
		t.Fatalf("total changed after throttled attempt: %d != %d", profile.Data.TotalXP, first.Data.TotalXP)
	}

	// After the cooldown the same action succeeds.
	env.clock.Advance(51 * time.Second)
	env.award(t, "alice", "trade_executed")
}

func TestDailyCapRejectsOverLimit(t *testing.T) {
	env := newTestEnv(t)
	env.clock.now = time.Date(2026, time.August, 19, 0, 30, 0, 0, time.UTC)

	env.award(t, "alice", "daily_login")

	// Cooldown (20h) has passed but the daily cap of 1 still binds.
	env.clock.Advance(23 * time.Hour)
	_, err := env.module.Handler.AwardRewardHandler(context.Background(), httptransport.AwardRewardRequest{
		UserID:   "alice",
		ActionID: "daily_login",
	}, "")
	if !errors.Is(err, domainerrors.ErrThrottled) {
		t.Fatalf("expected ErrThrottled at daily cap, got %v", err)
	}

	// Next UTC day resets the cap.
	env.clock.Advance(2 * time.Hour)
	env.award(t, "alice", "daily_login")
}

func TestStreakMultiplierAfterThreeConsecutiveDays(t *testing.T) {
	env := newTestEnv(t)
	// Monday through Wednesday, all weekdays.
	env.clock.now = time.Date(2026, time.August, 17, 9, 0, 0, 0, time.UTC)

	first := env.award(t, "alice", "daily_login")
	if first.Data.Amount != 20 {
		t.Fatalf("day 1: expected 20, got %d", first.Data.Amount)
	}

	env.clock.Advance(24 * time.Hour)
	second := env.award(t, "alice", "daily_login")
	if second.Data.Amount != 20 {
		t.Fatalf("day 2: expected 20, got %d", second.Data.Amount)
	}

	env.clock.Advance(24 * time.Hour)
	third := env.award(t, "alice", "daily_login")
	if third.Data.Amount != 22 {
		t.Fatalf("day 3: expected 22 with 1.1x streak multiplier, got %d", third.Data.Amount)
	}
}

func TestStreakResetsAfterMissedDay(t *testing.T) {
	env := newTestEnv(t)
	env.clock.now = time.Date(2026, time.August, 17, 9, 0, 0, 0, time.UTC)

	env.award(t, "alice", "daily_login")
	env.clock.Advance(24 * time.Hour)
	env.award(t, "alice", "daily_login")

	// Skip a day; streak goes back to 1.
	env.clock.Advance(48 * time.Hour)
	env.award(t, "alice", "daily_login")

	profile, err := env.module.Handler.GetProfileHandler(context.Background(), "alice")
	if err != nil {
		t.Fatalf("get profile failed: %v", err)
	}
	if profile.Data.Streak != 1 {
		t.Fatalf("expected streak reset to 1, got %d", profile.Data.Streak)
	}
}

func TestWeekendBonusMultiplier(t *testing.T) {
	env := newTestEnv(t)
	// 2026-08-22 is a Saturday.
	env.clock.now = time.Date(2026, time.August, 22, 12, 0, 0, 0, time.UTC)

	resp := env.award(t, "alice", "daily_login")
	if resp.Data.Amount != 30 {
		t.Fatalf("expected 30 with 1.5x weekend bonus, got %d", resp.Data.Amount)
	}
}

func TestIdempotencyKeyReplaysStoredResult(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.module.Handler.AwardRewardHandler(ctx, httptransport.AwardRewardRequest{
		UserID:   "alice",
		ActionID: "first_trade",
	}, "idem-award-1")
	if err != nil {
		t.Fatalf("first award failed: %v", err)
	}

	second, err := env.module.Handler.AwardRewardHandler(ctx, httptransport.AwardRewardRequest{
		UserID:   "alice",
		ActionID: "first_trade",
	}, "idem-award-1")
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if !second.Replayed {
		t.Fatal("expected replayed response")
	}
	if second.Data.TotalXP != first.Data.TotalXP {
		t.Fatalf("replay changed totals: %d != %d", second.Data.TotalXP, first.Data.TotalXP)
	}

	// The duplicate must not have produced a second durable event.
	if events := env.store.Events(); len(events) != 1 {
		t.Fatalf("expected 1 reward event, got %d", len(events))
	}
}

func TestIdempotencyKeyConflictOnDifferentRequest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.module.Handler.AwardRewardHandler(ctx, httptransport.AwardRewardRequest{
		UserID:   "alice",
		ActionID: "first_trade",
	}, "idem-award-2"); err != nil {
		t.Fatalf("first award failed: %v", err)
	}

	_, err := env.module.Handler.AwardRewardHandler(ctx, httptransport.AwardRewardRequest{
		UserID:   "bob",
		ActionID: "first_trade",
	}, "idem-award-2")
	if !errors.Is(err, domainerrors.ErrIdempotencyKeyConflict) {
		t.Fatalf("expected ErrIdempotencyKeyConflict, got %v", err)
	}
}

func TestLeaderboardOrdersUsersAcrossWindows(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		userID := fmt.Sprintf("user-%d", i)
		for j := 0; j < i; j++ {
			env.award(t, userID, "achievement_unlocked")
		}
	}

	for _, window := range []string{"global", "weekly", "monthly"} {
		board, err := env.module.Handler.GetLeaderboardHandler(ctx, window, 10, 0)
		if err != nil {
			t.Fatalf("leaderboard %s failed: %v", window, err)
		}
		if len(board.Data.Entries) != 5 {
			t.Fatalf("%s: expected 5 entries, got %d", window, len(board.Data.Entries))
		}
		if board.Data.Entries[0].UserID != "user-5" || board.Data.Entries[0].Rank != 1 {
			t.Fatalf("%s: expected user-5 first, got %+v", window, board.Data.Entries[0])
		}
		if board.Data.Entries[4].UserID != "user-1" {
			t.Fatalf("%s: expected user-1 last, got %s", window, board.Data.Entries[4].UserID)
		}
	}

	rank, err := env.module.Handler.GetRankHandler(ctx, "weekly", "user-3")
	if err != nil {
		t.Fatalf("get rank failed: %v", err)
	}
	if !rank.Data.Ranked || rank.Data.Rank != 3 {
		t.Fatalf("expected user-3 at rank 3, got %+v", rank.Data)
	}

	around, err := env.module.Handler.GetAroundHandler(ctx, "global", "user-3", 1)
	if err != nil {
		t.Fatalf("get around failed: %v", err)
	}
	if len(around.Data.Entries) != 3 || around.Data.Entries[1].UserID != "user-3" {
		t.Fatalf("unexpected neighborhood: %+v", around.Data.Entries)
	}
}

func TestUnknownWindowRejected(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.module.Handler.GetLeaderboardHandler(context.Background(), "yearly", 10, 0)
	if !errors.Is(err, domainerrors.ErrUnknownWindow) {
		t.Fatalf("expected ErrUnknownWindow, got %v", err)
	}
}

func TestRankChangeNotificationOnTopEntry(t *testing.T) {
	env := newTestEnv(t)

	env.award(t, "alice", "first_trade")

	sawRankChange := false
	for _, delivery := range env.notifier.DeliveriesTo(ports.LeaderboardChannel) {
		if delivery.Event.Kind() == ports.EventRankChanged {
			sawRankChange = true
			change := delivery.Event.(ports.RankChangedEvent)
			if change.NewRank != 1 || change.OldRank != 0 {
				t.Fatalf("unexpected rank change: %+v", change)
			}
		}
	}
	if !sawRankChange {
		t.Fatal("expected a rank_changed broadcast for a top-tier entry")
	}
}

func TestAwardNotifiesUserChannel(t *testing.T) {
	env := newTestEnv(t)

	env.award(t, "alice", "first_trade")

	deliveries := env.notifier.DeliveriesTo(ports.UserChannel("alice"))
	kinds := make(map[ports.EventKind]int)
	for _, delivery := range deliveries {
		kinds[delivery.Event.Kind()]++
	}
	if kinds[ports.EventRewardGranted] != 1 {
		t.Fatalf("expected 1 reward_granted, got %d", kinds[ports.EventRewardGranted])
	}
	if kinds[ports.EventLevelUp] != 1 {
		t.Fatalf("expected 1 level_up, got %d", kinds[ports.EventLevelUp])
	}
}

func TestSmallRankShiftStaysQuiet(t *testing.T) {
	env := newTestEnv(t)

	// Two users swap places outside the top cutoff would be quiet, but with
	// a small board every entry is inside the cutoff; verify the threshold
	// path instead: a second award that keeps rank 1 emits no new change.
	env.award(t, "alice", "achievement_unlocked")
	env.notifier.Reset()

	env.clock.Advance(time.Hour)
	env.award(t, "alice", "achievement_unlocked")

	for _, delivery := range env.notifier.DeliveriesTo(ports.LeaderboardChannel) {
		if delivery.Event.Kind() == ports.EventRankChanged {
			t.Fatalf("unexpected rank change broadcast: %+v", delivery.Event)
		}
	}
}

func TestRankShiftThresholdOutsideTopTier(t *testing.T) {
	env := newTestEnv(t)

	// 30 users with 10 XP per trade: user-k ends at 10*k total, so ranks run
	// user-30 first down to user-1 last and most of the board sits below the
	// top cutoff of 10.
	for k := 1; k <= 30; k++ {
		userID := fmt.Sprintf("user-%d", k)
		for j := 0; j < k; j++ {
			env.award(t, userID, "trade_executed")
			env.clock.Advance(61 * time.Second)
		}
	}

	// user-5 jumps from 50 to 150 XP, a nine-place climb that stays outside
	// the top tier: notified on the threshold rule.
	env.notifier.Reset()
	env.award(t, "user-5", "first_trade")

	climbed := false
	for _, delivery := range env.notifier.DeliveriesTo(ports.LeaderboardChannel) {
		if delivery.Event.Kind() != ports.EventRankChanged {
			continue
		}
		change := delivery.Event.(ports.RankChangedEvent)
		if change.UserID != "user-5" {
			continue
		}
		climbed = true
		if change.OldRank-change.NewRank < 5 {
			t.Fatalf("expected a shift of at least the threshold, got %+v", change)
		}
		if change.NewRank <= 10 {
			t.Fatalf("expected the climb to land outside the top tier, got %+v", change)
		}
	}
	if !climbed {
		t.Fatal("expected a rank_changed broadcast for a threshold-sized climb")
	}

	// user-12 gains one more trade and only ties the next user above: a
	// sub-threshold move outside the top tier stays quiet.
	env.notifier.Reset()
	env.clock.Advance(2 * time.Minute)
	env.award(t, "user-12", "trade_executed")

	for _, delivery := range env.notifier.DeliveriesTo(ports.LeaderboardChannel) {
		if delivery.Event.Kind() == ports.EventRankChanged {
			t.Fatalf("unexpected rank change broadcast: %+v", delivery.Event)
		}
	}
}

func TestAwardQueuesSyncIntentDurably(t *testing.T) {
	env := newTestEnv(t)

	env.award(t, "alice", "first_trade")

	pending, err := env.store.PendingCount(context.Background())
	if err != nil {
		t.Fatalf("pending count failed: %v", err)
	}
	if pending != 1 {
		t.Fatalf("expected 1 pending intent, got %d", pending)
	}

	due, err := env.store.ListDueIntents(context.Background(), env.clock.Now(), 10)
	if err != nil {
		t.Fatalf("list due failed: %v", err)
	}
	if len(due) != 1 || due[0].Intent.UserID != "alice" || due[0].Intent.Amount != 100 {
		t.Fatalf("unexpected due intents: %+v", due)
	}
}

func TestProfileNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.module.Handler.GetProfileHandler(context.Background(), "ghost")
	if !errors.Is(err, domainerrors.ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
}
