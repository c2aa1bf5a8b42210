package memory

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"questline/contexts/player-progression/reward-service/domain/entities"
	domainerrors "questline/contexts/player-progression/reward-service/domain/errors"
	"questline/contexts/player-progression/reward-service/ports"

	"github.com/google/uuid"
)

type outboxItem struct {
	intent      ports.SyncIntent
	retryCount  int
	nextAttempt time.Time
	confirmed   bool
	confirmedAt time.Time
}

type trigger struct {
	userID   string
	actionID string
	at       time.Time
}

// Store is the in-memory backend for tests and local development. One mutex
// guards every table so ApplyAward gets the same per-user serialization the
// postgres adapter provides with row locks.
type Store struct {
	mu sync.Mutex

	profiles    map[string]entities.RewardProfile
	events      []entities.RewardEvent
	triggers    []trigger
	outbox      map[string]*outboxItem
	outboxOrder []string
	snapshots   map[string]entities.LeaderboardSnapshot
	idempotency map[string]ports.IdempotencyRecord
}

func NewStore() *Store {
	return &Store{
		profiles:    make(map[string]entities.RewardProfile),
		outbox:      make(map[string]*outboxItem),
		snapshots:   make(map[string]entities.LeaderboardSnapshot),
		idempotency: make(map[string]ports.IdempotencyRecord),
	}
}

func (s *Store) GetProfile(_ context.Context, userID string) (entities.RewardProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.profiles[strings.TrimSpace(userID)]
	if !ok {
		return entities.RewardProfile{}, domainerrors.ErrProfileNotFound
	}
	return profile, nil
}

func (s *Store) ApplyAward(_ context.Context, userID string, apply ports.AwardFunc) (ports.AwardMutation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(userID)
	current, found := s.profiles[key]

	mutation, err := apply(current, found)
	if err != nil {
		return ports.AwardMutation{}, err
	}

	s.profiles[key] = mutation.Profile
	s.events = append(s.events, mutation.Event)
	s.triggers = append(s.triggers, trigger{
		userID:   key,
		actionID: mutation.Event.ActionID,
		at:       mutation.Event.OccurredAt,
	})
	s.outbox[mutation.Intent.EventID] = &outboxItem{
		intent:      mutation.Intent,
		nextAttempt: mutation.Intent.OccurredAt,
	}
	s.outboxOrder = append(s.outboxOrder, mutation.Intent.EventID)
	return mutation, nil
}

func (s *Store) ListEventsSince(_ context.Context, since time.Time, limit int) ([]entities.RewardEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 500
	}
	items := make([]entities.RewardEvent, 0, limit)
	for _, event := range s.events {
		if event.OccurredAt.Before(since) {
			continue
		}
		items = append(items, event)
		if len(items) == limit {
			break
		}
	}
	return items, nil
}

func (s *Store) LastTrigger(_ context.Context, userID string, actionID string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID = strings.TrimSpace(userID)
	var last time.Time
	found := false
	for _, item := range s.triggers {
		if item.userID != userID || item.actionID != actionID {
			continue
		}
		if !found || item.at.After(last) {
			last = item.at
			found = true
		}
	}
	return last, found, nil
}

func (s *Store) DailyCount(_ context.Context, userID string, actionID string, dayStart time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID = strings.TrimSpace(userID)
	count := 0
	for _, item := range s.triggers {
		if item.userID == userID && item.actionID == actionID && !item.at.Before(dayStart) {
			count++
		}
	}
	return count, nil
}

func (s *Store) ListDueIntents(_ context.Context, now time.Time, limit int) ([]ports.QueuedIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.QueuedIntent, 0, limit)
	for _, eventID := range s.outboxOrder {
		item := s.outbox[eventID]
		if item.confirmed || item.nextAttempt.After(now) {
			continue
		}
		items = append(items, ports.QueuedIntent{Intent: item.intent, RetryCount: item.retryCount})
		if len(items) == limit {
			break
		}
	}
	return items, nil
}

func (s *Store) MarkConfirmed(_ context.Context, eventID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.outbox[eventID]
	if !ok {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	item.confirmed = true
	item.confirmedAt = at.UTC()
	return nil
}

func (s *Store) MarkFailed(_ context.Context, eventID string, retryCount int, nextAttempt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.outbox[eventID]
	if !ok {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	item.retryCount = retryCount
	item.nextAttempt = nextAttempt.UTC()
	return nil
}

func (s *Store) PendingCount(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, item := range s.outbox {
		if !item.confirmed {
			count++
		}
	}
	return count, nil
}

func (s *Store) SaveSnapshot(_ context.Context, snapshot entities.LeaderboardSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[snapshotKey(snapshot.Window, snapshot.PeriodID)] = snapshot
	return nil
}

func (s *Store) GetSnapshot(_ context.Context, window entities.Window, periodID string) (entities.LeaderboardSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, ok := s.snapshots[snapshotKey(window, periodID)]
	if !ok {
		return entities.LeaderboardSnapshot{}, domainerrors.ErrSnapshotNotFound
	}
	return snapshot, nil
}

func (s *Store) Get(_ context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.idempotency[strings.TrimSpace(key)]
	if !ok {
		return ports.IdempotencyRecord{}, false, nil
	}
	if !record.ExpiresAt.After(now.UTC()) {
		delete(s.idempotency, strings.TrimSpace(key))
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (s *Store) Put(_ context.Context, record ports.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(record.Key)
	if key == "" {
		return domainerrors.ErrInvalidAwardRequest
	}
	if existing, ok := s.idempotency[key]; ok {
		if existing.RequestHash != record.RequestHash {
			return domainerrors.ErrIdempotencyKeyConflict
		}
		if !bytes.Equal(existing.ResponsePayload, record.ResponsePayload) {
			return domainerrors.ErrIdempotencyKeyConflict
		}
		return nil
	}
	s.idempotency[key] = record
	return nil
}

// ConfirmedIntents returns settled outbox rows in confirmation order.
func (s *Store) ConfirmedIntents() []ports.SyncIntent {
	s.mu.Lock()
	defer s.mu.Unlock()

	var items []ports.SyncIntent
	for _, eventID := range s.outboxOrder {
		if item := s.outbox[eventID]; item.confirmed {
			items = append(items, item.intent)
		}
	}
	return items
}

// Events returns a copy of the reward event log ordered by occurrence.
func (s *Store) Events() []entities.RewardEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := append([]entities.RewardEvent(nil), s.events...)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].OccurredAt.Before(items[j].OccurredAt)
	})
	return items
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func snapshotKey(window entities.Window, periodID string) string {
	return string(window) + "/" + periodID
}
