package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"questline/contexts/player-progression/reward-service/domain/entities"
	domainerrors "questline/contexts/player-progression/reward-service/domain/errors"
	"questline/contexts/player-progression/reward-service/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusConfirmed = "confirmed"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) GetProfile(ctx context.Context, userID string) (entities.RewardProfile, error) {
	var row rewardProfileModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.RewardProfile{}, domainerrors.ErrProfileNotFound
		}
		return entities.RewardProfile{}, err
	}
	return row.toEntity(), nil
}

// ApplyAward runs the award mutation inside one transaction with the profile
// row locked, so concurrent awards to the same user serialize and the
// profile update, event append, trigger commit and outbox row land together
// or not at all.
func (r *Repository) ApplyAward(ctx context.Context, userID string, apply ports.AwardFunc) (ports.AwardMutation, error) {
	var mutation ports.AwardMutation
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row rewardProfileModel
		found := true
		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			First(&row).
			Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			found = false
		}

		mutation, err = apply(row.toEntity(), found)
		if err != nil {
			return err
		}

		profileRow := rewardProfileModelFromEntity(mutation.Profile)
		if found {
			if err := tx.
				Model(&rewardProfileModel{}).
				Where("user_id = ?", userID).
				Updates(map[string]any{
					"total_xp":      profileRow.TotalXP,
					"level":         profileRow.Level,
					"streak":        profileRow.Streak,
					"last_award_at": profileRow.LastAwardAt,
					"updated_at":    profileRow.UpdatedAt,
				}).
				Error; err != nil {
				return err
			}
		} else {
			if err := tx.Create(&profileRow).Error; err != nil {
				if isUniqueViolation(err) {
					// Lost a create race for a brand new user; the caller
					// retries and takes the locked-read path.
					return domainerrors.ErrRepositoryInvariantBroke
				}
				return err
			}
		}

		eventRow := rewardEventModelFromEntity(mutation.Event)
		if err := tx.Create(&eventRow).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrRepositoryInvariantBroke
			}
			return err
		}

		triggerRow := actionTriggerModel{
			EventID:     mutation.Event.EventID,
			UserID:      mutation.Event.UserID,
			ActionID:    mutation.Event.ActionID,
			TriggeredAt: mutation.Event.OccurredAt.UTC(),
		}
		if err := tx.Create(&triggerRow).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrRepositoryInvariantBroke
			}
			return err
		}

		outboxRow := outboxModel{
			EventID:       mutation.Intent.EventID,
			UserID:        mutation.Intent.UserID,
			ActionID:      mutation.Intent.ActionID,
			Amount:        mutation.Intent.Amount,
			Status:        outboxStatusPending,
			RetryCount:    0,
			NextAttemptAt: mutation.Intent.OccurredAt.UTC(),
			CreatedAt:     mutation.Intent.OccurredAt.UTC(),
		}
		if err := tx.Create(&outboxRow).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrRepositoryInvariantBroke
			}
			return err
		}
		return nil
	})
	if err != nil {
		return ports.AwardMutation{}, err
	}
	return mutation, nil
}

func (r *Repository) ListEventsSince(ctx context.Context, since time.Time, limit int) ([]entities.RewardEvent, error) {
	if limit <= 0 {
		limit = 500
	}
	var rows []rewardEventModel
	if err := r.db.WithContext(ctx).
		Where("occurred_at >= ?", since.UTC()).
		Order("occurred_at ASC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	items := make([]entities.RewardEvent, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) LastTrigger(ctx context.Context, userID string, actionID string) (time.Time, bool, error) {
	var row actionTriggerModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND action_id = ?", userID, actionID).
		Order("triggered_at DESC").
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return row.TriggeredAt.UTC(), true, nil
}

func (r *Repository) DailyCount(ctx context.Context, userID string, actionID string, dayStart time.Time) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&actionTriggerModel{}).
		Where("user_id = ? AND action_id = ? AND triggered_at >= ?", userID, actionID, dayStart.UTC()).
		Count(&count).
		Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *Repository) ListDueIntents(ctx context.Context, now time.Time, limit int) ([]ports.QueuedIntent, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ? AND next_attempt_at <= ?", outboxStatusPending, now.UTC()).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	items := make([]ports.QueuedIntent, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.QueuedIntent{
			Intent: ports.SyncIntent{
				EventID:    row.EventID,
				UserID:     row.UserID,
				ActionID:   row.ActionID,
				Amount:     row.Amount,
				OccurredAt: row.CreatedAt.UTC(),
			},
			RetryCount: row.RetryCount,
		})
	}
	return items, nil
}

func (r *Repository) MarkConfirmed(ctx context.Context, eventID string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("event_id = ?", eventID).
		Updates(map[string]any{
			"status":       outboxStatusConfirmed,
			"confirmed_at": at.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	return nil
}

func (r *Repository) MarkFailed(ctx context.Context, eventID string, retryCount int, nextAttempt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("event_id = ?", eventID).
		Updates(map[string]any{
			"retry_count":     retryCount,
			"next_attempt_at": nextAttempt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	return nil
}

func (r *Repository) PendingCount(ctx context.Context) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("status = ?", outboxStatusPending).
		Count(&count).
		Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *Repository) SaveSnapshot(ctx context.Context, snapshot entities.LeaderboardSnapshot) error {
	entries, err := json.Marshal(snapshot.Entries)
	if err != nil {
		return err
	}
	row := snapshotModel{
		SnapshotID:  snapshot.SnapshotID,
		Window:      string(snapshot.Window),
		PeriodID:    snapshot.PeriodID,
		PeriodStart: snapshot.PeriodStart.UTC(),
		PeriodEnd:   snapshot.PeriodEnd.UTC(),
		Entries:     entries,
		ArchivedAt:  snapshot.ArchivedAt.UTC(),
	}
	// Rollover may rerun over an already archived period; the later write
	// carries equal data, so overwrite instead of failing.
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "window"}, {Name: "period_id"}},
			UpdateAll: true,
		}).
		Create(&row).
		Error
}

func (r *Repository) GetSnapshot(ctx context.Context, window entities.Window, periodID string) (entities.LeaderboardSnapshot, error) {
	var row snapshotModel
	err := r.db.WithContext(ctx).
		Where(`"window" = ? AND period_id = ?`, string(window), periodID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.LeaderboardSnapshot{}, domainerrors.ErrSnapshotNotFound
		}
		return entities.LeaderboardSnapshot{}, err
	}
	return row.toEntity()
}

func (r *Repository) Get(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	var row idempotencyModel
	err := r.db.WithContext(ctx).
		Where("key = ?", key).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.IdempotencyRecord{}, false, nil
		}
		return ports.IdempotencyRecord{}, false, err
	}

	if !row.ExpiresAt.IsZero() && now.UTC().After(row.ExpiresAt.UTC()) {
		if err := r.db.WithContext(ctx).
			Where("key = ?", key).
			Delete(&idempotencyModel{}).
			Error; err != nil {
			return ports.IdempotencyRecord{}, false, err
		}
		return ports.IdempotencyRecord{}, false, nil
	}

	return row.toPort(), true, nil
}

func (r *Repository) Put(ctx context.Context, record ports.IdempotencyRecord) error {
	row := idempotencyModelFromPort(record)
	createResult := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoNothing: true,
		}).
		Create(&row)
	if createResult.Error != nil {
		return createResult.Error
	}
	if createResult.RowsAffected > 0 {
		return nil
	}

	var existing idempotencyModel
	if err := r.db.WithContext(ctx).
		Where("key = ?", record.Key).
		First(&existing).
		Error; err != nil {
		return err
	}
	if existing.RequestHash != record.RequestHash {
		return domainerrors.ErrIdempotencyKeyConflict
	}
	return nil
}

type rewardProfileModel struct {
	UserID      string    `gorm:"column:user_id;primaryKey"`
	TotalXP     int64     `gorm:"column:total_xp"`
	Level       int       `gorm:"column:level"`
	Streak      int       `gorm:"column:streak"`
	LastAwardAt time.Time `gorm:"column:last_award_at"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (rewardProfileModel) TableName() string {
	return "reward_profiles"
}

func rewardProfileModelFromEntity(profile entities.RewardProfile) rewardProfileModel {
	return rewardProfileModel{
		UserID:      profile.UserID,
		TotalXP:     profile.TotalXP,
		Level:       profile.Level,
		Streak:      profile.Streak,
		LastAwardAt: profile.LastAwardAt.UTC(),
		CreatedAt:   profile.CreatedAt.UTC(),
		UpdatedAt:   profile.UpdatedAt.UTC(),
	}
}

func (m rewardProfileModel) toEntity() entities.RewardProfile {
	return entities.RewardProfile{
		UserID:      m.UserID,
		TotalXP:     m.TotalXP,
		Level:       m.Level,
		Streak:      m.Streak,
		LastAwardAt: m.LastAwardAt.UTC(),
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}
}

type rewardEventModel struct {
	EventID    string    `gorm:"column:event_id;primaryKey"`
	UserID     string    `gorm:"column:user_id"`
	ActionID   string    `gorm:"column:action_id"`
	Amount     int64     `gorm:"column:amount"`
	TotalAfter int64     `gorm:"column:total_after"`
	LevelAfter int       `gorm:"column:level_after"`
	LeveledUp  bool      `gorm:"column:leveled_up"`
	OccurredAt time.Time `gorm:"column:occurred_at"`
}

func (rewardEventModel) TableName() string {
	return "reward_events"
}

func rewardEventModelFromEntity(event entities.RewardEvent) rewardEventModel {
	return rewardEventModel{
		EventID:    event.EventID,
		UserID:     event.UserID,
		ActionID:   event.ActionID,
		Amount:     event.Amount,
		TotalAfter: event.TotalAfter,
		LevelAfter: event.LevelAfter,
		LeveledUp:  event.LeveledUp,
		OccurredAt: event.OccurredAt.UTC(),
	}
}

func (m rewardEventModel) toEntity() entities.RewardEvent {
	return entities.RewardEvent{
		EventID:    m.EventID,
		UserID:     m.UserID,
		ActionID:   m.ActionID,
		Amount:     m.Amount,
		TotalAfter: m.TotalAfter,
		LevelAfter: m.LevelAfter,
		LeveledUp:  m.LeveledUp,
		OccurredAt: m.OccurredAt.UTC(),
	}
}

type actionTriggerModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	UserID      string    `gorm:"column:user_id"`
	ActionID    string    `gorm:"column:action_id"`
	TriggeredAt time.Time `gorm:"column:triggered_at"`
}

func (actionTriggerModel) TableName() string {
	return "action_triggers"
}

type outboxModel struct {
	EventID       string     `gorm:"column:event_id;primaryKey"`
	UserID        string     `gorm:"column:user_id"`
	ActionID      string     `gorm:"column:action_id"`
	Amount        int64      `gorm:"column:amount"`
	Status        string     `gorm:"column:status"`
	RetryCount    int        `gorm:"column:retry_count"`
	NextAttemptAt time.Time  `gorm:"column:next_attempt_at"`
	CreatedAt     time.Time  `gorm:"column:created_at"`
	ConfirmedAt   *time.Time `gorm:"column:confirmed_at"`
}

func (outboxModel) TableName() string {
	return "reward_sync_outbox"
}

type snapshotModel struct {
	SnapshotID  string    `gorm:"column:snapshot_id;primaryKey"`
	Window      string    `gorm:"column:window"`
	PeriodID    string    `gorm:"column:period_id"`
	PeriodStart time.Time `gorm:"column:period_start"`
	PeriodEnd   time.Time `gorm:"column:period_end"`
	Entries     []byte    `gorm:"column:entries"`
	ArchivedAt  time.Time `gorm:"column:archived_at"`
}

func (snapshotModel) TableName() string {
	return "leaderboard_snapshots"
}

func (m snapshotModel) toEntity() (entities.LeaderboardSnapshot, error) {
	var entries []entities.SnapshotEntry
	if len(m.Entries) > 0 {
		if err := json.Unmarshal(m.Entries, &entries); err != nil {
			return entities.LeaderboardSnapshot{}, err
		}
	}
	return entities.LeaderboardSnapshot{
		SnapshotID:  m.SnapshotID,
		Window:      entities.Window(m.Window),
		PeriodID:    m.PeriodID,
		PeriodStart: m.PeriodStart.UTC(),
		PeriodEnd:   m.PeriodEnd.UTC(),
		Entries:     entries,
		ArchivedAt:  m.ArchivedAt.UTC(),
	}, nil
}

type idempotencyModel struct {
	Key             string    `gorm:"column:key;primaryKey"`
	RequestHash     string    `gorm:"column:request_hash"`
	ResponsePayload []byte    `gorm:"column:response_payload"`
	ExpiresAt       time.Time `gorm:"column:expires_at"`
}

func (idempotencyModel) TableName() string {
	return "reward_idempotency"
}

func idempotencyModelFromPort(record ports.IdempotencyRecord) idempotencyModel {
	return idempotencyModel{
		Key:             record.Key,
		RequestHash:     record.RequestHash,
		ResponsePayload: record.ResponsePayload,
		ExpiresAt:       record.ExpiresAt.UTC(),
	}
}

func (m idempotencyModel) toPort() ports.IdempotencyRecord {
	return ports.IdempotencyRecord{
		Key:             m.Key,
		RequestHash:     m.RequestHash,
		ResponsePayload: append([]byte(nil), m.ResponsePayload...),
		ExpiresAt:       m.ExpiresAt.UTC(),
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
