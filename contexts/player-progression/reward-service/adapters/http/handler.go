package httpadapter

import (
	"context"
	"log/slog"
	"time"

	application "questline/contexts/player-progression/reward-service/application"
	"questline/contexts/player-progression/reward-service/application/commands"
	"questline/contexts/player-progression/reward-service/application/queries"
	"questline/contexts/player-progression/reward-service/ports"
	httptransport "questline/contexts/player-progression/reward-service/transport/http"
)

type Handler struct {
	AwardReward    commands.AwardRewardUseCase
	GetProfile     queries.GetProfileUseCase
	GetLeaderboard queries.GetLeaderboardUseCase
	GetRank        queries.GetRankUseCase
	GetAround      queries.GetAroundUseCase
	GetSnapshot    queries.GetSnapshotUseCase
	Logger         *slog.Logger
}

// AwardRewardHandler godoc
// @Summary Award a reward for a user action
// @Description Validates the action, applies cooldown and daily-cap policy, persists the award and queues ledger settlement.
// @Tags reward-service
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Idempotency key"
// @Param request body httptransport.AwardRewardRequest true "Award payload"
// @Success 200 {object} httptransport.AwardRewardResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 429 {object} httptransport.ErrorResponse
// @Failure 503 {object} httptransport.ErrorResponse
// @Router /rewards [post]
func (h Handler) AwardRewardHandler(
	ctx context.Context,
	req httptransport.AwardRewardRequest,
	idempotencyKey string,
) (httptransport.AwardRewardResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	logger.Info("award request received",
		"event", "http_award_received",
		"module", "player-progression/reward-service",
		"layer", "transport",
		"action_id", req.ActionID,
	)

	result, err := h.AwardReward.Execute(ctx, commands.AwardRewardCommand{
		UserID:         req.UserID,
		ActionID:       req.ActionID,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return httptransport.AwardRewardResponse{}, err
	}

	resp := httptransport.AwardRewardResponse{
		Status:   "ok",
		Replayed: result.Replayed,
	}
	resp.Data.UserID = req.UserID
	resp.Data.ActionID = req.ActionID
	resp.Data.Amount = result.Amount
	resp.Data.TotalXP = result.TotalXP
	resp.Data.Level = result.Level
	resp.Data.LeveledUp = result.LeveledUp
	return resp, nil
}

// GetProfileHandler godoc
// @Summary Get a user's reward profile
// @Description Returns XP total, level, streak and current rank per window.
// @Tags reward-service
// @Produce json
// @Param user_id path string true "User id"
// @Success 200 {object} httptransport.ProfileResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /rewards/profile/{user_id} [get]
func (h Handler) GetProfileHandler(ctx context.Context, userID string) (httptransport.ProfileResponse, error) {
	result, err := h.GetProfile.Execute(ctx, queries.GetProfileQuery{UserID: userID})
	if err != nil {
		return httptransport.ProfileResponse{}, err
	}

	resp := httptransport.ProfileResponse{Status: "ok"}
	resp.Data.UserID = result.Profile.UserID
	resp.Data.TotalXP = result.Profile.TotalXP
	resp.Data.Level = result.Profile.Level
	resp.Data.Streak = result.Profile.Streak
	if !result.Profile.LastAwardAt.IsZero() {
		resp.Data.LastAwardAt = result.Profile.LastAwardAt.UTC().Format(time.RFC3339)
	}
	resp.Data.Ranks = make([]httptransport.WindowRankDTO, 0, len(result.Ranks))
	for _, rank := range result.Ranks {
		resp.Data.Ranks = append(resp.Data.Ranks, httptransport.WindowRankDTO{
			Window:   string(rank.Window),
			PeriodID: rank.PeriodID,
			Rank:     rank.Rank,
			Ranked:   rank.Ranked,
		})
	}
	return resp, nil
}

// GetLeaderboardHandler godoc
// @Summary Get a live leaderboard page
// @Description Returns the ordered top entries of the current period.
// @Tags reward-service
// @Produce json
// @Param window path string true "Window: global, weekly or monthly"
// @Param limit query int false "Page size (default 50)"
// @Param offset query int false "Page offset"
// @Success 200 {object} httptransport.LeaderboardResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Router /leaderboards/{window} [get]
func (h Handler) GetLeaderboardHandler(ctx context.Context, window string, limit int, offset int) (httptransport.LeaderboardResponse, error) {
	result, err := h.GetLeaderboard.Execute(ctx, queries.GetLeaderboardQuery{
		Window: window,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return httptransport.LeaderboardResponse{}, err
	}

	resp := httptransport.LeaderboardResponse{Status: "ok"}
	resp.Data.Window = string(result.Window)
	resp.Data.PeriodID = result.PeriodID
	resp.Data.Entries = mapRankedEntries(result.Entries)
	return resp, nil
}

// GetRankHandler godoc
// @Summary Get a user's rank in one window
// @Tags reward-service
// @Produce json
// @Param window path string true "Window: global, weekly or monthly"
// @Param user_id path string true "User id"
// @Success 200 {object} httptransport.RankResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Router /leaderboards/{window}/rank/{user_id} [get]
func (h Handler) GetRankHandler(ctx context.Context, window string, userID string) (httptransport.RankResponse, error) {
	result, err := h.GetRank.Execute(ctx, queries.GetRankQuery{UserID: userID, Window: window})
	if err != nil {
		return httptransport.RankResponse{}, err
	}

	resp := httptransport.RankResponse{Status: "ok"}
	resp.Data.Window = string(result.Window)
	resp.Data.PeriodID = result.PeriodID
	resp.Data.UserID = userID
	resp.Data.Rank = result.Rank
	resp.Data.Ranked = result.Ranked
	return resp, nil
}

// GetAroundHandler godoc
// @Summary Get the leaderboard neighborhood of a user
// @Description Returns the entries surrounding the user in rank order.
// @Tags reward-service
// @Produce json
// @Param window path string true "Window: global, weekly or monthly"
// @Param user_id path string true "User id"
// @Param radius query int false "Neighbors per side (default 5)"
// @Success 200 {object} httptransport.AroundResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Router /leaderboards/{window}/around/{user_id} [get]
func (h Handler) GetAroundHandler(ctx context.Context, window string, userID string, radius int) (httptransport.AroundResponse, error) {
	result, err := h.GetAround.Execute(ctx, queries.GetAroundQuery{
		UserID: userID,
		Window: window,
		Radius: radius,
	})
	if err != nil {
		return httptransport.AroundResponse{}, err
	}

	resp := httptransport.AroundResponse{Status: "ok"}
	resp.Data.Window = string(result.Window)
	resp.Data.PeriodID = result.PeriodID
	resp.Data.Entries = mapRankedEntries(result.Entries)
	return resp, nil
}

// GetSnapshotHandler godoc
// @Summary Get an archived leaderboard
// @Description Returns the frozen standings of a closed weekly or monthly period.
// @Tags reward-service
// @Produce json
// @Param window path string true "Window: weekly or monthly"
// @Param period_id path string true "Period id, e.g. 2026-W30 or 2026-08"
// @Success 200 {object} httptransport.SnapshotResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /leaderboards/{window}/snapshots/{period_id} [get]
func (h Handler) GetSnapshotHandler(ctx context.Context, window string, periodID string) (httptransport.SnapshotResponse, error) {
	result, err := h.GetSnapshot.Execute(ctx, queries.GetSnapshotQuery{Window: window, PeriodID: periodID})
	if err != nil {
		return httptransport.SnapshotResponse{}, err
	}

	resp := httptransport.SnapshotResponse{Status: "ok"}
	resp.Data.SnapshotID = result.Snapshot.SnapshotID
	resp.Data.Window = string(result.Snapshot.Window)
	resp.Data.PeriodID = result.Snapshot.PeriodID
	resp.Data.PeriodStart = result.Snapshot.PeriodStart.UTC().Format(time.RFC3339)
	resp.Data.PeriodEnd = result.Snapshot.PeriodEnd.UTC().Format(time.RFC3339)
	resp.Data.ArchivedAt = result.Snapshot.ArchivedAt.UTC().Format(time.RFC3339)
	resp.Data.Entries = make([]httptransport.RankedEntryDTO, 0, len(result.Snapshot.Entries))
	for _, entry := range result.Snapshot.Entries {
		resp.Data.Entries = append(resp.Data.Entries, httptransport.RankedEntryDTO{
			Rank:   entry.Rank,
			UserID: entry.UserID,
			Score:  entry.Score,
		})
	}
	return resp, nil
}

func mapRankedEntries(entries []ports.RankedEntry) []httptransport.RankedEntryDTO {
	items := make([]httptransport.RankedEntryDTO, 0, len(entries))
	for _, entry := range entries {
		items = append(items, httptransport.RankedEntryDTO{
			Rank:   entry.Rank,
			UserID: entry.UserID,
			Score:  entry.Score,
		})
	}
	return items
}
