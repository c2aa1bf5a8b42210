package queries

import (
	"context"
	"log/slog"

	"questline/contexts/player-progression/reward-service/domain/entities"
	domainerrors "questline/contexts/player-progression/reward-service/domain/errors"
	"questline/contexts/player-progression/reward-service/ports"
)

type GetLeaderboardQuery struct {
	Window string
	Limit  int
	Offset int
}

type GetLeaderboardResult struct {
	Window   entities.Window
	PeriodID string
	Entries  []ports.RankedEntry
}

type GetLeaderboardUseCase struct {
	Rankings ports.RankingStore
	Clock    ports.Clock
	Logger   *slog.Logger
}

func (u GetLeaderboardUseCase) Execute(ctx context.Context, query GetLeaderboardQuery) (GetLeaderboardResult, error) {
	window, ok := entities.ParseWindow(query.Window)
	if !ok {
		return GetLeaderboardResult{}, domainerrors.ErrUnknownWindow
	}

	limit := query.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := query.Offset
	if offset < 0 {
		offset = 0
	}

	periodID := entities.PeriodID(window, u.Clock.Now())
	return GetLeaderboardResult{
		Window:   window,
		PeriodID: periodID,
		Entries:  u.Rankings.Top(window, periodID, limit, offset),
	}, nil
}
