package queries

import (
	"context"
	"log/slog"
	"strings"

	"questline/contexts/player-progression/reward-service/domain/entities"
	domainerrors "questline/contexts/player-progression/reward-service/domain/errors"
	"questline/contexts/player-progression/reward-service/ports"
)

type GetRankQuery struct {
	UserID string
	Window string
}

type GetRankResult struct {
	Window   entities.Window
	PeriodID string
	Rank     int
	Ranked   bool
}

type GetRankUseCase struct {
	Rankings ports.RankingStore
	Clock    ports.Clock
	Logger   *slog.Logger
}

func (u GetRankUseCase) Execute(ctx context.Context, query GetRankQuery) (GetRankResult, error) {
	window, ok := entities.ParseWindow(query.Window)
	if !ok {
		return GetRankResult{}, domainerrors.ErrUnknownWindow
	}
	userID := strings.TrimSpace(query.UserID)
	if userID == "" {
		return GetRankResult{}, domainerrors.ErrInvalidAwardRequest
	}

	periodID := entities.PeriodID(window, u.Clock.Now())
	rank, ranked := u.Rankings.Rank(window, periodID, userID)
	return GetRankResult{
		Window:   window,
		PeriodID: periodID,
		Rank:     rank,
		Ranked:   ranked,
	}, nil
}
