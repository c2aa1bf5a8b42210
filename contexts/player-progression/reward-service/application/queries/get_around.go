package queries

import (
	"context"
	"log/slog"
	"strings"

	"questline/contexts/player-progression/reward-service/domain/entities"
	domainerrors "questline/contexts/player-progression/reward-service/domain/errors"
	"questline/contexts/player-progression/reward-service/ports"
)

type GetAroundQuery struct {
	UserID string
	Window string
	Radius int
}

type GetAroundResult struct {
	Window   entities.Window
	PeriodID string
	Entries  []ports.RankedEntry
}

type GetAroundUseCase struct {
	Rankings ports.RankingStore
	Clock    ports.Clock
	Logger   *slog.Logger
}

func (u GetAroundUseCase) Execute(ctx context.Context, query GetAroundQuery) (GetAroundResult, error) {
	window, ok := entities.ParseWindow(query.Window)
	if !ok {
		return GetAroundResult{}, domainerrors.ErrUnknownWindow
	}
	userID := strings.TrimSpace(query.UserID)
	if userID == "" {
		return GetAroundResult{}, domainerrors.ErrInvalidAwardRequest
	}

	radius := query.Radius
	if radius <= 0 {
		radius = 5
	}

	periodID := entities.PeriodID(window, u.Clock.Now())
	return GetAroundResult{
		Window:   window,
		PeriodID: periodID,
		Entries:  u.Rankings.Around(window, periodID, userID, radius),
	}, nil
}
