package queries

import (
	"context"
	"log/slog"
	"strings"

	"questline/contexts/player-progression/reward-service/domain/entities"
	domainerrors "questline/contexts/player-progression/reward-service/domain/errors"
	"questline/contexts/player-progression/reward-service/ports"
)

type GetProfileQuery struct {
	UserID string
}

type WindowRank struct {
	Window   entities.Window
	PeriodID string
	Rank     int
	Ranked   bool
}

type GetProfileResult struct {
	Profile entities.RewardProfile
	Ranks   []WindowRank
}

type GetProfileUseCase struct {
	Profiles ports.ProfileRepository
	Rankings ports.RankingStore
	Clock    ports.Clock
	Logger   *slog.Logger
}

func (u GetProfileUseCase) Execute(ctx context.Context, query GetProfileQuery) (GetProfileResult, error) {
	userID := strings.TrimSpace(query.UserID)
	if userID == "" {
		return GetProfileResult{}, domainerrors.ErrInvalidAwardRequest
	}

	profile, err := u.Profiles.GetProfile(ctx, userID)
	if err != nil {
		return GetProfileResult{}, err
	}

	result := GetProfileResult{Profile: profile}
	if u.Rankings != nil {
		now := u.Clock.Now().UTC()
		for _, window := range entities.Windows() {
			periodID := entities.PeriodID(window, now)
			rank, ranked := u.Rankings.Rank(window, periodID, userID)
			result.Ranks = append(result.Ranks, WindowRank{Window: window, PeriodID: periodID, Rank: rank, Ranked: ranked})
		}
	}
	return result, nil
}
