package queries

import (
	"context"
	"log/slog"
	"strings"

	"questline/contexts/player-progression/reward-service/domain/entities"
	domainerrors "questline/contexts/player-progression/reward-service/domain/errors"
	"questline/contexts/player-progression/reward-service/ports"
)

type GetSnapshotQuery struct {
	Window   string
	PeriodID string
}

type GetSnapshotResult struct {
	Snapshot entities.LeaderboardSnapshot
}

type GetSnapshotUseCase struct {
	Snapshots ports.SnapshotRepository
	Logger    *slog.Logger
}

func (u GetSnapshotUseCase) Execute(ctx context.Context, query GetSnapshotQuery) (GetSnapshotResult, error) {
	window, ok := entities.ParseWindow(query.Window)
	if !ok || window == entities.WindowGlobal {
		return GetSnapshotResult{}, domainerrors.ErrUnknownWindow
	}
	periodID := strings.TrimSpace(query.PeriodID)
	if periodID == "" {
		return GetSnapshotResult{}, domainerrors.ErrSnapshotNotFound
	}

	snapshot, err := u.Snapshots.GetSnapshot(ctx, window, periodID)
	if err != nil {
		return GetSnapshotResult{}, err
	}
	return GetSnapshotResult{Snapshot: snapshot}, nil
}
