package errors

import "errors"

var (
	ErrInvalidAction            = errors.New("unknown action id")
	ErrInvalidAwardRequest      = errors.New("invalid award request")
	ErrThrottled                = errors.New("action throttled by cooldown or daily cap")
	ErrPersistenceFailed        = errors.New("durable award write failed")
	ErrProfileNotFound          = errors.New("reward profile not found")
	ErrUnknownWindow            = errors.New("unknown leaderboard window")
	ErrSnapshotNotFound         = errors.New("leaderboard snapshot not found")
	ErrLedgerUnavailable        = errors.New("ledger rejected or did not confirm batch")
	ErrDownstreamDegraded       = errors.New("downstream view out of date")
	ErrIdempotencyKeyConflict   = errors.New("idempotency key reused with different request")
	ErrRepositoryInvariantBroke = errors.New("repository invariant violated")
)
