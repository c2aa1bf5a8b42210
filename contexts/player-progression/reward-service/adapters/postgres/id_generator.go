package postgresadapter

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UUIDGenerator issues random v4 identifiers for events and snapshots.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
