// Package ledger implements the outbound HTTP client settling reward batches
// against the external XP ledger.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	domainerrors "questline/contexts/player-progression/reward-service/domain/errors"
	"questline/contexts/player-progression/reward-service/ports"
	eventsv1 "questline/contracts/gen/events/v1"
)

const (
	rewardGrantedEventType = "reward.granted"
	sourceService          = "reward-service"
	schemaVersion          = 1
)

type intentData struct {
	UserID     string    `json:"user_id"`
	ActionID   string    `json:"action_id"`
	Amount     int64     `json:"amount"`
	OccurredAt time.Time `json:"occurred_at"`
}

type batchRequest struct {
	Items []eventsv1.Envelope `json:"items"`
}

// Client posts reward batches to the ledger as canonical event envelopes.
// The ledger deduplicates on event_id, so redelivery after a timeout is safe.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

var _ ports.LedgerClient = (*Client)(nil)

func (c *Client) SubmitRewardBatch(ctx context.Context, intents []ports.SyncIntent) error {
	if len(intents) == 0 {
		return nil
	}

	payload := batchRequest{Items: make([]eventsv1.Envelope, 0, len(intents))}
	for _, intent := range intents {
		data, err := json.Marshal(intentData{
			UserID:     intent.UserID,
			ActionID:   intent.ActionID,
			Amount:     intent.Amount,
			OccurredAt: intent.OccurredAt.UTC(),
		})
		if err != nil {
			return err
		}
		payload.Items = append(payload.Items, eventsv1.Envelope{
			EventID:          intent.EventID,
			EventType:        rewardGrantedEventType,
			OccurredAt:       intent.OccurredAt.UTC(),
			SourceService:    sourceService,
			SchemaVersion:    schemaVersion,
			PartitionKeyPath: "user_id",
			PartitionKey:     intent.UserID,
			Data:             data,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/reward-batches", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domainerrors.ErrLedgerUnavailable, err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("ledger rejected batch",
			"event", "ledger_batch_rejected",
			"module", "player-progression/reward-service",
			"layer", "adapter",
			"status", resp.StatusCode,
			"batch_size", len(intents),
		)
		return fmt.Errorf("%w: status %d", domainerrors.ErrLedgerUnavailable, resp.StatusCode)
	}
	return nil
}
