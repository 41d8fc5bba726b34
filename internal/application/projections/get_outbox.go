package projections

import (
	"context"
	"encoding/json"
	"fmt"

	"mytube/internal/domain/outbox"
)

// DefaultOutboxLimit bounds each list of the outbox view.
const DefaultOutboxLimit = 20

// OutboxStore reads queued notifications.
type OutboxStore interface {
	ListPending(ctx context.Context, limit int) ([]outbox.Entry, error)
	ListFailed(ctx context.Context, limit int) ([]outbox.Entry, error)
}

// GetOutboxQuery carries input for the outbox projection.
type GetOutboxQuery struct {
	Limit int
}

// GetOutboxDeps holds dependencies for the outbox projection.
type GetOutboxDeps struct {
	Outbox OutboxStore
}

// OutboxRow is one queued notification without its recipients.
type OutboxRow struct {
	ID        string `json:"id"`
	Subject   string `json:"subject"`
	Status    string `json:"status"`
	Attempts  string `json:"attempts"`
	QueuedAt  string `json:"queued_at"`
	LastError string `json:"last_error,omitempty"`
}

// GetOutboxResult carries the output of the outbox projection.
type GetOutboxResult struct {
	Pending []OutboxRow `json:"pending"`
	Failed  []OutboxRow `json:"failed"`
}

// QueryGetOutbox lists notifications that are waiting for a retry or gave up.
// PRE: deps.Outbox is set
// POST: each list holds at most query.Limit rows (DefaultOutboxLimit when not positive)
func QueryGetOutbox(ctx context.Context, query GetOutboxQuery, deps GetOutboxDeps) (GetOutboxResult, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = DefaultOutboxLimit
	}
	pending, err := deps.Outbox.ListPending(ctx, limit)
	if err != nil {
		return GetOutboxResult{}, err
	}
	failed, err := deps.Outbox.ListFailed(ctx, limit)
	if err != nil {
		return GetOutboxResult{}, err
	}
	return GetOutboxResult{Pending: outboxRows(pending), Failed: outboxRows(failed)}, nil
}

func outboxRows(entries []outbox.Entry) []OutboxRow {
	rows := make([]OutboxRow, 0, len(entries))
	for _, e := range entries {
		var payload struct {
			Subject string `json:"subject"`
		}
		json.Unmarshal([]byte(e.Payload), &payload)
		rows = append(rows, OutboxRow{
			ID:        e.ID,
			Subject:   payload.Subject,
			Status:    e.Status,
			Attempts:  fmt.Sprintf("%d/%d", e.Attempts, e.MaxAttempts),
			QueuedAt:  e.CreatedAt.Local().Format("Mon 15:04"),
			LastError: e.ErrorMessage,
		})
	}
	return rows
}
