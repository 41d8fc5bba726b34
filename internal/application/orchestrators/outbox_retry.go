package orchestrators

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	emailAdapter "mytube/internal/adapters/email"
	outboxStore "mytube/internal/adapters/storage/outbox"
	domain "mytube/internal/domain/outbox"
)

// OutboxDeps holds dependencies for the outbox processor.
type OutboxDeps struct {
	Store      outboxStore.Store
	Sender     emailAdapter.Sender
	GenerateID func() string
	Now        func() time.Time
}

// OutboxProcessor retries guardian emails whose first delivery failed.
type OutboxProcessor struct {
	deps      OutboxDeps
	baseDelay time.Duration
	maxDelay  time.Duration
	batchSize int
}

// NewOutboxProcessor creates a new outbox processor.
// PRE: deps.Store and deps.Sender are set
func NewOutboxProcessor(deps OutboxDeps) *OutboxProcessor {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.GenerateID == nil {
		deps.GenerateID = func() string { return uuid.New().String() }
	}
	return &OutboxProcessor{
		deps:      deps,
		baseDelay: 30 * time.Second,
		maxDelay:  1 * time.Hour,
		batchSize: 10,
	}
}

// emailPayload is the stored form of a queued message.
type emailPayload struct {
	To      []string `json:"to"`
	From    string   `json:"from,omitempty"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	ReplyTo string   `json:"reply_to,omitempty"`
}

// Enqueue stores a message whose delivery just failed. The failed delivery
// counts as the first attempt.
// PRE: req is a complete SendRequest; cause is the delivery error
// POST: one retrying entry is persisted
func (p *OutboxProcessor) Enqueue(ctx context.Context, req emailAdapter.SendRequest, cause error) error {
	payload, err := json.Marshal(emailPayload{
		To: req.To, From: req.From, Subject: req.Subject, HTML: req.HTML, ReplyTo: req.ReplyTo,
	})
	if err != nil {
		return fmt.Errorf("encode outbox payload: %w", err)
	}
	now := p.deps.Now()
	entry := domain.Entry{
		ID:          p.deps.GenerateID(),
		ActionType:  domain.ActionGuardianEmail,
		Payload:     string(payload),
		Status:      domain.StatusPending,
		MaxAttempts: domain.DefaultMaxAttempts,
		CreatedAt:   now,
	}
	entry.MarkAttempt(now)
	if cause == nil {
		cause = errors.New("delivery failed")
	}
	entry.MarkFailed(cause)
	entry.ScheduleRetry(p.baseDelay, p.maxDelay)
	if err := p.deps.Store.Save(ctx, entry); err != nil {
		return err
	}
	slog.Info("outbox_event", "event", "queued", "entry_id", entry.ID, "action_type", entry.ActionType)
	return nil
}

// ProcessPending delivers up to one batch of entries whose backoff has
// elapsed. Entries still waiting do not take up room in the batch.
// PRE: Context is valid
// POST: due entries are attempted once each; returns how many were delivered
func (p *OutboxProcessor) ProcessPending(ctx context.Context) (int, error) {
	entries, err := p.deps.Store.ListDue(ctx, p.deps.Now(), p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list due outbox entries: %w", err)
	}

	sent := 0
	for _, entry := range entries {
		ok, err := p.attempt(ctx, entry)
		if err != nil {
			slog.Error("outbox_process_failed", "entry_id", entry.ID, "error", err.Error())
			continue
		}
		if ok {
			sent++
		}
	}
	return sent, nil
}

// ProcessSingle retries one entry now, ignoring its backoff.
// PRE: entryID is non-empty
// POST: Entry is attempted and its status saved
func (p *OutboxProcessor) ProcessSingle(ctx context.Context, entryID string) error {
	entry, err := p.deps.Store.GetByID(ctx, entryID)
	if err != nil {
		return fmt.Errorf("get outbox entry: %w", err)
	}
	if !entry.CanRetry() {
		return domain.ErrTerminal
	}
	ok, err := p.attempt(ctx, entry)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("delivery failed again")
	}
	return nil
}

// AbandonEntry stops retrying an entry.
// PRE: entryID is non-empty
// POST: a retryable entry is abandoned; a finished entry is left as is and
// ErrTerminal is returned
func (p *OutboxProcessor) AbandonEntry(ctx context.Context, entryID string) error {
	entry, err := p.deps.Store.GetByID(ctx, entryID)
	if err != nil {
		return fmt.Errorf("get outbox entry: %w", err)
	}
	if entry.IsTerminal() {
		return domain.ErrTerminal
	}
	entry.MarkAbandoned()
	return p.deps.Store.Save(ctx, entry)
}

// attempt sends one entry and saves the outcome. It reports whether the
// message was delivered; err is only for unreadable or unsaved entries.
func (p *OutboxProcessor) attempt(ctx context.Context, entry domain.Entry) (bool, error) {
	entry.MarkAttempt(p.deps.Now())

	var sendErr error
	var messageID string
	switch entry.ActionType {
	case domain.ActionGuardianEmail:
		messageID, sendErr = p.sendEmail(ctx, entry.Payload)
	default:
		sendErr = fmt.Errorf("unknown action type: %s", entry.ActionType)
	}

	if sendErr != nil {
		entry.MarkFailed(sendErr)
		entry.ScheduleRetry(p.baseDelay, p.maxDelay)
		slog.Warn("outbox_event", "event", "attempt_failed", "entry_id", entry.ID, "attempt", entry.Attempts, "status", entry.Status, "error", sendErr.Error())
	} else {
		entry.MarkSuccess(messageID)
		slog.Info("outbox_event", "event", "delivered", "entry_id", entry.ID, "attempt", entry.Attempts, "message_id", messageID)
	}
	if err := p.deps.Store.Save(ctx, entry); err != nil {
		return false, err
	}
	return sendErr == nil, nil
}

func (p *OutboxProcessor) sendEmail(ctx context.Context, payload string) (string, error) {
	var msg emailPayload
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return "", fmt.Errorf("unmarshal payload: %w", err)
	}
	res, err := p.deps.Sender.Send(ctx, emailAdapter.SendRequest{
		To: msg.To, From: msg.From, Subject: msg.Subject, HTML: msg.HTML, ReplyTo: msg.ReplyTo,
	})
	if err != nil {
		return "", err
	}
	return res.MessageID, nil
}

// StartBackgroundWorker starts a background goroutine that periodically processes pending outbox entries.
// PRE: stopCh is provided to signal shutdown
// POST: Worker runs until stopCh is closed
func StartBackgroundWorker(processor *OutboxProcessor, interval time.Duration, stopCh <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
				if _, err := processor.ProcessPending(ctx); err != nil {
					slog.Error("outbox_background_process_failed", "error", err.Error())
				}
				cancel()
			case <-stopCh:
				slog.Info("outbox_background_worker_stopped")
				return
			}
		}
	}()
}
