package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"sync"
	"time"

	emailAdapter "mytube/internal/adapters/email"
	"mytube/internal/domain/progress"
)

const notifyTimeout = 30 * time.Second

// NotifySessionCompleteInput describes the finished session.
type NotifySessionCompleteInput struct {
	Progress    progress.Progress
	ClipNames   []string
	CompletedAt time.Time
}

// NotificationQueue keeps a failed message for a later retry.
type NotificationQueue interface {
	Enqueue(ctx context.Context, req emailAdapter.SendRequest, cause error) error
}

// NotifyDeps holds dependencies for ExecuteNotifySessionComplete.
type NotifyDeps struct {
	Sender        emailAdapter.Sender
	Outbox        NotificationQueue // optional
	GuardianEmail string
	From          string
	ReplyTo       string
	Title         string
}

// ExecuteNotifySessionComplete emails the guardian a summary of the session.
// PRE: deps.Sender is set
// POST: one message sent to GuardianEmail, or queued on the outbox when
// delivery fails; no-op when no address is configured
func ExecuteNotifySessionComplete(ctx context.Context, input NotifySessionCompleteInput, deps NotifyDeps) error {
	if deps.GuardianEmail == "" {
		return nil
	}
	if deps.Sender == nil {
		return errors.New("email sender is required")
	}
	title := deps.Title
	if title == "" {
		title = "MyTube"
	}

	req := emailAdapter.SendRequest{
		To:      []string{deps.GuardianEmail},
		From:    deps.From,
		Subject: fmt.Sprintf("%s: session finished (%d of %d)", title, input.Progress.Counter, input.Progress.MaxVideos),
		HTML:    sessionSummaryHTML(title, input),
		ReplyTo: deps.ReplyTo,
	}
	res, err := deps.Sender.Send(ctx, req)
	if err != nil {
		if deps.Outbox != nil {
			qErr := deps.Outbox.Enqueue(context.WithoutCancel(ctx), req, err)
			if qErr == nil {
				slog.Warn("notify_event", "event", "session_complete_queued", "error", err)
				return nil
			}
			slog.Error("notify_event", "event", "queue_failed", "error", qErr)
		}
		slog.Error("notify_event", "event", "session_complete_failed", "error", err)
		return err
	}
	slog.Info("notify_event", "event", "session_complete_sent", "message_id", res.MessageID)
	return nil
}

func sessionSummaryHTML(title string, input NotifySessionCompleteInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<h2>%s</h2>", html.EscapeString(title))
	fmt.Fprintf(&b, "<p>The session finished at %s after %d of %d videos.</p>",
		html.EscapeString(input.CompletedAt.Format("15:04 on Mon 2 Jan")), input.Progress.Counter, input.Progress.MaxVideos)
	if len(input.ClipNames) > 0 {
		b.WriteString("<ol>")
		for _, name := range input.ClipNames {
			fmt.Fprintf(&b, "<li>%s</li>", html.EscapeString(name))
		}
		b.WriteString("</ol>")
	}
	return b.String()
}

// GuardianNotifier sends at most one completion email per session. It is
// rearmed when the session leaves COMPLETE through undo, reset or a new limit.
type GuardianNotifier struct {
	deps    NotifyDeps
	catalog SessionCatalog
	now     func() time.Time

	mu   sync.Mutex
	sent bool
	wg   sync.WaitGroup
}

// NewGuardianNotifier creates a notifier.
// PRE: deps.Sender is set when deps.GuardianEmail is non-empty
// POST: Returns an armed notifier
func NewGuardianNotifier(deps NotifyDeps, catalog SessionCatalog, now func() time.Time) *GuardianNotifier {
	if now == nil {
		now = time.Now
	}
	return &GuardianNotifier{deps: deps, catalog: catalog, now: now}
}

// SessionComplete sends the summary in the background unless it was already sent.
func (n *GuardianNotifier) SessionComplete(ctx context.Context, p progress.Progress) {
	if n.deps.GuardianEmail == "" {
		return
	}
	n.mu.Lock()
	if n.sent {
		n.mu.Unlock()
		return
	}
	n.sent = true
	n.mu.Unlock()

	input := NotifySessionCompleteInput{Progress: p.Clone(), CompletedAt: n.now()}
	if n.catalog != nil {
		for _, idx := range p.SeenVideos {
			if c, ok := n.catalog.Get(idx); ok {
				input.ClipNames = append(input.ClipNames, c.Name)
			}
		}
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer cancel()
		if err := ExecuteNotifySessionComplete(sendCtx, input, n.deps); err != nil {
			n.Rearm()
		}
	}()
}

// Rearm allows the next completion to send again.
func (n *GuardianNotifier) Rearm() {
	n.mu.Lock()
	n.sent = false
	n.mu.Unlock()
}

// Wait blocks until in-flight sends finish.
func (n *GuardianNotifier) Wait() {
	n.wg.Wait()
}
