package orchestrators

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	emailAdapter "mytube/internal/adapters/email"
	"mytube/internal/domain/progress"
)

type mockSender struct {
	mu   sync.Mutex
	sent []emailAdapter.SendRequest
	err  error
}

func (m *mockSender) Send(_ context.Context, req emailAdapter.SendRequest) (emailAdapter.SendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, req)
	if m.err != nil {
		return emailAdapter.SendResult{}, m.err
	}
	return emailAdapter.SendResult{MessageID: "msg-1"}, nil
}

func (m *mockSender) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// TestExecuteNotifySessionComplete tests the summary email.
func TestExecuteNotifySessionComplete(t *testing.T) {
	sender := &mockSender{}
	err := ExecuteNotifySessionComplete(context.Background(), NotifySessionCompleteInput{
		Progress:    *stateOf(2, []int{0, 1}, 2),
		ClipNames:   []string{"cats", "<dogs>"},
		CompletedAt: fixedTime,
	}, NotifyDeps{Sender: sender, GuardianEmail: "parent@example.com", Title: "Kids TV"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d emails, want 1", len(sender.sent))
	}
	req := sender.sent[0]
	if req.To[0] != "parent@example.com" {
		t.Errorf("to = %v", req.To)
	}
	if req.Subject != "Kids TV: session finished (2 of 2)" {
		t.Errorf("subject = %q", req.Subject)
	}
	if !strings.Contains(req.HTML, "&lt;dogs&gt;") || strings.Contains(req.HTML, "<dogs>") {
		t.Errorf("clip names not escaped: %s", req.HTML)
	}
}

// TestExecuteNotifySessionComplete_NoGuardian tests the no-op path.
func TestExecuteNotifySessionComplete_NoGuardian(t *testing.T) {
	if err := ExecuteNotifySessionComplete(context.Background(), NotifySessionCompleteInput{}, NotifyDeps{}); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

// TestGuardianNotifier_OncePerSession tests dedupe and rearm.
func TestGuardianNotifier_OncePerSession(t *testing.T) {
	sender := &mockSender{}
	n := NewGuardianNotifier(NotifyDeps{Sender: sender, GuardianEmail: "parent@example.com"}, testCatalog("a", "b"), fixedNow)
	p := *stateOf(2, []int{0, 1}, 2)

	n.SessionComplete(context.Background(), p)
	n.SessionComplete(context.Background(), p)
	n.Wait()
	if got := sender.count(); got != 1 {
		t.Fatalf("sent %d, want 1", got)
	}
	if !strings.Contains(sender.sent[0].HTML, "<li>b</li>") {
		t.Errorf("missing clip name: %s", sender.sent[0].HTML)
	}

	n.Rearm()
	n.SessionComplete(context.Background(), p)
	n.Wait()
	if got := sender.count(); got != 2 {
		t.Errorf("sent %d after rearm, want 2", got)
	}
}

// TestGuardianNotifier_FailureRearms tests that a failed send can be retried.
func TestGuardianNotifier_FailureRearms(t *testing.T) {
	sender := &mockSender{err: errors.New("provider down")}
	n := NewGuardianNotifier(NotifyDeps{Sender: sender, GuardianEmail: "parent@example.com"}, nil, fixedNow)
	p := progress.Default(1)
	p.Counter = 1

	n.SessionComplete(context.Background(), p)
	n.Wait()
	n.SessionComplete(context.Background(), p)
	n.Wait()
	if got := sender.count(); got != 2 {
		t.Errorf("sent %d, want 2", got)
	}
}

// TestGuardianNotifier_CancelledRequest tests that sends outlive the request.
func TestGuardianNotifier_CancelledRequest(t *testing.T) {
	sender := &mockSender{}
	n := NewGuardianNotifier(NotifyDeps{Sender: sender, GuardianEmail: "parent@example.com"}, nil, fixedNow)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n.SessionComplete(ctx, *stateOf(1, []int{0}, 1))
	n.Wait()
	if got := sender.count(); got != 1 {
		t.Errorf("sent %d, want 1", got)
	}
}

// mockQueue records queued messages.
// PRE: none
// POST: queued holds every enqueued request
type mockQueue struct {
	queued []emailAdapter.SendRequest
	err    error
}

func (m *mockQueue) Enqueue(_ context.Context, req emailAdapter.SendRequest, _ error) error {
	if m.err != nil {
		return m.err
	}
	m.queued = append(m.queued, req)
	return nil
}

// TestExecuteNotifySessionComplete_QueuesFailure tests the outbox fallback.
func TestExecuteNotifySessionComplete_QueuesFailure(t *testing.T) {
	sender := &mockSender{err: errors.New("provider down")}
	queue := &mockQueue{}
	err := ExecuteNotifySessionComplete(context.Background(), NotifySessionCompleteInput{
		Progress: *stateOf(1, []int{0}, 1),
	}, NotifyDeps{Sender: sender, Outbox: queue, GuardianEmail: "parent@example.com", ReplyTo: "home@example.com"})
	if err != nil {
		t.Fatalf("queued failure should not be an error: %v", err)
	}
	if len(queue.queued) != 1 || queue.queued[0].ReplyTo != "home@example.com" {
		t.Errorf("queued = %+v", queue.queued)
	}

	queue.err = errors.New("db locked")
	err = ExecuteNotifySessionComplete(context.Background(), NotifySessionCompleteInput{
		Progress: *stateOf(1, []int{0}, 1),
	}, NotifyDeps{Sender: sender, Outbox: queue, GuardianEmail: "parent@example.com"})
	if err == nil {
		t.Error("expected the send error when the queue also fails")
	}
}
