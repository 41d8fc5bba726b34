package orchestrators

import (
	"context"
	"errors"
	"testing"
	"time"

	emailAdapter "mytube/internal/adapters/email"
	domain "mytube/internal/domain/outbox"
)

// mockOutboxStore is an in-memory outbox.
// PRE: none
// POST: entries reflects every Save
type mockOutboxStore struct {
	entries map[string]domain.Entry
	order   []string
}

func newMockOutboxStore() *mockOutboxStore {
	return &mockOutboxStore{entries: map[string]domain.Entry{}}
}

func (m *mockOutboxStore) GetByID(_ context.Context, id string) (domain.Entry, error) {
	e, ok := m.entries[id]
	if !ok {
		return domain.Entry{}, domain.ErrNotFound
	}
	return e, nil
}

func (m *mockOutboxStore) Save(_ context.Context, e domain.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if _, ok := m.entries[e.ID]; !ok {
		m.order = append(m.order, e.ID)
	}
	m.entries[e.ID] = e
	return nil
}

func (m *mockOutboxStore) ListPending(_ context.Context, limit int) ([]domain.Entry, error) {
	var out []domain.Entry
	for _, id := range m.order {
		e := m.entries[id]
		if (e.Status == domain.StatusPending || e.Status == domain.StatusRetrying) && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockOutboxStore) ListDue(_ context.Context, now time.Time, limit int) ([]domain.Entry, error) {
	var out []domain.Entry
	for _, id := range m.order {
		e := m.entries[id]
		if !e.CanRetry() || e.NextAttemptAt.After(now) {
			continue
		}
		if len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockOutboxStore) ListFailed(_ context.Context, limit int) ([]domain.Entry, error) {
	var out []domain.Entry
	for _, id := range m.order {
		if e := m.entries[id]; e.Status == domain.StatusFailed && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestProcessor(store *mockOutboxStore, sender emailAdapter.Sender, c *clock) *OutboxProcessor {
	return NewOutboxProcessor(OutboxDeps{Store: store, Sender: sender, GenerateID: fixedID, Now: c.now})
}

var queuedRequest = emailAdapter.SendRequest{
	To:      []string{"parent@example.com"},
	Subject: "Kids TV: session finished (4 of 4)",
	HTML:    "<p>done</p>",
	ReplyTo: "home@example.com",
}

func TestOutboxProcessor_Enqueue(t *testing.T) {
	store := newMockOutboxStore()
	p := newTestProcessor(store, &mockSender{}, &clock{fixedTime})

	if err := p.Enqueue(context.Background(), queuedRequest, errors.New("provider down")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	e, err := store.GetByID(context.Background(), fixedID())
	if err != nil {
		t.Fatalf("entry not saved: %v", err)
	}
	if e.Status != domain.StatusRetrying || e.Attempts != 1 || e.ErrorMessage != "provider down" {
		t.Errorf("entry = %+v", e)
	}
	if !e.LastAttemptedAt.Equal(fixedTime) || e.ActionType != domain.ActionGuardianEmail {
		t.Errorf("entry = %+v", e)
	}
	if want := fixedTime.Add(time.Minute); !e.NextAttemptAt.Equal(want) {
		t.Errorf("NextAttemptAt = %v, want %v", e.NextAttemptAt, want)
	}
}

// TestOutboxProcessor_RespectsBackoff tests that entries wait out their delay.
func TestOutboxProcessor_RespectsBackoff(t *testing.T) {
	store := newMockOutboxStore()
	sender := &mockSender{}
	c := &clock{fixedTime}
	p := newTestProcessor(store, sender, c)
	p.Enqueue(context.Background(), queuedRequest, errors.New("down"))

	c.t = fixedTime.Add(30 * time.Second)
	sent, err := p.ProcessPending(context.Background())
	if err != nil || sent != 0 || sender.count() != 0 {
		t.Fatalf("early run: sent=%d err=%v calls=%d", sent, err, sender.count())
	}

	c.t = fixedTime.Add(time.Minute)
	sent, err = p.ProcessPending(context.Background())
	if err != nil || sent != 1 {
		t.Fatalf("due run: sent=%d err=%v", sent, err)
	}
	got := sender.sent[0]
	if got.Subject != queuedRequest.Subject || got.ReplyTo != "home@example.com" || got.To[0] != "parent@example.com" {
		t.Errorf("replayed request = %+v", got)
	}
	e, _ := store.GetByID(context.Background(), fixedID())
	if e.Status != domain.StatusDone || e.Attempts != 2 || e.MessageID == "" {
		t.Errorf("entry = %+v", e)
	}
}

// TestOutboxProcessor_GivesUp tests that an entry fails after its last attempt.
func TestOutboxProcessor_GivesUp(t *testing.T) {
	store := newMockOutboxStore()
	sender := &mockSender{err: errors.New("still down")}
	c := &clock{fixedTime}
	p := newTestProcessor(store, sender, c)
	p.Enqueue(context.Background(), queuedRequest, errors.New("down"))

	for i := 0; i < domain.DefaultMaxAttempts; i++ {
		c.t = c.t.Add(2 * time.Hour)
		if _, err := p.ProcessPending(context.Background()); err != nil {
			t.Fatalf("ProcessPending: %v", err)
		}
	}
	e, _ := store.GetByID(context.Background(), fixedID())
	if e.Status != domain.StatusFailed || e.Attempts != domain.DefaultMaxAttempts {
		t.Errorf("entry = %+v", e)
	}
	if got := sender.count(); got != domain.DefaultMaxAttempts-1 {
		t.Errorf("send calls = %d, want %d", got, domain.DefaultMaxAttempts-1)
	}
}

func TestOutboxProcessor_ProcessSingleAndAbandon(t *testing.T) {
	store := newMockOutboxStore()
	sender := &mockSender{err: errors.New("down")}
	p := newTestProcessor(store, sender, &clock{fixedTime})
	ctx := context.Background()
	p.Enqueue(ctx, queuedRequest, errors.New("down"))

	if err := p.ProcessSingle(ctx, fixedID()); err == nil {
		t.Error("expected error when delivery fails again")
	}
	if err := p.AbandonEntry(ctx, fixedID()); err != nil {
		t.Fatalf("AbandonEntry: %v", err)
	}
	if err := p.ProcessSingle(ctx, fixedID()); !errors.Is(err, domain.ErrTerminal) {
		t.Errorf("retry after abandon err = %v, want ErrTerminal", err)
	}
	if err := p.ProcessSingle(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing entry err = %v", err)
	}
}

// TestOutboxProcessor_WaitingEntriesDoNotBlockDueOnes tests that a full batch
// of entries still in backoff leaves room for an older queue's due entry.
func TestOutboxProcessor_WaitingEntriesDoNotBlockDueOnes(t *testing.T) {
	store := newMockOutboxStore()
	sender := &mockSender{}
	c := &clock{fixedTime}
	p := newTestProcessor(store, sender, c)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		waiting := domain.Entry{
			ID:              "waiting-" + string(rune('a'+i)),
			ActionType:      domain.ActionGuardianEmail,
			Payload:         `{"to":["parent@example.com"],"subject":"waiting"}`,
			Status:          domain.StatusRetrying,
			Attempts:        4,
			MaxAttempts:     domain.DefaultMaxAttempts,
			CreatedAt:       fixedTime.Add(-2 * time.Hour),
			LastAttemptedAt: fixedTime,
			NextAttemptAt:   fixedTime.Add(time.Hour),
		}
		if err := store.Save(ctx, waiting); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	p.deps.GenerateID = func() string { return "due" }
	if err := p.Enqueue(ctx, queuedRequest, errors.New("down")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	c.t = fixedTime.Add(time.Minute)
	sent, err := p.ProcessPending(ctx)
	if err != nil || sent != 1 {
		t.Fatalf("sent=%d err=%v, want 1 delivery", sent, err)
	}
	if e, _ := store.GetByID(ctx, "due"); e.Status != domain.StatusDone {
		t.Errorf("due entry status = %s, want done", e.Status)
	}
	if got := sender.count(); got != 1 {
		t.Errorf("send calls = %d, want 1", got)
	}
}

// TestOutboxProcessor_AbandonDelivered tests that a delivered entry keeps its record.
func TestOutboxProcessor_AbandonDelivered(t *testing.T) {
	store := newMockOutboxStore()
	p := newTestProcessor(store, &mockSender{}, &clock{fixedTime})
	ctx := context.Background()
	p.Enqueue(ctx, queuedRequest, errors.New("down"))

	if err := p.ProcessSingle(ctx, fixedID()); err != nil {
		t.Fatalf("ProcessSingle: %v", err)
	}
	if err := p.AbandonEntry(ctx, fixedID()); !errors.Is(err, domain.ErrTerminal) {
		t.Errorf("abandon after delivery err = %v, want ErrTerminal", err)
	}
	e, _ := store.GetByID(ctx, fixedID())
	if e.Status != domain.StatusDone || e.MessageID == "" {
		t.Errorf("entry = %+v", e)
	}
}
