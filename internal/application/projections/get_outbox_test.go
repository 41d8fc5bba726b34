package projections

import (
	"context"
	"errors"
	"testing"
	"time"

	"mytube/internal/domain/outbox"
)

type mockOutboxStore struct {
	pending, failed []outbox.Entry
	err             error
	limits          []int
}

func (m *mockOutboxStore) ListPending(_ context.Context, limit int) ([]outbox.Entry, error) {
	m.limits = append(m.limits, limit)
	return m.pending, m.err
}

func (m *mockOutboxStore) ListFailed(_ context.Context, limit int) ([]outbox.Entry, error) {
	m.limits = append(m.limits, limit)
	return m.failed, m.err
}

func TestQueryGetOutbox(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &mockOutboxStore{
		pending: []outbox.Entry{{
			ID: "o1", Payload: `{"to":["parent@example.com"],"subject":"Kids TV: session finished (4 of 4)"}`,
			Status: outbox.StatusRetrying, Attempts: 1, MaxAttempts: 5, CreatedAt: created, ErrorMessage: "timeout",
		}},
		failed: []outbox.Entry{{ID: "o2", Payload: "not json", Status: outbox.StatusFailed, Attempts: 5, MaxAttempts: 5, CreatedAt: created}},
	}

	res, err := QueryGetOutbox(context.Background(), GetOutboxQuery{}, GetOutboxDeps{Outbox: store})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Pending) != 1 || len(res.Failed) != 1 {
		t.Fatalf("result = %+v", res)
	}
	p := res.Pending[0]
	if p.Subject != "Kids TV: session finished (4 of 4)" || p.Attempts != "1/5" || p.LastError != "timeout" {
		t.Errorf("pending row = %+v", p)
	}
	if res.Failed[0].Subject != "" || res.Failed[0].Attempts != "5/5" {
		t.Errorf("failed row = %+v", res.Failed[0])
	}
	if store.limits[0] != DefaultOutboxLimit {
		t.Errorf("limit = %d, want default", store.limits[0])
	}
}

func TestQueryGetOutbox_Empty(t *testing.T) {
	res, err := QueryGetOutbox(context.Background(), GetOutboxQuery{Limit: 3}, GetOutboxDeps{Outbox: &mockOutboxStore{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Pending == nil || res.Failed == nil {
		t.Error("lists should be empty, not nil")
	}
}

func TestQueryGetOutbox_StoreError(t *testing.T) {
	_, err := QueryGetOutbox(context.Background(), GetOutboxQuery{}, GetOutboxDeps{Outbox: &mockOutboxStore{err: errors.New("db")}})
	if err == nil {
		t.Error("expected error")
	}
}
