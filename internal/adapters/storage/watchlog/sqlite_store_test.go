package watchlog

import (
	"context"
	"testing"
	"time"

	"mytube/internal/adapters/http/perf"
	"mytube/internal/adapters/storage"
	domain "mytube/internal/domain/watchlog"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSQLiteStore(storage.NewTimedDB(db, perf.NewCollector(100)))
}

func event(id string, at time.Time, action domain.Action, clip int) domain.Event {
	return domain.Event{ID: id, OccurredAt: at, Action: action, ClipIndex: clip, ClipName: "clip", Counter: 1, MaxVideos: 4}
}

// TestSQLiteStore_ListRecent tests newest-first ordering and the limit.
func TestSQLiteStore_ListRecent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		if err := s.Save(ctx, event(id, base.Add(time.Duration(i)*time.Minute), domain.ActionSelect, i)); err != nil {
			t.Fatalf("Save(%s): %v", id, err)
		}
	}

	got, err := s.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if got[0].ID != "c" || got[1].ID != "b" {
		t.Errorf("order = %s,%s; want c,b", got[0].ID, got[1].ID)
	}
	if !got[0].OccurredAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("OccurredAt = %v", got[0].OccurredAt)
	}
	if got[0].Action != domain.ActionSelect || got[0].ClipIndex != 2 || got[0].MaxVideos != 4 {
		t.Errorf("event = %+v", got[0])
	}
}

// TestSQLiteStore_ListRecent_Empty tests that an empty table yields an empty slice.
func TestSQLiteStore_ListRecent_Empty(t *testing.T) {
	got, err := newTestStore(t).ListRecent(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got %v, want empty non-nil slice", got)
	}
}

// TestSQLiteStore_ListRecent_MixedZones tests ordering across time zones.
func TestSQLiteStore_ListRecent_MixedZones(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	nz := time.FixedZone("NZDT", 13*3600)
	earlier := time.Date(2026, 3, 1, 22, 0, 0, 0, nz) // 09:00 UTC
	later := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	s.Save(ctx, event("late", later, domain.ActionFinish, 0))
	s.Save(ctx, event("early", earlier, domain.ActionSelect, 0))

	got, _ := s.ListRecent(ctx, 5)
	if len(got) != 2 || got[0].ID != "late" {
		t.Errorf("got %+v, want late first", got)
	}
}

// TestSQLiteStore_Save_Invalid tests that invalid events are rejected.
func TestSQLiteStore_Save_Invalid(t *testing.T) {
	s := newTestStore(t)
	if err := s.Save(context.Background(), domain.Event{Action: domain.ActionUndo}); err == nil {
		t.Error("expected validation error")
	}
}

// TestSQLiteStore_CountSince tests counting one action inside a window.
func TestSQLiteStore_CountSince(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	s.Save(ctx, event("1", base.Add(-time.Hour), domain.ActionFinish, 0))
	s.Save(ctx, event("2", base, domain.ActionFinish, 1))
	s.Save(ctx, event("3", base.Add(time.Minute), domain.ActionFinish, 2))
	s.Save(ctx, event("4", base.Add(time.Minute), domain.ActionUndo, domain.NoClip))

	n, err := s.CountSince(ctx, domain.ActionFinish, base)
	if err != nil {
		t.Fatalf("CountSince: %v", err)
	}
	if n != 2 {
		t.Errorf("CountSince = %d, want 2", n)
	}
}
