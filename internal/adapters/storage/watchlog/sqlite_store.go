package watchlog

import (
	"context"
	"time"

	"mytube/internal/adapters/storage"
	domain "mytube/internal/domain/watchlog"
)

// Fixed width and always UTC so that text ordering matches time ordering.
const dateLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// Compile-time check that *SQLiteStore satisfies Store.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new watch history store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Save persists a watch event.
// PRE: event is valid
// POST: Event is persisted
func (s *SQLiteStore) Save(ctx context.Context, event domain.Event) error {
	if err := event.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO watch_event (id, occurred_at, action, clip_index, clip_name, counter, max_videos)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.OccurredAt.UTC().Format(dateLayout), string(event.Action),
		event.ClipIndex, event.ClipName, event.Counter, event.MaxVideos)
	return err
}

// ListRecent returns the newest events first.
// PRE: limit > 0
// POST: Returns at most limit events ordered by occurred_at desc
// INVARIANT: Store state is not mutated
func (s *SQLiteStore) ListRecent(ctx context.Context, limit int) ([]domain.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, occurred_at, action, clip_index, clip_name, counter, max_videos
		 FROM watch_event
		 ORDER BY occurred_at DESC, rowid DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Event{}
	for rows.Next() {
		e, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountSince counts events of one action at or after since.
// PRE: none
// POST: Returns the number of matching events
// INVARIANT: Store state is not mutated
func (s *SQLiteStore) CountSince(ctx context.Context, action domain.Action, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM watch_event WHERE action = ? AND occurred_at >= ?`,
		string(action), since.UTC().Format(dateLayout)).Scan(&n)
	return n, err
}

func scanEvent(scan func(dest ...any) error) (domain.Event, error) {
	var e domain.Event
	var occurredAt, action string
	if err := scan(&e.ID, &occurredAt, &action, &e.ClipIndex, &e.ClipName, &e.Counter, &e.MaxVideos); err != nil {
		return domain.Event{}, err
	}
	e.Action = domain.Action(action)
	e.OccurredAt, _ = time.Parse(dateLayout, occurredAt)
	return e, nil
}
