package parental

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"mytube/internal/adapters/storage"
	domain "mytube/internal/domain/parental"
)

// SQLiteStore implements Store using the single-row parental_guard table.
type SQLiteStore struct {
	db storage.SQLDB
}

// Compile-time check that *SQLiteStore satisfies Store.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new lockout store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Load returns the stored lockout state with an empty PINHash.
// PRE: none
// POST: Returns the zero Guard when nothing has been stored
func (s *SQLiteStore) Load(ctx context.Context) (domain.Guard, error) {
	var g domain.Guard
	var lockedUntil string
	err := s.db.QueryRowContext(ctx,
		`SELECT failed_attempts, locked_until FROM parental_guard WHERE id = 1`).Scan(&g.FailedAttempts, &lockedUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Guard{}, nil
	}
	if err != nil {
		return domain.Guard{}, err
	}
	if lockedUntil != "" {
		g.LockedUntil, err = time.Parse(time.RFC3339, lockedUntil)
		if err != nil {
			return domain.Guard{}, err
		}
	}
	return g, nil
}

// Save stores the failed-attempt count and lockout deadline.
// PRE: g.FailedAttempts >= 0
// POST: The single row holds g's counters
func (s *SQLiteStore) Save(ctx context.Context, g domain.Guard) error {
	var lockedUntil string
	if !g.LockedUntil.IsZero() {
		lockedUntil = g.LockedUntil.UTC().Format(time.RFC3339)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO parental_guard (id, failed_attempts, locked_until) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET failed_attempts = excluded.failed_attempts, locked_until = excluded.locked_until`,
		g.FailedAttempts, lockedUntil)
	return err
}
