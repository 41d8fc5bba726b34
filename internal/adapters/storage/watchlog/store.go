package watchlog

import (
	"context"
	"time"

	domain "mytube/internal/domain/watchlog"
)

// Store persists watch history events.
type Store interface {
	Save(ctx context.Context, event domain.Event) error
	ListRecent(ctx context.Context, limit int) ([]domain.Event, error)
	CountSince(ctx context.Context, action domain.Action, since time.Time) (int, error)
}
