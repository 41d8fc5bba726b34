package progress

import (
	"context"
	"errors"

	domain "mytube/internal/domain/progress"
)

// Errors returned by Load. Callers fall back to a default session on both.
var (
	ErrNotFound = errors.New("session state file not found")
	ErrCorrupt  = errors.New("session state file is not valid JSON")
)

// Store persists the session progress.
type Store interface {
	Load(ctx context.Context) (domain.Progress, error)
	Save(ctx context.Context, value domain.Progress) error
	Last() domain.Progress
}
