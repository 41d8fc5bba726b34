package parental

import (
	"context"

	domain "mytube/internal/domain/parental"
)

// Store persists the PIN lockout state. The PIN hash itself lives in config.
type Store interface {
	Load(ctx context.Context) (domain.Guard, error)
	Save(ctx context.Context, g domain.Guard) error
}
