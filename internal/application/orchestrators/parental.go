package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"mytube/internal/domain/parental"
)

// ParentalGuardStore persists PIN lockout state.
type ParentalGuardStore interface {
	Load(ctx context.Context) (parental.Guard, error)
	Save(ctx context.Context, g parental.Guard) error
}

// ParentalSessionStore issues and revokes parental session tokens.
type ParentalSessionStore interface {
	Create(role string) (string, error)
	Delete(token string)
}

// ParentalDeps holds dependencies for the parental operations.
type ParentalDeps struct {
	PINHash    string
	GuardStore ParentalGuardStore
	Sessions   ParentalSessionStore
	Now        func() time.Time
}

// UnlockParentalInput carries the PIN typed by the guardian.
type UnlockParentalInput struct {
	PIN string
}

// UnlockParentalResult carries the new session token.
type UnlockParentalResult struct {
	Token       string
	PINRequired bool
}

// ExecuteUnlockParental verifies the PIN and opens a parental session.
// PRE: deps.Sessions is set; deps.GuardStore is set when a PIN is configured
// POST: on success a guardian session exists; failures are counted and
// repeated failures lock the panel (parental.ErrLockedOut)
func ExecuteUnlockParental(ctx context.Context, input UnlockParentalInput, deps ParentalDeps) (UnlockParentalResult, error) {
	if deps.Sessions == nil {
		return UnlockParentalResult{}, errors.New("session store is required")
	}
	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}

	if deps.PINHash != "" {
		if deps.GuardStore == nil {
			return UnlockParentalResult{}, errors.New("guard store is required")
		}
		guard, err := deps.GuardStore.Load(ctx)
		if err != nil {
			return UnlockParentalResult{}, err
		}
		guard.PINHash = deps.PINHash

		checkErr := guard.Check(input.PIN, now())
		if err := deps.GuardStore.Save(ctx, guard); err != nil {
			slog.Error("parental_event", "event", "guard_save_failed", "error", err)
		}
		if checkErr != nil {
			slog.Warn("parental_event", "event", "unlock_rejected", "reason", checkErr.Error(), "failed_attempts", guard.FailedAttempts)
			return UnlockParentalResult{PINRequired: true}, checkErr
		}
	}

	token, err := deps.Sessions.Create(parental.RoleGuardian)
	if err != nil {
		return UnlockParentalResult{}, err
	}
	slog.Info("parental_event", "event", "unlocked", "pin_required", deps.PINHash != "")
	return UnlockParentalResult{Token: token, PINRequired: deps.PINHash != ""}, nil
}

// LockParentalInput names the session to close.
type LockParentalInput struct {
	Token string
}

// ExecuteLockParental closes a parental session.
// PRE: deps.Sessions is set
// POST: the token no longer grants access
func ExecuteLockParental(_ context.Context, input LockParentalInput, deps ParentalDeps) {
	if input.Token == "" || deps.Sessions == nil {
		return
	}
	deps.Sessions.Delete(input.Token)
	slog.Info("parental_event", "event", "locked")
}
