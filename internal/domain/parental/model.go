package parental

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Lockout policy for wrong PIN entries.
const (
	MaxFailedAttempts = 5
	LockoutDuration   = 5 * time.Minute
	MinPINLength      = 4
	pinHashCost       = 12
)

// Domain errors
var (
	ErrPINTooShort = errors.New("PIN must be at least 4 characters")
	ErrInvalidPIN  = errors.New("incorrect PIN")
	ErrLockedOut   = errors.New("too many wrong PINs, try again later")
)

// RoleGuardian is the session role granted by a correct PIN.
const RoleGuardian = "guardian"

// Guard holds the guardian PIN and its failed-attempt state.
// A Guard with an empty PINHash protects nothing.
type Guard struct {
	PINHash        string
	FailedAttempts int
	LockedUntil    time.Time
}

// HashPIN returns a bcrypt hash suitable for the pin_hash setting.
// PRE: pin has at least MinPINLength characters
// POST: returns a bcrypt hash of pin
func HashPIN(pin string) (string, error) {
	if len(pin) < MinPINLength {
		return "", ErrPINTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), pinHashCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Enabled reports whether a PIN is configured.
func (g *Guard) Enabled() bool {
	return g.PINHash != ""
}

// IsLocked returns true while the lockout window is open.
// INVARIANT: Guard fields are not mutated
func (g *Guard) IsLocked(now time.Time) bool {
	if g.LockedUntil.IsZero() {
		return false
	}
	return now.Before(g.LockedUntil)
}

// Check verifies a PIN, tracking failures.
// PRE: Enabled()
// POST: on success failures are cleared; after MaxFailedAttempts failures
// LockedUntil is set and ErrLockedOut is returned until it passes
func (g *Guard) Check(pin string, now time.Time) error {
	if g.IsLocked(now) {
		return ErrLockedOut
	}
	if err := bcrypt.CompareHashAndPassword([]byte(g.PINHash), []byte(pin)); err != nil {
		g.FailedAttempts++
		if g.FailedAttempts >= MaxFailedAttempts {
			g.LockedUntil = now.Add(LockoutDuration)
			g.FailedAttempts = 0
			return ErrLockedOut
		}
		return ErrInvalidPIN
	}
	g.FailedAttempts = 0
	g.LockedUntil = time.Time{}
	return nil
}
