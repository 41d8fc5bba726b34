package progress

import (
	"errors"
	"fmt"
)

// Domain errors returned by Validate.
var (
	ErrNonPositiveLimit = errors.New("max videos must be positive")
	ErrCounterRange     = errors.New("counter outside [0, max videos]")
	ErrSeenOverflow     = errors.New("more seen videos than counter")
	ErrSeenIndex        = errors.New("seen video index outside catalog")
	ErrLimitTooHigh     = errors.New("max videos above MaxLimit")
)

// MaxLimit is the highest per-session limit. Larger stored or requested
// limits are lowered to it.
const MaxLimit = 100

// Progress is the persisted state of one viewing session.
// INVARIANT: 0 <= Counter <= MaxVideos, len(SeenVideos) <= Counter,
// every seen index addresses the catalog, 0 < MaxVideos <= MaxLimit.
type Progress struct {
	Counter    int   `json:"counter"`
	SeenVideos []int `json:"seenVideos"`
	MaxVideos  int   `json:"maxVideos"`
}

// Outcome tells the caller what a selection led to.
type Outcome string

const (
	OutcomePlayable         Outcome = "playable"
	OutcomeLimitReached     Outcome = "limit_reached"
	OutcomeInvalidSelection Outcome = "invalid_selection"
)

// Default returns an empty session with the given limit.
// PRE: limit > 0
// POST: Counter is 0, SeenVideos is empty and non-nil
func Default(limit int) Progress {
	return Progress{Counter: 0, SeenVideos: []int{}, MaxVideos: limit}
}

// Clone returns a copy that shares no backing array with p.
func (p Progress) Clone() Progress {
	seen := make([]int, len(p.SeenVideos))
	copy(seen, p.SeenVideos)
	p.SeenVideos = seen
	return p
}

// Equal reports whether two states hold the same values.
// INVARIANT: neither state is mutated
func (p Progress) Equal(o Progress) bool {
	if p.Counter != o.Counter || p.MaxVideos != o.MaxVideos || len(p.SeenVideos) != len(o.SeenVideos) {
		return false
	}
	for i := range p.SeenVideos {
		if p.SeenVideos[i] != o.SeenVideos[i] {
			return false
		}
	}
	return true
}

// Validate checks every session invariant against the catalog size.
// PRE: catalogSize >= 0
// POST: returns nil if valid, an error naming the first violation otherwise
func (p Progress) Validate(catalogSize int) error {
	if p.MaxVideos <= 0 {
		return ErrNonPositiveLimit
	}
	if p.MaxVideos > MaxLimit {
		return fmt.Errorf("%w: %d", ErrLimitTooHigh, p.MaxVideos)
	}
	if p.Counter < 0 || p.Counter > p.MaxVideos {
		return fmt.Errorf("%w: counter=%d max=%d", ErrCounterRange, p.Counter, p.MaxVideos)
	}
	if len(p.SeenVideos) > p.Counter {
		return fmt.Errorf("%w: seen=%d counter=%d", ErrSeenOverflow, len(p.SeenVideos), p.Counter)
	}
	for _, idx := range p.SeenVideos {
		if idx < 0 || idx >= catalogSize {
			return fmt.Errorf("%w: %d (catalog size %d)", ErrSeenIndex, idx, catalogSize)
		}
	}
	return nil
}

// Repair coerces any state into one that satisfies every invariant.
// Steps run in a fixed order: limit fallback and ceiling, counter clamp, index filter,
// truncation to counter, then the counter follows the surviving seen list.
// PRE: defaultMax > 0
// POST: Validate(catalogSize) == nil and len(SeenVideos) == Counter
// INVARIANT: Repair(Repair(p)) == Repair(p)
func Repair(p Progress, defaultMax, catalogSize int) Progress {
	limit := p.MaxVideos
	if limit <= 0 {
		limit = defaultMax
	}
	limit = min(limit, MaxLimit)
	counter := clamp(p.Counter, 0, limit)

	seen := make([]int, 0, len(p.SeenVideos))
	for _, idx := range p.SeenVideos {
		if idx >= 0 && idx < catalogSize {
			seen = append(seen, idx)
		}
	}
	if len(seen) > counter {
		seen = seen[:counter]
	}

	return Progress{Counter: len(seen), SeenVideos: seen, MaxVideos: limit}
}

// Advance records that the viewer picked the catalog entry idx.
// PRE: p satisfies the invariants
// POST: on OutcomePlayable Counter grew by one and idx was appended;
// on OutcomeLimitReached Counter == MaxVideos and nothing was appended;
// on OutcomeInvalidSelection p is returned unchanged
func Advance(p Progress, idx, catalogSize int) (Progress, Outcome) {
	next := p.Clone()
	if next.Counter+1 > next.MaxVideos {
		next.Counter = next.MaxVideos
		return next, OutcomeLimitReached
	}
	if idx < 0 || idx >= catalogSize {
		return next, OutcomeInvalidSelection
	}
	next.Counter++
	next.SeenVideos = append(next.SeenVideos, idx)
	return next, OutcomePlayable
}

// Undo rolls back the most recent watch.
// POST: Counter decreased by one (floored at 0), last seen entry dropped
// INVARIANT: Undo(Advance(p, idx)) == p whenever Advance returned OutcomePlayable
func Undo(p Progress) Progress {
	next := p.Clone()
	if next.Counter > 0 {
		next.Counter--
	}
	if n := len(next.SeenVideos); n > 0 {
		next.SeenVideos = next.SeenVideos[:n-1]
	}
	return next
}

// Reconfigure changes the session limit.
// A non-positive limit is ignored and one above MaxLimit is lowered to it.
// Lowering the limit pulls the counter down and trims the seen list to it;
// entries within the counter are kept.
// POST: MaxVideos == min(newLimit, MaxLimit) when newLimit > 0, Counter <= MaxVideos
func Reconfigure(p Progress, newLimit int) Progress {
	next := p.Clone()
	if newLimit > 0 {
		next.MaxVideos = min(newLimit, MaxLimit)
	}
	next.Counter = clamp(next.Counter, 0, next.MaxVideos)
	if len(next.SeenVideos) > next.Counter {
		next.SeenVideos = next.SeenVideos[:next.Counter]
	}
	return next
}

// Reset starts a new session keeping the configured limit.
func Reset(p Progress) Progress {
	return Default(p.MaxVideos)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
