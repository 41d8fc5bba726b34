package watchlog

import (
	"errors"
	"time"
)

// Action is what happened to the session.
type Action string

const (
	ActionSelect       Action = "select"
	ActionFinish       Action = "finish"
	ActionUndo         Action = "undo"
	ActionLimit        Action = "limit"
	ActionReset        Action = "reset"
	ActionLimitReached Action = "limit_reached"
)

// NoClip marks events that are not about a specific clip.
const NoClip = -1

// Event is one entry of the watch history shown to guardians.
// The counter and limit are the values after the action was applied.
type Event struct {
	ID         string    `json:"id"`
	OccurredAt time.Time `json:"occurred_at"`
	Action     Action    `json:"action"`
	ClipIndex  int       `json:"clip_index"`
	ClipName   string    `json:"clip_name"`
	Counter    int       `json:"counter"`
	MaxVideos  int       `json:"max_videos"`
}

// Validate checks the Event has the fields every history row needs.
// PRE: Event struct is populated
// POST: Returns nil if valid, error otherwise
func (e *Event) Validate() error {
	if e.ID == "" {
		return errors.New("event id is required")
	}
	if e.OccurredAt.IsZero() {
		return errors.New("occurred_at must be set")
	}
	if !isValidAction(e.Action) {
		return errors.New("unknown watch action")
	}
	if e.ClipIndex < NoClip {
		return errors.New("clip index cannot be below -1")
	}
	return nil
}

// HasClip reports whether the event refers to a catalog entry.
func (e *Event) HasClip() bool {
	return e.ClipIndex != NoClip
}

func isValidAction(a Action) bool {
	switch a {
	case ActionSelect, ActionFinish, ActionUndo, ActionLimit, ActionReset, ActionLimitReached:
		return true
	}
	return false
}
