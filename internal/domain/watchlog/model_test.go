package watchlog_test

import (
	"testing"
	"time"

	"mytube/internal/domain/watchlog"
)

// TestEvent_Validate tests validation of history events.
func TestEvent_Validate(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		event   watchlog.Event
		wantErr bool
	}{
		{"valid select", watchlog.Event{ID: "1", OccurredAt: now, Action: watchlog.ActionSelect, ClipIndex: 2}, false},
		{"valid reset without clip", watchlog.Event{ID: "2", OccurredAt: now, Action: watchlog.ActionReset, ClipIndex: watchlog.NoClip}, false},
		{"missing id", watchlog.Event{OccurredAt: now, Action: watchlog.ActionUndo}, true},
		{"zero time", watchlog.Event{ID: "3", Action: watchlog.ActionUndo}, true},
		{"unknown action", watchlog.Event{ID: "4", OccurredAt: now, Action: "rewind"}, true},
		{"bad clip index", watchlog.Event{ID: "5", OccurredAt: now, Action: watchlog.ActionSelect, ClipIndex: -7}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestEvent_HasClip tests the clip marker.
func TestEvent_HasClip(t *testing.T) {
	e := watchlog.Event{ClipIndex: watchlog.NoClip}
	if e.HasClip() {
		t.Error("expected no clip")
	}
	e.ClipIndex = 0
	if !e.HasClip() {
		t.Error("expected clip")
	}
}
