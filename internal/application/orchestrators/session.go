package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	progressStore "mytube/internal/adapters/storage/progress"
	"mytube/internal/domain/clip"
	"mytube/internal/domain/progress"
	"mytube/internal/domain/watchlog"
)

// SessionProgressStore is the persistence the session operations need.
type SessionProgressStore interface {
	Load(ctx context.Context) (progress.Progress, error)
	Save(ctx context.Context, p progress.Progress) error
	Last() progress.Progress
}

// SessionCatalog looks clips up by index.
type SessionCatalog interface {
	Size() int
	Get(idx int) (clip.Clip, bool)
}

// SessionTerminalMedia supplies the info videos shown near the limit.
type SessionTerminalMedia interface {
	OnOneRemaining() (string, bool)
	OnLimitReached() (string, bool)
}

// SessionHistoryStore records watch events.
type SessionHistoryStore interface {
	Save(ctx context.Context, e watchlog.Event) error
}

// SessionNotifier is told when a session completes and when it is reopened.
type SessionNotifier interface {
	SessionComplete(ctx context.Context, p progress.Progress)
	Rearm()
}

// SessionDeps holds dependencies shared by the session operations.
// History and Notifier are optional.
type SessionDeps struct {
	ProgressStore    SessionProgressStore
	Catalog          SessionCatalog
	Terminal         SessionTerminalMedia
	DefaultMaxVideos int
	History          SessionHistoryStore
	Notifier         SessionNotifier
	GenerateID       func() string
	Now              func() time.Time
}

func (d SessionDeps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d SessionDeps) newID() string {
	if d.GenerateID != nil {
		return d.GenerateID()
	}
	return uuid.New().String()
}

// InfoKind names the terminal video to play after a clip.
type InfoKind string

const (
	InfoNone     InfoKind = ""
	InfoOneMore  InfoKind = "one_more"
	InfoFinished InfoKind = "finished"
)

// NewSession prepares the backing file for a new server process.
// With resetOnStart the default state is written first and then reloaded
// through the repair pipeline. Without it the previous file is reloaded and
// only replaced when it cannot be read.
// PRE: deps.ProgressStore and deps.Catalog are set, DefaultMaxVideos > 0
// POST: Returns a valid state that has been handed to the store
func NewSession(ctx context.Context, deps SessionDeps, resetOnStart bool) (progress.Progress, error) {
	if deps.ProgressStore == nil || deps.Catalog == nil {
		return progress.Progress{}, errors.New("session needs a progress store and a catalog")
	}
	if deps.DefaultMaxVideos <= 0 {
		return progress.Progress{}, errors.New("default max videos must be positive")
	}
	if resetOnStart {
		persist(ctx, deps, progress.Default(deps.DefaultMaxVideos))
	}
	p := ExecuteLoadSession(ctx, deps)
	slog.Info("session_event", "event", "session_started",
		"reset_on_start", resetOnStart, "counter", p.Counter, "max_videos", p.MaxVideos, "catalog_size", deps.Catalog.Size())
	return p, nil
}

// ExecuteLoadSession reads, repairs and persists the session state.
// PRE: deps are set
// POST: Returns a state satisfying every session invariant
func ExecuteLoadSession(ctx context.Context, deps SessionDeps) progress.Progress {
	p := loadRepaired(ctx, deps)
	persist(ctx, deps, p)
	return p
}

// SelectClipInput carries the gallery position the viewer picked.
type SelectClipInput struct {
	Index int
}

// SelectClipResult tells the caller whether to play a clip.
type SelectClipResult struct {
	Progress progress.Progress
	Outcome  progress.Outcome
	Clip     clip.Clip
}

// ExecuteSelectClip records a watch when the limit allows it.
// PRE: deps are set
// POST: playable adds one watch; limit_reached and invalid_selection leave
// the watch history unchanged
func ExecuteSelectClip(ctx context.Context, input SelectClipInput, deps SessionDeps) SelectClipResult {
	size := deps.Catalog.Size()
	p := loadRepaired(ctx, deps)
	next, outcome := progress.Advance(p, input.Index, size)
	next = settle(ctx, deps, next)

	result := SelectClipResult{Progress: next, Outcome: outcome}
	switch outcome {
	case progress.OutcomePlayable:
		result.Clip, _ = deps.Catalog.Get(input.Index)
		record(ctx, deps, watchlog.ActionSelect, result.Clip.Index, result.Clip.Name, next)
		slog.Info("session_event", "event", "clip_selected", "index", input.Index, "clip", result.Clip.Name, "counter", next.Counter)
	case progress.OutcomeLimitReached:
		record(ctx, deps, watchlog.ActionLimitReached, watchlog.NoClip, "", next)
		slog.Info("session_event", "event", "limit_reached", "index", input.Index, "max_videos", next.MaxVideos)
	default:
		slog.Warn("session_event", "event", "invalid_selection", "index", input.Index, "catalog_size", size)
	}
	return result
}

// FinishClipResult tells the caller which info video, if any, follows.
type FinishClipResult struct {
	Progress progress.Progress
	Phase    progress.Phase
	Info     InfoKind
}

// ExecuteFinishClip classifies the session after a clip ends.
// PRE: deps are set
// POST: Info is set only when the matching file exists; a COMPLETE session
// notifies the guardian
func ExecuteFinishClip(ctx context.Context, deps SessionDeps) FinishClipResult {
	p := ExecuteLoadSession(ctx, deps)
	result := FinishClipResult{Progress: p, Phase: p.Phase()}

	switch result.Phase {
	case progress.PhaseOneRemaining:
		if deps.Terminal != nil {
			if _, ok := deps.Terminal.OnOneRemaining(); ok {
				result.Info = InfoOneMore
			}
		}
	case progress.PhaseComplete:
		if deps.Terminal != nil {
			if _, ok := deps.Terminal.OnLimitReached(); ok {
				result.Info = InfoFinished
			}
		}
		if deps.Notifier != nil {
			deps.Notifier.SessionComplete(ctx, p)
		}
	}

	lastIdx, lastName := watchlog.NoClip, ""
	if n := len(p.SeenVideos); n > 0 {
		if c, ok := deps.Catalog.Get(p.SeenVideos[n-1]); ok {
			lastIdx, lastName = c.Index, c.Name
		}
	}
	record(ctx, deps, watchlog.ActionFinish, lastIdx, lastName, p)
	slog.Info("session_event", "event", "clip_finished", "phase", string(result.Phase), "info", string(result.Info))
	return result
}

// ExecuteUndoLastClip takes back the most recent watch.
// PRE: deps are set
// POST: counter drops by one (floor 0) and the last seen entry is removed
func ExecuteUndoLastClip(ctx context.Context, deps SessionDeps) progress.Progress {
	p := loadRepaired(ctx, deps)
	lastIdx, lastName := watchlog.NoClip, ""
	if n := len(p.SeenVideos); n > 0 {
		if c, ok := deps.Catalog.Get(p.SeenVideos[n-1]); ok {
			lastIdx, lastName = c.Index, c.Name
		}
	}
	next := settle(ctx, deps, progress.Undo(p))
	record(ctx, deps, watchlog.ActionUndo, lastIdx, lastName, next)
	rearm(deps, next)
	slog.Info("session_event", "event", "clip_undone", "index", lastIdx, "counter", next.Counter)
	return next
}

// SetLimitInput carries the new per-session limit.
type SetLimitInput struct {
	Limit int
}

// ExecuteSetLimit changes the per-session limit.
// PRE: deps are set
// POST: a positive Limit replaces MaxVideos and the counter is re-clamped;
// a non-positive Limit changes nothing
func ExecuteSetLimit(ctx context.Context, input SetLimitInput, deps SessionDeps) progress.Progress {
	p := loadRepaired(ctx, deps)
	if input.Limit <= 0 {
		slog.Warn("session_event", "event", "limit_ignored", "limit", input.Limit)
	}
	next := settle(ctx, deps, progress.Reconfigure(p, input.Limit))
	record(ctx, deps, watchlog.ActionLimit, watchlog.NoClip, "", next)
	rearm(deps, next)
	slog.Info("session_event", "event", "limit_set", "max_videos", next.MaxVideos, "counter", next.Counter)
	return next
}

// ExecuteResetSession starts a new session while keeping the limit.
// PRE: deps are set
// POST: counter is 0 and no videos are seen
func ExecuteResetSession(ctx context.Context, deps SessionDeps) progress.Progress {
	p := loadRepaired(ctx, deps)
	next := settle(ctx, deps, progress.Reset(p))
	record(ctx, deps, watchlog.ActionReset, watchlog.NoClip, "", next)
	rearm(deps, next)
	slog.Info("session_event", "event", "session_reset", "max_videos", next.MaxVideos)
	return next
}

// loadRepaired reads the backing file and repairs what it finds. Missing or
// corrupt files give the default state; other read errors fall back to the
// last state the store saw.
func loadRepaired(ctx context.Context, deps SessionDeps) progress.Progress {
	size := deps.Catalog.Size()
	p, err := deps.ProgressStore.Load(ctx)
	switch {
	case err == nil:
		return progress.Repair(p, deps.DefaultMaxVideos, size)
	case errors.Is(err, progressStore.ErrNotFound):
		slog.Info("session_event", "event", "state_missing")
		return progress.Default(deps.DefaultMaxVideos)
	case errors.Is(err, progressStore.ErrCorrupt):
		slog.Warn("session_event", "event", "state_corrupt", "error", err)
		return progress.Default(deps.DefaultMaxVideos)
	default:
		slog.Error("session_event", "event", "state_read_failed", "error", err)
		return progress.Repair(deps.ProgressStore.Last(), deps.DefaultMaxVideos, size)
	}
}

// settle re-validates a new state and persists it.
func settle(ctx context.Context, deps SessionDeps, p progress.Progress) progress.Progress {
	size := deps.Catalog.Size()
	if err := p.Validate(size); err != nil {
		slog.Error("session_event", "event", "invariant_violated", "error", err)
		p = progress.Repair(p, deps.DefaultMaxVideos, size)
	}
	persist(ctx, deps, p)
	return p
}

// persist writes p. A failure is logged and the caller carries on with p.
func persist(ctx context.Context, deps SessionDeps, p progress.Progress) {
	if err := deps.ProgressStore.Save(ctx, p); err != nil {
		slog.Error("session_event", "event", "state_write_failed", "error", err)
	}
}

func record(ctx context.Context, deps SessionDeps, action watchlog.Action, clipIndex int, clipName string, p progress.Progress) {
	if deps.History == nil {
		return
	}
	event := watchlog.Event{
		ID:         deps.newID(),
		OccurredAt: deps.now(),
		Action:     action,
		ClipIndex:  clipIndex,
		ClipName:   clipName,
		Counter:    p.Counter,
		MaxVideos:  p.MaxVideos,
	}
	if err := deps.History.Save(ctx, event); err != nil {
		slog.Warn("session_event", "event", "history_write_failed", "action", string(action), "error", err)
	}
}

func rearm(deps SessionDeps, p progress.Progress) {
	if deps.Notifier != nil && p.Phase() != progress.PhaseComplete {
		deps.Notifier.Rearm()
	}
}
