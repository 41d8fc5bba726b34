package projections

import (
	"context"
	"time"

	"mytube/internal/domain/watchlog"
)

// DefaultHistoryLimit is how many events the parental panel lists.
const DefaultHistoryLimit = 50

// WatchHistoryStore reads the watch history.
type WatchHistoryStore interface {
	ListRecent(ctx context.Context, limit int) ([]watchlog.Event, error)
	CountSince(ctx context.Context, action watchlog.Action, since time.Time) (int, error)
}

// GetWatchHistoryQuery carries input for the watch history projection.
type GetWatchHistoryQuery struct {
	Limit int
	Now   time.Time // optional: if zero, time.Now() is used
}

// GetWatchHistoryDeps holds dependencies for the watch history projection.
type GetWatchHistoryDeps struct {
	History WatchHistoryStore
}

// HistoryRow is one formatted history line.
type HistoryRow struct {
	Time      string          `json:"time"`
	Action    watchlog.Action `json:"action"`
	ClipName  string          `json:"clip_name"`
	Counter   int             `json:"counter"`
	MaxVideos int             `json:"max_videos"`
}

// GetWatchHistoryResult carries the output of the watch history projection.
type GetWatchHistoryResult struct {
	Rows         []HistoryRow `json:"rows"`
	WatchedToday int          `json:"watched_today"`
}

// QueryGetWatchHistory lists recent events, newest first, and counts today's
// selections in local time.
// PRE: deps.History is set
// POST: len(Rows) <= query.Limit (DefaultHistoryLimit when not positive)
func QueryGetWatchHistory(ctx context.Context, query GetWatchHistoryQuery, deps GetWatchHistoryDeps) (GetWatchHistoryResult, error) {
	now := query.Now
	if now.IsZero() {
		now = time.Now()
	}
	limit := query.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	events, err := deps.History.ListRecent(ctx, limit)
	if err != nil {
		return GetWatchHistoryResult{}, err
	}
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	today, err := deps.History.CountSince(ctx, watchlog.ActionSelect, midnight)
	if err != nil {
		return GetWatchHistoryResult{}, err
	}

	result := GetWatchHistoryResult{Rows: make([]HistoryRow, 0, len(events)), WatchedToday: today}
	for _, e := range events {
		result.Rows = append(result.Rows, HistoryRow{
			Time:      e.OccurredAt.In(now.Location()).Format("Mon 15:04"),
			Action:    e.Action,
			ClipName:  e.ClipName,
			Counter:   e.Counter,
			MaxVideos: e.MaxVideos,
		})
	}
	return result, nil
}
