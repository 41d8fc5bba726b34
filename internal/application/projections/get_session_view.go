package projections

import (
	"fmt"
	"math"
	"slices"
	"time"

	"mytube/internal/domain/clip"
	"mytube/internal/domain/progress"
)

// Defaults matching the kiosk's original look.
const (
	DefaultColorDone   = "#fca903"
	DefaultColorUndone = "#03fcdf"
)

// DefaultLimitChoices are the limits offered in the parental panel.
var DefaultLimitChoices = []int{4, 5, 6, 7, 8}

const (
	pieCenter = 50.0
	pieRadius = 48.0
)

// SessionViewCatalog resolves seen indices to clips.
type SessionViewCatalog interface {
	Get(idx int) (clip.Clip, bool)
}

// GetSessionViewQuery carries the state to present.
type GetSessionViewQuery struct {
	Progress  progress.Progress
	StartedAt time.Time
	Now       time.Time // optional: if zero, time.Now() is used
}

// GetSessionViewDeps holds dependencies for the session view projection.
type GetSessionViewDeps struct {
	Catalog      SessionViewCatalog
	LimitChoices []int
	ColorDone    string
	ColorUndone  string
}

// SeenClip is one thumbnail in the seen gallery.
type SeenClip struct {
	Index        int    `json:"index"`
	Name         string `json:"name"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// PieSegment is one equal slice of the progress chart. A single-slice chart
// has an empty Path and is drawn as a full circle.
type PieSegment struct {
	Path  string `json:"path"`
	Color string `json:"color"`
	Done  bool   `json:"done"`
}

// SessionView is everything the kiosk page renders for the session.
type SessionView struct {
	Counter      int              `json:"counter"`
	MaxVideos    int              `json:"max_videos"`
	SeenVideos   []int            `json:"seen_videos"`
	Summary      progress.Summary `json:"summary"`
	Phase        progress.Phase   `json:"phase"`
	Seen         []SeenClip       `json:"seen"`
	Pie          []PieSegment     `json:"pie"`
	LimitChoices []int            `json:"limit_choices"`
	LimitValue   int              `json:"limit_value"`
	StartedAt    string           `json:"started_at"`
	Elapsed      string           `json:"elapsed"`
}

// QueryGetSessionView builds the view model for a session state.
// PRE: query.Progress satisfies the session invariants
// POST: len(Pie) == MaxVideos with the first Counter slices done; LimitValue
// is one of LimitChoices
func QueryGetSessionView(query GetSessionViewQuery, deps GetSessionViewDeps) SessionView {
	now := query.Now
	if now.IsZero() {
		now = time.Now()
	}
	p := query.Progress.Clone()

	choices := deps.LimitChoices
	if len(choices) == 0 {
		choices = DefaultLimitChoices
	}
	choices = slices.Clone(choices)
	slices.Sort(choices)

	view := SessionView{
		Counter:      p.Counter,
		MaxVideos:    p.MaxVideos,
		SeenVideos:   p.SeenVideos,
		Summary:      progress.Summarize(p),
		Phase:        p.Phase(),
		Seen:         make([]SeenClip, 0, len(p.SeenVideos)),
		Pie:          PieSegments(p.MaxVideos, p.Counter, orDefault(deps.ColorDone, DefaultColorDone), orDefault(deps.ColorUndone, DefaultColorUndone)),
		LimitChoices: choices,
		LimitValue:   LimitRadioValue(p.MaxVideos, choices),
	}
	if !query.StartedAt.IsZero() {
		view.StartedAt = query.StartedAt.Format("15:04")
		view.Elapsed = FormatElapsed(now.Sub(query.StartedAt))
	}

	for _, idx := range p.SeenVideos {
		c, ok := deps.Catalog.Get(idx)
		if !ok {
			continue
		}
		view.Seen = append(view.Seen, SeenClip{
			Index:        c.Index,
			Name:         c.Name,
			ThumbnailURL: fmt.Sprintf("/media/thumbnail?index=%d", c.Index),
		})
	}
	return view
}

// LimitRadioValue picks the radio button to show for a limit. Limits
// outside the offered choices snap to the nearest end.
// PRE: choices is sorted and non-empty
func LimitRadioValue(limit int, choices []int) int {
	if slices.Contains(choices, limit) {
		return limit
	}
	return min(max(limit, choices[0]), choices[len(choices)-1])
}

// FormatElapsed renders d as m:ss. Negative durations render as 0:00.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

// PieSegments splits a circle into total equal slices, clockwise from
// twelve o'clock, colouring the first done slices. At most
// progress.MaxLimit slices are drawn.
// POST: len(result) == min(max(total, 0), progress.MaxLimit)
func PieSegments(total, done int, colorDone, colorUndone string) []PieSegment {
	if total <= 0 {
		return []PieSegment{}
	}
	total = min(total, progress.MaxLimit)
	segs := make([]PieSegment, total)
	step := 2 * math.Pi / float64(total)
	for i := range segs {
		segs[i].Done = i < done
		segs[i].Color = colorUndone
		if segs[i].Done {
			segs[i].Color = colorDone
		}
		if total == 1 {
			continue
		}
		x0, y0 := piePoint(float64(i) * step)
		x1, y1 := piePoint(float64(i+1) * step)
		large := 0
		if step > math.Pi {
			large = 1
		}
		segs[i].Path = fmt.Sprintf("M%.3f,%.3f L%.3f,%.3f A%.0f,%.0f 0 %d 1 %.3f,%.3f Z",
			pieCenter, pieCenter, x0, y0, pieRadius, pieRadius, large, x1, y1)
	}
	return segs
}

// piePoint maps an angle measured clockwise from twelve o'clock onto the circle.
func piePoint(angle float64) (float64, float64) {
	return pieCenter + pieRadius*math.Sin(angle), pieCenter - pieRadius*math.Cos(angle)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
