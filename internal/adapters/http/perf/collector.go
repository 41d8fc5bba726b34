package perf

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultRingSize is the default capacity of the ring buffer.
const DefaultRingSize = 4096

// EntryKind tells what was timed.
type EntryKind uint8

const (
	KindRequest EntryKind = iota
	KindQuery
	KindTranscode
	KindStateFile
)

// Entry is a single timing record stored in the ring buffer.
type Entry struct {
	Kind       EntryKind
	Path       string // HTTP route, SQL op, ffmpeg step or state file op
	StatusCode int    // HTTP status (0 for everything else)
	DurationMs float64
	Timestamp  time.Time
}

// Collector is a fixed-size ring buffer for timing entries.
// When full, oldest entries are overwritten. Aggregation happens on read.
type Collector struct {
	mu      sync.Mutex
	entries []Entry
	size    int
	pos     int
	count   int64
}

// NewCollector creates a collector with the given ring buffer capacity.
// PRE: size > 0 (otherwise DefaultRingSize is used)
// POST: Returns a ready-to-use collector with pre-allocated storage
func NewCollector(size int) *Collector {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Collector{
		entries: make([]Entry, size),
		size:    size,
	}
}

// Record appends an entry to the ring buffer.
// PRE: e is a valid Entry
// POST: Entry stored; if buffer full, oldest entry overwritten
func (c *Collector) Record(e Entry) {
	c.mu.Lock()
	c.entries[c.pos] = e
	c.pos = (c.pos + 1) % c.size
	c.mu.Unlock()
	atomic.AddInt64(&c.count, 1)
}

// Since records the time elapsed from start under the given kind and path.
func (c *Collector) Since(kind EntryKind, path string, start time.Time) float64 {
	durationMs := float64(time.Since(start).Microseconds()) / 1000.0
	if c != nil {
		c.Record(Entry{Kind: kind, Path: path, DurationMs: durationMs, Timestamp: start})
	}
	return durationMs
}

// TotalRecorded returns the total number of entries ever recorded.
func (c *Collector) TotalRecorded() int64 {
	return atomic.LoadInt64(&c.count)
}

// Snapshot holds aggregated performance data computed on read.
type Snapshot struct {
	TotalRecorded     int64      `json:"total_recorded"`
	RequestP50Ms      float64    `json:"request_p50_ms"`
	RequestP95Ms      float64    `json:"request_p95_ms"`
	RequestP99Ms      float64    `json:"request_p99_ms"`
	SlowestPaths      []PathStat `json:"slowest_paths"`
	SlowestQueries    []PathStat `json:"slowest_queries"`
	SlowestTranscodes []PathStat `json:"slowest_transcodes"`
	StateFileOps      []PathStat `json:"state_file_ops"`
}

// PathStat aggregates timing for a single path.
type PathStat struct {
	Path    string  `json:"path"`
	AvgMs   float64 `json:"avg_ms"`
	MaxMs   float64 `json:"max_ms"`
	Count   int     `json:"count"`
	TotalMs float64 `json:"total_ms"`
}

type statTable map[string]*PathStat

func (st statTable) add(e Entry) {
	s, ok := st[e.Path]
	if !ok {
		s = &PathStat{Path: e.Path}
		st[e.Path] = s
	}
	s.Count++
	s.TotalMs += e.DurationMs
	if e.DurationMs > s.MaxMs {
		s.MaxMs = e.DurationMs
	}
}

// Snapshot computes aggregated stats from the ring buffer.
// Sorting makes this expensive; call it from the parental panel only.
// PRE: topN > 0
// POST: Returns a Snapshot with percentiles and top-N lists per kind
func (c *Collector) Snapshot(since time.Time, topN int) Snapshot {
	c.mu.Lock()
	buf := make([]Entry, c.size)
	copy(buf, c.entries)
	c.mu.Unlock()

	var requestDurations []float64
	tables := map[EntryKind]statTable{
		KindRequest:   {},
		KindQuery:     {},
		KindTranscode: {},
		KindStateFile: {},
	}

	for _, e := range buf {
		if e.Timestamp.IsZero() || e.Timestamp.Before(since) {
			continue
		}
		st, ok := tables[e.Kind]
		if !ok {
			continue
		}
		st.add(e)
		if e.Kind == KindRequest {
			requestDurations = append(requestDurations, e.DurationMs)
		}
	}

	snap := Snapshot{
		TotalRecorded:     c.TotalRecorded(),
		SlowestPaths:      topByAvg(tables[KindRequest], topN),
		SlowestQueries:    topByAvg(tables[KindQuery], topN),
		SlowestTranscodes: topByAvg(tables[KindTranscode], topN),
		StateFileOps:      topByAvg(tables[KindStateFile], topN),
	}

	if len(requestDurations) > 0 {
		sort.Float64s(requestDurations)
		snap.RequestP50Ms = percentile(requestDurations, 50)
		snap.RequestP95Ms = percentile(requestDurations, 95)
		snap.RequestP99Ms = percentile(requestDurations, 99)
	}

	return snap
}

// percentile returns the p-th percentile from a sorted slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (p / 100) * float64(len(sorted)-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))
	if lower == upper || upper >= len(sorted) {
		return sorted[lower]
	}
	frac := idx - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

// topByAvg returns the top N paths by average duration, slowest first.
func topByAvg(stats statTable, n int) []PathStat {
	list := make([]PathStat, 0, len(stats))
	for _, s := range stats {
		s.AvgMs = s.TotalMs / float64(s.Count)
		list = append(list, *s)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].AvgMs == list[j].AvgMs {
			return list[i].Path < list[j].Path
		}
		return list[i].AvgMs > list[j].AvgMs
	})
	if len(list) > n {
		list = list[:n]
	}
	return list
}
