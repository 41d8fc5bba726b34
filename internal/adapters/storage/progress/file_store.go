package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"mytube/internal/adapters/http/perf"
	domain "mytube/internal/domain/progress"
)

// Keys written by the previous kiosk release. Read only when the current
// keys are absent.
const (
	legacySeenKey = "seen_videos"
	legacyMaxKey  = "n_max_videos"
)

// FileStore implements Store on a single JSON file.
// Reads and writes are serialised by a mutex. Callers get no isolation
// between a Load and the following Save.
type FileStore struct {
	path      string
	collector *perf.Collector

	mu   sync.Mutex
	last domain.Progress
}

// Compile-time check that *FileStore satisfies Store.
var _ Store = (*FileStore)(nil)

// NewFileStore creates a store for the state file at path.
// PRE: path is non-empty
// POST: Returns a store; nothing is read or written yet
func NewFileStore(path string, collector *perf.Collector) *FileStore {
	return &FileStore{path: path, collector: collector}
}

// Path returns the backing file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads and decodes the state file without repairing it.
// PRE: none
// POST: Returns the decoded state, ErrNotFound or ErrCorrupt
// INVARIANT: the file is not modified
func (s *FileStore) Load(ctx context.Context) (domain.Progress, error) {
	if err := ctx.Err(); err != nil {
		return domain.Progress{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.collector.Since(perf.KindStateFile, "progress.load", time.Now())

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.Progress{}, ErrNotFound
	}
	if err != nil {
		return domain.Progress{}, fmt.Errorf("failed to read state file: %w", err)
	}
	p, err := decode(data)
	if err != nil {
		return domain.Progress{}, err
	}
	s.last = p.Clone()
	return p, nil
}

// Save writes the state atomically: temp file, fsync, rename.
// PRE: value satisfies the session invariants
// POST: on success the file and Last() hold value; on failure both keep
// their previous contents
func (s *FileStore) Save(ctx context.Context, value domain.Progress) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.collector.Since(perf.KindStateFile, "progress.save", time.Now())

	seen := value.SeenVideos
	if seen == nil {
		seen = []int{}
	}
	data, err := json.Marshal(domain.Progress{Counter: value.Counter, SeenVideos: seen, MaxVideos: value.MaxVideos})
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return err
	}
	s.last = value.Clone()
	return nil
}

// Last returns the most recent state read from or written to disk.
// INVARIANT: the returned value shares no memory with the store
func (s *FileStore) Last() domain.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last.Clone()
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		if rmErr := os.Remove(tmpName); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			slog.Warn("state_file_event", "event", "temp_cleanup_failed", "path", tmpName, "error", rmErr)
		}
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close temp state file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("failed to set state file mode: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// decode reads the state leniently. Missing or non-numeric counter and
// limit decode as 0 and are fixed by repair. Seen entries that are not
// integers are dropped.
func decode(data []byte) (domain.Progress, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.Progress{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	p := domain.Progress{SeenVideos: []int{}}
	if v, ok := lookup(raw, "counter"); ok {
		p.Counter, _ = toInt(v, false)
	}
	if v, ok := lookup(raw, "maxVideos", legacyMaxKey); ok {
		p.MaxVideos, _ = toInt(v, false)
	}
	if v, ok := lookup(raw, "seenVideos", legacySeenKey); ok {
		var items []json.RawMessage
		if err := json.Unmarshal(v, &items); err == nil {
			for _, item := range items {
				if idx, ok := toInt(item, true); ok {
					p.SeenVideos = append(p.SeenVideos, idx)
				}
			}
		}
	}
	return p, nil
}

// lookup returns the first key present in raw.
func lookup(raw map[string]json.RawMessage, keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			return v, true
		}
	}
	return nil, false
}

// toInt accepts a JSON number or a numeric string. With exact set,
// fractional values are rejected instead of truncated.
func toInt(v json.RawMessage, exact bool) (int, bool) {
	if strings.TrimSpace(string(v)) == "null" {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(v, &f); err != nil {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	if exact && f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}
