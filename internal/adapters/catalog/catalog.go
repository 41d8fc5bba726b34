package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"mytube/internal/domain/clip"
)

// ThumbnailDir is the folder next to the clips that holds their thumbnails.
const ThumbnailDir = "thumbnails"

// ThumbnailGenerator creates a missing thumbnail.
type ThumbnailGenerator interface {
	Thumbnail(ctx context.Context, video, output string, at time.Duration) error
}

// LoadOptions configures Load. With a nil Generator clips without a
// thumbnail are dropped.
type LoadOptions struct {
	Generator   ThumbnailGenerator
	ThumbnailAt time.Duration
}

// Catalog is the ordered, immutable list of playable clips.
// INVARIANT: clips[i].Index == i
type Catalog struct {
	dir   string
	clips []clip.Clip
}

// Load scans dir for *.mp4 files in name order and pairs each with its
// thumbnail. Indexes are positions in the filtered result.
// PRE: none
// POST: Returns a catalog whose every clip has a thumbnail on disk; a
// missing dir yields an empty catalog
func Load(ctx context.Context, dir string, opts LoadOptions) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Warn("catalog_event", "event", "folder_missing", "dir", dir)
		return &Catalog{dir: dir, clips: []clip.Clip{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read clip folder: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".mp4") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	clips := make([]clip.Clip, 0, len(names))
	for _, name := range names {
		media := filepath.Join(dir, name)
		thumb := filepath.Join(dir, ThumbnailDir, clip.ThumbnailName(media))
		if !fileExists(thumb) {
			if !generate(ctx, opts, media, thumb) {
				slog.Warn("catalog_event", "event", "clip_dropped", "clip", name, "reason", "no thumbnail")
				continue
			}
		}
		clips = append(clips, clip.Clip{
			Index:         len(clips),
			Name:          clip.NameFromPath(media),
			MediaPath:     media,
			ThumbnailPath: thumb,
		})
	}

	slog.Info("catalog_event", "event", "loaded", "dir", dir, "clips", len(clips), "skipped", len(names)-len(clips))
	return &Catalog{dir: dir, clips: clips}, nil
}

func generate(ctx context.Context, opts LoadOptions, media, thumb string) bool {
	if opts.Generator == nil {
		return false
	}
	if err := opts.Generator.Thumbnail(ctx, media, thumb, opts.ThumbnailAt); err != nil {
		slog.Warn("catalog_event", "event", "thumbnail_failed", "clip", media, "error", err)
		return false
	}
	return fileExists(thumb)
}

// New builds a catalog from clips, reassigning indexes by position.
func New(clips []clip.Clip) *Catalog {
	out := make([]clip.Clip, len(clips))
	for i, c := range clips {
		c.Index = i
		out[i] = c
	}
	return &Catalog{clips: out}
}

// ListClips returns a copy of the clips in catalog order.
func (c *Catalog) ListClips() []clip.Clip {
	out := make([]clip.Clip, len(c.clips))
	copy(out, c.clips)
	return out
}

// Size returns the number of clips.
func (c *Catalog) Size() int {
	return len(c.clips)
}

// Get returns the clip at idx.
func (c *Catalog) Get(idx int) (clip.Clip, bool) {
	if idx < 0 || idx >= len(c.clips) {
		return clip.Clip{}, false
	}
	return c.clips[idx], true
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
