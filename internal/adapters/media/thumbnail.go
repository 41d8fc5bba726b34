package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// DefaultThumbnailAt is where thumbnails are grabbed from.
const DefaultThumbnailAt = 10 * time.Second

// Thumbnail writes one PNG frame of video to output.
// When the video is shorter than at, the frame comes from its middle.
// PRE: video exists, output is non-empty
// POST: output exists when err is nil
func (e *Executor) Thumbnail(ctx context.Context, video, output string, at time.Duration) error {
	if at <= 0 {
		at = DefaultThumbnailAt
	}
	info, err := e.Probe(ctx, video)
	if err != nil {
		slog.Warn("media_event", "event", "thumbnail_probe_failed", "video", video, "error", err)
	} else {
		at = thumbnailOffset(info.Duration, at)
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("failed to create thumbnail directory: %w", err)
	}
	if err := e.Run(ctx, "thumbnail", thumbnailArgs(video, output, at)); err != nil {
		return fmt.Errorf("thumbnail failed: %w", err)
	}
	return nil
}

// thumbnailOffset returns at, or the middle of a video shorter than at.
func thumbnailOffset(duration, at time.Duration) time.Duration {
	if duration > 0 && duration <= at {
		return duration / 2
	}
	return at
}

func thumbnailArgs(video, output string, at time.Duration) []string {
	return []string{
		"-ss", formatTimestamp(at),
		"-i", video,
		"-frames:v", "1",
		"-update", "1",
		output,
	}
}
