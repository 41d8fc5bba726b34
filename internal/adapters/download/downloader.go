package download

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"mytube/internal/domain/clip"
)

// DefaultFormat picks the best mp4-compatible streams.
const DefaultFormat = "bv*[ext=mp4]+ba[ext=m4a]/b[ext=mp4]/b"

// Options configures the yt-dlp invocation.
type Options struct {
	Executable string
	Format     string
}

// fetchFunc downloads url into the exact output path.
type fetchFunc func(ctx context.Context, url, output string) error

// Downloader fetches YouTube videos into the raw videos folder.
type Downloader struct {
	fetch fetchFunc
}

// New returns a Downloader backed by yt-dlp.
// PRE: yt-dlp is installed or opts.Executable points at it
// POST: Returns a ready Downloader; nothing is executed yet
func New(opts Options) *Downloader {
	format := opts.Format
	if format == "" {
		format = DefaultFormat
	}
	return &Downloader{fetch: func(ctx context.Context, url, output string) error {
		cmd := ytdlp.New().
			Format(format).
			MergeOutputFormat("mp4").
			NoPlaylist().
			Output(output)
		if opts.Executable != "" {
			cmd = cmd.SetExecutable(opts.Executable)
		}
		_, err := cmd.Run(ctx, url)
		return err
	}}
}

// Result names the files written by Download.
type Result struct {
	VideoPath    string
	CutSheetPath string
}

// Download writes <outputDir>/<name>.mp4 and an empty cut sheet
// <outputDir>/<name>.csv. An empty name falls back to the video ID.
// PRE: url is a YouTube URL
// POST: both files exist when err is nil; an existing cut sheet is kept
func (d *Downloader) Download(ctx context.Context, url, outputDir, name string) (Result, error) {
	if name == "" {
		id, err := clip.ExtractYouTubeID(url)
		if err != nil {
			return Result{}, err
		}
		name = id
	}
	if err := clip.ValidateName(name); err != nil {
		return Result{}, fmt.Errorf("invalid video name: %w", err)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("failed to create output folder: %w", err)
	}

	res := Result{
		VideoPath:    filepath.Join(outputDir, name+".mp4"),
		CutSheetPath: filepath.Join(outputDir, name+".csv"),
	}

	start := time.Now()
	slog.Info("download_event", "event", "started", "url", url, "output", res.VideoPath)
	if err := d.fetch(ctx, url, res.VideoPath); err != nil {
		slog.Warn("download_event", "event", "failed", "url", url, "error", err)
		return Result{}, fmt.Errorf("download failed: %w", err)
	}
	slog.Info("download_event", "event", "finished", "output", res.VideoPath, "duration_ms", time.Since(start).Milliseconds())

	if err := writeCutSheet(res.CutSheetPath); err != nil {
		return Result{}, err
	}
	return res, nil
}

// writeCutSheet creates a header-only cut sheet unless one exists.
func writeCutSheet(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if os.IsExist(err) {
		slog.Info("download_event", "event", "cut_sheet_kept", "path", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create cut sheet: %w", err)
	}
	if err := clip.WriteIntervalHeader(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write cut sheet: %w", err)
	}
	return f.Close()
}
