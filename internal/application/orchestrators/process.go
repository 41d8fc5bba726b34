package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"mytube/internal/adapters/catalog"
	"mytube/internal/adapters/download"
	"mytube/internal/adapters/media"
	"mytube/internal/domain/clip"
)

// ProcessMedia cuts clips and grabs thumbnails.
type ProcessMedia interface {
	ExtractClip(ctx context.Context, input string, opts media.ClipOptions) error
	Thumbnail(ctx context.Context, video, output string, at time.Duration) error
}

// VideoDownloader fetches a source video and its empty cut sheet.
type VideoDownloader interface {
	Download(ctx context.Context, url, outputDir, name string) (download.Result, error)
}

// ProcessVideosInput names the folders to work on.
type ProcessVideosInput struct {
	VideosDir    string
	ProcessedDir string
	ThumbnailAt  time.Duration
	Force        bool // re-cut clips that already exist
}

// ProcessVideosDeps holds dependencies for ExecuteProcessVideos.
type ProcessVideosDeps struct {
	Media ProcessMedia
}

// ProcessVideosResult summarises a processing run.
type ProcessVideosResult struct {
	Videos   int
	Clips    int
	Existing int
	Skipped  []string // videos without a cut sheet
	Failed   []string // "<video>: <reason>" or "<clip>: <reason>"
}

// ExecuteProcessVideos cuts every source video by its cut sheet.
// PRE: deps.Media is set
// POST: each interval of each sheet has a clip and thumbnail in ProcessedDir,
// or is listed in Failed
func ExecuteProcessVideos(ctx context.Context, input ProcessVideosInput, deps ProcessVideosDeps) (ProcessVideosResult, error) {
	if deps.Media == nil {
		return ProcessVideosResult{}, errors.New("media executor is required")
	}
	entries, err := os.ReadDir(input.VideosDir)
	if err != nil {
		return ProcessVideosResult{}, fmt.Errorf("failed to read videos folder: %w", err)
	}

	var sources []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".mp4") {
			sources = append(sources, e.Name())
		}
	}
	sort.Strings(sources)

	var result ProcessVideosResult
	for _, name := range sources {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Videos++
		video := filepath.Join(input.VideosDir, name)
		base := clip.NameFromPath(name)

		intervals, err := readCutSheet(filepath.Join(input.VideosDir, base+".csv"))
		if errors.Is(err, os.ErrNotExist) {
			slog.Warn("process_event", "event", "no_cut_sheet", "video", name)
			result.Skipped = append(result.Skipped, name)
			continue
		}
		if err != nil {
			slog.Error("process_event", "event", "bad_cut_sheet", "video", name, "error", err)
			result.Failed = append(result.Failed, fmt.Sprintf("%s: %v", name, err))
			continue
		}

		for _, iv := range intervals {
			out := filepath.Join(input.ProcessedDir, iv.OutputName(base)+".mp4")
			if !input.Force && fileExists(out) {
				result.Existing++
				continue
			}
			if err := cutAndThumbnail(ctx, deps.Media, video, out, iv, input.ThumbnailAt); err != nil {
				slog.Error("process_event", "event", "clip_failed", "video", name, "clip", iv.Name, "error", err)
				result.Failed = append(result.Failed, fmt.Sprintf("%s: %v", iv.OutputName(base), err))
				continue
			}
			result.Clips++
			slog.Info("process_event", "event", "clip_written", "output", out)
		}
	}

	slog.Info("process_event", "event", "finished",
		"videos", result.Videos, "clips", result.Clips, "existing", result.Existing,
		"skipped", len(result.Skipped), "failed", len(result.Failed))
	return result, nil
}

func readCutSheet(path string) ([]clip.Interval, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return clip.ParseIntervals(f)
}

func cutAndThumbnail(ctx context.Context, m ProcessMedia, video, out string, iv clip.Interval, at time.Duration) error {
	err := m.ExtractClip(ctx, video, media.ClipOptions{Start: iv.Start(), End: iv.End(), Output: out})
	if err != nil {
		return err
	}
	return m.Thumbnail(ctx, out, thumbnailPath(out), at)
}

func thumbnailPath(mediaPath string) string {
	return filepath.Join(filepath.Dir(mediaPath), catalog.ThumbnailDir, clip.ThumbnailName(mediaPath))
}

// DownloadAndPassInput describes a video to add to the catalog uncut.
type DownloadAndPassInput struct {
	URL          string
	Name         string
	VideosDir    string
	ProcessedDir string
	ThumbnailAt  time.Duration
}

// DownloadAndPassDeps holds dependencies for ExecuteDownloadAndPass.
type DownloadAndPassDeps struct {
	Downloader VideoDownloader
	Media      ProcessMedia
}

// DownloadAndPassResult names the files written.
type DownloadAndPassResult struct {
	SourcePath    string
	ClipPath      string
	ThumbnailPath string
}

// ExecuteDownloadAndPass downloads a video and adds it to the catalog whole.
// PRE: deps are set; input.URL is a YouTube URL
// POST: the source stays in VideosDir with an empty cut sheet, a copy and a
// thumbnail are in ProcessedDir
func ExecuteDownloadAndPass(ctx context.Context, input DownloadAndPassInput, deps DownloadAndPassDeps) (DownloadAndPassResult, error) {
	if deps.Downloader == nil || deps.Media == nil {
		return DownloadAndPassResult{}, errors.New("downloader and media executor are required")
	}
	src, err := deps.Downloader.Download(ctx, input.URL, input.VideosDir, input.Name)
	if err != nil {
		return DownloadAndPassResult{}, err
	}

	res := DownloadAndPassResult{
		SourcePath: src.VideoPath,
		ClipPath:   filepath.Join(input.ProcessedDir, filepath.Base(src.VideoPath)),
	}
	res.ThumbnailPath = thumbnailPath(res.ClipPath)

	if err := copyFile(src.VideoPath, res.ClipPath); err != nil {
		return DownloadAndPassResult{}, fmt.Errorf("failed to copy into processed folder: %w", err)
	}
	if err := deps.Media.Thumbnail(ctx, res.ClipPath, res.ThumbnailPath, input.ThumbnailAt); err != nil {
		return DownloadAndPassResult{}, err
	}
	slog.Info("process_event", "event", "passed", "source", res.SourcePath, "output", res.ClipPath)
	return res, nil
}

func copyFile(src, dst string) (err error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = io.Copy(out, in)
	return err
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
