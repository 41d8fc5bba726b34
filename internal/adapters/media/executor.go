package media

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"mytube/internal/adapters/http/perf"
)

// Encoding defaults for cut clips.
const (
	DefaultCRF        = 23
	DefaultVideoCodec = "libx264"
	DefaultAudioCodec = "aac"
)

// stderrTail is how many ffmpeg output lines are kept for error messages.
const stderrTail = 8

// Options selects the binaries and encoder threads. Empty paths are
// resolved from PATH.
type Options struct {
	FFmpegPath  string
	FFprobePath string
	Threads     int
}

// Executor runs ffmpeg and ffprobe.
type Executor struct {
	ffmpegPath  string
	ffprobePath string
	threads     int
	collector   *perf.Collector
}

// New resolves the binaries and returns an Executor.
// PRE: none
// POST: Returns an Executor or an error naming the missing binary
func New(opts Options, collector *perf.Collector) (*Executor, error) {
	ffmpegPath, err := resolve(opts.FFmpegPath, "ffmpeg")
	if err != nil {
		return nil, err
	}
	ffprobePath, err := resolve(opts.FFprobePath, "ffprobe")
	if err != nil {
		return nil, err
	}
	return &Executor{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		threads:     opts.Threads,
		collector:   collector,
	}, nil
}

func resolve(configured, name string) (string, error) {
	if configured == "" {
		configured = name
	}
	path, err := exec.LookPath(configured)
	if err != nil {
		return "", fmt.Errorf("%s not found: %w", name, err)
	}
	return path, nil
}

// baseArgs are prepended to every ffmpeg invocation.
func (e *Executor) baseArgs() []string {
	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	if e.threads > 0 {
		args = append(args, "-threads", strconv.Itoa(e.threads))
	}
	return args
}

// Run executes ffmpeg with args and records the duration under step.
// PRE: args is non-empty
// POST: returns nil when ffmpeg exits 0; otherwise the error carries the
// last lines ffmpeg printed
func (e *Executor) Run(ctx context.Context, step string, args []string) error {
	if len(args) == 0 {
		return errors.New("no ffmpeg arguments provided")
	}
	full := append(e.baseArgs(), args...)
	slog.Debug("media_event", "event", "ffmpeg_start", "step", step, "args", strings.Join(full, " "))

	start := time.Now()
	cmd := exec.CommandContext(ctx, e.ffmpegPath, full...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	tail := collectTail(stderr, stderrTail)
	err = cmd.Wait()
	durationMs := e.collector.Since(perf.KindTranscode, "ffmpeg."+step, start)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		slog.Warn("media_event", "event", "ffmpeg_failed", "step", step, "duration_ms", durationMs, "error", err)
		if len(tail) > 0 {
			return fmt.Errorf("ffmpeg %s failed: %w: %s", step, err, strings.Join(tail, " | "))
		}
		return fmt.Errorf("ffmpeg %s failed: %w", step, err)
	}
	slog.Info("media_event", "event", "ffmpeg_done", "step", step, "duration_ms", durationMs)
	return nil
}

// collectTail drains r, logging each line and keeping the last n.
func collectTail(r io.Reader, n int) []string {
	var tail []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		slog.Debug("media_event", "event", "ffmpeg_output", "line", line)
		tail = append(tail, line)
		if len(tail) > n {
			tail = tail[1:]
		}
	}
	return tail
}

// formatTimestamp renders d as an ffmpeg HH:MM:SS.mmm timestamp.
func formatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	seconds := d.Seconds()
	hours := int(seconds / 3600)
	minutes := int((seconds - float64(hours*3600)) / 60)
	secs := seconds - float64(hours*3600) - float64(minutes*60)
	return fmt.Sprintf("%02d:%02d:%06.3f", hours, minutes, secs)
}
