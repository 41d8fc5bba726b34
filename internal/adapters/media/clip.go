package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// ClipOptions describes one cut.
type ClipOptions struct {
	Start  time.Duration
	End    time.Duration
	Output string
	CRF    int
}

// ExtractClip re-encodes the [Start, End) segment of input into Output.
// PRE: End > Start, Output is non-empty
// POST: Output exists when err is nil
func (e *Executor) ExtractClip(ctx context.Context, input string, opts ClipOptions) error {
	args, err := clipArgs(input, opts)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(opts.Output), 0o755); err != nil {
		return fmt.Errorf("failed to create clip directory: %w", err)
	}
	if err := e.Run(ctx, "extract_clip", args); err != nil {
		return fmt.Errorf("clip extraction failed: %w", err)
	}
	return nil
}

func clipArgs(input string, opts ClipOptions) ([]string, error) {
	duration := opts.End - opts.Start
	if duration <= 0 {
		return nil, fmt.Errorf("invalid clip duration: end must be after start")
	}
	if opts.Output == "" {
		return nil, fmt.Errorf("clip output path is required")
	}
	crf := opts.CRF
	if crf == 0 {
		crf = DefaultCRF
	}
	return []string{
		"-i", input,
		"-ss", formatTimestamp(opts.Start),
		"-t", formatTimestamp(duration),
		"-c:v", DefaultVideoCodec,
		"-c:a", DefaultAudioCodec,
		"-crf", strconv.Itoa(crf),
		"-movflags", "+faststart",
		opts.Output,
	}, nil
}
