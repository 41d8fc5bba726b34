package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"mytube/internal/adapters/http/perf"
)

// VideoInfo is the subset of ffprobe output the kiosk uses.
type VideoInfo struct {
	Path     string
	Duration time.Duration
	Width    int
	Height   int
	HasAudio bool
}

// Probe reads container and stream metadata.
// PRE: path is non-empty
// POST: Returns the parsed metadata or an error
func (e *Executor) Probe(ctx context.Context, path string) (VideoInfo, error) {
	if path == "" {
		return VideoInfo{}, fmt.Errorf("file path is required")
	}
	start := time.Now()
	cmd := exec.CommandContext(ctx, e.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	output, err := cmd.Output()
	e.collector.Since(perf.KindTranscode, "ffprobe", start)
	if err != nil {
		return VideoInfo{}, fmt.Errorf("ffprobe failed: %w", err)
	}
	return parseProbe(path, output)
}

// probeResult matches the ffprobe JSON fields read by parseProbe.
type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

func parseProbe(path string, output []byte) (VideoInfo, error) {
	var probe probeResult
	if err := json.Unmarshal(output, &probe); err != nil {
		return VideoInfo{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	info := VideoInfo{Path: path}
	if dur, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
		info.Duration = time.Duration(dur * float64(time.Second))
	}
	for _, stream := range probe.Streams {
		switch stream.CodecType {
		case "video":
			if info.Width == 0 {
				info.Width = stream.Width
				info.Height = stream.Height
			}
		case "audio":
			info.HasAudio = true
		}
	}
	return info, nil
}
