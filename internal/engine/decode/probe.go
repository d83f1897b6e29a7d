package decode

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// SourceInfo describes the video container as reported by ffprobe.
type SourceInfo struct {
	Path      string
	Duration  time.Duration
	FrameRate float64
	Width     int
	Height    int
}

// Probe opens the container with ffprobe and reads duration, nominal frame
// rate and resolution. A container that cannot be opened yields
// ErrUnreadableSource.
func Probe(ctx context.Context, path string) (SourceInfo, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return SourceInfo{}, fmt.Errorf("%w: ffprobe %s: %v", ErrUnreadableSource, path, err)
	}

	info, err := parseProbeOutput(string(output))
	if err != nil {
		return SourceInfo{}, fmt.Errorf("%w: %s: %v", ErrUnreadableSource, path, err)
	}
	info.Path = path
	return info, nil
}

func parseProbeOutput(out string) (SourceInfo, error) {
	var info SourceInfo
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		key, value, ok := strings.Cut(line, "=")
		if !ok || value == "" || value == "N/A" {
			continue
		}
		switch key {
		case "width":
			info.Width, _ = strconv.Atoi(value)
		case "height":
			info.Height, _ = strconv.Atoi(value)
		case "r_frame_rate":
			info.FrameRate = parseRational(value)
		case "duration":
			secs, err := strconv.ParseFloat(value, 64)
			if err == nil {
				info.Duration = time.Duration(secs * float64(time.Second))
			}
		}
	}

	if info.Width <= 0 || info.Height <= 0 {
		return SourceInfo{}, fmt.Errorf("no video stream dimensions in probe output")
	}
	if info.FrameRate <= 0 {
		return SourceInfo{}, fmt.Errorf("no valid frame rate in probe output")
	}
	return info, nil
}

// parseRational handles ffprobe rate strings like "30000/1001" or "25".
func parseRational(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		v, _ := strconv.ParseFloat(s, 64)
		return v
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}
