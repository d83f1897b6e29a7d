// Package decode turns a video container into a lazy, seekable sequence of
// raw candidate frames using ffmpeg and ffprobe.
package decode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/KaedenMonroe/VIP-FLIE-GaussianSplattPipeline/internal/engine/frame"
)

var (
	// ErrUnreadableSource means the container could not be opened at all.
	ErrUnreadableSource = errors.New("unreadable video source")

	// ErrCorruptStream means decoding failed at the very first frame even
	// after bounded seek-forward retries.
	ErrCorruptStream = errors.New("corrupt video stream")
)

// maxRetries bounds seek-forward recovery attempts per corrupt segment.
const maxRetries = 3

// retrySkip is how far each recovery attempt seeks past the failure point.
const retrySkip = time.Second

// SamplingMode chooses how candidate frames are sampled from the stream.
type SamplingMode string

const (
	// SampleEveryNth keeps every Nth source frame.
	SampleEveryNth SamplingMode = "nth"
	// SampleInterval keeps one frame every fixed wall-clock interval.
	SampleInterval SamplingMode = "interval"
)

// Sampling is the decoder sampling policy.
type Sampling struct {
	Mode     SamplingMode
	EveryN   int
	Interval time.Duration
}

// Gap records a corrupt segment that was skipped instead of aborting the run.
type Gap struct {
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
	Cause string        `json:"cause"`
}

// Decoder yields candidate frames in strictly increasing timestamp order.
// It owns the ffmpeg process and the source handle for the lifetime of one
// run; Close releases both.
type Decoder struct {
	info     SourceInfo
	sampling Sampling
	log      *zap.Logger

	cmd    *exec.Cmd
	stdout io.ReadCloser

	frameBytes int
	step       time.Duration
	pos        time.Duration
	seq        int
	gaps       []Gap
	produced   int
	closed     bool
}

// NewDecoder starts decoding info.Path from the beginning with the given
// sampling policy.
func NewDecoder(ctx context.Context, info SourceInfo, sampling Sampling, log *zap.Logger) (*Decoder, error) {
	step, err := samplingStep(info, sampling)
	if err != nil {
		return nil, err
	}

	d := &Decoder{
		info:       info,
		sampling:   sampling,
		log:        log,
		frameBytes: info.Width * info.Height * 3,
		step:       step,
	}
	if err := d.start(ctx, 0); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableSource, err)
	}
	return d, nil
}

func samplingStep(info SourceInfo, s Sampling) (time.Duration, error) {
	switch s.Mode {
	case SampleEveryNth:
		if s.EveryN < 1 {
			return 0, fmt.Errorf("sampling: every-nth value must be >= 1, got %d", s.EveryN)
		}
		return time.Duration(float64(s.EveryN) / info.FrameRate * float64(time.Second)), nil
	case SampleInterval:
		if s.Interval <= 0 {
			return 0, fmt.Errorf("sampling: interval must be positive, got %s", s.Interval)
		}
		return s.Interval, nil
	default:
		return 0, fmt.Errorf("sampling: unknown mode %q", s.Mode)
	}
}

// outputFPS is the rate handed to the ffmpeg fps filter.
func (d *Decoder) outputFPS() float64 {
	return float64(time.Second) / float64(d.step)
}

func (d *Decoder) start(ctx context.Context, from time.Duration) error {
	args := []string{"-v", "error"}
	if from > 0 {
		args = append(args, "-ss", fmt.Sprintf("%.3f", from.Seconds()))
	}
	args = append(args,
		"-i", d.info.Path,
		"-vf", fmt.Sprintf("fps=%.6f", d.outputFPS()),
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"pipe:1",
	)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	d.cmd = cmd
	d.stdout = stdout
	d.pos = from
	return nil
}

func (d *Decoder) stop() {
	if d.cmd == nil {
		return
	}
	d.stdout.Close()
	if d.cmd.Process != nil {
		_ = d.cmd.Process.Kill()
	}
	_ = d.cmd.Wait()
	d.cmd = nil
	d.stdout = nil
}

// Next returns the next sampled frame, or io.EOF when the stream is
// exhausted. A mid-stream decode failure triggers bounded seek-forward
// recovery; the skipped segment is recorded as a gap. Only a failure at the
// very first frame, with retries exhausted, is fatal.
func (d *Decoder) Next(ctx context.Context) (*frame.Candidate, error) {
	if d.closed {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf := make([]byte, d.frameBytes)
	_, err := io.ReadFull(d.stdout, buf)
	if err == nil {
		return d.emit(buf), nil
	}

	// A clean ffmpeg exit on a frame boundary is the normal end of stream.
	waitErr := d.cmd.Wait()
	d.cmd = nil
	d.stdout = nil
	if errors.Is(err, io.EOF) && waitErr == nil {
		d.closed = true
		return nil, io.EOF
	}

	return d.recover(ctx, buf, failCause(err, waitErr))
}

// recover seeks forward past a corrupt segment and resumes decoding.
func (d *Decoder) recover(ctx context.Context, buf []byte, cause string) (*frame.Candidate, error) {
	failedAt := d.pos

	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resumeAt := failedAt + time.Duration(attempt)*retrySkip
		if d.info.Duration > 0 && resumeAt >= d.info.Duration {
			break
		}

		d.log.Warn("decode failure, seeking forward",
			zap.Duration("failed_at", failedAt),
			zap.Duration("resume_at", resumeAt),
			zap.Int("attempt", attempt),
			zap.String("cause", cause),
		)

		d.stop()
		if err := d.start(ctx, resumeAt); err != nil {
			continue
		}
		if _, err := io.ReadFull(d.stdout, buf); err != nil {
			continue
		}

		d.gaps = append(d.gaps, Gap{Start: failedAt, End: resumeAt, Cause: cause})
		return d.emit(buf), nil
	}

	d.stop()
	d.closed = true

	if d.produced == 0 {
		return nil, fmt.Errorf("%w: %s (retries exhausted at first frame)", ErrCorruptStream, cause)
	}

	// Retries exhausted mid-stream: give up on the tail, record it as a gap
	// and end the sequence instead of failing the run.
	end := d.info.Duration
	if end < failedAt {
		end = failedAt
	}
	d.gaps = append(d.gaps, Gap{Start: failedAt, End: end, Cause: cause})
	d.log.Warn("decode retries exhausted, truncating stream",
		zap.Duration("failed_at", failedAt),
		zap.String("cause", cause),
	)
	return nil, io.EOF
}

func (d *Decoder) emit(buf []byte) *frame.Candidate {
	c := &frame.Candidate{
		Seq:         d.seq,
		Timestamp:   d.pos,
		SourceIndex: int(d.pos.Seconds()*d.info.FrameRate + 0.5),
		Width:       d.info.Width,
		Height:      d.info.Height,
		RGB:         buf,
	}
	d.seq++
	d.produced++
	d.pos += d.step
	return c
}

func failCause(readErr, waitErr error) string {
	if waitErr != nil {
		return fmt.Sprintf("ffmpeg: %v", waitErr)
	}
	return fmt.Sprintf("short read: %v", readErr)
}

// Gaps returns the corrupt segments skipped during this run.
func (d *Decoder) Gaps() []Gap {
	return d.gaps
}

// EstimateTotal is the expected number of sampled frames, used for progress
// reporting. Zero when the container reports no duration.
func (d *Decoder) EstimateTotal() int {
	if d.info.Duration <= 0 || d.step <= 0 {
		return 0
	}
	return int(d.info.Duration/d.step) + 1
}

// PixelsAt re-decodes the single frame nearest the given timestamp. The
// exporter uses it to recover pixel planes that were released before the
// relaxation pass re-admitted their frames.
func (d *Decoder) PixelsAt(ctx context.Context, ts time.Duration) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-v", "error",
		"-ss", fmt.Sprintf("%.3f", ts.Seconds()),
		"-i", d.info.Path,
		"-frames:v", "1",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"pipe:1",
	)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("re-decode frame at %s: %w", ts, err)
	}
	if len(out) < d.frameBytes {
		return nil, fmt.Errorf("re-decode frame at %s: short output (%d bytes)", ts, len(out))
	}
	return out[:d.frameBytes], nil
}

// Close stops the ffmpeg process and releases the source.
func (d *Decoder) Close() error {
	d.stop()
	d.closed = true
	return nil
}
