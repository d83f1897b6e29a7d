// Package export writes the final FrameSet to disk in the layout the
// downstream reconstruction stage consumes: one PNG per selected frame plus
// a single manifest.json.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/KaedenMonroe/VIP-FLIE-GaussianSplattPipeline/internal/engine/frame"
)

// ErrWriteFailure marks an I/O error while writing a frame or the manifest.
// Per-frame write failures are non-fatal for the run; the failed identifiers
// are reported so a rerun can resume.
var ErrWriteFailure = errors.New("frame write failure")

// ManifestName is the metadata file written next to the frames.
const ManifestName = "manifest.json"

// PixelSource recovers the RGB plane of a frame whose buffer was released
// before selection finished (relaxation re-admissions). The decoder's
// seek-based re-decode satisfies it.
type PixelSource interface {
	PixelsAt(ctx context.Context, ts time.Duration) ([]byte, error)
}

// ManifestEntry is one frame's metadata record in the manifest.
type ManifestEntry struct {
	OutputID    string             `json:"output_id"`
	File        string             `json:"file"`
	TimestampMs int64              `json:"timestamp_ms"`
	SourceIndex int                `json:"source_index"`
	Seq         int                `json:"seq"`
	Score       frame.QualityScore `json:"score"`
	Fingerprint string             `json:"fingerprint"`
}

// Manifest is the single metadata artifact consumed by the reconstruction
// collaborator. It carries no wall-clock fields so re-exporting the same
// FrameSet is byte-for-byte idempotent.
type Manifest struct {
	FrameCount       int             `json:"frame_count"`
	Relaxed          bool            `json:"relaxed"`
	RelaxationRounds int             `json:"relaxation_rounds"`
	Frames           []ManifestEntry `json:"frames"`
}

// FailedFrame names a frame that could not be written, with its cause.
type FailedFrame struct {
	OutputID string
	Err      error
}

// Exporter writes FrameSets into a target directory. Re-exporting an
// already-written identifier overwrites it.
type Exporter struct {
	dir string
	log *zap.Logger
}

// New creates an exporter rooted at dir, creating it if needed.
func New(dir string, log *zap.Logger) (*Exporter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	return &Exporter{dir: dir, log: log}, nil
}

// Dir returns the export root.
func (e *Exporter) Dir() string {
	return e.dir
}

// Export writes every selected frame and the manifest. A frame whose pixels
// were released is recovered through src. Per-frame failures are collected
// and returned; only a manifest write failure fails the call outright.
func (e *Exporter) Export(ctx context.Context, set *frame.FrameSet, src PixelSource) (*Manifest, []FailedFrame, error) {
	manifest := &Manifest{
		FrameCount:       len(set.Frames),
		Relaxed:          set.Relaxed,
		RelaxationRounds: set.RelaxationRounds,
		Frames:           make([]ManifestEntry, 0, len(set.Frames)),
	}

	// Cancellation is observed between frames, never mid-write. Frames
	// already written stay on disk and in the manifest so a rerun can
	// resume idempotently.
	var failed []FailedFrame
	var cancelErr error
	for i := range set.Frames {
		if err := ctx.Err(); err != nil {
			cancelErr = err
			break
		}

		sf := &set.Frames[i]
		fileName := sf.OutputID + ".png"
		if err := e.writeFrame(ctx, sf, src, fileName); err != nil {
			e.log.Warn("frame export failed",
				zap.String("output_id", sf.OutputID),
				zap.Error(err),
			)
			failed = append(failed, FailedFrame{OutputID: sf.OutputID, Err: err})
			continue
		}

		manifest.Frames = append(manifest.Frames, ManifestEntry{
			OutputID:    sf.OutputID,
			File:        fileName,
			TimestampMs: sf.Timestamp.Milliseconds(),
			SourceIndex: sf.SourceIndex,
			Seq:         sf.Seq,
			Score:       sf.Score,
			Fingerprint: sf.Fingerprint.Hex(),
		})
	}

	manifest.FrameCount = len(manifest.Frames)
	if err := e.writeManifest(manifest); err != nil {
		return nil, failed, err
	}
	return manifest, failed, cancelErr
}

func (e *Exporter) writeFrame(ctx context.Context, sf *frame.SelectedFrame, src PixelSource, fileName string) error {
	c := sf.Candidate
	rgb := c.RGB
	if len(rgb) == 0 {
		if src == nil {
			return fmt.Errorf("%w: %s: pixels released and no pixel source", ErrWriteFailure, sf.OutputID)
		}
		recovered, err := src.PixelsAt(ctx, sf.Timestamp)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrWriteFailure, sf.OutputID, err)
		}
		rgb = recovered
	}

	img := image.NewRGBA(image.Rect(0, 0, c.Width, c.Height))
	for i := 0; i < c.Width*c.Height; i++ {
		img.Pix[i*4] = rgb[i*3]
		img.Pix[i*4+1] = rgb[i*3+1]
		img.Pix[i*4+2] = rgb[i*3+2]
		img.Pix[i*4+3] = 0xff
	}

	path := filepath.Join(e.dir, fileName)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWriteFailure, sf.OutputID, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("%w: %s: %v", ErrWriteFailure, sf.OutputID, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWriteFailure, sf.OutputID, err)
	}
	return nil
}

// writeManifest writes atomically via rename so a crashed export never
// leaves a truncated manifest behind.
func (e *Exporter) writeManifest(m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	data = append(data, '\n')

	tmp := filepath.Join(e.dir, ManifestName+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: manifest: %v", ErrWriteFailure, err)
	}
	if err := os.Rename(tmp, filepath.Join(e.dir, ManifestName)); err != nil {
		return fmt.Errorf("%w: manifest: %v", ErrWriteFailure, err)
	}
	return nil
}
