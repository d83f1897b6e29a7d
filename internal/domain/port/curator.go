package port

import (
	"context"
	"errors"

	"github.com/KaedenMonroe/VIP-FLIE-GaussianSplattPipeline/internal/domain/entity"
)

// ErrUnprocessableVideo marks a video the engine can never curate: the
// outcome is determined by the content, so retrying the job cannot succeed.
var ErrUnprocessableVideo = errors.New("unprocessable video")

// ProgressUpdate mirrors the engine's progress events for transport.
type ProgressUpdate struct {
	Stage     string
	Processed int
	Total     int
}

// CurationSpec is one curation run: a local video path, the directory the
// FrameSet should land in, and per-job option overrides.
type CurationSpec struct {
	VideoPath string
	OutputDir string
	Options   *entity.CurationOptions
}

// CurationSummary is the curator's terminal report.
type CurationSummary struct {
	State             string
	FailedStage       string
	VideoDurationSecs float64
	CandidateCount    int
	SelectedCount     int
	ExportedCount     int
	UnderBudget       bool
	RelaxationRounds  int
	Warnings          []string
	FailedExports     []string
	FramesDir         string
	ManifestPath      string
}

// Cancelled reports a user-requested terminal state, which is not an error.
func (s *CurationSummary) Cancelled() bool {
	return s.State == "CANCELLED"
}

// Curator runs the frame extraction and selection engine.
type Curator interface {
	Curate(ctx context.Context, spec CurationSpec, onProgress func(ProgressUpdate)) (*CurationSummary, error)
}
