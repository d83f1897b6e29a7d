package engine

import (
	"time"

	"github.com/KaedenMonroe/VIP-FLIE-GaussianSplattPipeline/internal/engine/decode"
	"github.com/KaedenMonroe/VIP-FLIE-GaussianSplattPipeline/internal/engine/frame"
)

// Stage names the pipeline state machine states.
type Stage string

const (
	StageIdle      Stage = "idle"
	StageDecoding  Stage = "decoding"
	StageScoring   Stage = "scoring"
	StageSelecting Stage = "selecting"
	StageExporting Stage = "exporting"
	StageDone      Stage = "done"
)

// State is the terminal outcome of a run.
type State string

const (
	StateDone             State = "DONE"
	StateDoneWithWarnings State = "DONE_WITH_WARNINGS"
	StateFailed           State = "FAILED"
	StateCancelled        State = "CANCELLED"
)

// Progress is one progress event: the current stage, how many frames that
// stage has processed, and the total estimate (zero when unknown).
type Progress struct {
	Stage     Stage
	Processed int
	Total     int
}

// Result is the terminal report of one pipeline run.
type Result struct {
	State State

	// SourceDuration is the probed length of the input video.
	SourceDuration time.Duration

	// FailedStage and Err are set when State is StateFailed.
	FailedStage Stage
	Err         error

	// Warnings accumulates non-fatal conditions: decode gaps, failed
	// exports, under-budget selection.
	Warnings []string

	// Gaps are the corrupt segments skipped during decode.
	Gaps []decode.Gap

	// UnderBudget reports fewer selected frames than the target even after
	// relaxation.
	UnderBudget bool
	// Relaxed reports that the diversity threshold was decayed.
	Relaxed bool
	// RelaxationRounds is how many decay rounds ran.
	RelaxationRounds int

	// CandidateCount is how many candidates reached the selector.
	CandidateCount int
	// SelectedCount is the size of the exported FrameSet.
	SelectedCount int
	// ExportedCount is how many frames were actually written; it trails
	// SelectedCount when individual writes failed or the run was cancelled
	// mid-export.
	ExportedCount int

	// FailedExports lists output identifiers whose writes failed.
	FailedExports []string

	// Decisions holds one decision per candidate that reached the selector.
	Decisions []frame.SelectionDecision

	// Set is the final FrameSet (nil when the run failed before selection).
	Set *frame.FrameSet

	// FramesDir and ManifestPath locate the exported artifacts.
	FramesDir    string
	ManifestPath string
}

// Succeeded reports whether the run produced a usable FrameSet.
func (r *Result) Succeeded() bool {
	return r.State == StateDone || r.State == StateDoneWithWarnings
}
