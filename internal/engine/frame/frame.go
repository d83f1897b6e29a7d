// Package frame holds the value types that flow through the curation
// pipeline: decoded candidates, their quality scores and fingerprints, and
// the per-candidate selection decisions.
package frame

import "time"

// Candidate is a single decoded still sampled from the source video.
//
// The pixel planes are owned by whichever pipeline stage currently holds the
// candidate. ReleasePixels frees them once scoring and fingerprinting are
// done; greedily accepted candidates keep their pixels until export.
type Candidate struct {
	// Seq is the decode sequence index, strictly increasing and unique
	// within one run.
	Seq int

	// Timestamp is the presentation time of the frame in the source.
	Timestamp time.Duration

	// SourceIndex is the frame number in the original stream before
	// sampling was applied.
	SourceIndex int

	Width  int
	Height int

	// RGB is the interleaved 8-bit RGB plane, len = Width*Height*3.
	RGB []byte

	Score       QualityScore
	Fingerprint Fingerprint
}

// ReleasePixels drops the pixel plane so the backing memory can be
// reclaimed. Metadata, score and fingerprint survive.
func (c *Candidate) ReleasePixels() {
	c.RGB = nil
}

// HasPixels reports whether the candidate still owns its pixel plane.
func (c *Candidate) HasPixels() bool {
	return len(c.RGB) > 0
}

// QualityScore is the per-frame usability triple.
type QualityScore struct {
	// Sharpness is the variance-of-Laplacian high-frequency energy of the
	// luma downsample. Higher is sharper; zero means flat.
	Sharpness float64 `json:"sharpness"`

	// Exposure is a normalized [0,1] histogram-spread score where 1 is
	// well-exposed and values near 0 indicate heavy clipping.
	Exposure float64 `json:"exposure"`

	// BlurMagnitude is the structure-tensor anisotropy of the gradient
	// field. Strong unidirectional smear scores high; an isotropic frame
	// scores near zero.
	BlurMagnitude float64 `json:"blur_magnitude"`
}

// Decision classifies what the selector did with a candidate.
type Decision string

const (
	Selected           Decision = "SELECTED"
	RejectedLowQuality Decision = "REJECTED_LOW_QUALITY"
	RejectedRedundant  Decision = "REJECTED_REDUNDANT"
	RejectedOverBudget Decision = "REJECTED_OVER_BUDGET"
)

// SelectionDecision records the outcome for one candidate that reached the
// selector, with the metric that supports the decision.
type SelectionDecision struct {
	Seq      int      `json:"seq"`
	Decision Decision `json:"decision"`

	// Metric backs the decision: sharpness for low-quality rejections,
	// fingerprint distance to the nearest accepted neighbour for redundant
	// rejections, composite rank score for over-budget demotions.
	Metric float64 `json:"metric"`

	// NearestSeq is the accepted neighbour a redundant candidate was
	// attributed to. -1 when not applicable.
	NearestSeq int `json:"nearest_seq,omitempty"`
}

// SelectedFrame is one member of the final FrameSet.
type SelectedFrame struct {
	// OutputID is the stable zero-padded identifier derived from selection
	// order, e.g. "frame_000012".
	OutputID string `json:"output_id"`

	Candidate *Candidate `json:"-"`

	Seq         int           `json:"seq"`
	SourceIndex int           `json:"source_index"`
	Timestamp   time.Duration `json:"timestamp"`
	Score       QualityScore  `json:"score"`
	Fingerprint Fingerprint   `json:"fingerprint"`
}

// FrameSet is the ordered curation output handed to the downstream
// reconstruction collaborator. It is immutable once the exporter finishes;
// a rerun supersedes it rather than mutating it.
type FrameSet struct {
	Frames []SelectedFrame

	// Relaxed reports that the diversity threshold was decayed to meet the
	// budget, so pairwise distances below the configured Dmin may occur.
	Relaxed bool

	// RelaxationRounds is how many decay rounds ran.
	RelaxationRounds int
}
