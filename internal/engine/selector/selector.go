// Package selector implements the greedy coverage-maximizing frame
// selection: quality filtering, a diversity walk against the accepted
// fingerprint set, budget enforcement and the decay-relaxation fallback for
// low-diversity footage.
package selector

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/KaedenMonroe/VIP-FLIE-GaussianSplattPipeline/internal/engine/frame"
)

// ErrNoUsableFrames means zero candidates survived quality filtering.
var ErrNoUsableFrames = errors.New("no usable frames after quality filtering")

// Composite re-ranking weights: sharpness counts above exposure.
const (
	sharpnessWeight = 0.7
	exposureWeight  = 0.3
)

// Config holds the selection thresholds. Zero values are not defaulted here;
// the engine config layer owns defaults.
type Config struct {
	// TargetCount is the frame budget K.
	TargetCount int
	// MinSharpness is Qmin: candidates below it are rejected outright.
	MinSharpness float64
	// BlurCeiling rejects candidates whose blur magnitude exceeds it.
	BlurCeiling float64
	// MinDistance is Dmin, the minimum pairwise fingerprint distance
	// between accepted frames.
	MinDistance float64
	// DistanceDecay shrinks Dmin each relaxation round (0 < decay < 1).
	DistanceDecay float64
	// MaxRelaxations caps relaxation rounds so the run always terminates.
	MaxRelaxations int
}

// Validate rejects configurations that could loop or select nothing.
func (c Config) Validate() error {
	if c.TargetCount < 1 {
		return fmt.Errorf("selector: target count must be >= 1, got %d", c.TargetCount)
	}
	if c.DistanceDecay <= 0 || c.DistanceDecay >= 1 {
		return fmt.Errorf("selector: distance decay must be in (0,1), got %g", c.DistanceDecay)
	}
	if c.MaxRelaxations < 0 {
		return fmt.Errorf("selector: max relaxations must be >= 0, got %d", c.MaxRelaxations)
	}
	return nil
}

// Result is the terminal selection outcome.
type Result struct {
	Set       frame.FrameSet
	Decisions []frame.SelectionDecision

	// UnderBudget reports that fewer than TargetCount frames survived even
	// after relaxation.
	UnderBudget bool
}

// rejected keeps a redundant candidate alive (without pixels) for the
// relaxation pool.
type rejected struct {
	cand       *frame.Candidate
	nearestSeq int
	distance   float64
}

// Selector consumes scored, fingerprinted candidates strictly in timestamp
// order. It is single-threaded state: the greedy diversity test depends on
// the evolving accepted set, so candidates must never be offered
// concurrently.
type Selector struct {
	cfg Config
	log *zap.Logger

	accepted      []*frame.Candidate
	redundantPool []rejected
	decisions     map[int]frame.SelectionDecision
	order         []int
	lastSeq       int
	finalized     bool
}

// New creates a selector for one run.
func New(cfg Config, log *zap.Logger) (*Selector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Selector{
		cfg:       cfg,
		log:       log,
		decisions: make(map[int]frame.SelectionDecision),
		lastSeq:   -1,
	}, nil
}

// Offer evaluates one candidate and returns its provisional decision. A
// candidate rejected here may still be promoted by the relaxation pass in
// Finalize; a candidate accepted here may still be demoted by budget
// enforcement. Callers may release the pixel plane of any rejected
// candidate.
func (s *Selector) Offer(c *frame.Candidate) frame.Decision {
	if c.Seq <= s.lastSeq {
		panic(fmt.Sprintf("selector: candidate seq %d offered out of order (last %d)", c.Seq, s.lastSeq))
	}
	s.lastSeq = c.Seq
	s.order = append(s.order, c.Seq)

	// Quality gate.
	if c.Score.Sharpness < s.cfg.MinSharpness {
		s.record(c.Seq, frame.RejectedLowQuality, c.Score.Sharpness, -1)
		return frame.RejectedLowQuality
	}
	if s.cfg.BlurCeiling > 0 && c.Score.BlurMagnitude > s.cfg.BlurCeiling {
		s.record(c.Seq, frame.RejectedLowQuality, c.Score.BlurMagnitude, -1)
		return frame.RejectedLowQuality
	}

	// Greedy diversity test against every accepted fingerprint, attributing
	// a rejection to the nearest accepted neighbour.
	nearestSeq, nearestDist := s.nearestAccepted(c.Fingerprint)
	if nearestSeq >= 0 && nearestDist < s.cfg.MinDistance {
		s.redundantPool = append(s.redundantPool, rejected{cand: c, nearestSeq: nearestSeq, distance: nearestDist})
		s.record(c.Seq, frame.RejectedRedundant, nearestDist, nearestSeq)
		return frame.RejectedRedundant
	}

	s.accepted = append(s.accepted, c)
	s.record(c.Seq, frame.Selected, nearestDist, -1)
	return frame.Selected
}

func (s *Selector) nearestAccepted(fp frame.Fingerprint) (int, float64) {
	nearestSeq := -1
	nearestDist := 0.0
	for _, a := range s.accepted {
		d := frame.Distance(a.Fingerprint, fp)
		if nearestSeq < 0 || d < nearestDist {
			nearestSeq = a.Seq
			nearestDist = d
		}
	}
	return nearestSeq, nearestDist
}

func (s *Selector) record(seq int, d frame.Decision, metric float64, nearest int) {
	s.decisions[seq] = frame.SelectionDecision{
		Seq:        seq,
		Decision:   d,
		Metric:     metric,
		NearestSeq: nearest,
	}
}

// Finalize enforces the budget and runs the relaxation fallback, then emits
// exactly one decision per offered candidate. Selected frames keep original
// timestamp order.
func (s *Selector) Finalize() (*Result, error) {
	if s.finalized {
		return nil, errors.New("selector: already finalized")
	}
	s.finalized = true

	if len(s.accepted) == 0 && len(s.redundantPool) == 0 {
		return nil, ErrNoUsableFrames
	}

	relaxed, rounds := s.relax()
	s.enforceBudget()

	underBudget := len(s.accepted) < s.cfg.TargetCount

	sort.Slice(s.accepted, func(i, j int) bool {
		return s.accepted[i].Timestamp < s.accepted[j].Timestamp
	})

	set := frame.FrameSet{
		Frames:           make([]frame.SelectedFrame, 0, len(s.accepted)),
		Relaxed:          relaxed,
		RelaxationRounds: rounds,
	}
	for i, c := range s.accepted {
		set.Frames = append(set.Frames, frame.SelectedFrame{
			OutputID:    fmt.Sprintf("frame_%06d", i),
			Candidate:   c,
			Seq:         c.Seq,
			SourceIndex: c.SourceIndex,
			Timestamp:   c.Timestamp,
			Score:       c.Score,
			Fingerprint: c.Fingerprint,
		})
	}

	decisions := make([]frame.SelectionDecision, 0, len(s.order))
	for _, seq := range s.order {
		decisions = append(decisions, s.decisions[seq])
	}

	return &Result{Set: set, Decisions: decisions, UnderBudget: underBudget}, nil
}

// relax decays Dmin and re-walks the redundant pool in timestamp order until
// the budget is met, the pool is drained, or the round cap is hit. This
// trades strict diversity for meeting the budget on low-diversity footage
// and always terminates.
func (s *Selector) relax() (bool, int) {
	relaxed := false
	rounds := 0
	dmin := s.cfg.MinDistance

	for len(s.accepted) < s.cfg.TargetCount && len(s.redundantPool) > 0 && rounds < s.cfg.MaxRelaxations {
		rounds++
		dmin *= s.cfg.DistanceDecay
		relaxed = true

		var still []rejected
		for _, r := range s.redundantPool {
			if len(s.accepted) >= s.cfg.TargetCount {
				still = append(still, r)
				continue
			}
			nearestSeq, nearestDist := s.nearestAccepted(r.cand.Fingerprint)
			if nearestSeq >= 0 && nearestDist < dmin {
				still = append(still, r)
				continue
			}
			s.accepted = append(s.accepted, r.cand)
			s.record(r.cand.Seq, frame.Selected, nearestDist, -1)
		}
		s.redundantPool = still

		s.log.Debug("diversity threshold relaxed",
			zap.Int("round", rounds),
			zap.Float64("dmin", dmin),
			zap.Int("accepted", len(s.accepted)),
			zap.Int("pool", len(s.redundantPool)),
		)
	}
	return relaxed, rounds
}

// enforceBudget demotes the weakest accepted frames by composite score when
// the greedy pass overshot the budget.
func (s *Selector) enforceBudget() {
	if len(s.accepted) <= s.cfg.TargetCount {
		return
	}

	maxSharp := 0.0
	for _, c := range s.accepted {
		if c.Score.Sharpness > maxSharp {
			maxSharp = c.Score.Sharpness
		}
	}
	composite := func(c *frame.Candidate) float64 {
		sharp := 0.0
		if maxSharp > 0 {
			sharp = c.Score.Sharpness / maxSharp
		}
		return sharpnessWeight*sharp + exposureWeight*c.Score.Exposure
	}

	ranked := make([]*frame.Candidate, len(s.accepted))
	copy(ranked, s.accepted)
	sort.SliceStable(ranked, func(i, j int) bool {
		return composite(ranked[i]) > composite(ranked[j])
	})

	for _, c := range ranked[s.cfg.TargetCount:] {
		s.record(c.Seq, frame.RejectedOverBudget, composite(c), -1)
		c.ReleasePixels()
	}
	s.accepted = ranked[:s.cfg.TargetCount]
}
