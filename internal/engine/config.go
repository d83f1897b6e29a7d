package engine

import (
	"fmt"
	"time"

	"github.com/KaedenMonroe/VIP-FLIE-GaussianSplattPipeline/internal/engine/decode"
	"github.com/KaedenMonroe/VIP-FLIE-GaussianSplattPipeline/internal/engine/selector"
)

// Config is the immutable per-run configuration passed through the
// coordinator to every stage. There is no process-wide mutable state.
type Config struct {
	// SamplingMode is "nth" or "interval".
	SamplingMode string
	// SampleEveryN is the N for nth mode.
	SampleEveryN int
	// SampleInterval is the period for interval mode.
	SampleInterval time.Duration

	// TargetFrameCount is the budget K.
	TargetFrameCount int
	// MinSharpness is Qmin.
	MinSharpness float64
	// BlurCeiling rejects frames with higher blur magnitude.
	BlurCeiling float64
	// MinDistance is Dmin, the minimum fingerprint distance between
	// selected frames (Hamming bits).
	MinDistance float64
	// DistanceDecay shrinks Dmin per relaxation round.
	DistanceDecay float64
	// MaxRelaxations hard-caps relaxation rounds.
	MaxRelaxations int

	// ScoreWorkers bounds the scoring/fingerprinting worker pool.
	ScoreWorkers int

	// OutputDir receives the exported frames and manifest.
	OutputDir string
}

// DefaultConfig returns the documented safe defaults. The relaxation decay
// and round cap guarantee termination on low-diversity footage.
func DefaultConfig() Config {
	return Config{
		SamplingMode:     string(decode.SampleEveryNth),
		SampleEveryN:     5,
		SampleInterval:   time.Second,
		TargetFrameCount: 300,
		MinSharpness:     40,
		BlurCeiling:      15,
		MinDistance:      8,
		DistanceDecay:    0.7,
		MaxRelaxations:   5,
		ScoreWorkers:     4,
	}
}

// Validate checks the configuration before a run starts.
func (c Config) Validate() error {
	switch decode.SamplingMode(c.SamplingMode) {
	case decode.SampleEveryNth:
		if c.SampleEveryN < 1 {
			return fmt.Errorf("engine config: sample every-n must be >= 1, got %d", c.SampleEveryN)
		}
	case decode.SampleInterval:
		if c.SampleInterval <= 0 {
			return fmt.Errorf("engine config: sample interval must be positive, got %s", c.SampleInterval)
		}
	default:
		return fmt.Errorf("engine config: unknown sampling mode %q", c.SamplingMode)
	}
	if c.ScoreWorkers < 1 {
		return fmt.Errorf("engine config: score workers must be >= 1, got %d", c.ScoreWorkers)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("engine config: output dir is required")
	}
	return c.selectorConfig().Validate()
}

func (c Config) selectorConfig() selector.Config {
	return selector.Config{
		TargetCount:    c.TargetFrameCount,
		MinSharpness:   c.MinSharpness,
		BlurCeiling:    c.BlurCeiling,
		MinDistance:    c.MinDistance,
		DistanceDecay:  c.DistanceDecay,
		MaxRelaxations: c.MaxRelaxations,
	}
}

func (c Config) sampling() decode.Sampling {
	return decode.Sampling{
		Mode:     decode.SamplingMode(c.SamplingMode),
		EveryN:   c.SampleEveryN,
		Interval: c.SampleInterval,
	}
}
