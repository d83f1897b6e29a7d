package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/KaedenMonroe/VIP-FLIE-GaussianSplattPipeline/internal/domain/entity"
	"github.com/KaedenMonroe/VIP-FLIE-GaussianSplattPipeline/internal/domain/port"
	"github.com/KaedenMonroe/VIP-FLIE-GaussianSplattPipeline/internal/engine/decode"
	"github.com/KaedenMonroe/VIP-FLIE-GaussianSplattPipeline/internal/engine/selector"
)

// Service adapts the engine to the port.Curator interface the use case
// depends on. It carries the worker-level defaults; per-job options
// override them.
type Service struct {
	defaults Config
	log      *zap.Logger
}

// NewService wraps the default engine configuration.
func NewService(defaults Config, log *zap.Logger) *Service {
	return &Service{defaults: defaults, log: log}
}

// Curate runs one pipeline and forwards progress events to onProgress.
func (s *Service) Curate(ctx context.Context, spec port.CurationSpec, onProgress func(port.ProgressUpdate)) (*port.CurationSummary, error) {
	cfg := s.defaults
	cfg.OutputDir = spec.OutputDir
	applyOptions(&cfg, spec.Options)

	eng, err := New(cfg, s.log)
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range eng.Events() {
			if onProgress != nil {
				onProgress(port.ProgressUpdate{
					Stage:     string(p.Stage),
					Processed: p.Processed,
					Total:     p.Total,
				})
			}
		}
	}()

	res, runErr := eng.Run(ctx, spec.VideoPath)
	<-done
	if runErr != nil {
		if deterministic(runErr) {
			runErr = fmt.Errorf("%w: %w", port.ErrUnprocessableVideo, runErr)
		}
		return summarize(res), runErr
	}
	return summarize(res), nil
}

// deterministic reports failures fixed by the video content itself, which
// no retry of the same job can change.
func deterministic(err error) bool {
	return errors.Is(err, selector.ErrNoUsableFrames) ||
		errors.Is(err, decode.ErrCorruptStream) ||
		errors.Is(err, decode.ErrUnreadableSource)
}

func summarize(res *Result) *port.CurationSummary {
	if res == nil {
		return nil
	}
	return &port.CurationSummary{
		State:             string(res.State),
		FailedStage:       string(res.FailedStage),
		VideoDurationSecs: res.SourceDuration.Seconds(),
		CandidateCount:    res.CandidateCount,
		SelectedCount:     res.SelectedCount,
		ExportedCount:     res.ExportedCount,
		UnderBudget:       res.UnderBudget,
		RelaxationRounds:  res.RelaxationRounds,
		Warnings:          res.Warnings,
		FailedExports:     res.FailedExports,
		FramesDir:         res.FramesDir,
		ManifestPath:      res.ManifestPath,
	}
}

func applyOptions(cfg *Config, opts *entity.CurationOptions) {
	if opts == nil {
		return
	}
	if opts.SamplingMode != "" {
		cfg.SamplingMode = opts.SamplingMode
	}
	if opts.SampleEveryN != nil {
		cfg.SampleEveryN = *opts.SampleEveryN
	}
	if opts.SampleIntervalSecs != nil {
		cfg.SampleInterval = time.Duration(*opts.SampleIntervalSecs * float64(time.Second))
	}
	if opts.TargetFrameCount != nil {
		cfg.TargetFrameCount = *opts.TargetFrameCount
	}
	if opts.QualityThreshold != nil {
		cfg.MinSharpness = *opts.QualityThreshold
	}
	if opts.BlurCeiling != nil {
		cfg.BlurCeiling = *opts.BlurCeiling
	}
	if opts.DiversityThreshold != nil {
		cfg.MinDistance = *opts.DiversityThreshold
	}
	if opts.DiversityDecay != nil {
		cfg.DistanceDecay = *opts.DiversityDecay
	}
	if opts.MaxRelaxations != nil {
		cfg.MaxRelaxations = *opts.MaxRelaxations
	}
}
