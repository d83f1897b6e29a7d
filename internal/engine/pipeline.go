// Package engine coordinates the frame curation pipeline: decode, score,
// fingerprint, select and export. Decode runs on a single goroutine,
// scoring and fingerprinting fan out to a bounded worker pool, and results
// are re-sequenced before the strictly sequential selector.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/KaedenMonroe/VIP-FLIE-GaussianSplattPipeline/internal/engine/decode"
	"github.com/KaedenMonroe/VIP-FLIE-GaussianSplattPipeline/internal/engine/export"
	"github.com/KaedenMonroe/VIP-FLIE-GaussianSplattPipeline/internal/engine/fingerprint"
	"github.com/KaedenMonroe/VIP-FLIE-GaussianSplattPipeline/internal/engine/frame"
	"github.com/KaedenMonroe/VIP-FLIE-GaussianSplattPipeline/internal/engine/score"
	"github.com/KaedenMonroe/VIP-FLIE-GaussianSplattPipeline/internal/engine/selector"
	"github.com/KaedenMonroe/VIP-FLIE-GaussianSplattPipeline/internal/infra/metrics"
)

// frameSource is the lazy candidate sequence the coordinator consumes. The
// ffmpeg decoder satisfies it; tests substitute synthetic sources.
type frameSource interface {
	Next(ctx context.Context) (*frame.Candidate, error)
	Gaps() []decode.Gap
	EstimateTotal() int
	Close() error
}

// Engine runs one curation pipeline. Create a fresh Engine per run; the
// progress channel is closed when Run returns.
type Engine struct {
	cfg    Config
	log    *zap.Logger
	events chan Progress
}

// New validates the configuration and prepares a single-run engine.
func New(cfg Config, log *zap.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:    cfg,
		log:    log,
		events: make(chan Progress, 64),
	}
	// A fresh engine sits idle until Run starts decoding; the buffered
	// channel holds the event for consumers that attach later.
	e.emit(Progress{Stage: StageIdle})
	return e, nil
}

// Events is the one-way progress channel. Sends never block: if the
// consumer lags, events are dropped rather than stalling the pipeline.
func (e *Engine) Events() <-chan Progress {
	return e.events
}

func (e *Engine) emit(p Progress) {
	select {
	case e.events <- p:
	default:
	}
}

// Run executes the full pipeline against the video at path. The returned
// error is non-nil only when the run failed; cancellation and
// success-with-warnings are reported through the Result state.
func (e *Engine) Run(ctx context.Context, videoPath string) (*Result, error) {
	defer close(e.events)

	tracer := otel.Tracer("engine")
	ctx, span := tracer.Start(ctx, "engine.Run")
	defer span.End()
	span.SetAttributes(attribute.String("video.path", videoPath))

	e.emit(Progress{Stage: StageDecoding})

	info, err := decode.Probe(ctx, videoPath)
	if err != nil {
		return e.failed(StageDecoding, err)
	}
	e.log.Info("video source opened",
		zap.String("path", videoPath),
		zap.Duration("duration", info.Duration),
		zap.Float64("fps", info.FrameRate),
		zap.Int("width", info.Width),
		zap.Int("height", info.Height),
	)

	dec, err := decode.NewDecoder(ctx, info, e.cfg.sampling(), e.log)
	if err != nil {
		return e.failed(StageDecoding, err)
	}
	defer dec.Close()

	res, runErr := e.run(ctx, dec, dec)
	if res != nil {
		res.SourceDuration = info.Duration
	}
	return res, runErr
}

// run is the coordinator body, split from Run so tests can inject a
// synthetic frame source.
func (e *Engine) run(ctx context.Context, src frameSource, pix export.PixelSource) (*Result, error) {
	tracer := otel.Tracer("engine")

	sel, err := selector.New(e.cfg.selectorConfig(), e.log)
	if err != nil {
		return e.failed(StageSelecting, err)
	}

	// Decode + score + fingerprint, streaming into the selector.
	scoreStart := time.Now()
	ctxScore, spanScore := tracer.Start(ctx, "decode_and_score")
	candidateCount, decodeErr := e.scoreStream(ctxScore, src, sel)
	spanScore.End()
	metrics.JobProcessingDuration.WithLabelValues("score").Observe(time.Since(scoreStart).Seconds())

	if decodeErr != nil {
		if errors.Is(decodeErr, context.Canceled) || errors.Is(decodeErr, context.DeadlineExceeded) {
			return e.cancelled(src, candidateCount), nil
		}
		return e.failed(StageDecoding, decodeErr)
	}

	// Selection is strictly sequential: the greedy walk already ran during
	// streaming; this finalizes budget enforcement and relaxation.
	e.emit(Progress{Stage: StageSelecting, Processed: candidateCount, Total: candidateCount})
	selectStart := time.Now()
	_, spanSelect := tracer.Start(ctx, "select_frames")
	selRes, err := sel.Finalize()
	spanSelect.End()
	metrics.JobProcessingDuration.WithLabelValues("select").Observe(time.Since(selectStart).Seconds())
	if err != nil {
		return e.failed(StageSelecting, err)
	}
	e.observeDecisions(selRes)

	if err := ctx.Err(); err != nil {
		res := e.cancelled(src, candidateCount)
		res.Decisions = selRes.Decisions
		return res, nil
	}

	// Export.
	exportStart := time.Now()
	ctxExport, spanExport := tracer.Start(ctx, "export_frames")
	exp, err := export.New(e.cfg.OutputDir, e.log)
	if err != nil {
		spanExport.End()
		return e.failed(StageExporting, err)
	}

	e.emit(Progress{Stage: StageExporting, Processed: 0, Total: len(selRes.Set.Frames)})
	manifest, failedFrames, exportErr := exp.Export(ctxExport, &selRes.Set, pix)
	spanExport.End()
	metrics.JobProcessingDuration.WithLabelValues("export").Observe(time.Since(exportStart).Seconds())

	res := &Result{
		State:            StateDone,
		Gaps:             src.Gaps(),
		UnderBudget:      selRes.UnderBudget,
		Relaxed:          selRes.Set.Relaxed,
		RelaxationRounds: selRes.Set.RelaxationRounds,
		CandidateCount:   candidateCount,
		SelectedCount:    len(selRes.Set.Frames),
		Decisions:        selRes.Decisions,
		Set:              &selRes.Set,
		FramesDir:        e.cfg.OutputDir,
		ManifestPath:     filepath.Join(e.cfg.OutputDir, export.ManifestName),
	}
	if manifest != nil {
		res.ExportedCount = len(manifest.Frames)
	}
	for _, f := range failedFrames {
		res.FailedExports = append(res.FailedExports, f.OutputID)
		res.Warnings = append(res.Warnings, fmt.Sprintf("export failed for %s: %v", f.OutputID, f.Err))
	}

	if exportErr != nil {
		if errors.Is(exportErr, context.Canceled) || errors.Is(exportErr, context.DeadlineExceeded) {
			res.State = StateCancelled
			e.emit(Progress{Stage: StageDone, Processed: res.ExportedCount, Total: res.SelectedCount})
			return res, nil
		}
		return e.failed(StageExporting, exportErr)
	}

	for _, g := range res.Gaps {
		metrics.DecodeGapsTotal.Inc()
		res.Warnings = append(res.Warnings, fmt.Sprintf("corrupt segment skipped: %s to %s (%s)", g.Start, g.End, g.Cause))
	}
	if res.UnderBudget {
		res.Warnings = append(res.Warnings, fmt.Sprintf("under budget: selected %d of %d target frames", res.SelectedCount, e.cfg.TargetFrameCount))
	}
	if len(res.Warnings) > 0 {
		res.State = StateDoneWithWarnings
	}

	e.emit(Progress{Stage: StageDone, Processed: res.ExportedCount, Total: res.SelectedCount})
	e.log.Info("curation run finished",
		zap.String("state", string(res.State)),
		zap.Int("candidates", res.CandidateCount),
		zap.Int("selected", res.SelectedCount),
		zap.Int("exported", res.ExportedCount),
		zap.Int("warnings", len(res.Warnings)),
	)
	return res, nil
}

// scoreStream decodes sequentially, fans scoring and fingerprinting out to
// the worker pool, re-sequences the results and feeds them to the selector
// in strictly increasing timestamp order. It returns how many candidates
// reached the selector.
func (e *Engine) scoreStream(ctx context.Context, src frameSource, sel *selector.Selector) (int, error) {
	total := src.EstimateTotal()

	jobs := make(chan *frame.Candidate, e.cfg.ScoreWorkers)
	scored := make(chan *frame.Candidate, e.cfg.ScoreWorkers*2)

	var decodeErr error
	go func() {
		defer close(jobs)
		for {
			c, err := src.Next(ctx)
			if err != nil {
				if !errors.Is(err, io.EOF) {
					decodeErr = err
				}
				return
			}
			metrics.FramesDecodedTotal.Inc()
			select {
			case jobs <- c:
			case <-ctx.Done():
				decodeErr = ctx.Err()
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < e.cfg.ScoreWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// The re-sequencer drains scored until it closes, so the send
			// always completes. Frames already decoded must reach the
			// selector even when the run is cancelled mid-stream; bailing
			// out here would punch holes in the sequence.
			for c := range jobs {
				c.Score = score.Compute(c)
				c.Fingerprint = fingerprint.Compute(c)
				scored <- c
			}
		}()
	}
	go func() {
		wg.Wait()
		close(scored)
	}()

	// Re-sequence: workers may finish out of order, the selector must see
	// contiguous sequence indices.
	pending := make(map[int]*frame.Candidate)
	nextSeq := 0
	processed := 0
	for c := range scored {
		pending[c.Seq] = c
		for {
			nc, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			processed++

			if decision := sel.Offer(nc); decision != frame.Selected {
				nc.ReleasePixels()
			}
			e.emit(Progress{Stage: StageScoring, Processed: processed, Total: total})
		}
	}

	// A frame the decoder fetched but never enqueued is dropped: the
	// selector never saw it, so it carries no decision.
	if decodeErr != nil {
		return processed, decodeErr
	}
	if err := ctx.Err(); err != nil {
		return processed, err
	}
	if len(pending) > 0 {
		return processed, fmt.Errorf("re-sequencer: %d frames never delivered (gap at seq %d)", len(pending), nextSeq)
	}
	return processed, nil
}

func (e *Engine) observeDecisions(res *selector.Result) {
	for _, d := range res.Decisions {
		switch d.Decision {
		case frame.Selected:
			metrics.FramesSelectedTotal.Inc()
		case frame.RejectedLowQuality:
			metrics.FramesRejectedTotal.WithLabelValues("low_quality").Inc()
		case frame.RejectedRedundant:
			metrics.FramesRejectedTotal.WithLabelValues("redundant").Inc()
		case frame.RejectedOverBudget:
			metrics.FramesRejectedTotal.WithLabelValues("over_budget").Inc()
		}
	}
	for i := 0; i < res.Set.RelaxationRounds; i++ {
		metrics.RelaxationRoundsTotal.Inc()
	}
}

func (e *Engine) failed(stage Stage, err error) (*Result, error) {
	e.log.Error("pipeline stage failed", zap.String("stage", string(stage)), zap.Error(err))
	return &Result{
		State:       StateFailed,
		FailedStage: stage,
		Err:         err,
	}, err
}

func (e *Engine) cancelled(src frameSource, candidates int) *Result {
	e.log.Info("pipeline cancelled", zap.Int("candidates", candidates))
	return &Result{
		State:          StateCancelled,
		Gaps:           src.Gaps(),
		CandidateCount: candidates,
	}
}
