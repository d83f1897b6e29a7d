package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/KaedenMonroe/VIP-FLIE-GaussianSplattPipeline/internal/domain/entity"
	"github.com/KaedenMonroe/VIP-FLIE-GaussianSplattPipeline/internal/domain/port"
	"github.com/KaedenMonroe/VIP-FLIE-GaussianSplattPipeline/internal/infra/metrics"
)

// progressInterval throttles progress publishing so a fast decode does not
// flood the progress queue. Stage transitions always go out.
const progressInterval = 500 * time.Millisecond

type CurateVideoUseCase struct {
	repo        port.JobRepository
	storage     port.VideoStorage
	curator     port.Curator
	zipper      port.Zipper
	publisher   port.StatusPublisher
	progressPub port.ProgressPublisher
	dlq         port.DLQPublisher
	notifier    port.FailureNotifier
	logger      *zap.Logger
	tempDir     string
	maxRetry    int
}

type CurateVideoConfig struct {
	TempDir    string
	MaxRetries int
}

func NewCurateVideoUseCase(
	repo port.JobRepository,
	storage port.VideoStorage,
	curator port.Curator,
	zipper port.Zipper,
	publisher port.StatusPublisher,
	progressPub port.ProgressPublisher,
	dlq port.DLQPublisher,
	notifier port.FailureNotifier,
	logger *zap.Logger,
	cfg CurateVideoConfig,
) *CurateVideoUseCase {
	return &CurateVideoUseCase{
		repo:        repo,
		storage:     storage,
		curator:     curator,
		zipper:      zipper,
		publisher:   publisher,
		progressPub: progressPub,
		dlq:         dlq,
		notifier:    notifier,
		logger:      logger,
		tempDir:     cfg.TempDir,
		maxRetry:    cfg.MaxRetries,
	}
}

func (uc *CurateVideoUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "CurateVideoUseCase.Execute")
	defer span.End()

	totalTimer := time.Now()

	var msg entity.CurationRequestMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		return nil
	}

	span.SetAttributes(
		attribute.String("job.id", msg.JobID.String()),
		attribute.String("job.video_key", msg.VideoKey),
	)

	log := uc.logger.With(zap.String("job_id", msg.JobID.String()), zap.String("video_key", msg.VideoKey))

	job, err := uc.repo.FindByID(ctx, msg.JobID)
	if err != nil {
		job = entity.NewCurationJob(msg.UserID, msg.VideoKey, msg.FileSize, uc.maxRetry)
		job.ID = msg.JobID
		if err := uc.repo.Create(ctx, job); err != nil {
			log.Error("failed to create job record", zap.Error(err))
			return fmt.Errorf("create job: %w", err)
		}
	}

	if !job.CanRetry() {
		log.Warn("job exhausted retries, sending to DLQ")
		_ = uc.handlePermanentFailure(ctx, job, msg, rawMsg, "max retries exceeded")
		return nil
	}

	job.MarkProcessing()
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to PROCESSING", zap.Error(err))
		return fmt.Errorf("update job: %w", err)
	}

	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	if err := uc.runPipeline(ctx, job, msg, rawMsg, log); err != nil {
		return err
	}

	metrics.JobProcessingDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())

	return nil
}

func (uc *CurateVideoUseCase) runPipeline(
	ctx context.Context,
	job *entity.CurationJob,
	msg entity.CurationRequestMessage,
	rawMsg []byte,
	log *zap.Logger,
) error {
	tracer := otel.Tracer("usecase")

	workDir := filepath.Join(uc.tempDir, job.ID.String())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	// Download the source video from object storage.
	dlStart := time.Now()
	ctxDl, spanDl := tracer.Start(ctx, "download_video")
	videoPath := filepath.Join(workDir, "input.mp4")
	if err := uc.storage.DownloadVideo(ctxDl, msg.VideoKey, videoPath); err != nil {
		spanDl.End()
		log.Error("failed to download video", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "download_video: "+err.Error(), log)
	}
	spanDl.End()
	metrics.JobProcessingDuration.WithLabelValues("download").Observe(time.Since(dlStart).Seconds())

	// Run the frame extraction and selection engine.
	framesDir := filepath.Join(workDir, "frameset")
	summary, err := uc.curator.Curate(ctx, port.CurationSpec{
		VideoPath: videoPath,
		OutputDir: framesDir,
		Options:   msg.Options,
	}, uc.progressForwarder(ctx, job, log))
	if err != nil {
		log.Error("curation failed", zap.String("stage", failedStage(summary)), zap.Error(err))
		if errors.Is(err, port.ErrUnprocessableVideo) {
			// Content-determined failure: retrying the same video yields
			// the same result, so it goes straight to the DLQ.
			return uc.handlePermanentFailure(ctx, job, msg, rawMsg, "curate: "+err.Error())
		}
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "curate: "+err.Error(), log)
	}

	if summary.Cancelled() {
		log.Info("curation cancelled", zap.Int("exported", summary.ExportedCount))
		job.MarkCancelled()
		if err := uc.repo.Update(ctx, job); err != nil {
			log.Error("failed to update job to CANCELLED", zap.Error(err))
		}
		uc.publishStatus(context.WithoutCancel(ctx), job, log)
		metrics.JobsProcessedTotal.WithLabelValues("cancelled").Inc()
		return nil
	}

	// Bundle the FrameSet and upload it.
	zipStart := time.Now()
	ctxZip, spanZip := tracer.Start(ctx, "zip_frameset")
	zipPath := filepath.Join(workDir, "frameset.zip")
	if err := uc.zipper.CreateZip(ctxZip, framesDir, zipPath); err != nil {
		spanZip.End()
		log.Error("frameset zip failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "zip_frameset: "+err.Error(), log)
	}
	spanZip.End()
	metrics.JobProcessingDuration.WithLabelValues("zip").Observe(time.Since(zipStart).Seconds())

	upStart := time.Now()
	ctxUp, spanUp := tracer.Start(ctx, "upload_frameset")
	frameSetKey := fmt.Sprintf("%s/frameset_%s.zip", msg.UserID, job.ID.String())
	zipFile, err := os.Open(zipPath)
	if err != nil {
		spanUp.End()
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "open_zip: "+err.Error(), log)
	}
	zipStat, _ := zipFile.Stat()
	if err := uc.storage.UploadFrameSet(ctxUp, frameSetKey, zipFile, zipStat.Size()); err != nil {
		zipFile.Close()
		spanUp.End()
		log.Error("frameset upload failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "upload_frameset: "+err.Error(), log)
	}
	zipFile.Close()
	spanUp.End()
	metrics.JobProcessingDuration.WithLabelValues("upload").Observe(time.Since(upStart).Seconds())

	job.MarkCompleted(entity.CurationOutcome{
		FrameSetKey:      frameSetKey,
		VideoDuration:    summary.VideoDurationSecs,
		CandidateCount:   summary.CandidateCount,
		SelectedCount:    summary.SelectedCount,
		ExportedCount:    summary.ExportedCount,
		UnderBudget:      summary.UnderBudget,
		RelaxationRounds: summary.RelaxationRounds,
		Warnings:         summary.Warnings,
	})
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to COMPLETED", zap.Error(err))
		return fmt.Errorf("update job completed: %w", err)
	}

	uc.publishStatus(ctx, job, log)
	metrics.JobsProcessedTotal.WithLabelValues(statusLabel(job.Status)).Inc()

	log.Info("job completed",
		zap.Int("candidates", summary.CandidateCount),
		zap.Int("selected", summary.SelectedCount),
		zap.Int("exported", summary.ExportedCount),
		zap.Bool("under_budget", summary.UnderBudget),
		zap.Strings("warnings", summary.Warnings),
		zap.String("frameset_key", frameSetKey),
	)

	return nil
}

// progressForwarder publishes throttled progress events for the GUI
// collaborator. Publish errors are logged and dropped: progress is best
// effort and must never stall the pipeline.
func (uc *CurateVideoUseCase) progressForwarder(ctx context.Context, job *entity.CurationJob, log *zap.Logger) func(port.ProgressUpdate) {
	var lastStage string
	var lastSent time.Time

	return func(p port.ProgressUpdate) {
		now := time.Now()
		if p.Stage == lastStage && now.Sub(lastSent) < progressInterval {
			return
		}
		lastStage = p.Stage
		lastSent = now

		data, _ := json.Marshal(entity.CurationProgressMessage{
			JobID:     job.ID,
			Stage:     p.Stage,
			Processed: p.Processed,
			Total:     p.Total,
		})
		if err := uc.progressPub.PublishProgress(ctx, data); err != nil {
			log.Debug("failed to publish progress", zap.Error(err))
		}
	}
}

func (uc *CurateVideoUseCase) handleRetryableFailure(
	ctx context.Context,
	job *entity.CurationJob,
	msg entity.CurationRequestMessage,
	rawMsg []byte,
	errMsg string,
	log *zap.Logger,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	if !job.CanRetry() {
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, errMsg)
	}

	metrics.RetryTotal.WithLabelValues(strconv.Itoa(job.Attempt)).Inc()
	uc.publishStatus(ctx, job, log)

	return fmt.Errorf("retryable failure (attempt %d/%d): %s", job.Attempt, job.MaxAttempts, errMsg)
}

func (uc *CurateVideoUseCase) handlePermanentFailure(
	ctx context.Context,
	job *entity.CurationJob,
	msg entity.CurationRequestMessage,
	rawMsg []byte,
	errMsg string,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	_ = uc.dlq.PublishToDLQ(ctx, rawMsg, errMsg)

	uc.publishStatus(ctx, job, uc.logger)

	metrics.JobsProcessedTotal.WithLabelValues("dlq").Inc()

	if msg.UserEmail != "" {
		_ = uc.notifier.NotifyFailure(ctx, msg.UserEmail, job.ID.String(), msg.VideoKey, errMsg)
	}

	return nil
}

func (uc *CurateVideoUseCase) publishStatus(ctx context.Context, job *entity.CurationJob, log *zap.Logger) {
	statusMsg := entity.CurationStatusMessage{
		JobID:            job.ID,
		UserID:           job.UserID,
		Status:           job.Status,
		VideoKey:         job.VideoKey,
		FrameSetKey:      job.FrameSetKey,
		CandidateCount:   job.CandidateCount,
		SelectedCount:    job.SelectedCount,
		ExportedCount:    job.ExportedCount,
		UnderBudget:      job.UnderBudget,
		RelaxationRounds: job.RelaxationRounds,
		Duration:         job.VideoDuration,
		Warnings:         job.Warnings,
		ErrorMessage:     job.ErrorMessage,
		Attempt:          job.Attempt,
		MaxAttempts:      job.MaxAttempts,
	}
	data, _ := json.Marshal(statusMsg)
	if err := uc.publisher.PublishStatus(ctx, data); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}

func statusLabel(s entity.JobStatus) string {
	switch s {
	case entity.JobStatusCompleted:
		return "completed"
	case entity.JobStatusCompletedWithWarnings:
		return "completed_with_warnings"
	default:
		return "other"
	}
}

func failedStage(s *port.CurationSummary) string {
	if s == nil {
		return ""
	}
	return s.FailedStage
}
