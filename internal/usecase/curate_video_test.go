package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/KaedenMonroe/VIP-FLIE-GaussianSplattPipeline/internal/domain/entity"
	"github.com/KaedenMonroe/VIP-FLIE-GaussianSplattPipeline/internal/domain/port"
)

type fakeRepo struct {
	jobs    map[uuid.UUID]*entity.CurationJob
	updates int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{jobs: make(map[uuid.UUID]*entity.CurationJob)}
}

func (r *fakeRepo) Create(_ context.Context, job *entity.CurationJob) error {
	r.jobs[job.ID] = job
	return nil
}

func (r *fakeRepo) Update(_ context.Context, job *entity.CurationJob) error {
	r.jobs[job.ID] = job
	r.updates++
	return nil
}

func (r *fakeRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.CurationJob, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, errors.New("job not found")
	}
	return job, nil
}

type fakeStorage struct {
	downloadErr error
	uploadedKey string
	uploadedLen int64
}

func (s *fakeStorage) DownloadVideo(_ context.Context, _ string, destPath string) error {
	if s.downloadErr != nil {
		return s.downloadErr
	}
	return os.WriteFile(destPath, []byte("video"), 0o644)
}

func (s *fakeStorage) UploadFrameSet(_ context.Context, objectKey string, _ io.Reader, size int64) error {
	s.uploadedKey = objectKey
	s.uploadedLen = size
	return nil
}

type fakeCurator struct {
	summary *port.CurationSummary
	err     error
}

func (c *fakeCurator) Curate(_ context.Context, spec port.CurationSpec, onProgress func(port.ProgressUpdate)) (*port.CurationSummary, error) {
	if c.err != nil {
		return c.summary, c.err
	}
	if err := os.MkdirAll(spec.OutputDir, 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(spec.OutputDir, "manifest.json"), []byte("{}"), 0o644); err != nil {
		return nil, err
	}
	if onProgress != nil {
		onProgress(port.ProgressUpdate{Stage: "scoring", Processed: 1, Total: 2})
		onProgress(port.ProgressUpdate{Stage: "done", Processed: 2, Total: 2})
	}
	return c.summary, nil
}

type fakeZipper struct{}

func (fakeZipper) CreateZip(_ context.Context, _ string, outputPath string) error {
	return os.WriteFile(outputPath, []byte("zipbytes"), 0o644)
}

type fakePublisher struct{ messages [][]byte }

func (p *fakePublisher) PublishStatus(_ context.Context, msg []byte) error {
	p.messages = append(p.messages, msg)
	return nil
}

type fakeProgressPub struct{ messages [][]byte }

func (p *fakeProgressPub) PublishProgress(_ context.Context, msg []byte) error {
	p.messages = append(p.messages, msg)
	return nil
}

type fakeDLQ struct {
	bodies  [][]byte
	reasons []string
}

func (d *fakeDLQ) PublishToDLQ(_ context.Context, msg []byte, reason string) error {
	d.bodies = append(d.bodies, msg)
	d.reasons = append(d.reasons, reason)
	return nil
}

type fakeNotifier struct{ notified []string }

func (n *fakeNotifier) NotifyFailure(_ context.Context, userEmail, _, _, _ string) error {
	n.notified = append(n.notified, userEmail)
	return nil
}

type ucFixture struct {
	uc       *CurateVideoUseCase
	repo     *fakeRepo
	storage  *fakeStorage
	curator  *fakeCurator
	status   *fakePublisher
	progress *fakeProgressPub
	dlq      *fakeDLQ
	notifier *fakeNotifier
}

func newFixture(t *testing.T, curator *fakeCurator, storage *fakeStorage) *ucFixture {
	t.Helper()
	f := &ucFixture{
		repo:     newFakeRepo(),
		storage:  storage,
		curator:  curator,
		status:   &fakePublisher{},
		progress: &fakeProgressPub{},
		dlq:      &fakeDLQ{},
		notifier: &fakeNotifier{},
	}
	f.uc = NewCurateVideoUseCase(
		f.repo, f.storage, f.curator, fakeZipper{},
		f.status, f.progress, f.dlq, f.notifier,
		zap.NewNop(),
		CurateVideoConfig{TempDir: t.TempDir(), MaxRetries: 3},
	)
	return f
}

func requestBody(t *testing.T, jobID uuid.UUID) []byte {
	t.Helper()
	body, err := json.Marshal(entity.CurationRequestMessage{
		JobID:     jobID,
		UserID:    "user-1",
		VideoKey:  "user-1/video.mp4",
		FileSize:  5,
		UserEmail: "user@example.com",
	})
	require.NoError(t, err)
	return body
}

func lastStatus(t *testing.T, pub *fakePublisher) entity.CurationStatusMessage {
	t.Helper()
	require.NotEmpty(t, pub.messages)
	var msg entity.CurationStatusMessage
	require.NoError(t, json.Unmarshal(pub.messages[len(pub.messages)-1], &msg))
	return msg
}

func TestExecuteHappyPath(t *testing.T) {
	curator := &fakeCurator{summary: &port.CurationSummary{
		State:             "DONE",
		VideoDurationSecs: 12.5,
		CandidateCount:    40,
		SelectedCount:     12,
		ExportedCount:     12,
	}}
	f := newFixture(t, curator, &fakeStorage{})

	jobID := uuid.New()
	err := f.uc.Execute(context.Background(), requestBody(t, jobID))
	require.NoError(t, err)

	job, err := f.repo.FindByID(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusCompleted, job.Status)
	assert.Equal(t, 12.5, job.VideoDuration)
	assert.Equal(t, 12, job.SelectedCount)
	assert.Equal(t, fmt.Sprintf("user-1/frameset_%s.zip", jobID), job.FrameSetKey)

	assert.Equal(t, job.FrameSetKey, f.storage.uploadedKey)
	assert.Equal(t, int64(len("zipbytes")), f.storage.uploadedLen)

	status := lastStatus(t, f.status)
	assert.Equal(t, jobID, status.JobID)
	assert.Equal(t, entity.JobStatusCompleted, status.Status)
	assert.Equal(t, 12, status.ExportedCount)

	assert.NotEmpty(t, f.progress.messages, "progress events reach the progress queue")
	assert.Empty(t, f.dlq.bodies)
	assert.Empty(t, f.notifier.notified)
}

func TestExecuteWarningsPropagate(t *testing.T) {
	curator := &fakeCurator{summary: &port.CurationSummary{
		State:         "DONE_WITH_WARNINGS",
		SelectedCount: 4,
		ExportedCount: 4,
		UnderBudget:   true,
		Warnings:      []string{"under budget: selected 4 of 30 target frames"},
	}}
	f := newFixture(t, curator, &fakeStorage{})

	jobID := uuid.New()
	require.NoError(t, f.uc.Execute(context.Background(), requestBody(t, jobID)))

	job, err := f.repo.FindByID(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusCompletedWithWarnings, job.Status)
	assert.True(t, job.UnderBudget)

	status := lastStatus(t, f.status)
	assert.Equal(t, entity.JobStatusCompletedWithWarnings, status.Status)
	assert.Len(t, status.Warnings, 1)
}

func TestExecuteMalformedMessageGoesToDLQ(t *testing.T) {
	f := newFixture(t, &fakeCurator{}, &fakeStorage{})

	err := f.uc.Execute(context.Background(), []byte(`{not json`))
	require.NoError(t, err, "malformed messages must not be redelivered")

	require.Len(t, f.dlq.bodies, 1)
	assert.Equal(t, `{not json`, string(f.dlq.bodies[0]))
	assert.Contains(t, f.dlq.reasons[0], "unmarshal_error")
}

func TestExecuteDownloadFailureIsRetryable(t *testing.T) {
	f := newFixture(t, &fakeCurator{}, &fakeStorage{downloadErr: errors.New("object not found")})

	jobID := uuid.New()
	err := f.uc.Execute(context.Background(), requestBody(t, jobID))
	require.Error(t, err, "retryable failures bubble up so the consumer redelivers")

	job, findErr := f.repo.FindByID(context.Background(), jobID)
	require.NoError(t, findErr)
	assert.Equal(t, entity.JobStatusFailed, job.Status)
	assert.Equal(t, 1, job.Attempt)

	status := lastStatus(t, f.status)
	assert.Equal(t, entity.JobStatusFailed, status.Status)
	assert.Contains(t, status.ErrorMessage, "download_video")

	assert.Empty(t, f.dlq.bodies, "first failure is not permanent")
	assert.Empty(t, f.notifier.notified)
}

func TestExecuteUnprocessableVideoSkipsRetries(t *testing.T) {
	curator := &fakeCurator{err: fmt.Errorf("%w: no usable frames after quality filtering", port.ErrUnprocessableVideo)}
	f := newFixture(t, curator, &fakeStorage{})

	jobID := uuid.New()
	err := f.uc.Execute(context.Background(), requestBody(t, jobID))
	require.NoError(t, err, "content-determined failures are acked, not redelivered")

	job, findErr := f.repo.FindByID(context.Background(), jobID)
	require.NoError(t, findErr)
	assert.Equal(t, entity.JobStatusFailed, job.Status)
	assert.Equal(t, 1, job.Attempt, "no second attempt for the same video")

	require.Len(t, f.dlq.bodies, 1)
	assert.Contains(t, f.dlq.reasons[0], "unprocessable video")
	assert.Equal(t, []string{"user@example.com"}, f.notifier.notified)
}

func TestExecuteExhaustedRetriesArePermanent(t *testing.T) {
	f := newFixture(t, &fakeCurator{}, &fakeStorage{})

	jobID := uuid.New()
	exhausted := entity.NewCurationJob("user-1", "user-1/video.mp4", 5, 3)
	exhausted.ID = jobID
	exhausted.Attempt = 3
	require.NoError(t, f.repo.Create(context.Background(), exhausted))

	err := f.uc.Execute(context.Background(), requestBody(t, jobID))
	require.NoError(t, err, "permanent failures are acked, not redelivered")

	job, findErr := f.repo.FindByID(context.Background(), jobID)
	require.NoError(t, findErr)
	assert.Equal(t, entity.JobStatusFailed, job.Status)

	require.Len(t, f.dlq.bodies, 1)
	assert.Contains(t, f.dlq.reasons[0], "max retries exceeded")
	assert.Equal(t, []string{"user@example.com"}, f.notifier.notified)
}

func TestExecuteCancelledRun(t *testing.T) {
	curator := &fakeCurator{summary: &port.CurationSummary{
		State:         "CANCELLED",
		ExportedCount: 3,
	}}
	storage := &fakeStorage{}
	f := newFixture(t, curator, storage)

	jobID := uuid.New()
	require.NoError(t, f.uc.Execute(context.Background(), requestBody(t, jobID)))

	job, err := f.repo.FindByID(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusCancelled, job.Status)

	assert.Empty(t, storage.uploadedKey, "cancelled runs upload nothing")
	status := lastStatus(t, f.status)
	assert.Equal(t, entity.JobStatusCancelled, status.Status)
}
