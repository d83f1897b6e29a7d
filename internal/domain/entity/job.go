package entity

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending               JobStatus = "PENDING"
	JobStatusProcessing            JobStatus = "PROCESSING"
	JobStatusCompleted             JobStatus = "COMPLETED"
	JobStatusCompletedWithWarnings JobStatus = "COMPLETED_WITH_WARNINGS"
	JobStatusFailed                JobStatus = "FAILED"
	JobStatusCancelled             JobStatus = "CANCELLED"
)

// CurationJob tracks one video-to-FrameSet curation run.
type CurationJob struct {
	ID               uuid.UUID
	UserID           string
	VideoKey         string
	FrameSetKey      string
	Status           JobStatus
	CandidateCount   int
	SelectedCount    int
	ExportedCount    int
	UnderBudget      bool
	RelaxationRounds int
	FileSize         int64
	VideoDuration    float64
	Attempt          int
	MaxAttempts      int
	ErrorMessage     string
	Warnings         []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CompletedAt      *time.Time
}

func NewCurationJob(userID, videoKey string, fileSize int64, maxAttempts int) *CurationJob {
	now := time.Now().UTC()
	return &CurationJob{
		ID:          uuid.New(),
		UserID:      userID,
		VideoKey:    videoKey,
		FileSize:    fileSize,
		Status:      JobStatusPending,
		Attempt:     0,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (j *CurationJob) MarkProcessing() {
	j.Status = JobStatusProcessing
	j.Attempt++
	j.UpdatedAt = time.Now().UTC()
}

// CurationOutcome carries the engine result fields the job record keeps.
type CurationOutcome struct {
	FrameSetKey      string
	CandidateCount   int
	SelectedCount    int
	ExportedCount    int
	UnderBudget      bool
	RelaxationRounds int
	VideoDuration    float64
	Warnings         []string
}

func (j *CurationJob) MarkCompleted(out CurationOutcome) {
	now := time.Now().UTC()
	if len(out.Warnings) > 0 {
		j.Status = JobStatusCompletedWithWarnings
	} else {
		j.Status = JobStatusCompleted
	}
	j.FrameSetKey = out.FrameSetKey
	j.CandidateCount = out.CandidateCount
	j.SelectedCount = out.SelectedCount
	j.ExportedCount = out.ExportedCount
	j.UnderBudget = out.UnderBudget
	j.RelaxationRounds = out.RelaxationRounds
	j.VideoDuration = out.VideoDuration
	j.Warnings = out.Warnings
	j.UpdatedAt = now
	j.CompletedAt = &now
}

func (j *CurationJob) MarkFailed(errMsg string) {
	j.Status = JobStatusFailed
	j.ErrorMessage = errMsg
	j.UpdatedAt = time.Now().UTC()
}

func (j *CurationJob) MarkCancelled() {
	now := time.Now().UTC()
	j.Status = JobStatusCancelled
	j.UpdatedAt = now
	j.CompletedAt = &now
}

func (j *CurationJob) CanRetry() bool {
	return j.Attempt < j.MaxAttempts
}
