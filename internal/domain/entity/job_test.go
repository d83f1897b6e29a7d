package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCurationJob(t *testing.T) {
	job := NewCurationJob("user-1", "user-1/video.mp4", 1024, 5)

	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", job.ID.String())
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, 0, job.Attempt)
	assert.Equal(t, 5, job.MaxAttempts)
	assert.True(t, job.CanRetry())
	assert.Nil(t, job.CompletedAt)
}

func TestMarkProcessingCountsAttempts(t *testing.T) {
	job := NewCurationJob("user-1", "k", 0, 2)

	job.MarkProcessing()
	assert.Equal(t, JobStatusProcessing, job.Status)
	assert.Equal(t, 1, job.Attempt)
	assert.True(t, job.CanRetry())

	job.MarkProcessing()
	assert.Equal(t, 2, job.Attempt)
	assert.False(t, job.CanRetry(), "retries exhausted at max attempts")
}

func TestMarkCompleted(t *testing.T) {
	job := NewCurationJob("user-1", "k", 0, 3)
	job.MarkProcessing()

	job.MarkCompleted(CurationOutcome{
		FrameSetKey:      "user-1/frameset_x.zip",
		CandidateCount:   120,
		SelectedCount:    30,
		ExportedCount:    30,
		VideoDuration:    42.5,
		RelaxationRounds: 0,
	})

	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Equal(t, "user-1/frameset_x.zip", job.FrameSetKey)
	assert.Equal(t, 120, job.CandidateCount)
	assert.Equal(t, 30, job.SelectedCount)
	require.NotNil(t, job.CompletedAt)
}

func TestMarkCompletedWithWarnings(t *testing.T) {
	job := NewCurationJob("user-1", "k", 0, 3)
	job.MarkProcessing()

	job.MarkCompleted(CurationOutcome{
		SelectedCount: 8,
		ExportedCount: 8,
		UnderBudget:   true,
		Warnings:      []string{"under budget: selected 8 of 30 target frames"},
	})

	assert.Equal(t, JobStatusCompletedWithWarnings, job.Status)
	assert.True(t, job.UnderBudget)
	assert.Len(t, job.Warnings, 1)
}

func TestMarkFailedAndCancelled(t *testing.T) {
	failed := NewCurationJob("user-1", "k", 0, 3)
	failed.MarkFailed("unreadable video source")
	assert.Equal(t, JobStatusFailed, failed.Status)
	assert.Equal(t, "unreadable video source", failed.ErrorMessage)

	cancelled := NewCurationJob("user-1", "k", 0, 3)
	cancelled.MarkCancelled()
	assert.Equal(t, JobStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CompletedAt)
}
