package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/KaedenMonroe/VIP-FLIE-GaussianSplattPipeline/internal/domain/entity"
)

type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

func (r *JobRepository) Create(ctx context.Context, job *entity.CurationJob) error {
	query := `
		INSERT INTO curation_jobs (
			id, user_id, video_key, frameset_key, status,
			candidate_count, selected_count, exported_count,
			under_budget, relaxation_rounds, file_size, video_duration,
			attempt, max_attempts, error_message, warnings,
			created_at, updated_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`

	_, err := r.pool.Exec(ctx, query,
		job.ID, job.UserID, job.VideoKey, job.FrameSetKey, string(job.Status),
		job.CandidateCount, job.SelectedCount, job.ExportedCount,
		job.UnderBudget, job.RelaxationRounds, job.FileSize, job.VideoDuration,
		job.Attempt, job.MaxAttempts, job.ErrorMessage, job.Warnings,
		job.CreatedAt, job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (r *JobRepository) Update(ctx context.Context, job *entity.CurationJob) error {
	query := `
		UPDATE curation_jobs SET
			status=$2, frameset_key=$3, candidate_count=$4, selected_count=$5,
			exported_count=$6, under_budget=$7, relaxation_rounds=$8,
			video_duration=$9, attempt=$10, error_message=$11, warnings=$12,
			updated_at=$13, completed_at=$14
		WHERE id=$1`

	_, err := r.pool.Exec(ctx, query,
		job.ID, string(job.Status), job.FrameSetKey, job.CandidateCount,
		job.SelectedCount, job.ExportedCount, job.UnderBudget, job.RelaxationRounds,
		job.VideoDuration, job.Attempt, job.ErrorMessage, job.Warnings,
		job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

func (r *JobRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.CurationJob, error) {
	query := `
		SELECT id, user_id, video_key, frameset_key, status,
			candidate_count, selected_count, exported_count,
			under_budget, relaxation_rounds, file_size, video_duration,
			attempt, max_attempts, error_message, warnings,
			created_at, updated_at, completed_at
		FROM curation_jobs WHERE id=$1`

	job := &entity.CurationJob{}
	var status string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.UserID, &job.VideoKey, &job.FrameSetKey, &status,
		&job.CandidateCount, &job.SelectedCount, &job.ExportedCount,
		&job.UnderBudget, &job.RelaxationRounds, &job.FileSize, &job.VideoDuration,
		&job.Attempt, &job.MaxAttempts, &job.ErrorMessage, &job.Warnings,
		&job.CreatedAt, &job.UpdatedAt, &job.CompletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("find job by id: %w", err)
	}
	job.Status = entity.JobStatus(status)
	return job, nil
}
