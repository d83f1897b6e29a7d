package port

import (
	"context"

	"github.com/KaedenMonroe/VIP-FLIE-GaussianSplattPipeline/internal/domain/entity"
	"github.com/google/uuid"
)

type JobRepository interface {
	Create(ctx context.Context, job *entity.CurationJob) error
	Update(ctx context.Context, job *entity.CurationJob) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.CurationJob, error)
}
