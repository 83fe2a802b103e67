package query

import (
	"context"

	"github.com/repoqa/repoqa-backend/internal/entity"
)

type QueryUsecase interface {
	Answer(ctx context.Context, req *entity.QueryRequest) (*entity.QueryResponse, error)
}
