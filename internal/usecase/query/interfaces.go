package query

import (
	"context"

	"github.com/repoqa/repoqa-backend/internal/entity"
)

type EmbeddingConnector interface {
	Model() string
	Embed(ctx context.Context, text string) ([]float32, error)
}

type CompletionConnector interface {
	Complete(ctx context.Context, req entity.CompletionRequest) (string, error)
}

type CollectionReader interface {
	GetCollection(ctx context.Context, name string) (*entity.Collection, error)
	Query(ctx context.Context, collection string, vector []float32, limit int) ([]entity.Match, error)
}
