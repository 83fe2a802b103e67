package embedding

import (
	"context"

	"github.com/repoqa/repoqa-backend/internal/entity"
	"github.com/repoqa/repoqa-backend/internal/storage"
)

type EmbeddingConnector interface {
	Model() string
	Embed(ctx context.Context, text string) ([]float32, error)
}

type ContentStore interface {
	Resolve(localPath string) (storage.Location, error)
	Read(localPath string) ([]byte, error)
}

type DocumentStore interface {
	EnsureCollection(ctx context.Context, name, embeddingModel string) (*entity.Collection, error)
	Upsert(ctx context.Context, record entity.EmbeddingRecord) error
}
