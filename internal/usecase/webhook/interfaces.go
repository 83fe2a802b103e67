package webhook

import (
	"context"

	"github.com/repoqa/repoqa-backend/internal/entity"
)

type FilePublisher interface {
	PublishFileTasks(ctx context.Context, details entity.RepositoryDetails, fileNames []string) (int, error)
}
