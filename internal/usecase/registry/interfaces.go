package registry

import (
	"context"

	"github.com/repoqa/repoqa-backend/internal/entity"
)

type GitHubConnector interface {
	GetRepository(ctx context.Context, token, owner, repo string) (*entity.GitHubRepository, error)
	ListFiles(ctx context.Context, token, owner, repo, branch string) ([]string, error)
	EnsureWebhook(ctx context.Context, token, owner, repo, callbackURL string) (bool, error)
}

type FilePublisher interface {
	PublishFileTasks(ctx context.Context, details entity.RepositoryDetails, fileNames []string) (int, error)
}

type CollectionReader interface {
	GetCollection(ctx context.Context, name string) (*entity.Collection, error)
}
