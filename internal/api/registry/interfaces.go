package registry

import (
	"context"

	"github.com/repoqa/repoqa-backend/internal/entity"
)

type RegistryUsecase interface {
	Configure(ctx context.Context, req *entity.ConfigureRepositoryRequest) (*entity.ConfigureRepositoryResult, error)
	Resync(ctx context.Context, req *entity.ResyncRepositoryRequest) (*entity.ConfigureRepositoryResult, error)
	List(ctx context.Context) (*entity.ListRepositoriesResponse, error)
	Status(ctx context.Context, name string) (*entity.RepositoryStatus, error)
}
