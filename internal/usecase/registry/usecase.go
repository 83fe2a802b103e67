package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/repoqa/repoqa-backend/internal/entity"
	"github.com/repoqa/repoqa-backend/internal/pkg/logger"
	"github.com/repoqa/repoqa-backend/internal/pkg/validator"
	"github.com/repoqa/repoqa-backend/internal/repository"
	"go.uber.org/zap"
)

// RegistryUsecase configures repositories for ingestion
type RegistryUsecase struct {
	registry    repository.RepositoryRegistry
	statusRepo  repository.FileStatusRepository
	collections CollectionReader
	github      GitHubConnector
	publisher   FilePublisher
	validator   *validator.Validator
	callbackURL string
	logger      *zap.Logger
}

func NewUsecase(
	registry repository.RepositoryRegistry,
	statusRepo repository.FileStatusRepository,
	collections CollectionReader,
	github GitHubConnector,
	publisher FilePublisher,
	validator *validator.Validator,
	callbackURL string,
	logger *zap.Logger,
) *RegistryUsecase {
	return &RegistryUsecase{
		registry:    registry,
		statusRepo:  statusRepo,
		collections: collections,
		github:      github,
		publisher:   publisher,
		validator:   validator,
		callbackURL: callbackURL,
		logger:      logger,
	}
}

// Configure validates a repository against GitHub, registers its push
// webhook and queues every file of its branch for ingestion. Configuring an
// already registered repository is a no-op.
func (uc *RegistryUsecase) Configure(ctx context.Context, req *entity.ConfigureRepositoryRequest) (*entity.ConfigureRepositoryResult, error) {
	if err := uc.validator.ValidateConfigureRepository(req); err != nil {
		return nil, err
	}

	owner, name, err := validator.ParseRepoID(req.RepoID)
	if err != nil {
		return nil, err
	}
	ctx = logger.AddFields(ctx, zap.String("repo", owner+"/"+name))

	if _, err := uc.github.GetRepository(ctx, req.GitHubToken, owner, name); err != nil {
		return nil, fmt.Errorf("check repository: %w", err)
	}

	existing, err := uc.registry.GetByName(ctx, name)
	switch {
	case err == nil:
		if !strings.EqualFold(existing.Owner, owner) {
			return nil, fmt.Errorf("%w: %s is already configured for %s", entity.ErrRepositoryConflict, name, existing.Owner)
		}
		ctxzap.Info(ctx, "repository already configured")
		return &entity.ConfigureRepositoryResult{Repository: existing, AlreadyConfigured: true}, nil
	case !errors.Is(err, entity.ErrRepositoryNotFound):
		return nil, fmt.Errorf("lookup repository: %w", err)
	}

	details := entity.RepositoryDetails{
		RepoID: fmt.Sprintf("https://github.com/%s/%s", owner, name),
		Owner:  owner,
		Repo:   name,
		Branch: req.Branch,
	}
	result := &entity.ConfigureRepositoryResult{}

	if uc.callbackURL != "" {
		created, err := uc.github.EnsureWebhook(ctx, req.GitHubToken, owner, name, uc.callbackURL)
		if err != nil {
			return nil, err
		}
		result.WebhookCreated = created
	} else {
		ctxzap.Warn(ctx, "webhook callback url is not set, repository will not follow pushes")
	}

	files, published, err := uc.queueAll(ctx, req.GitHubToken, details)
	result.FilesListed = len(files)
	result.FilesQueued = published
	if err != nil {
		return nil, err
	}

	repo, err := uc.registry.Create(ctx, entity.Repository{
		RepoID:     details.RepoID,
		Owner:      owner,
		Name:       name,
		Branch:     details.Branch,
		WebhookURL: uc.callbackURL,
	})
	if err != nil {
		return nil, fmt.Errorf("register repository: %w", err)
	}
	result.Repository = repo

	ctxzap.Info(ctx, "repository configured",
		zap.Int("files_listed", result.FilesListed),
		zap.Int("files_queued", result.FilesQueued),
		zap.Bool("webhook_created", result.WebhookCreated),
	)
	return result, nil
}

// Resync lists the branch again and requeues every file of a configured repository.
func (uc *RegistryUsecase) Resync(ctx context.Context, req *entity.ResyncRepositoryRequest) (*entity.ConfigureRepositoryResult, error) {
	if err := validator.ValidateRepoName(req.Name); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.GitHubToken) == "" {
		return nil, fmt.Errorf("%w: githubToken", entity.ErrMissingField)
	}

	repo, err := uc.registry.GetByName(ctx, req.Name)
	if err != nil {
		return nil, fmt.Errorf("get repository: %w", err)
	}
	ctx = logger.AddFields(ctx, zap.String("repo", repo.Owner+"/"+repo.Name))

	files, published, err := uc.queueAll(ctx, req.GitHubToken, repo.Details())
	if err != nil {
		return nil, err
	}

	ctxzap.Info(ctx, "repository resynced", zap.Int("files_queued", published))
	return &entity.ConfigureRepositoryResult{
		Repository:        repo,
		AlreadyConfigured: true,
		FilesListed:       len(files),
		FilesQueued:       published,
	}, nil
}

func (uc *RegistryUsecase) List(ctx context.Context) (*entity.ListRepositoriesResponse, error) {
	repos, err := uc.registry.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	if repos == nil {
		repos = []*entity.Repository{}
	}
	return &entity.ListRepositoriesResponse{Repositories: repos}, nil
}

// Status reports how many files of a repository sit in each pipeline state.
func (uc *RegistryUsecase) Status(ctx context.Context, name string) (*entity.RepositoryStatus, error) {
	if err := validator.ValidateRepoName(name); err != nil {
		return nil, err
	}

	repo, err := uc.registry.GetByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get repository: %w", err)
	}

	counts, err := uc.statusRepo.CountByState(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("count file states: %w", err)
	}

	status := &entity.RepositoryStatus{
		Repository: repo,
		Files:      counts,
		Abandoned:  counts[entity.FileStateAbandoned],
	}

	collection, err := uc.collections.GetCollection(ctx, name)
	switch {
	case err == nil:
		status.Collection = collection
	case !errors.Is(err, entity.ErrCollectionNotFound):
		return nil, fmt.Errorf("get collection: %w", err)
	}

	return status, nil
}

func (uc *RegistryUsecase) queueAll(ctx context.Context, token string, details entity.RepositoryDetails) ([]string, int, error) {
	files, err := uc.github.ListFiles(ctx, token, details.Owner, details.Repo, details.Branch)
	if err != nil {
		return nil, 0, fmt.Errorf("list files: %w", err)
	}

	if err := uc.statusRepo.MarkQueued(ctx, details.Repo, files); err != nil {
		return files, 0, fmt.Errorf("mark files queued: %w", err)
	}

	published, err := uc.publisher.PublishFileTasks(ctx, details, files)
	if err != nil {
		return files, published, fmt.Errorf("queue files (%d of %d published): %w", published, len(files), err)
	}

	return files, published, nil
}
