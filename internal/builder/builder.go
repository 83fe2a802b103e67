package builder

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/repoqa/repoqa-backend/internal/api"
	queryapi "github.com/repoqa/repoqa-backend/internal/api/query"
	registryapi "github.com/repoqa/repoqa-backend/internal/api/registry"
	webhookapi "github.com/repoqa/repoqa-backend/internal/api/webhook"
	"github.com/repoqa/repoqa-backend/internal/config"
	"github.com/repoqa/repoqa-backend/internal/entity"
	"github.com/repoqa/repoqa-backend/internal/integration/github"
	"github.com/repoqa/repoqa-backend/internal/integration/openai"
	"github.com/repoqa/repoqa-backend/internal/pkg/auth"
	"github.com/repoqa/repoqa-backend/internal/pkg/logger"
	"github.com/repoqa/repoqa-backend/internal/pkg/response"
	"github.com/repoqa/repoqa-backend/internal/pkg/validator"
	"github.com/repoqa/repoqa-backend/internal/queue"
	"github.com/repoqa/repoqa-backend/internal/repository"
	"github.com/repoqa/repoqa-backend/internal/storage"
	"github.com/repoqa/repoqa-backend/internal/usecase/acquisition"
	"github.com/repoqa/repoqa-backend/internal/usecase/embedding"
	queryuc "github.com/repoqa/repoqa-backend/internal/usecase/query"
	"github.com/repoqa/repoqa-backend/internal/usecase/registry"
	"github.com/repoqa/repoqa-backend/internal/usecase/webhook"
	"go.uber.org/zap"
)

// languageModel embeds text and answers prompts.
type languageModel interface {
	queryuc.EmbeddingConnector
	queryuc.CompletionConnector
}

// base holds what every process needs before its own components are built.
type base struct {
	cfg    *config.Config
	logger *zap.Logger
}

func setup(environment string, component config.Component) (*base, error) {
	cfg, err := config.LoadConfig(environment, component)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}
	log = log.With(zap.String("component", string(component)))

	log.Info("Building application",
		zap.String("environment", cfg.Environment),
		zap.Bool("mocks", cfg.EnableMocks),
	)

	return &base{cfg: cfg, logger: log}, nil
}

// connectInfra opens the database and the broker and declares the queues.
func (b *base) connectInfra(ctx context.Context) (*infra, error) {
	db, err := setupDatabase(ctx, b.cfg, b.logger)
	if err != nil {
		return nil, fmt.Errorf("setup database: %w", err)
	}

	broker, err := queue.Dial(b.cfg.BrokerCfg, b.logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect broker: %w", err)
	}

	if err := broker.DeclareTopology(); err != nil {
		broker.Close()
		db.Close()
		return nil, fmt.Errorf("declare queues: %w", err)
	}

	return &infra{
		db:          db,
		broker:      broker,
		coordinator: queue.NewCoordinator(broker, b.cfg.GitHubCfg.RawBaseURL),
		registry:    repository.NewCachedRegistry(repository.NewRepositoryPostgres(db), b.cfg.RegistryCacheTTL),
		statusRepo:  repository.NewFileStatusPostgres(db),
		vectors:     repository.NewVectorPostgres(db),
	}, nil
}

func (b *base) languageModel() languageModel {
	if b.cfg.EnableMocks {
		b.logger.Info("Using mock connector for embeddings and completions")
		return openai.NewMockConnector(b.cfg.OpenAICfg.EmbeddingModel, b.logger)
	}
	return openai.NewConnector(b.cfg.OpenAICfg, b.logger)
}

// metricsServer exposes /metrics and /health for the worker processes.
func (b *base) metricsServer() *http.Server {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.Success(w, entity.HealthResponse{Status: "healthy"})
	})

	return &http.Server{
		Addr:              b.cfg.MetricsAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

type infra struct {
	db          *pgxpool.Pool
	broker      *queue.Broker
	coordinator *queue.Coordinator
	registry    repository.RepositoryRegistry
	statusRepo  repository.FileStatusRepository
	vectors     *repository.VectorPostgres
}

// Build wires the HTTP API: repository registration, queries and the push webhook.
func Build(environment string) (*App, error) {
	ctx := context.Background()

	b, err := setup(environment, config.ComponentServer)
	if err != nil {
		return nil, err
	}
	cfg, log := b.cfg, b.logger

	in, err := b.connectInfra(ctx)
	if err != nil {
		return nil, err
	}

	// Initialize external service connectors (with mock support)
	var githubConnector registry.GitHubConnector
	if cfg.EnableMocks {
		log.Info("Using mock connectors for external services")
		githubConnector = github.NewMockConnector(log)
	} else {
		log.Info("Using real connectors for external services")
		githubConnector = github.NewConnector(cfg.GitHubCfg, log)
	}
	model := b.languageModel()

	requestValidator := validator.NewValidator(cfg.GitHubCfg.DefaultBranch)
	gate := auth.NewGate(auth.NewJWTVerifier(cfg.AuthCfg.JWTSecret))

	// Initialize use cases
	registryUC := registry.NewUsecase(
		in.registry,
		in.statusRepo,
		in.vectors,
		githubConnector,
		in.coordinator,
		requestValidator,
		cfg.GitHubCfg.WebhookCallbackURL,
		log,
	)
	queryUC := queryuc.NewUsecase(in.vectors, model, model, requestValidator, cfg.QueryCfg, log)
	webhookUC := webhook.NewUsecase(in.registry, in.statusRepo, in.coordinator, cfg.WebhookCfg, cfg.GitHubCfg.WebhookSecret, log)
	log.Info("Use cases initialized")

	router := api.SetupRouter(
		registryapi.NewHandler(registryUC),
		queryapi.NewHandler(queryUC),
		webhookapi.NewHandler(webhookUC),
		gate,
		log,
	)
	log.Info("HTTP router configured")

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 150 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("Application built successfully", zap.String("server_addr", cfg.ServerAddr))

	return &App{
		server: server,
		db:     in.db,
		broker: in.broker,
		logger: log,
	}, nil
}

// BuildAcquisitionWorker wires the worker pool that downloads Files Queue
// tasks into the local content store.
func BuildAcquisitionWorker(environment string) (*App, error) {
	ctx := context.Background()

	b, err := setup(environment, config.ComponentAcquisition)
	if err != nil {
		return nil, err
	}
	cfg, log := b.cfg, b.logger

	in, err := b.connectInfra(ctx)
	if err != nil {
		return nil, err
	}

	var downloader acquisition.Downloader
	if cfg.EnableMocks {
		log.Info("Using mock downloader")
		downloader = github.NewMockDownloader(log)
	} else {
		downloader = github.NewRawDownloader(cfg.DownloadCfg, log)
	}

	pool := acquisition.NewWorkerPool(
		in.broker,
		in.coordinator,
		downloader,
		storage.NewOsFileStore(cfg.StorageRoot),
		in.vectors,
		in.statusRepo,
		cfg.DownloadCfg,
		log,
	)

	log.Info("Acquisition worker built successfully",
		zap.String("storage_root", cfg.StorageRoot),
		zap.Int64("concurrency", cfg.DownloadCfg.Concurrency),
	)

	return &App{
		server: b.metricsServer(),
		worker: pool,
		db:     in.db,
		broker: in.broker,
		logger: log,
	}, nil
}

// BuildEmbeddingWorker wires the worker that embeds stored files into the vector store.
func BuildEmbeddingWorker(environment string) (*App, error) {
	ctx := context.Background()

	b, err := setup(environment, config.ComponentEmbedding)
	if err != nil {
		return nil, err
	}
	cfg, log := b.cfg, b.logger

	in, err := b.connectInfra(ctx)
	if err != nil {
		return nil, err
	}

	worker := embedding.NewWorker(
		in.broker,
		b.languageModel(),
		storage.NewOsFileStore(cfg.StorageRoot),
		in.vectors,
		in.statusRepo,
		cfg.EmbedWorkerCfg,
		log,
	)

	log.Info("Embedding worker built successfully",
		zap.String("storage_root", cfg.StorageRoot),
		zap.String("model", cfg.OpenAICfg.EmbeddingModel),
	)

	return &App{
		server: b.metricsServer(),
		worker: worker,
		db:     in.db,
		broker: in.broker,
		logger: log,
	}, nil
}
