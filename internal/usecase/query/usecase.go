package query

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/repoqa/repoqa-backend/internal/config"
	"github.com/repoqa/repoqa-backend/internal/entity"
	"github.com/repoqa/repoqa-backend/internal/pkg/logger"
	"github.com/repoqa/repoqa-backend/internal/pkg/metrics"
	"github.com/repoqa/repoqa-backend/internal/pkg/validator"
	"go.uber.org/zap"
)

const systemPromptTemplate = "You are an expert in understanding the repository. " +
	"Use the provided context to answer the user's question as accurately as possible.\n\n" +
	"Context:\n%s"

type Stage string

const (
	StageLookup     Stage = "lookup"
	StageEmbedding  Stage = "embedding"
	StageRetrieval  Stage = "retrieval"
	StageCompletion Stage = "completion"
)

// QueryError names the stage of the query pipeline that failed
type QueryError struct {
	Stage Stage
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed at %s: %v", e.Stage, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// QueryUsecase answers questions about a repository from its collection
type QueryUsecase struct {
	collections CollectionReader
	embedder    EmbeddingConnector
	completer   CompletionConnector
	validator   *validator.Validator
	cfg         config.QueryConfig
	logger      *zap.Logger
}

func NewUsecase(
	collections CollectionReader,
	embedder EmbeddingConnector,
	completer CompletionConnector,
	validator *validator.Validator,
	cfg config.QueryConfig,
	logger *zap.Logger,
) *QueryUsecase {
	return &QueryUsecase{
		collections: collections,
		embedder:    embedder,
		completer:   completer,
		validator:   validator,
		cfg:         cfg,
		logger:      logger,
	}
}

// Answer retrieves the documents closest to the question and asks the
// completion service to answer from them.
func (uc *QueryUsecase) Answer(ctx context.Context, req *entity.QueryRequest) (resp *entity.QueryResponse, err error) {
	if err := uc.validator.ValidateQuery(req); err != nil {
		return nil, err
	}
	if req.QueryID == "" {
		req.QueryID = uuid.New().String()
	}

	ctx = logger.AddFields(ctx,
		zap.String("query_id", req.QueryID),
		zap.String("repo", req.Repo),
	)

	started := time.Now()
	defer func() {
		stage := "ok"
		var qErr *QueryError
		if errors.As(err, &qErr) {
			stage = string(qErr.Stage)
		}
		metrics.RecordQuery(stage, time.Since(started))
	}()

	collection, err := uc.collections.GetCollection(ctx, req.Repo)
	if err != nil {
		if errors.Is(err, entity.ErrCollectionNotFound) {
			return nil, &QueryError{Stage: StageLookup, Err: fmt.Errorf("%w: %s", entity.ErrUnknownRepository, req.Repo)}
		}
		return nil, &QueryError{Stage: StageLookup, Err: err}
	}
	if collection.EmbeddingModel != uc.embedder.Model() {
		return nil, &QueryError{Stage: StageLookup, Err: fmt.Errorf("%w: collection %s uses %s, queries use %s",
			entity.ErrEmbeddingModelMismatch, collection.Name, collection.EmbeddingModel, uc.embedder.Model())}
	}

	vector, err := uc.embedder.Embed(ctx, req.QueryText)
	if err != nil {
		return nil, &QueryError{Stage: StageEmbedding, Err: err}
	}

	matches, err := uc.collections.Query(ctx, req.Repo, vector, uc.cfg.TopK)
	if err != nil {
		return nil, &QueryError{Stage: StageRetrieval, Err: err}
	}

	repoContext := BuildContext(matches)
	answer, err := uc.completer.Complete(ctx, entity.CompletionRequest{
		SystemPrompt: fmt.Sprintf(systemPromptTemplate, repoContext),
		Context:      repoContext,
		Question:     req.QueryText,
		Temperature:  uc.cfg.Temperature,
	})
	if err != nil {
		return nil, &QueryError{Stage: StageCompletion, Err: err}
	}

	ctxzap.Info(ctx, "query answered",
		zap.Int("matches", len(matches)),
		zap.Duration("duration", time.Since(started)),
	)

	return &entity.QueryResponse{
		QueryID:    req.QueryID,
		Repo:       req.Repo,
		QueryText:  req.QueryText,
		AnswerText: answer,
	}, nil
}

// BuildContext joins the matched documents most similar first, separated by a blank line.
func BuildContext(matches []entity.Match) string {
	sorted := make([]entity.Match, len(matches))
	copy(sorted, matches)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Distance < sorted[j].Distance
	})

	texts := make([]string, 0, len(sorted))
	for _, m := range sorted {
		texts = append(texts, m.Content)
	}
	return strings.Join(texts, "\n\n")
}
