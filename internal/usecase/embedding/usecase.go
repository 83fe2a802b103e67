package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/repoqa/repoqa-backend/internal/config"
	"github.com/repoqa/repoqa-backend/internal/entity"
	"github.com/repoqa/repoqa-backend/internal/pkg/logger"
	"github.com/repoqa/repoqa-backend/internal/pkg/metrics"
	"github.com/repoqa/repoqa-backend/internal/queue"
	"github.com/repoqa/repoqa-backend/internal/repository"
	"github.com/repoqa/repoqa-backend/internal/storage"
	"go.uber.org/zap"
)

// Drop reasons reported to metrics.
const (
	dropMalformed      = "malformed"
	dropUnexpectedPath = "unexpected_path"
	dropUnreadable     = "unreadable"
	dropEmpty          = "empty"
	dropEmbedding      = "embedding"
	dropModelMismatch  = "model_mismatch"
	dropStore          = "store"
)

// Worker turns stored files into documents of their repository collection.
// Every delivery is acknowledged: a file that cannot be indexed is logged and dropped.
type Worker struct {
	consumer   queue.Consumer
	embedder   EmbeddingConnector
	store      ContentStore
	documents  DocumentStore
	statusRepo repository.FileStatusRepository
	cfg        config.EmbedWorkerConfig
	logger     *zap.Logger

	wg sync.WaitGroup
}

func NewWorker(
	consumer queue.Consumer,
	embedder EmbeddingConnector,
	store ContentStore,
	documents DocumentStore,
	statusRepo repository.FileStatusRepository,
	cfg config.EmbedWorkerConfig,
	logger *zap.Logger,
) *Worker {
	return &Worker{
		consumer:   consumer,
		embedder:   embedder,
		store:      store,
		documents:  documents,
		statusRepo: statusRepo,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run consumes the Embeddings Queue until ctx is done, one goroutine per delivery.
func (w *Worker) Run(ctx context.Context) error {
	deliveries, err := w.consumer.Consume(ctx, queue.EmbeddingsQueue, w.cfg.Prefetch)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queue.EmbeddingsQueue, err)
	}
	defer w.wg.Wait()

	ctxzap.Info(ctx, "embedding worker started",
		zap.String("model", w.embedder.Model()),
		zap.Int("prefetch", w.cfg.Prefetch),
	)

	for {
		select {
		case <-ctx.Done():
			ctxzap.Info(ctx, "embedding worker stopping")
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("%s consumer closed: %w", queue.EmbeddingsQueue, entity.ErrBrokerUnavailable)
			}

			w.wg.Add(1)
			go func() {
				defer w.wg.Done()
				w.Handle(logger.Detach(ctx), d)
			}()
		}
	}
}

// Handle indexes the file named by one delivery and acknowledges it.
func (w *Worker) Handle(ctx context.Context, d queue.Delivery) {
	defer func() {
		if err := d.Ack(); err != nil {
			ctxzap.Error(ctx, "failed to ack embedding task", zap.Error(err))
		}
	}()

	localPath, err := queue.DecodeEmbeddingTask(d.Body())
	if err != nil {
		w.drop(ctx, dropMalformed, err)
		return
	}
	ctx = logger.AddFields(ctx, zap.String("local_path", localPath))

	loc, err := w.store.Resolve(localPath)
	if err != nil {
		w.drop(ctx, dropUnexpectedPath, err)
		return
	}
	ctx = logger.AddFields(ctx,
		zap.String("collection", loc.Collection),
		zap.String("document_id", loc.DocumentID),
	)

	started := time.Now()
	reason, err := w.index(ctx, localPath, loc)
	if err != nil {
		w.drop(ctx, reason, err)
		w.recordStatus(ctx, loc, entity.FileStateFailed, err)
		return
	}

	metrics.RecordEmbedded(time.Since(started))
	w.recordStatus(ctx, loc, entity.FileStateEmbedded, nil)
	ctxzap.Info(ctx, "document indexed")
}

// index returns the drop reason together with any failure.
func (w *Worker) index(ctx context.Context, localPath string, loc storage.Location) (string, error) {
	content, err := w.store.Read(localPath)
	if err != nil {
		return dropUnreadable, err
	}
	if len(content) == 0 {
		return dropEmpty, errors.New("file is empty")
	}
	if !utf8.Valid(content) {
		return dropUnreadable, fmt.Errorf("%w: content is not valid UTF-8", entity.ErrPermanentData)
	}

	vector, err := w.embedder.Embed(ctx, string(content))
	if err != nil {
		return dropEmbedding, err
	}

	collection, err := w.documents.EnsureCollection(ctx, loc.Collection, w.embedder.Model())
	if err != nil {
		return dropStore, err
	}
	if collection.EmbeddingModel != w.embedder.Model() {
		return dropModelMismatch, fmt.Errorf("%w: collection %s uses %s, worker uses %s",
			entity.ErrEmbeddingModelMismatch, collection.Name, collection.EmbeddingModel, w.embedder.Model())
	}

	err = w.documents.Upsert(ctx, entity.EmbeddingRecord{
		Collection: loc.Collection,
		DocumentID: loc.DocumentID,
		Content:    string(content),
		Vector:     vector,
	})
	if err != nil {
		return dropStore, err
	}

	return "", nil
}

func (w *Worker) drop(ctx context.Context, reason string, err error) {
	metrics.RecordEmbedDropped(reason)
	ctxzap.Error(ctx, "dropping embedding task",
		zap.String("reason", reason),
		zap.Error(err),
	)
}

func (w *Worker) recordStatus(ctx context.Context, loc storage.Location, state entity.FileState, cause error) {
	if w.statusRepo == nil {
		return
	}

	status := entity.FileStatus{
		Repo:     loc.Collection,
		FileName: loc.DocumentID,
		State:    state,
	}
	if cause != nil {
		status.LastError = cause.Error()
	}

	if err := w.statusRepo.Record(ctx, status); err != nil {
		ctxzap.Warn(ctx, "failed to record file status", zap.Error(err))
	}
}
