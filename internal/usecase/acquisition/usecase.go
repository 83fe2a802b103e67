package acquisition

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/repoqa/repoqa-backend/internal/config"
	"github.com/repoqa/repoqa-backend/internal/entity"
	"github.com/repoqa/repoqa-backend/internal/pkg/logger"
	"github.com/repoqa/repoqa-backend/internal/pkg/metrics"
	pkgRetry "github.com/repoqa/repoqa-backend/internal/pkg/retry"
	"github.com/repoqa/repoqa-backend/internal/queue"
	"github.com/repoqa/repoqa-backend/internal/repository"
	pkghttp "github.com/repoqa/repoqa-backend/pkg/http"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Stats counts the outcomes of the deliveries handled so far
type Stats struct {
	Processed int64 `json:"processed"`
	Abandoned int64 `json:"abandoned"`
	Removed   int64 `json:"removed"`
	Malformed int64 `json:"malformed"`
}

// WorkerPool downloads the files of the Files Queue with a fixed concurrency
// budget and hands every stored file over to the Embeddings Queue.
type WorkerPool struct {
	consumer   queue.Consumer
	publisher  EmbeddingPublisher
	downloader Downloader
	store      FileStore
	documents  DocumentRemover
	statusRepo repository.FileStatusRepository
	cfg        config.DownloadConfig
	logger     *zap.Logger

	sem *semaphore.Weighted
	wg  sync.WaitGroup

	processed atomic.Int64
	abandoned atomic.Int64
	removed   atomic.Int64
	malformed atomic.Int64
}

func NewWorkerPool(
	consumer queue.Consumer,
	publisher EmbeddingPublisher,
	downloader Downloader,
	store FileStore,
	documents DocumentRemover,
	statusRepo repository.FileStatusRepository,
	cfg config.DownloadConfig,
	logger *zap.Logger,
) *WorkerPool {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}

	return &WorkerPool{
		consumer:   consumer,
		publisher:  publisher,
		downloader: downloader,
		store:      store,
		documents:  documents,
		statusRepo: statusRepo,
		cfg:        cfg,
		logger:     logger,
		sem:        semaphore.NewWeighted(cfg.Concurrency),
	}
}

// Run consumes the Files Queue until ctx is done. In-flight downloads are
// drained before Run returns. A lost broker connection is returned as
// entity.ErrBrokerUnavailable.
func (p *WorkerPool) Run(ctx context.Context) error {
	deliveries, err := p.consumer.Consume(ctx, queue.FilesQueue, int(p.cfg.Concurrency))
	if err != nil {
		return fmt.Errorf("consume %s: %w", queue.FilesQueue, err)
	}
	defer p.wg.Wait()

	ctxzap.Info(ctx, "acquisition worker pool started",
		zap.Int64("concurrency", p.cfg.Concurrency),
		zap.Duration("attempt_timeout", p.cfg.Timeout),
		zap.Uint("attempts", p.cfg.Retry.Attempts),
	)

	for {
		select {
		case <-ctx.Done():
			ctxzap.Info(ctx, "acquisition worker pool stopping", zap.Any("stats", p.Stats()))
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("%s consumer closed: %w", queue.FilesQueue, entity.ErrBrokerUnavailable)
			}

			if err := p.sem.Acquire(ctx, 1); err != nil {
				p.settle(ctx, "reject", d.Reject(true))
				return nil
			}

			p.wg.Add(1)
			go func() {
				defer p.wg.Done()
				defer p.sem.Release(1)
				p.Handle(logger.Detach(ctx), d)
			}()
		}
	}
}

// Handle processes one Files Queue delivery and settles it.
func (p *WorkerPool) Handle(ctx context.Context, d queue.Delivery) {
	task, err := queue.DecodeFileTask(d.Body(), p.publisher.RawBaseURL())
	if err != nil {
		p.malformed.Add(1)
		metrics.RecordMalformed()
		ctxzap.Error(ctx, "dropping malformed file task", zap.Error(err))
		p.settle(ctx, "reject", d.Reject(false))
		return
	}

	ctx = logger.AddFields(ctx,
		zap.String("repo", task.Repo),
		zap.String("file_name", task.FileName),
		zap.Bool("redelivered", d.Redelivered()),
	)

	started := time.Now()
	content, attempts, err := p.download(ctx, task)
	if err != nil {
		p.giveUp(ctx, d, task, attempts, err)
		return
	}

	localPath, err := p.store.Write(task.Repo, task.FileName, content)
	if err != nil {
		if errors.Is(err, entity.ErrUnexpectedPath) {
			ctxzap.Error(ctx, "file path rejected by the content store", zap.Error(err))
			p.recordStatus(ctx, task, entity.FileStateFailed, attempts, err)
			p.settle(ctx, "reject", d.Reject(false))
			return
		}
		ctxzap.Error(ctx, "failed to store file, requeueing", zap.Error(err))
		p.settle(ctx, "reject", d.Reject(true))
		return
	}
	// Recorded before publishing so the embedder's EMBEDDED is the later write.
	p.recordStatus(ctx, task, entity.FileStateDownloaded, attempts, nil)

	if err := p.publisher.PublishEmbeddingTask(ctx, localPath); err != nil {
		ctxzap.Error(ctx, "failed to publish embedding task, requeueing",
			zap.String("local_path", localPath),
			zap.Error(err),
		)
		p.settle(ctx, "reject", d.Reject(true))
		return
	}

	p.settle(ctx, "ack", d.Ack())
	p.processed.Add(1)
	metrics.RecordDownloaded(time.Since(started))

	ctxzap.Info(ctx, "file downloaded",
		zap.String("local_path", localPath),
		zap.Int("bytes", len(content)),
		zap.Int("attempts", attempts),
	)
}

// Stats returns a snapshot of the outcome counters.
func (p *WorkerPool) Stats() Stats {
	return Stats{
		Processed: p.processed.Load(),
		Abandoned: p.abandoned.Load(),
		Removed:   p.removed.Load(),
		Malformed: p.malformed.Load(),
	}
}

func (p *WorkerPool) download(ctx context.Context, task entity.FileTask) ([]byte, int, error) {
	var (
		content  []byte
		attempts int
	)

	err := p.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		attempts++

		attemptCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()

		data, err := p.downloader.Download(attemptCtx, task.RawURL)
		if err != nil {
			if errors.Is(err, entity.ErrPermanentData) {
				return pkgRetry.Permanent(err)
			}
			return err
		}

		content = data
		return nil
	}, func(attempt uint, err error) {
		metrics.RecordDownloadRetry()
		ctxzap.Warn(ctx, "download attempt failed",
			zap.Uint("attempt", attempt),
			zap.Error(err),
		)
	})

	return content, attempts, err
}

// giveUp settles a task whose download did not succeed. The message is
// dead-lettered; a final 404 also prunes what the pipeline still holds of the file.
func (p *WorkerPool) giveUp(ctx context.Context, d queue.Delivery, task entity.FileTask, attempts int, err error) {
	if status, ok := pkghttp.StatusCode(err); ok && status == http.StatusNotFound {
		p.prune(ctx, task)
		p.removed.Add(1)
		metrics.RecordRemoved()
		p.recordStatus(ctx, task, entity.FileStateRemoved, attempts, err)
		p.settle(ctx, "reject", d.Reject(false))
		return
	}

	state := entity.FileStateAbandoned
	if errors.Is(err, entity.ErrPermanentData) {
		state = entity.FileStateFailed
	} else {
		err = fmt.Errorf("%w: %w", entity.ErrFileAbandoned, err)
	}

	ctxzap.Error(ctx, fmt.Sprintf("file not processed after %d attempts", attempts),
		zap.String("raw_url", task.RawURL),
		zap.Error(err),
	)

	p.abandoned.Add(1)
	metrics.RecordAbandoned()
	p.recordStatus(ctx, task, state, attempts, err)
	p.settle(ctx, "reject", d.Reject(false))
}

func (p *WorkerPool) prune(ctx context.Context, task entity.FileTask) {
	if err := p.store.Remove(task.Repo, task.FileName); err != nil {
		ctxzap.Warn(ctx, "failed to remove stale local copy", zap.Error(err))
	}

	if p.documents == nil {
		return
	}
	if err := p.documents.Delete(ctx, task.Repo, task.FileName); err != nil {
		ctxzap.Warn(ctx, "failed to tombstone document", zap.Error(err))
		return
	}

	ctxzap.Info(ctx, "file removed upstream, document tombstoned")
}

func (p *WorkerPool) recordStatus(ctx context.Context, task entity.FileTask, state entity.FileState, attempts int, cause error) {
	if p.statusRepo == nil {
		return
	}

	status := entity.FileStatus{
		Repo:     task.Repo,
		FileName: task.FileName,
		State:    state,
		Attempts: attempts,
	}
	if cause != nil {
		status.LastError = cause.Error()
	}

	if err := p.statusRepo.Record(ctx, status); err != nil {
		ctxzap.Warn(ctx, "failed to record file status",
			zap.String("state", string(state)),
			zap.Error(err),
		)
	}
}

func (p *WorkerPool) settle(ctx context.Context, op string, err error) {
	if err != nil {
		ctxzap.Error(ctx, "failed to settle delivery", zap.String("op", op), zap.Error(err))
	}
}
