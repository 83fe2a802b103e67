package queue

import (
	"context"
	"fmt"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/repoqa/repoqa-backend/internal/entity"
	"github.com/repoqa/repoqa-backend/internal/pkg/metrics"
	"go.uber.org/zap"
)

// Coordinator builds pipeline messages and publishes them to their queues.
type Coordinator struct {
	publisher  Publisher
	rawBaseURL string
}

func NewCoordinator(publisher Publisher, rawBaseURL string) *Coordinator {
	return &Coordinator{
		publisher:  publisher,
		rawBaseURL: rawBaseURL,
	}
}

func (c *Coordinator) RawBaseURL() string {
	return c.rawBaseURL
}

// PublishFileTasks publishes one FileTask per file name. On a broker fault it
// returns the number of tasks confirmed before the fault together with the error.
func (c *Coordinator) PublishFileTasks(ctx context.Context, details entity.RepositoryDetails, fileNames []string) (int, error) {
	published := 0
	defer func() {
		metrics.RecordPublished(FilesQueue, published)
	}()

	for _, name := range fileNames {
		body, err := EncodeFileTask(entity.NewFileTask(c.rawBaseURL, details, name))
		if err != nil {
			return published, fmt.Errorf("encode task for %s: %w", name, err)
		}

		if err := c.publisher.Publish(ctx, FilesQueue, contentTypeJSON, body); err != nil {
			ctxzap.Error(ctx, "failed to publish file task",
				zap.String("repo", details.Repo),
				zap.String("file_name", name),
				zap.Int("published", published),
				zap.Error(err),
			)
			return published, fmt.Errorf("publish %s: %w", name, err)
		}
		published++
	}

	ctxzap.Info(ctx, "file tasks published",
		zap.String("repo", details.Repo),
		zap.Int("count", published),
	)

	return published, nil
}

// PublishEmbeddingTask publishes the local path of a freshly written file.
func (c *Coordinator) PublishEmbeddingTask(ctx context.Context, localPath string) error {
	if err := c.publisher.Publish(ctx, EmbeddingsQueue, contentTypeText, []byte(localPath)); err != nil {
		return fmt.Errorf("publish embedding task: %w", err)
	}

	metrics.RecordPublished(EmbeddingsQueue, 1)
	return nil
}
