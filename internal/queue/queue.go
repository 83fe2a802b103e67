package queue

import "context"

// Queue names shared by every process of the pipeline.
const (
	FilesQueue          = "files_queue"
	FilesAbandonedQueue = "files_queue.abandoned"
	EmbeddingsQueue     = "embeddings_queue"
)

const (
	contentTypeJSON = "application/json"
	contentTypeText = "text/plain; charset=utf-8"
)

// Delivery is one message handed to a consumer. Every delivery must be
// settled exactly once with Ack or Reject.
type Delivery interface {
	Body() []byte
	Redelivered() bool
	Ack() error
	Reject(requeue bool) error
}

// Publisher writes a persistent message and returns once the broker confirmed it.
type Publisher interface {
	Publish(ctx context.Context, queue, contentType string, body []byte) error
}

// Consumer streams deliveries of a queue. The channel is closed when ctx is
// done or the broker connection is lost.
type Consumer interface {
	Consume(ctx context.Context, queue string, prefetch int) (<-chan Delivery, error)
}
