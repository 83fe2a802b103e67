package acquisition

import (
	"context"
)

type Downloader interface {
	Download(ctx context.Context, rawURL string) ([]byte, error)
}

type FileStore interface {
	Write(repo, fileName string, content []byte) (string, error)
	Remove(repo, fileName string) error
}

type EmbeddingPublisher interface {
	RawBaseURL() string
	PublishEmbeddingTask(ctx context.Context, localPath string) error
}

// DocumentRemover tombstones documents whose source file is gone upstream
type DocumentRemover interface {
	Delete(ctx context.Context, collection, documentID string) error
}
