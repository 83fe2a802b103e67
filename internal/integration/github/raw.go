package github

import (
	"context"
	"errors"
	"fmt"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/repoqa/repoqa-backend/internal/config"
	"github.com/repoqa/repoqa-backend/internal/entity"
	"github.com/repoqa/repoqa-backend/internal/integration/common"
	pkghttp "github.com/repoqa/repoqa-backend/pkg/http"
	"go.uber.org/zap"
)

// RawDownloader fetches file contents from the raw content host. It makes a
// single attempt per call; retries belong to the caller.
type RawDownloader struct {
	connector *pkghttp.Connector
	maxBytes  int64
}

func NewRawDownloader(cfg config.DownloadConfig, logger *zap.Logger) *RawDownloader {
	clientCfg := cfg.HTTPClientConfig
	// The per-attempt deadline comes from the caller's context.
	if cfg.Timeout > clientCfg.RequestTimeout {
		clientCfg.RequestTimeout = cfg.Timeout
	}

	return &RawDownloader{
		connector: common.NewBaseConnector(clientCfg, logger,
			pkghttp.WithMaxIdleConnsPerHost(int(cfg.Concurrency)),
		),
		maxBytes: cfg.MaxFileSize,
	}
}

// Download returns the bytes at rawURL. Non-2xx responses are returned as
// *pkghttp.HTTPError, oversized files as entity.ErrPermanentData.
func (d *RawDownloader) Download(ctx context.Context, rawURL string) ([]byte, error) {
	data, err := d.connector.Download(ctx, rawURL, d.maxBytes)
	if err != nil {
		var tooLarge *pkghttp.TooLargeError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: %v", entity.ErrPermanentData, err)
		}
		return nil, fmt.Errorf("%w: %w", entity.ErrTransientIO, err)
	}

	ctxzap.Debug(ctx, "file downloaded", zap.Int("bytes", len(data)))
	return data, nil
}
