package github

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/repoqa/repoqa-backend/internal/entity"
	"go.uber.org/zap"
)

var mockFiles = []string{
	"README.md",
	"go.mod",
	"cmd/app/main.go",
	"internal/service/service.go",
}

// MockConnector serves a fixed repository layout without calling GitHub
type MockConnector struct {
	logger *zap.Logger

	mu    sync.Mutex
	hooks map[string]string
}

func NewMockConnector(logger *zap.Logger) *MockConnector {
	return &MockConnector{
		logger: logger,
		hooks:  make(map[string]string),
	}
}

func (m *MockConnector) GetRepository(ctx context.Context, _ string, owner, repo string) (*entity.GitHubRepository, error) {
	ctxzap.Info(ctx, "[MOCK] getting repository", zap.String("repo", owner+"/"+repo))

	return &entity.GitHubRepository{
		ID:            1,
		Name:          repo,
		FullName:      owner + "/" + repo,
		DefaultBranch: entity.DefaultBranch,
	}, nil
}

func (m *MockConnector) ListFiles(ctx context.Context, _ string, owner, repo, branch string) ([]string, error) {
	ctxzap.Info(ctx, "[MOCK] listing repository files",
		zap.String("repo", owner+"/"+repo),
		zap.String("branch", branch),
	)

	files := make([]string, len(mockFiles))
	copy(files, mockFiles)
	return files, nil
}

func (m *MockConnector) EnsureWebhook(ctx context.Context, _ string, owner, repo, callbackURL string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := owner + "/" + repo
	if m.hooks[key] == callbackURL {
		ctxzap.Info(ctx, "[MOCK] webhook already registered", zap.String("repo", key))
		return false, nil
	}

	m.hooks[key] = callbackURL
	ctxzap.Info(ctx, "[MOCK] webhook registered", zap.String("repo", key), zap.String("url", callbackURL))
	return true, nil
}

// MockDownloader returns synthetic file contents
type MockDownloader struct {
	logger *zap.Logger
}

func NewMockDownloader(logger *zap.Logger) *MockDownloader {
	return &MockDownloader{logger: logger}
}

func (m *MockDownloader) Download(ctx context.Context, rawURL string) ([]byte, error) {
	ctxzap.Info(ctx, "[MOCK] downloading file", zap.String("url", rawURL))

	name := rawURL[strings.LastIndex(rawURL, "/")+1:]
	return []byte(fmt.Sprintf("// %s\n// mock content fetched from %s\n", name, rawURL)), nil
}
