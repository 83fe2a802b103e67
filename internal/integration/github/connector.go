package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/repoqa/repoqa-backend/internal/config"
	"github.com/repoqa/repoqa-backend/internal/entity"
	"github.com/repoqa/repoqa-backend/internal/integration/common"
	pkgRetry "github.com/repoqa/repoqa-backend/internal/pkg/retry"
	pkghttp "github.com/repoqa/repoqa-backend/pkg/http"
	"go.uber.org/zap"
)

const (
	apiVersion   = "2022-11-28"
	hooksPerPage = 100
	maxHookPages = 10
)

type Connector struct {
	config    config.GitHubConfig
	connector *pkghttp.Connector
	logger    *zap.Logger
}

func NewConnector(cfg config.GitHubConfig, logger *zap.Logger) *Connector {
	return &Connector{
		config:    cfg,
		connector: common.NewBaseConnector(cfg.HTTPClientConfig, logger),
		logger:    logger,
	}
}

// GetRepository checks that token can read owner/repo.
// GET /repos/{owner}/{repo}
func (c *Connector) GetRepository(ctx context.Context, token, owner, repo string) (*entity.GitHubRepository, error) {
	endpoint := fmt.Sprintf("/repos/%s/%s", url.PathEscape(owner), url.PathEscape(repo))

	var resp entity.GitHubRepository
	if err := c.do(ctx, http.MethodGet, endpoint, token, nil, &resp); err != nil {
		switch status, _ := pkghttp.StatusCode(err); status {
		case http.StatusNotFound:
			return nil, fmt.Errorf("%w: %s/%s", entity.ErrRepositoryNotFound, owner, repo)
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, fmt.Errorf("%w: %s/%s", entity.ErrRepositoryNotAccessible, owner, repo)
		}
		return nil, fmt.Errorf("get repository %s/%s: %w", owner, repo, err)
	}

	if resp.Permissions != nil && !resp.Permissions.Pull {
		return nil, fmt.Errorf("%w: no read permission on %s/%s", entity.ErrRepositoryNotAccessible, owner, repo)
	}

	return &resp, nil
}

// ListFiles returns the paths of all files on branch.
// GET /repos/{owner}/{repo}/git/trees/{branch}?recursive=1
func (c *Connector) ListFiles(ctx context.Context, token, owner, repo, branch string) ([]string, error) {
	endpoint := fmt.Sprintf("/repos/%s/%s/git/trees/%s?recursive=1",
		url.PathEscape(owner), url.PathEscape(repo), escapeRef(branch))

	var tree entity.GitHubTree
	if err := c.do(ctx, http.MethodGet, endpoint, token, nil, &tree); err != nil {
		if status, _ := pkghttp.StatusCode(err); status == http.StatusNotFound {
			return nil, fmt.Errorf("%w: branch %s of %s/%s", entity.ErrRepositoryNotFound, branch, owner, repo)
		}
		return nil, fmt.Errorf("list files of %s/%s: %w", owner, repo, err)
	}

	if tree.Truncated {
		ctxzap.Warn(ctx, "repository tree listing is truncated",
			zap.String("repo", owner+"/"+repo),
			zap.Int("entries", len(tree.Tree)),
		)
	}

	files := make([]string, 0, len(tree.Tree))
	for _, entry := range tree.Tree {
		if entry.Type == "blob" {
			files = append(files, entry.Path)
		}
	}

	ctxzap.Debug(ctx, "repository files listed", zap.Int("file_count", len(files)))
	return files, nil
}

// EnsureWebhook registers a push webhook pointing at callbackURL unless a
// hook with the same URL already exists. It reports whether a hook was created.
func (c *Connector) EnsureWebhook(ctx context.Context, token, owner, repo, callbackURL string) (bool, error) {
	base := fmt.Sprintf("/repos/%s/%s/hooks", url.PathEscape(owner), url.PathEscape(repo))

	for page := 1; page <= maxHookPages; page++ {
		var hooks []entity.GitHubHook
		endpoint := fmt.Sprintf("%s?per_page=%d&page=%d", base, hooksPerPage, page)
		if err := c.do(ctx, http.MethodGet, endpoint, token, nil, &hooks); err != nil {
			return false, fmt.Errorf("%w: list hooks: %v", entity.ErrWebhookRegistration, err)
		}

		for _, hook := range hooks {
			if hook.Config.URL == callbackURL {
				ctxzap.Info(ctx, "webhook already registered", zap.Int64("hook_id", hook.ID))
				return false, nil
			}
		}

		if len(hooks) < hooksPerPage {
			break
		}
	}

	req := entity.GitHubHook{
		Name:   "web",
		Active: true,
		Events: []string{"push"},
		Config: entity.GitHubHookConfig{
			URL:         callbackURL,
			ContentType: "json",
			InsecureSSL: "0",
			Secret:      c.config.WebhookSecret,
		},
	}

	var created entity.GitHubHook
	if err := c.do(ctx, http.MethodPost, base, token, req, &created); err != nil {
		return false, fmt.Errorf("%w: create hook: %v", entity.ErrWebhookRegistration, err)
	}

	ctxzap.Info(ctx, "webhook registered", zap.Int64("hook_id", created.ID))
	return true, nil
}

func (c *Connector) do(ctx context.Context, method, endpoint, token string, reqBody, respBody any) error {
	opts := []pkghttp.RequestOpt{
		pkghttp.WithHeader("Accept", "application/vnd.github+json"),
		pkghttp.WithHeader("X-GitHub-Api-Version", apiVersion),
	}
	if token != "" {
		opts = append(opts, pkghttp.WithHeader("Authorization", "Bearer "+token))
	}

	return c.config.Retry.Do(ctx, func(ctx context.Context) error {
		err := c.connector.DoRequest(ctx, method, endpoint, reqBody, respBody, opts...)
		if err != nil && !common.IsRetryable(err) {
			return pkgRetry.Permanent(err)
		}
		return err
	}, func(attempt uint, err error) {
		ctxzap.Warn(ctx, "GitHub request failed",
			zap.String("method", method),
			zap.String("endpoint", endpoint),
			zap.Uint("attempt", attempt),
			zap.Error(err),
		)
	})
}

func escapeRef(ref string) string {
	segments := strings.Split(ref, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
