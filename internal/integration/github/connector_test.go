package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/repoqa/repoqa-backend/internal/config"
	"github.com/repoqa/repoqa-backend/internal/entity"
	pkgRetry "github.com/repoqa/repoqa-backend/internal/pkg/retry"
	pkghttp "github.com/repoqa/repoqa-backend/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testConfig(url string) config.GitHubConfig {
	return config.GitHubConfig{
		HTTPClientConfig: config.HTTPClientConfig{
			RequestTimeout:        5 * time.Second,
			ConnTimeout:           time.Second,
			KeepAlive:             time.Second,
			IdleConnTimeout:       time.Second,
			ResponseHeaderTimeout: 5 * time.Second,
			Token:                 "service-token",
			Url:                   url,
		},
		Retry: pkgRetry.Policy{Attempts: 3, Delay: time.Millisecond, MaxDelay: time.Millisecond},
	}
}

func TestGetRepositoryUsesCallerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/octo/hello", r.URL.Path)
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{
			"id": 7, "name": "hello", "full_name": "octo/hello", "default_branch": "main",
			"permissions": map[string]bool{"pull": true},
		})
	}))
	defer srv.Close()

	c := NewConnector(testConfig(srv.URL), zaptest.NewLogger(t))
	repo, err := c.GetRepository(context.Background(), "user-token", "octo", "hello")
	require.NoError(t, err)
	assert.Equal(t, "octo/hello", repo.FullName)
}

func TestGetRepositoryErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "not found", status: http.StatusNotFound, wantErr: entity.ErrRepositoryNotFound},
		{name: "unauthorized", status: http.StatusUnauthorized, wantErr: entity.ErrRepositoryNotAccessible},
		{name: "no pull permission", status: http.StatusOK, body: `{"name":"hello","permissions":{"pull":false}}`, wantErr: entity.ErrRepositoryNotAccessible},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewConnector(testConfig(srv.URL), zaptest.NewLogger(t))
			_, err := c.GetRepository(context.Background(), "tok", "octo", "hello")
			assert.ErrorIs(t, err, tt.wantErr)
			// Client errors are not retried.
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestListFilesRetriesServerErrorsAndKeepsBlobs(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		assert.Equal(t, "/repos/octo/hello/git/trees/main", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("recursive"))
		w.Write([]byte(`{"sha":"abc","truncated":false,"tree":[
			{"path":"README.md","type":"blob"},
			{"path":"cmd","type":"tree"},
			{"path":"cmd/main.go","type":"blob"},
			{"path":"vendor/lib","type":"commit"}
		]}`))
	}))
	defer srv.Close()

	c := NewConnector(testConfig(srv.URL), zaptest.NewLogger(t))
	files, err := c.ListFiles(context.Background(), "tok", "octo", "hello", "main")
	require.NoError(t, err)
	assert.Equal(t, []string{"README.md", "cmd/main.go"}, files)
	assert.Equal(t, int32(2), calls.Load())
}

func TestEnsureWebhookIsIdempotent(t *testing.T) {
	var hooks []entity.GitHubHook
	var posts atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/octo/hello/hooks", r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(hooks)
		case http.MethodPost:
			posts.Add(1)
			var hook entity.GitHubHook
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&hook))
			assert.Equal(t, []string{"push"}, hook.Events)
			assert.Equal(t, "json", hook.Config.ContentType)
			hook.ID = int64(len(hooks) + 1)
			hooks = append(hooks, hook)
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(hook)
		}
	}))
	defer srv.Close()

	c := NewConnector(testConfig(srv.URL), zaptest.NewLogger(t))
	ctx := context.Background()

	created, err := c.EnsureWebhook(ctx, "tok", "octo", "hello", "https://repoqa.example.com/api/v1/webhooks/github")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = c.EnsureWebhook(ctx, "tok", "octo", "hello", "https://repoqa.example.com/api/v1/webhooks/github")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int32(1), posts.Load())
}

func TestRawDownloader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/octo/hello/main/README.md":
			w.Write([]byte("# hello"))
		case "/octo/hello/main/big.bin":
			w.Write(make([]byte, 64))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	d := NewRawDownloader(config.DownloadConfig{
		HTTPClientConfig: config.HTTPClientConfig{RequestTimeout: time.Second, ConnTimeout: time.Second, ResponseHeaderTimeout: time.Second},
		Timeout:          2 * time.Second,
		MaxFileSize:      32,
	}, zaptest.NewLogger(t))
	ctx := context.Background()

	data, err := d.Download(ctx, srv.URL+"/octo/hello/main/README.md")
	require.NoError(t, err)
	assert.Equal(t, "# hello", string(data))

	_, err = d.Download(ctx, srv.URL+"/octo/hello/main/gone.md")
	assert.ErrorIs(t, err, entity.ErrTransientIO)
	status, ok := pkghttp.StatusCode(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, status)

	_, err = d.Download(ctx, srv.URL+"/octo/hello/main/big.bin")
	assert.ErrorIs(t, err, entity.ErrPermanentData)
}
