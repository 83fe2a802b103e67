package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	queryapi "github.com/repoqa/repoqa-backend/internal/api/query"
	registryapi "github.com/repoqa/repoqa-backend/internal/api/registry"
	webhookapi "github.com/repoqa/repoqa-backend/internal/api/webhook"
	"github.com/repoqa/repoqa-backend/internal/entity"
	"github.com/repoqa/repoqa-backend/internal/pkg/auth"
	queryuc "github.com/repoqa/repoqa-backend/internal/usecase/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubVerifier map[string]auth.Role

func (v stubVerifier) Verify(_ context.Context, token string) (*auth.Principal, error) {
	role, ok := v[token]
	if !ok {
		return nil, fmt.Errorf("%w: token expired", entity.ErrUnauthenticated)
	}
	return &auth.Principal{SubjectID: token, Role: role}, nil
}

type stubRegistry struct {
	configured int
}

func (s *stubRegistry) Configure(_ context.Context, req *entity.ConfigureRepositoryRequest) (*entity.ConfigureRepositoryResult, error) {
	if req.RepoID == "" {
		return nil, fmt.Errorf("%w: repoId", entity.ErrMissingField)
	}
	s.configured++
	return &entity.ConfigureRepositoryResult{
		Repository:  &entity.Repository{Name: "hello", Owner: "octo", Branch: "main"},
		FilesListed: 2,
		FilesQueued: 2,
	}, nil
}

func (s *stubRegistry) Resync(_ context.Context, req *entity.ResyncRepositoryRequest) (*entity.ConfigureRepositoryResult, error) {
	return nil, fmt.Errorf("%w: %s", entity.ErrRepositoryNotFound, req.Name)
}

func (s *stubRegistry) List(context.Context) (*entity.ListRepositoriesResponse, error) {
	return &entity.ListRepositoriesResponse{Repositories: []*entity.Repository{}}, nil
}

func (s *stubRegistry) Status(_ context.Context, name string) (*entity.RepositoryStatus, error) {
	return &entity.RepositoryStatus{Repository: &entity.Repository{Name: name}}, nil
}

type stubQuery struct{}

func (stubQuery) Answer(_ context.Context, req *entity.QueryRequest) (*entity.QueryResponse, error) {
	switch req.Repo {
	case "unknown":
		return nil, &queryuc.QueryError{Stage: queryuc.StageLookup, Err: entity.ErrUnknownRepository}
	case "flaky":
		return nil, &queryuc.QueryError{Stage: queryuc.StageCompletion, Err: fmt.Errorf("upstream 503")}
	}
	return &entity.QueryResponse{QueryID: "q", Repo: req.Repo, QueryText: req.QueryText, AnswerText: "answer"}, nil
}

type stubWebhook struct {
	pushes int
}

func (s *stubWebhook) VerifySignature(_ []byte, signature string) error {
	if signature == "bad" {
		return entity.ErrUnauthenticated
	}
	return nil
}

func (s *stubWebhook) HandlePush(context.Context, string, []byte) (*entity.WebhookResult, error) {
	s.pushes++
	return &entity.WebhookResult{Outcome: entity.WebhookQueued, Repo: "hello", FilesQueued: 3}, nil
}

type testServer struct {
	handler  http.Handler
	registry *stubRegistry
	webhook  *stubWebhook
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gate := auth.NewGate(stubVerifier{"admin": auth.RoleAdmin, "user": auth.RoleUser})
	s := &testServer{registry: &stubRegistry{}, webhook: &stubWebhook{}}
	s.handler = SetupRouter(
		registryapi.NewHandler(s.registry),
		queryapi.NewHandler(stubQuery{}),
		webhookapi.NewHandler(s.webhook),
		gate,
		zaptest.NewLogger(t),
	)
	return s
}

func (s *testServer) do(method, path, token, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestConfigureRepositoryRequiresAdmin(t *testing.T) {
	s := newTestServer(t)
	body := `{"repoId":"https://github.com/octo/hello","githubToken":"gh"}`

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/api/v1/repositories", "", body).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/api/v1/repositories", "expired", body).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/api/v1/repositories", "user", body).Code)
	assert.Zero(t, s.registry.configured)

	rec := s.do(http.MethodPost, "/api/v1/repositories", "admin", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var result entity.ConfigureRepositoryResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Equal(t, 2, result.FilesQueued)
	assert.Equal(t, 1, s.registry.configured)
}

func TestConfigureRepositoryValidation(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/v1/repositories", "admin", "{").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/v1/repositories", "admin", `{}`).Code)
}

func TestRepositoryReadRoutes(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/repositories", "user", "").Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/repositories/hello/status", "user", "").Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/api/v1/repositories/hello/resync", "user", `{}`).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/api/v1/repositories/hello/resync", "admin", `{"githubToken":"gh"}`).Code)
}

func TestQueryRoute(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/v1/query", "user", `{"repo":"hello","query":"what is main?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp entity.QueryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "answer", resp.AnswerText)
	assert.Equal(t, "what is main?", resp.QueryText)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/api/v1/query", "user", `{"repo":"unknown","query":"x"}`).Code)
	assert.Equal(t, http.StatusBadGateway, s.do(http.MethodPost, "/api/v1/query", "user", `{"repo":"flaky","query":"x"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/api/v1/query", "", `{"repo":"hello","query":"x"}`).Code)
}

func TestGitHubWebhookRoute(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/v1/webhooks/github", "", `{}`, "X-GitHub-Event", "ping")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/webhooks/github", "", `{}`, "X-GitHub-Event", "issues")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, s.webhook.pushes)

	rec = s.do(http.MethodPost, "/api/v1/webhooks/github", "", `{}`, "X-GitHub-Event", "push", "X-Hub-Signature-256", "bad")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/webhooks/github", "", `{}`, "X-GitHub-Event", "push", "X-GitHub-Delivery", "d-1")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, s.webhook.pushes)
}
