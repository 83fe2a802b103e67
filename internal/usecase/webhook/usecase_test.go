package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/repoqa/repoqa-backend/internal/config"
	"github.com/repoqa/repoqa-backend/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubRegistry struct {
	repos map[string]*entity.Repository
}

func (r *stubRegistry) Create(_ context.Context, repo entity.Repository) (*entity.Repository, error) {
	return &repo, nil
}

func (r *stubRegistry) GetByName(_ context.Context, name string) (*entity.Repository, error) {
	for _, repo := range r.repos {
		if repo.Name == name {
			return repo, nil
		}
	}
	return nil, entity.ErrRepositoryNotFound
}

func (r *stubRegistry) GetByFullName(_ context.Context, owner, name string) (*entity.Repository, error) {
	if repo, ok := r.repos[owner+"/"+name]; ok {
		return repo, nil
	}
	return nil, entity.ErrRepositoryNotFound
}

func (r *stubRegistry) List(context.Context) ([]*entity.Repository, error) { return nil, nil }

type stubStatusRepo struct {
	queued []string
}

func (s *stubStatusRepo) MarkQueued(_ context.Context, _ string, names []string) error {
	s.queued = append(s.queued, names...)
	return nil
}
func (s *stubStatusRepo) Record(context.Context, entity.FileStatus) error { return nil }
func (s *stubStatusRepo) CountByState(context.Context, string) (map[entity.FileState]int, error) {
	return nil, nil
}

type stubPublisher struct {
	calls   int
	details entity.RepositoryDetails
	files   []string
	err     error
}

func (p *stubPublisher) PublishFileTasks(_ context.Context, details entity.RepositoryDetails, names []string) (int, error) {
	p.calls++
	if p.err != nil {
		return 0, p.err
	}
	p.details = details
	p.files = names
	return len(names), nil
}

const pushPayload = `{
	"ref": "refs/heads/main",
	"repository": {"name": "hello", "full_name": "octo/hello", "owner": {"login": "octo"}},
	"commits": [
		{"added": ["a"], "removed": [], "modified": ["b"]},
		{"added": [], "removed": ["c"], "modified": ["a"]}
	]
}`

func newUsecase(t *testing.T, secret string) (*WebhookUsecase, *stubPublisher, *stubStatusRepo) {
	t.Helper()
	registry := &stubRegistry{repos: map[string]*entity.Repository{
		"octo/hello": {RepoID: "https://github.com/octo/hello", Owner: "octo", Name: "hello", Branch: "main"},
	}}
	pub := &stubPublisher{}
	statuses := &stubStatusRepo{}
	uc := NewUsecase(registry, statuses, pub, config.WebhookConfig{DedupTTL: time.Minute}, secret, zaptest.NewLogger(t))
	return uc, pub, statuses
}

func TestComputeDelta(t *testing.T) {
	event := &entity.PushEvent{Commits: []entity.PushCommit{
		{Added: []string{"a"}, Modified: []string{"b"}},
		{Removed: []string{"b"}, Modified: []string{"c"}},
	}}
	reversed := &entity.PushEvent{Commits: []entity.PushCommit{event.Commits[1], event.Commits[0]}}

	assert.Equal(t, []string{"a", "b", "c"}, ComputeDelta(event))
	assert.Equal(t, ComputeDelta(event), ComputeDelta(reversed))
	assert.Empty(t, ComputeDelta(&entity.PushEvent{}))
	assert.Nil(t, ComputeDelta(nil))
}

func TestHandlePushQueuesDelta(t *testing.T) {
	uc, pub, statuses := newUsecase(t, "")

	result, err := uc.HandlePush(context.Background(), "delivery-1", []byte(pushPayload))
	require.NoError(t, err)

	assert.Equal(t, entity.WebhookQueued, result.Outcome)
	assert.Equal(t, 3, result.FilesQueued)
	assert.Equal(t, []string{"a", "b", "c"}, pub.files)
	assert.Equal(t, "octo", pub.details.Owner)
	assert.Equal(t, "main", pub.details.Branch)
	assert.Equal(t, []string{"a", "b", "c"}, statuses.queued)
}

func TestHandlePushIgnoresDuplicateDelivery(t *testing.T) {
	uc, pub, _ := newUsecase(t, "")
	ctx := context.Background()

	_, err := uc.HandlePush(ctx, "delivery-1", []byte(pushPayload))
	require.NoError(t, err)
	result, err := uc.HandlePush(ctx, "delivery-1", []byte(pushPayload))
	require.NoError(t, err)

	assert.Equal(t, entity.WebhookDuplicate, result.Outcome)
	assert.Equal(t, 1, pub.calls)
}

func TestHandlePushRetriesDeliveryAfterPublishFailure(t *testing.T) {
	uc, pub, _ := newUsecase(t, "")
	ctx := context.Background()

	pub.err = errors.New("broker down")
	_, err := uc.HandlePush(ctx, "delivery-1", []byte(pushPayload))
	require.Error(t, err)

	pub.err = nil
	result, err := uc.HandlePush(ctx, "delivery-1", []byte(pushPayload))
	require.NoError(t, err)
	assert.Equal(t, entity.WebhookQueued, result.Outcome)
}

func TestHandlePushIgnored(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{
			name:    "unknown repository",
			payload: `{"ref":"refs/heads/main","repository":{"name":"other","full_name":"octo/other"},"commits":[{"added":["a"]}]}`,
		},
		{
			name:    "other branch",
			payload: `{"ref":"refs/heads/feature","repository":{"name":"hello","full_name":"octo/hello"},"commits":[{"added":["a"]}]}`,
		},
		{
			name:    "tag push",
			payload: `{"ref":"refs/tags/v1.0.0","repository":{"name":"hello","full_name":"octo/hello"},"commits":[]}`,
		},
		{
			name:    "no changed files",
			payload: `{"ref":"refs/heads/main","repository":{"name":"hello","full_name":"octo/hello"},"commits":[]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc, pub, _ := newUsecase(t, "")

			result, err := uc.HandlePush(context.Background(), "d", []byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, entity.WebhookIgnored, result.Outcome)
			assert.NotEmpty(t, result.Reason)
			assert.Zero(t, pub.calls)
		})
	}
}

func TestHandlePushRejectsBadPayload(t *testing.T) {
	uc, _, _ := newUsecase(t, "")

	_, err := uc.HandlePush(context.Background(), "d", []byte("{"))
	assert.ErrorIs(t, err, entity.ErrInvalidFormat)

	_, err = uc.HandlePush(context.Background(), "d", []byte(`{"ref":"refs/heads/main"}`))
	assert.ErrorIs(t, err, entity.ErrMissingField)
}

func TestVerifySignature(t *testing.T) {
	uc, _, _ := newUsecase(t, "s3cret")
	payload := []byte(pushPayload)

	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write(payload)
	valid := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	assert.NoError(t, uc.VerifySignature(payload, valid))
	assert.ErrorIs(t, uc.VerifySignature(payload, ""), entity.ErrUnauthenticated)
	assert.ErrorIs(t, uc.VerifySignature(payload, "sha256=zz"), entity.ErrUnauthenticated)
	assert.ErrorIs(t, uc.VerifySignature([]byte("tampered"), valid), entity.ErrUnauthenticated)

	open, _, _ := newUsecase(t, "")
	assert.NoError(t, open.VerifySignature(payload, ""))
}
