package repository

import (
	"context"
	"testing"
	"time"

	"github.com/repoqa/repoqa-backend/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRegistry struct {
	repos map[string]*entity.Repository
	calls int
}

func (r *countingRegistry) Create(_ context.Context, repo entity.Repository) (*entity.Repository, error) {
	r.repos[repo.Name] = &repo
	return &repo, nil
}

func (r *countingRegistry) GetByName(_ context.Context, name string) (*entity.Repository, error) {
	r.calls++
	if repo, ok := r.repos[name]; ok {
		return repo, nil
	}
	return nil, entity.ErrRepositoryNotFound
}

func (r *countingRegistry) GetByFullName(_ context.Context, owner, name string) (*entity.Repository, error) {
	r.calls++
	if repo, ok := r.repos[name]; ok && repo.Owner == owner {
		return repo, nil
	}
	return nil, entity.ErrRepositoryNotFound
}

func (r *countingRegistry) List(context.Context) ([]*entity.Repository, error) {
	var out []*entity.Repository
	for _, repo := range r.repos {
		out = append(out, repo)
	}
	return out, nil
}

func TestCachedRegistryServesRepeatedLookups(t *testing.T) {
	inner := &countingRegistry{repos: map[string]*entity.Repository{
		"hello": {Name: "hello", Owner: "octo", Branch: "main"},
	}}
	c := NewCachedRegistry(inner, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		repo, err := c.GetByName(ctx, "hello")
		require.NoError(t, err)
		assert.Equal(t, "octo", repo.Owner)
	}
	assert.Equal(t, 1, inner.calls)

	// The name lookup also primed the owner/name key.
	_, err := c.GetByFullName(ctx, "Octo", "hello")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedRegistryDoesNotCacheMisses(t *testing.T) {
	inner := &countingRegistry{repos: map[string]*entity.Repository{}}
	c := NewCachedRegistry(inner, time.Minute)
	ctx := context.Background()

	_, err := c.GetByName(ctx, "hello")
	assert.ErrorIs(t, err, entity.ErrRepositoryNotFound)

	_, err = c.Create(ctx, entity.Repository{Name: "hello", Owner: "octo"})
	require.NoError(t, err)

	repo, err := c.GetByName(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", repo.Name)
	assert.Equal(t, 1, inner.calls)
}
