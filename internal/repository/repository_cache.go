package repository

import (
	"context"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/repoqa/repoqa-backend/internal/entity"
)

var _ RepositoryRegistry = &CachedRegistry{}

// CachedRegistry caches repository lookups of a registry. Misses are not cached.
type CachedRegistry struct {
	next  RepositoryRegistry
	cache *cache.Cache
}

func NewCachedRegistry(next RepositoryRegistry, ttl time.Duration) *CachedRegistry {
	return &CachedRegistry{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (c *CachedRegistry) Create(ctx context.Context, repo entity.Repository) (*entity.Repository, error) {
	created, err := c.next.Create(ctx, repo)
	if err != nil {
		return nil, err
	}
	c.store(created)
	return created, nil
}

func (c *CachedRegistry) GetByName(ctx context.Context, name string) (*entity.Repository, error) {
	if v, ok := c.cache.Get(nameKey(name)); ok {
		return v.(*entity.Repository), nil
	}

	repo, err := c.next.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	c.store(repo)
	return repo, nil
}

func (c *CachedRegistry) GetByFullName(ctx context.Context, owner, name string) (*entity.Repository, error) {
	if v, ok := c.cache.Get(fullNameKey(owner, name)); ok {
		return v.(*entity.Repository), nil
	}

	repo, err := c.next.GetByFullName(ctx, owner, name)
	if err != nil {
		return nil, err
	}
	c.store(repo)
	return repo, nil
}

func (c *CachedRegistry) List(ctx context.Context) ([]*entity.Repository, error) {
	return c.next.List(ctx)
}

func (c *CachedRegistry) store(repo *entity.Repository) {
	c.cache.SetDefault(nameKey(repo.Name), repo)
	c.cache.SetDefault(fullNameKey(repo.Owner, repo.Name), repo)
}

func nameKey(name string) string {
	return "name:" + name
}

func fullNameKey(owner, name string) string {
	return "full:" + strings.ToLower(owner+"/"+name)
}
