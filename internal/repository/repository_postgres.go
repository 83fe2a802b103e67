package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/repoqa/repoqa-backend/internal/entity"
)

const uniqueViolation = "23505"

// RepositoryRegistry defines persistence of configured repositories
type RepositoryRegistry interface {
	Create(ctx context.Context, repo entity.Repository) (*entity.Repository, error)
	GetByName(ctx context.Context, name string) (*entity.Repository, error)
	GetByFullName(ctx context.Context, owner, name string) (*entity.Repository, error)
	List(ctx context.Context) ([]*entity.Repository, error)
}

var _ RepositoryRegistry = &RepositoryPostgres{}

type RepositoryPostgres struct {
	db *pgxpool.Pool
}

func NewRepositoryPostgres(db *pgxpool.Pool) *RepositoryPostgres {
	return &RepositoryPostgres{db: db}
}

const repositoryColumns = `name, owner, repo_id, branch, webhook_url, created_at`

func (r *RepositoryPostgres) Create(ctx context.Context, repo entity.Repository) (*entity.Repository, error) {
	rows, err := r.db.Query(ctx, `
		INSERT INTO repositories (name, owner, repo_id, branch, webhook_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+repositoryColumns,
		repo.Name, repo.Owner, repo.RepoID, repo.Branch, repo.WebhookURL,
	)
	if err != nil {
		return nil, fmt.Errorf("create repository: %w", err)
	}

	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[repositoryRow])
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("%w: %s", entity.ErrRepositoryConflict, repo.Name)
		}
		return nil, fmt.Errorf("create repository: %w", err)
	}

	return toEntityRepository(&row), nil
}

func (r *RepositoryPostgres) GetByName(ctx context.Context, name string) (*entity.Repository, error) {
	rows, err := r.db.Query(ctx, `SELECT `+repositoryColumns+` FROM repositories WHERE name = $1`, name)
	if err != nil {
		return nil, fmt.Errorf("get repository: %w", err)
	}

	return collectRepository(rows)
}

func (r *RepositoryPostgres) GetByFullName(ctx context.Context, owner, name string) (*entity.Repository, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+repositoryColumns+` FROM repositories WHERE lower(owner) = lower($1) AND lower(name) = lower($2)`,
		owner, name,
	)
	if err != nil {
		return nil, fmt.Errorf("get repository: %w", err)
	}

	return collectRepository(rows)
}

func (r *RepositoryPostgres) List(ctx context.Context) ([]*entity.Repository, error) {
	rows, err := r.db.Query(ctx, `SELECT `+repositoryColumns+` FROM repositories ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}

	results, err := pgx.CollectRows(rows, pgx.RowToStructByName[repositoryRow])
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}

	repos := make([]*entity.Repository, 0, len(results))
	for i := range results {
		repos = append(repos, toEntityRepository(&results[i]))
	}
	return repos, nil
}

func collectRepository(rows pgx.Rows) (*entity.Repository, error) {
	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[repositoryRow])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entity.ErrRepositoryNotFound
		}
		return nil, fmt.Errorf("get repository: %w", err)
	}
	return toEntityRepository(&row), nil
}
