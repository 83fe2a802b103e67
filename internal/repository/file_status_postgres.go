package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/repoqa/repoqa-backend/internal/entity"
)

// FileStatusRepository records the latest pipeline outcome per (repo, file)
type FileStatusRepository interface {
	MarkQueued(ctx context.Context, repo string, fileNames []string) error
	Record(ctx context.Context, status entity.FileStatus) error
	CountByState(ctx context.Context, repo string) (map[entity.FileState]int, error)
}

var _ FileStatusRepository = &FileStatusPostgres{}

type FileStatusPostgres struct {
	db *pgxpool.Pool
}

func NewFileStatusPostgres(db *pgxpool.Pool) *FileStatusPostgres {
	return &FileStatusPostgres{db: db}
}

const upsertFileStatus = `
	INSERT INTO file_statuses (repo, file_name, state, attempts, last_error, updated_at)
	VALUES ($1, $2, $3, $4, $5, now())
	ON CONFLICT (repo, file_name) DO UPDATE
	SET state = EXCLUDED.state,
	    attempts = EXCLUDED.attempts,
	    last_error = EXCLUDED.last_error,
	    updated_at = EXCLUDED.updated_at`

// MarkQueued resets every listed file to QUEUED in one batch.
func (r *FileStatusPostgres) MarkQueued(ctx context.Context, repo string, fileNames []string) error {
	if len(fileNames) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, name := range fileNames {
		batch.Queue(upsertFileStatus, repo, name, string(entity.FileStateQueued), 0, "")
	}

	if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("mark %d files queued: %w", len(fileNames), err)
	}
	return nil
}

func (r *FileStatusPostgres) Record(ctx context.Context, status entity.FileStatus) error {
	_, err := r.db.Exec(ctx, upsertFileStatus,
		status.Repo, status.FileName, string(status.State), status.Attempts, status.LastError,
	)
	if err != nil {
		return fmt.Errorf("record file status: %w", err)
	}
	return nil
}

func (r *FileStatusPostgres) CountByState(ctx context.Context, repo string) (map[entity.FileState]int, error) {
	rows, err := r.db.Query(ctx,
		`SELECT state, count(*) FROM file_statuses WHERE repo = $1 GROUP BY state`, repo)
	if err != nil {
		return nil, fmt.Errorf("count file statuses: %w", err)
	}

	counts := make(map[entity.FileState]int)
	var (
		state string
		count int
	)
	_, err = pgx.ForEachRow(rows, []any{&state, &count}, func() error {
		counts[entity.FileState(state)] = count
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("count file statuses: %w", err)
	}

	return counts, nil
}
