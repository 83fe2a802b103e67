package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/repoqa/repoqa-backend/internal/entity"
)

// VectorRepository stores per-repository document collections
type VectorRepository interface {
	EnsureCollection(ctx context.Context, name, embeddingModel string) (*entity.Collection, error)
	GetCollection(ctx context.Context, name string) (*entity.Collection, error)
	Upsert(ctx context.Context, record entity.EmbeddingRecord) error
	Query(ctx context.Context, collection string, vector []float32, limit int) ([]entity.Match, error)
	Delete(ctx context.Context, collection, documentID string) error
}

var _ VectorRepository = &VectorPostgres{}

// VectorPostgres keeps collections in pgvector tables. The pool must have the
// pgvector types registered.
type VectorPostgres struct {
	db *pgxpool.Pool
}

func NewVectorPostgres(db *pgxpool.Pool) *VectorPostgres {
	return &VectorPostgres{db: db}
}

// EnsureCollection creates the collection if absent and returns the stored
// one, whose model may differ from embeddingModel.
func (r *VectorPostgres) EnsureCollection(ctx context.Context, name, embeddingModel string) (*entity.Collection, error) {
	_, err := r.db.Exec(ctx,
		`INSERT INTO collections (name, embedding_model) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
		name, embeddingModel,
	)
	if err != nil {
		return nil, fmt.Errorf("create collection %s: %w", name, err)
	}

	return r.GetCollection(ctx, name)
}

func (r *VectorPostgres) GetCollection(ctx context.Context, name string) (*entity.Collection, error) {
	rows, err := r.db.Query(ctx,
		`SELECT name, embedding_model, created_at FROM collections WHERE name = $1`, name)
	if err != nil {
		return nil, fmt.Errorf("get collection %s: %w", name, err)
	}

	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[collectionRow])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", entity.ErrCollectionNotFound, name)
		}
		return nil, fmt.Errorf("get collection %s: %w", name, err)
	}

	return toEntityCollection(&row), nil
}

// Upsert inserts or replaces a document keyed by (collection, document id).
func (r *VectorPostgres) Upsert(ctx context.Context, record entity.EmbeddingRecord) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO documents (collection, document_id, content, embedding, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (collection, document_id) DO UPDATE
		SET content = EXCLUDED.content,
		    embedding = EXCLUDED.embedding,
		    updated_at = EXCLUDED.updated_at`,
		record.Collection, record.DocumentID, record.Content, pgvector.NewVector(record.Vector),
	)
	if err != nil {
		return fmt.Errorf("upsert document %s/%s: %w", record.Collection, record.DocumentID, err)
	}
	return nil
}

// Query returns the nearest documents by ascending cosine distance.
func (r *VectorPostgres) Query(ctx context.Context, collection string, vector []float32, limit int) ([]entity.Match, error) {
	rows, err := r.db.Query(ctx, `
		SELECT document_id, content, embedding <=> $2 AS distance
		FROM documents
		WHERE collection = $1
		ORDER BY distance
		LIMIT $3`,
		collection, pgvector.NewVector(vector), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query collection %s: %w", collection, err)
	}

	results, err := pgx.CollectRows(rows, pgx.RowToStructByName[matchRow])
	if err != nil {
		return nil, fmt.Errorf("query collection %s: %w", collection, err)
	}

	matches := make([]entity.Match, 0, len(results))
	for i := range results {
		matches = append(matches, toEntityMatch(&results[i]))
	}
	return matches, nil
}

// Delete removes a document. Deleting a missing document is not an error.
func (r *VectorPostgres) Delete(ctx context.Context, collection, documentID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND document_id = $2`,
		collection, documentID,
	)
	if err != nil {
		return fmt.Errorf("delete document %s/%s: %w", collection, documentID, err)
	}
	return nil
}
