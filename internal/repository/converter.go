package repository

import (
	"time"

	"github.com/repoqa/repoqa-backend/internal/entity"
)

type repositoryRow struct {
	Name       string    `db:"name"`
	Owner      string    `db:"owner"`
	RepoID     string    `db:"repo_id"`
	Branch     string    `db:"branch"`
	WebhookURL string    `db:"webhook_url"`
	CreatedAt  time.Time `db:"created_at"`
}

type collectionRow struct {
	Name           string    `db:"name"`
	EmbeddingModel string    `db:"embedding_model"`
	CreatedAt      time.Time `db:"created_at"`
}

type matchRow struct {
	DocumentID string  `db:"document_id"`
	Content    string  `db:"content"`
	Distance   float64 `db:"distance"`
}

func toEntityRepository(row *repositoryRow) *entity.Repository {
	return &entity.Repository{
		RepoID:     row.RepoID,
		Owner:      row.Owner,
		Name:       row.Name,
		Branch:     row.Branch,
		WebhookURL: row.WebhookURL,
		CreatedAt:  row.CreatedAt,
	}
}

func toEntityCollection(row *collectionRow) *entity.Collection {
	return &entity.Collection{
		Name:           row.Name,
		EmbeddingModel: row.EmbeddingModel,
		CreatedAt:      row.CreatedAt,
	}
}

func toEntityMatch(row *matchRow) entity.Match {
	return entity.Match{
		DocumentID: row.DocumentID,
		Content:    row.Content,
		Distance:   row.Distance,
	}
}
