package entity

import "time"

// Repository is a configured repository tracked by the pipeline.
type Repository struct {
	RepoID     string    `json:"repo_id"`
	Owner      string    `json:"owner"`
	Name       string    `json:"name"`
	Branch     string    `json:"branch"`
	WebhookURL string    `json:"webhook_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Details converts the stored repository back into pipeline details.
func (r *Repository) Details() RepositoryDetails {
	return RepositoryDetails{
		RepoID: r.RepoID,
		Owner:  r.Owner,
		Repo:   r.Name,
		Branch: r.Branch,
	}
}

type ConfigureRepositoryRequest struct {
	RepoID      string `json:"repoId"`
	GitHubToken string `json:"githubToken"`
	Branch      string `json:"branch,omitempty"`
}

type ConfigureRepositoryResult struct {
	Repository        *Repository `json:"repository"`
	AlreadyConfigured bool        `json:"already_configured"`
	WebhookCreated    bool        `json:"webhook_created"`
	FilesListed       int         `json:"files_listed"`
	FilesQueued       int         `json:"files_queued"`
}

type ResyncRepositoryRequest struct {
	Name        string `json:"-"`
	GitHubToken string `json:"githubToken"`
}

type RepositoryStatus struct {
	Repository *Repository       `json:"repository"`
	Files      map[FileState]int `json:"files"`
	Abandoned  int               `json:"abandoned"`
	Collection *Collection       `json:"collection,omitempty"`
}

type ListRepositoriesResponse struct {
	Repositories []*Repository `json:"repositories"`
}
