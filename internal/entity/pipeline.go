package entity

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBranch     = "main"
	DefaultRawBaseURL = "https://raw.githubusercontent.com"
)

// RepositoryDetails identifies a repository that passed validation against the source host.
type RepositoryDetails struct {
	RepoID string `json:"repoId"`
	Owner  string `json:"owner"`
	Repo   string `json:"repo"`
	Branch string `json:"branch"`
}

// FullName returns "owner/repo".
func (d RepositoryDetails) FullName() string {
	return d.Owner + "/" + d.Repo
}

// FileTask is the Files Queue message: one repository file to acquire.
type FileTask struct {
	FileName string `json:"fileName"`
	Owner    string `json:"owner"`
	Repo     string `json:"repo"`
	Branch   string `json:"branch"`
	RawURL   string `json:"rawUrl"`
}

// NewFileTask builds a task with its raw URL resolved from rawBaseURL.
func NewFileTask(rawBaseURL string, details RepositoryDetails, fileName string) FileTask {
	branch := details.Branch
	if branch == "" {
		branch = DefaultBranch
	}

	return FileTask{
		FileName: fileName,
		Owner:    details.Owner,
		Repo:     details.Repo,
		Branch:   branch,
		RawURL:   BuildRawURL(rawBaseURL, details.Owner, details.Repo, branch, fileName),
	}
}

// BuildRawURL derives the download URL of a file. Each path segment is escaped,
// the slashes of nested file paths are kept.
func BuildRawURL(rawBaseURL, owner, repo, branch, fileName string) string {
	if rawBaseURL == "" {
		rawBaseURL = DefaultRawBaseURL
	}

	segments := strings.Split(fileName, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}

	return fmt.Sprintf("%s/%s/%s/%s/%s",
		strings.TrimRight(rawBaseURL, "/"),
		url.PathEscape(owner),
		url.PathEscape(repo),
		url.PathEscape(branch),
		strings.Join(segments, "/"),
	)
}

// Validate checks that the task is complete and carries an absolute raw URL.
func (t FileTask) Validate() error {
	if t.FileName == "" || t.Owner == "" || t.Repo == "" || t.Branch == "" {
		return fmt.Errorf("%w: file task requires fileName, owner, repo and branch", ErrMissingField)
	}

	u, err := url.Parse(t.RawURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%w: raw url %q is not resolved", ErrInvalidFormat, t.RawURL)
	}

	return nil
}

// EmbeddingRecord is one document in a repository collection.
type EmbeddingRecord struct {
	Collection string
	DocumentID string
	Content    string
	Vector     []float32
}

// Collection describes a per-repository vector index.
type Collection struct {
	Name           string    `json:"name"`
	EmbeddingModel string    `json:"embedding_model"`
	CreatedAt      time.Time `json:"created_at"`
}

// Match is a nearest-neighbour hit returned from a collection query.
type Match struct {
	DocumentID string  `json:"document_id"`
	Content    string  `json:"content"`
	Distance   float64 `json:"distance"`
}

type FileState string

const (
	FileStateQueued     FileState = "QUEUED"
	FileStateDownloaded FileState = "DOWNLOADED"
	FileStateEmbedded   FileState = "EMBEDDED"
	FileStateAbandoned  FileState = "ABANDONED"
	FileStateFailed     FileState = "FAILED"
	FileStateRemoved    FileState = "REMOVED"
)

// FileStatus is the latest known pipeline outcome for a (repo, file) pair.
type FileStatus struct {
	Repo      string    `json:"repo"`
	FileName  string    `json:"file_name"`
	State     FileState `json:"state"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
