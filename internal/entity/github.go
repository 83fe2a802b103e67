package entity

import "strings"

// GitHubRepository is the subset of GET /repos/{owner}/{repo} the pipeline reads.
type GitHubRepository struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	DefaultBranch string `json:"default_branch"`
	Private       bool   `json:"private"`
	Permissions   *struct {
		Admin bool `json:"admin"`
		Push  bool `json:"push"`
		Pull  bool `json:"pull"`
	} `json:"permissions,omitempty"`
}

type GitHubTreeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

type GitHubTree struct {
	SHA       string            `json:"sha"`
	Tree      []GitHubTreeEntry `json:"tree"`
	Truncated bool              `json:"truncated"`
}

type GitHubHookConfig struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
	InsecureSSL string `json:"insecure_ssl,omitempty"`
	Secret      string `json:"secret,omitempty"`
}

type GitHubHook struct {
	ID     int64            `json:"id,omitempty"`
	Name   string           `json:"name"`
	Active bool             `json:"active"`
	Events []string         `json:"events"`
	Config GitHubHookConfig `json:"config"`
}

// PushEvent is the inbound push webhook payload.
type PushEvent struct {
	Ref        string         `json:"ref"`
	Repository PushRepository `json:"repository"`
	Commits    []PushCommit   `json:"commits"`
}

type PushRepository struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	Owner    struct {
		Login string `json:"login"`
		Name  string `json:"name"`
	} `json:"owner"`
}

// OwnerAndName resolves the repository coordinates carried by the payload.
func (r PushRepository) OwnerAndName() (string, string) {
	if owner, name, ok := strings.Cut(r.FullName, "/"); ok && owner != "" && name != "" {
		return owner, name
	}
	owner := r.Owner.Login
	if owner == "" {
		owner = r.Owner.Name
	}
	return owner, r.Name
}

type PushCommit struct {
	Added    []string `json:"added"`
	Removed  []string `json:"removed"`
	Modified []string `json:"modified"`
}

type WebhookOutcome string

const (
	WebhookQueued    WebhookOutcome = "queued"
	WebhookIgnored   WebhookOutcome = "ignored"
	WebhookDuplicate WebhookOutcome = "duplicate"
)

type WebhookResult struct {
	Outcome     WebhookOutcome `json:"outcome"`
	Reason      string         `json:"reason,omitempty"`
	Repo        string         `json:"repo,omitempty"`
	FilesQueued int            `json:"files_queued"`
}
