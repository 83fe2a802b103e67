package validator

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/repoqa/repoqa-backend/internal/entity"
)

const maxQueryLength = 8000

var repoIDPattern = regexp.MustCompile(`^https://github\.com/([\w\-.]+)/([\w\-.]+?)(\.git)?/?$`)

// Validator validates inbound requests
type Validator struct {
	defaultBranch string
}

func NewValidator(defaultBranch string) *Validator {
	if defaultBranch == "" {
		defaultBranch = entity.DefaultBranch
	}
	return &Validator{defaultBranch: defaultBranch}
}

// ParseRepoID extracts owner and repository name from a canonical GitHub URL.
func ParseRepoID(repoID string) (owner, repo string, err error) {
	match := repoIDPattern.FindStringSubmatch(strings.TrimSpace(repoID))
	if match == nil {
		return "", "", fmt.Errorf("%w: repoId %q is not a GitHub repository URL", entity.ErrInvalidFormat, repoID)
	}

	owner, repo = match[1], match[2]
	if repo == "." || repo == ".." || owner == "." || owner == ".." {
		return "", "", fmt.Errorf("%w: repoId %q", entity.ErrInvalidFormat, repoID)
	}

	return owner, repo, nil
}

// ValidateConfigureRepository checks the request and fills the default branch.
func (v *Validator) ValidateConfigureRepository(req *entity.ConfigureRepositoryRequest) error {
	if req.RepoID == "" {
		return fmt.Errorf("%w: repoId", entity.ErrMissingField)
	}
	if req.GitHubToken == "" {
		return fmt.Errorf("%w: githubToken", entity.ErrMissingField)
	}
	if _, _, err := ParseRepoID(req.RepoID); err != nil {
		return err
	}

	if req.Branch == "" {
		req.Branch = v.defaultBranch
	}
	if strings.ContainsAny(req.Branch, " \t\n~^:?*[\\") {
		return fmt.Errorf("%w: branch %q", entity.ErrInvalidParameter, req.Branch)
	}

	return nil
}

func (v *Validator) ValidateQuery(req *entity.QueryRequest) error {
	if strings.TrimSpace(req.Repo) == "" {
		return fmt.Errorf("%w: repo", entity.ErrMissingField)
	}
	if strings.TrimSpace(req.QueryText) == "" {
		return fmt.Errorf("%w: query", entity.ErrMissingField)
	}
	if !utf8.ValidString(req.QueryText) {
		return fmt.Errorf("%w: query is not valid UTF-8", entity.ErrInvalidFormat)
	}
	if len(req.QueryText) > maxQueryLength {
		return fmt.Errorf("%w: query longer than %d bytes", entity.ErrInvalidParameter, maxQueryLength)
	}

	return nil
}

// ValidateRepoName checks a path-parameter repository name.
func ValidateRepoName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: repo", entity.ErrMissingField)
	}
	if name == "." || name == ".." || strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("%w: repo %q", entity.ErrInvalidFormat, name)
	}
	return nil
}
