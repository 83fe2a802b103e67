package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/repoqa/repoqa-backend/internal/entity"
)

// EncodeFileTask serializes a Files Queue message.
func EncodeFileTask(task entity.FileTask) ([]byte, error) {
	if err := task.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("marshal file task: %w", err)
	}
	return body, nil
}

// DecodeFileTask parses a Files Queue message and checks that its raw URL is
// the one derived from its coordinates.
func DecodeFileTask(body []byte, rawBaseURL string) (entity.FileTask, error) {
	var task entity.FileTask
	if err := json.Unmarshal(body, &task); err != nil {
		return task, fmt.Errorf("%w: %v", entity.ErrMalformedMessage, err)
	}

	if err := task.Validate(); err != nil {
		return task, fmt.Errorf("%w: %v", entity.ErrMalformedMessage, err)
	}

	want := entity.BuildRawURL(rawBaseURL, task.Owner, task.Repo, task.Branch, task.FileName)
	if task.RawURL != want {
		return task, fmt.Errorf("%w: raw url %q does not match %q", entity.ErrMalformedMessage, task.RawURL, want)
	}

	return task, nil
}

// DecodeEmbeddingTask parses an Embeddings Queue message into a local path.
func DecodeEmbeddingTask(body []byte) (string, error) {
	if !utf8.Valid(body) {
		return "", fmt.Errorf("%w: path is not valid UTF-8", entity.ErrMalformedMessage)
	}

	path := strings.TrimSpace(string(body))
	if path == "" {
		return "", fmt.Errorf("%w: empty path", entity.ErrMalformedMessage)
	}
	return path, nil
}
