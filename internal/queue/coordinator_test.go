package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/repoqa/repoqa-backend/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	queue       string
	contentType string
	body        []byte
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []published
	failFrom int
}

func (p *recordingPublisher) Publish(_ context.Context, queue, contentType string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failFrom > 0 && len(p.messages)+1 >= p.failFrom {
		return fmt.Errorf("%w: connection reset", entity.ErrBrokerUnavailable)
	}
	p.messages = append(p.messages, published{queue: queue, contentType: contentType, body: body})
	return nil
}

var testDetails = entity.RepositoryDetails{
	RepoID: "https://github.com/octo/hello",
	Owner:  "octo",
	Repo:   "hello",
	Branch: "main",
}

func TestPublishFileTasks(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCoordinator(pub, entity.DefaultRawBaseURL)

	n, err := c.PublishFileTasks(context.Background(), testDetails, []string{"README.md", "cmd/main.go"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, pub.messages, 2)

	for i, name := range []string{"README.md", "cmd/main.go"} {
		assert.Equal(t, FilesQueue, pub.messages[i].queue)
		task, err := DecodeFileTask(pub.messages[i].body, entity.DefaultRawBaseURL)
		require.NoError(t, err)
		assert.Equal(t, name, task.FileName)
		assert.Equal(t, "https://raw.githubusercontent.com/octo/hello/main/"+name, task.RawURL)
	}
}

func TestPublishFileTasksPartialOnBrokerFault(t *testing.T) {
	pub := &recordingPublisher{failFrom: 3}
	c := NewCoordinator(pub, entity.DefaultRawBaseURL)

	n, err := c.PublishFileTasks(context.Background(), testDetails, []string{"a", "b", "c", "d"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrBrokerUnavailable))
	assert.Equal(t, 2, n)
}

func TestPublishFileTasksEmpty(t *testing.T) {
	pub := &recordingPublisher{}
	n, err := NewCoordinator(pub, "").PublishFileTasks(context.Background(), testDetails, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, pub.messages)
}

func TestPublishEmbeddingTask(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCoordinator(pub, "")

	require.NoError(t, c.PublishEmbeddingTask(context.Background(), "Repository_Files/hello/cmd/main.go"))
	require.Len(t, pub.messages, 1)
	assert.Equal(t, EmbeddingsQueue, pub.messages[0].queue)
	assert.Equal(t, contentTypeText, pub.messages[0].contentType)

	path, err := DecodeEmbeddingTask(pub.messages[0].body)
	require.NoError(t, err)
	assert.Equal(t, "Repository_Files/hello/cmd/main.go", path)
}
