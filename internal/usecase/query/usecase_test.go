package query

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/repoqa/repoqa-backend/internal/config"
	"github.com/repoqa/repoqa-backend/internal/entity"
	"github.com/repoqa/repoqa-backend/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubCollections struct {
	collections map[string]*entity.Collection
	matches     []entity.Match
	queryErr    error
	lastLimit   int
}

func (s *stubCollections) GetCollection(_ context.Context, name string) (*entity.Collection, error) {
	if c, ok := s.collections[name]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("%w: %s", entity.ErrCollectionNotFound, name)
}

func (s *stubCollections) Query(_ context.Context, _ string, _ []float32, limit int) ([]entity.Match, error) {
	s.lastLimit = limit
	return s.matches, s.queryErr
}

type stubEmbedder struct {
	model string
	err   error
}

func (e *stubEmbedder) Model() string { return e.model }

func (e *stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0}, e.err
}

type stubCompleter struct {
	got entity.CompletionRequest
	err error
}

func (c *stubCompleter) Complete(_ context.Context, req entity.CompletionRequest) (string, error) {
	c.got = req
	if c.err != nil {
		return "", c.err
	}
	return "It prints hello.", nil
}

func newUsecase(t *testing.T) (*QueryUsecase, *stubCollections, *stubEmbedder, *stubCompleter) {
	t.Helper()
	collections := &stubCollections{
		collections: map[string]*entity.Collection{
			"hello": {Name: "hello", EmbeddingModel: "text-embedding-3-small"},
		},
		matches: []entity.Match{
			{DocumentID: "README.md", Content: "# hello", Distance: 0.4},
			{DocumentID: "main.go", Content: "func main() { println(\"hello\") }", Distance: 0.1},
		},
	}
	embedder := &stubEmbedder{model: "text-embedding-3-small"}
	completer := &stubCompleter{}

	uc := NewUsecase(collections, embedder, completer, validator.NewValidator("main"),
		config.QueryConfig{TopK: 10, Temperature: 0.2}, zaptest.NewLogger(t))
	return uc, collections, embedder, completer
}

func TestAnswer(t *testing.T) {
	uc, collections, _, completer := newUsecase(t)

	resp, err := uc.Answer(context.Background(), &entity.QueryRequest{
		QueryID:   "q-1",
		Repo:      "hello",
		QueryText: "What does main print?",
	})
	require.NoError(t, err)

	assert.Equal(t, "q-1", resp.QueryID)
	assert.Equal(t, "hello", resp.Repo)
	assert.Equal(t, "What does main print?", resp.QueryText)
	assert.Equal(t, "It prints hello.", resp.AnswerText)
	assert.Equal(t, 10, collections.lastLimit)

	wantContext := "func main() { println(\"hello\") }\n\n# hello"
	assert.Equal(t, wantContext, completer.got.Context)
	assert.Equal(t, "What does main print?", completer.got.Question)
	assert.InDelta(t, 0.2, completer.got.Temperature, 1e-6)
	assert.Contains(t, completer.got.SystemPrompt, "You are an expert in understanding the repository.")
	assert.Contains(t, completer.got.SystemPrompt, "Context:\n"+wantContext)
}

func TestAnswerGeneratesQueryID(t *testing.T) {
	uc, _, _, _ := newUsecase(t)

	resp, err := uc.Answer(context.Background(), &entity.QueryRequest{Repo: "hello", QueryText: "why?"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.QueryID)
}

func TestAnswerWithEmptyCollection(t *testing.T) {
	uc, collections, _, completer := newUsecase(t)
	collections.matches = nil

	_, err := uc.Answer(context.Background(), &entity.QueryRequest{Repo: "hello", QueryText: "why?"})
	require.NoError(t, err)
	assert.Empty(t, completer.got.Context)
}

func TestAnswerStages(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name      string
		repo      string
		setup     func(*stubCollections, *stubEmbedder, *stubCompleter)
		wantStage Stage
		wantErr   error
	}{
		{
			name:      "unknown repository",
			repo:      "nope",
			setup:     func(*stubCollections, *stubEmbedder, *stubCompleter) {},
			wantStage: StageLookup,
			wantErr:   entity.ErrUnknownRepository,
		},
		{
			name: "model mismatch",
			repo: "hello",
			setup: func(_ *stubCollections, e *stubEmbedder, _ *stubCompleter) {
				e.model = "other-model"
			},
			wantStage: StageLookup,
			wantErr:   entity.ErrEmbeddingModelMismatch,
		},
		{
			name:      "embedding failure",
			repo:      "hello",
			setup:     func(_ *stubCollections, e *stubEmbedder, _ *stubCompleter) { e.err = boom },
			wantStage: StageEmbedding,
			wantErr:   boom,
		},
		{
			name:      "retrieval failure",
			repo:      "hello",
			setup:     func(s *stubCollections, _ *stubEmbedder, _ *stubCompleter) { s.queryErr = boom },
			wantStage: StageRetrieval,
			wantErr:   boom,
		},
		{
			name:      "completion failure",
			repo:      "hello",
			setup:     func(_ *stubCollections, _ *stubEmbedder, c *stubCompleter) { c.err = boom },
			wantStage: StageCompletion,
			wantErr:   boom,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc, collections, embedder, completer := newUsecase(t)
			tt.setup(collections, embedder, completer)

			_, err := uc.Answer(context.Background(), &entity.QueryRequest{Repo: tt.repo, QueryText: "why?"})
			require.Error(t, err)

			var qErr *QueryError
			require.ErrorAs(t, err, &qErr)
			assert.Equal(t, tt.wantStage, qErr.Stage)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAnswerValidatesRequest(t *testing.T) {
	uc, _, _, _ := newUsecase(t)

	_, err := uc.Answer(context.Background(), &entity.QueryRequest{Repo: "hello"})
	assert.ErrorIs(t, err, entity.ErrMissingField)
}

func TestBuildContextOrdersByDistance(t *testing.T) {
	got := BuildContext([]entity.Match{
		{Content: "c", Distance: 0.9},
		{Content: "a", Distance: 0.1},
		{Content: "b", Distance: 0.5},
	})
	assert.Equal(t, "a\n\nb\n\nc", got)
}
