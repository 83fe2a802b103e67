package openai

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/repoqa/repoqa-backend/internal/entity"
	"go.uber.org/zap"
)

const mockDimensions = 64

// MockConnector produces deterministic vectors and canned answers
type MockConnector struct {
	model  string
	logger *zap.Logger
}

func NewMockConnector(model string, logger *zap.Logger) *MockConnector {
	return &MockConnector{
		model:  model,
		logger: logger,
	}
}

func (m *MockConnector) Model() string {
	return m.model
}

// Embed hashes the words of text into a normalized bag-of-words vector, so
// texts sharing words end up close to each other.
func (m *MockConnector) Embed(ctx context.Context, text string) ([]float32, error) {
	vector := make([]float32, mockDimensions)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(word))
		vector[h.Sum32()%mockDimensions]++
	}

	var norm float64
	for _, v := range vector {
		norm += float64(v * v)
	}
	if norm == 0 {
		vector[0] = 1
		norm = 1
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vector {
		vector[i] *= scale
	}

	ctxzap.Debug(ctx, "[MOCK] embedding created", zap.Int("text_length", len(text)))
	return vector, nil
}

func (m *MockConnector) Complete(ctx context.Context, req entity.CompletionRequest) (string, error) {
	ctxzap.Info(ctx, "[MOCK] chat completion",
		zap.Int("context_length", len(req.Context)),
		zap.String("question", req.Question),
	)

	return fmt.Sprintf("Mock answer to %q based on %d characters of repository context.", req.Question, len(req.Context)), nil
}
