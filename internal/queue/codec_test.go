package queue

import (
	"testing"

	"github.com/repoqa/repoqa-backend/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFileTaskRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "README.md"},
		{name: "missing owner", body: `{"fileName":"a.go","repo":"r","branch":"main","rawUrl":"https://raw.githubusercontent.com/o/r/main/a.go"}`},
		{name: "missing url", body: `{"fileName":"a.go","owner":"o","repo":"r","branch":"main"}`},
		{name: "url does not match coordinates", body: `{"fileName":"a.go","owner":"o","repo":"r","branch":"main","rawUrl":"https://evil.example.com/a.go"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeFileTask([]byte(tt.body), entity.DefaultRawBaseURL)
			assert.ErrorIs(t, err, entity.ErrMalformedMessage)
		})
	}
}

func TestFileTaskRoundTripKeepsURL(t *testing.T) {
	task := entity.NewFileTask("", testDetails, "docs/guide.md")

	body, err := EncodeFileTask(task)
	require.NoError(t, err)

	decoded, err := DecodeFileTask(body, "")
	require.NoError(t, err)
	assert.Equal(t, task, decoded)
}

func TestDecodeEmbeddingTask(t *testing.T) {
	_, err := DecodeEmbeddingTask([]byte("  "))
	assert.ErrorIs(t, err, entity.ErrMalformedMessage)

	_, err = DecodeEmbeddingTask([]byte{0xff, 0xfe})
	assert.ErrorIs(t, err, entity.ErrMalformedMessage)
}
