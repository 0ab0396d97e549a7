package parser

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubOllama struct {
	vectors [][]float32
	err     error
	texts   []string
}

func (s *stubOllama) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	s.texts = texts
	return s.vectors, s.err
}

func newTestOllama(client ollamaClient) *OllamaEmbedder {
	return &OllamaEmbedder{client: client, model: "nomic-embed-text", dimensions: 2, logger: log.New(io.Discard, "", 0)}
}

func TestOllamaEmbedder_EmbedStrings(t *testing.T) {
	stub := &stubOllama{vectors: [][]float32{{3, 4}, {0, 2}}}
	e := newTestOllama(stub)

	vecs, err := e.EmbedStrings(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, stub.texts)
	assert.InDeltaSlice(t, []float64{0.6, 0.8}, vecs[0], 1e-6)
	assert.InDeltaSlice(t, []float64{0, 1}, vecs[1], 1e-6)
	assert.Equal(t, 2, e.GetDimensions())
}

func TestOllamaEmbedder_Errors(t *testing.T) {
	_, err := newTestOllama(&stubOllama{err: errors.New("connection refused")}).EmbedStrings(context.Background(), []string{"a"})
	require.Error(t, err)

	_, err = newTestOllama(&stubOllama{vectors: [][]float32{{1, 0}}}).EmbedStrings(context.Background(), []string{"a", "b"})
	require.Error(t, err)
}
