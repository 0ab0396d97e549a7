package parser_test

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/12222526/Rag-Resume/internal/config"
	"github.com/12222526/Rag-Resume/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAliyunTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestAliyunEmbedder_EmbedStrings(t *testing.T) {
	var gotReq parser.AliyunOpenAIEmbeddingRequest
	srv := newAliyunTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test_api_key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		// 故意乱序返回，验证按 index 还原
		_ = json.NewEncoder(w).Encode(parser.AliyunOpenAIEmbeddingResponse{
			Data: []parser.AliyunOpenAIDataEntry{
				{Embedding: []float64{0, 3, 4}, Index: 1},
				{Embedding: []float64{2, 0, 0}, Index: 0},
			},
			Usage: parser.AliyunOpenAIUsage{PromptTokens: 7},
		})
	})

	e, err := parser.NewAliyunEmbedder(config.EmbeddingConfig{
		APIKey:     "test_api_key",
		BaseURL:    srv.URL,
		Dimensions: 3,
	})
	require.NoError(t, err)

	vecs, err := e.EmbedStrings(context.Background(), []string{"go developer", "python"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)

	assert.Equal(t, []string{"go developer", "python"}, gotReq.Input)
	assert.Equal(t, "text-embedding-v3", gotReq.Model)
	assert.Equal(t, "float", gotReq.EncodingFormat)

	assert.InDeltaSlice(t, []float64{1, 0, 0}, vecs[0], 1e-9)
	assert.InDeltaSlice(t, []float64{0, 0.6, 0.8}, vecs[1], 1e-9)
	assert.Equal(t, 3, e.GetDimensions())
}

func TestAliyunEmbedder_Errors(t *testing.T) {
	t.Run("缺少API密钥", func(t *testing.T) {
		_, err := parser.NewAliyunEmbedder(config.EmbeddingConfig{})
		require.Error(t, err)
	})

	t.Run("非200状态码", func(t *testing.T) {
		srv := newAliyunTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"rate limit exceeded","type":"throttling","code":"429"}}`))
		})
		e, err := parser.NewAliyunEmbedder(config.EmbeddingConfig{APIKey: "k", BaseURL: srv.URL})
		require.NoError(t, err)

		_, err = e.EmbedStrings(context.Background(), []string{"x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "429")
	})

	t.Run("数量不一致", func(t *testing.T) {
		srv := newAliyunTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":[{"embedding":[1,0],"index":0}]}`))
		})
		e, err := parser.NewAliyunEmbedder(config.EmbeddingConfig{APIKey: "k", BaseURL: srv.URL})
		require.NoError(t, err)

		_, err = e.EmbedStrings(context.Background(), []string{"a", "b"})
		require.Error(t, err)
	})

	t.Run("空输入不发请求", func(t *testing.T) {
		called := false
		srv := newAliyunTestServer(t, func(w http.ResponseWriter, r *http.Request) { called = true })
		e, err := parser.NewAliyunEmbedder(config.EmbeddingConfig{APIKey: "k", BaseURL: srv.URL})
		require.NoError(t, err)

		vecs, err := e.EmbedStrings(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, vecs)
		assert.False(t, called)
	})
}

func TestNewEmbedder(t *testing.T) {
	e, err := parser.NewEmbedder(config.EmbeddingConfig{Provider: "hash"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 384, e.GetDimensions())

	vecs, err := e.EmbedStrings(context.Background(), []string{"golang"})
	require.NoError(t, err)
	var norm float64
	for _, x := range vecs[0] {
		norm += x * x
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)

	remote, err := parser.NewEmbedder(config.EmbeddingConfig{Provider: "aliyun", APIKey: "k", Dimensions: 1024, QPM: 60}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1024, remote.GetDimensions())

	_, err = parser.NewEmbedder(config.EmbeddingConfig{Provider: "openai"}, nil)
	require.Error(t, err)
}
