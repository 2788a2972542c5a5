package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectDimensionFromModel(t *testing.T) {
	tests := []struct {
		model string
		want  int
	}{
		{"BAAI/bge-small-en-v1.5", 384},
		{"BAAI/bge-base-en-v1.5", 768},
		{"sentence-transformers/all-MiniLM-L6-v2", 384},
		{"text-embedding-3-small", 1536},
		{"text-embedding-3-large", 3072},
		{"some-large-model", 1024},
		{"totally-unknown", 384},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, detectDimensionFromModel(tt.model))
		})
	}
}

func TestNewProvider_UnknownProvider(t *testing.T) {
	_, err := NewProvider(ProviderConfig{Provider: "bogus"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestOpenAIConfig_Validate(t *testing.T) {
	valid := OpenAIConfig{Model: "m", APIKey: "k", Dimension: 384}
	assert.NoError(t, valid.Validate())

	bad := valid
	bad.Model = ""
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = valid
	bad.APIKey = ""
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = valid
	bad.Dimension = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)
}

// newEmbeddingsServer fakes an OpenAI-compatible /embeddings endpoint
// returning a fixed-dimension vector per input.
func newEmbeddingsServer(t *testing.T, dim int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embeddings", r.URL.Path)

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		type datum struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		resp := struct {
			Object string  `json:"object"`
			Data   []datum `json:"data"`
			Model  string  `json:"model"`
		}{Object: "list", Model: req.Model}

		for i := range req.Input {
			vec := make([]float32, dim)
			vec[0] = float32(i + 1)
			resp.Data = append(resp.Data, datum{Object: "embedding", Embedding: vec, Index: i})
		}

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestOpenAIProvider_EmbedDocuments(t *testing.T) {
	server := newEmbeddingsServer(t, 4)
	defer server.Close()

	provider, err := NewOpenAIProvider(OpenAIConfig{
		BaseURL:   server.URL,
		Model:     "test-model",
		APIKey:    "test-key",
		Dimension: 4,
	})
	require.NoError(t, err)
	defer provider.Close()

	vectors, err := provider.EmbedDocuments(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Len(t, vectors[0], 4)
	assert.Equal(t, 4, provider.Dimension())
}

func TestOpenAIProvider_EmbedQuery(t *testing.T) {
	server := newEmbeddingsServer(t, 4)
	defer server.Close()

	provider, err := NewOpenAIProvider(OpenAIConfig{
		BaseURL:   server.URL,
		Model:     "test-model",
		APIKey:    "test-key",
		Dimension: 4,
	})
	require.NoError(t, err)
	defer provider.Close()

	vector, err := provider.EmbedQuery(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vector, 4)
}

func TestOpenAIProvider_EmptyInput(t *testing.T) {
	server := newEmbeddingsServer(t, 4)
	defer server.Close()

	provider, err := NewOpenAIProvider(OpenAIConfig{
		BaseURL:   server.URL,
		Model:     "test-model",
		APIKey:    "test-key",
		Dimension: 4,
	})
	require.NoError(t, err)
	defer provider.Close()

	_, err = provider.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = provider.EmbedQuery(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestOpenAIProvider_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(OpenAIConfig{
		BaseURL:   server.URL,
		Model:     "test-model",
		APIKey:    "test-key",
		Dimension: 4,
	})
	require.NoError(t, err)
	defer provider.Close()

	_, err = provider.EmbedQuery(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
}
