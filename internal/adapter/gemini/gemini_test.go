package gemini_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/ezgisubasi/leadership-coach-llm/internal/adapter/gemini"
)

func mockGemini(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestEmbedder_EmbedBatch(t *testing.T) {
	ts := mockGemini(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "batchEmbedContents")

		var body struct {
			Requests []map[string]interface{} `json:"requests"`
		}
		json.NewDecoder(r.Body).Decode(&body)

		embeddings := make([]map[string]interface{}, len(body.Requests))
		for i := range body.Requests {
			embeddings[i] = map[string]interface{}{"values": []float32{float32(i), 0.5}}
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"embeddings": embeddings})
	})

	embedder := gemini.NewEmbedder("test-key", "", option.WithEndpoint(ts.URL))
	defer embedder.Close()

	vectors, err := embedder.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, []float32{2, 0.5}, vectors[2])

	vec, err := embedder.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0.5}, vec)
}

func TestEmbedder_CountMismatch(t *testing.T) {
	ts := mockGemini(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"embeddings": []map[string]interface{}{{"values": []float32{0.1}}},
		})
	})

	embedder := gemini.NewEmbedder("test-key", "", option.WithEndpoint(ts.URL))
	_, err := embedder.EmbedBatch(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, gemini.ErrMalformedResponse)
}

func TestEmbedder_MissingKey(t *testing.T) {
	embedder := gemini.NewEmbedder("", "")
	_, err := embedder.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, gemini.ErrMissingAPIKey)
}

func TestEmbedder_EmptyInput(t *testing.T) {
	embedder := gemini.NewEmbedder("", "")
	vectors, err := embedder.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestGenerator_Generate(t *testing.T) {
	ts := mockGemini(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.Contains(r.URL.Path, "gemini-1.5-flash"), r.URL.Path)
		assert.Contains(t, r.URL.Path, "generateContent")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{
					"role":  "model",
					"parts": []map[string]interface{}{{"text": "Trust matters "}, {"text": "[Video 1]."}},
				}},
			},
		})
	})

	gen, err := gemini.NewGenerator(context.Background(), "test-key", "", option.WithEndpoint(ts.URL))
	require.NoError(t, err)
	defer gen.Close()

	out, err := gen.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "Trust matters [Video 1].", out)
	assert.Equal(t, gemini.DefaultGenerationModel, gen.Model())
}

func TestGenerator_NoCandidates(t *testing.T) {
	ts := mockGemini(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"candidates": []interface{}{}})
	})

	gen, err := gemini.NewGenerator(context.Background(), "test-key", "gemini-pro", option.WithEndpoint(ts.URL))
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), "prompt")
	assert.ErrorIs(t, err, gemini.ErrMalformedResponse)
}

func TestGenerator_ServerError(t *testing.T) {
	ts := mockGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": {"code": 500, "message": "boom", "status": "INTERNAL"}}`))
	})

	gen, err := gemini.NewGenerator(context.Background(), "test-key", "", option.WithEndpoint(ts.URL))
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), "prompt")
	assert.Error(t, err)
}

func TestNewGenerator_MissingKey(t *testing.T) {
	_, err := gemini.NewGenerator(context.Background(), "", "")
	assert.ErrorIs(t, err, gemini.ErrMissingAPIKey)
}
