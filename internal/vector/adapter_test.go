package vector_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ezgisubasi/leadership-coach-llm/internal/vector"

	"github.com/stretchr/testify/assert"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

func newAdapter(t *testing.T, handler http.HandlerFunc) (*vector.WeaviateClientAdapter, *httptest.Server) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.25.0"}`))
			return
		}
		handler(w, r)
	}))
	cfg := weaviate.Config{Host: ts.Listener.Addr().String(), Scheme: "http"}
	client, err := weaviate.NewClient(cfg)
	assert.NoError(t, err)
	return vector.NewWeaviateClientAdapter(client), ts
}

func TestWeaviateClientAdapter_ClassExists(t *testing.T) {
	t.Run("Exists", func(t *testing.T) {
		adapter, ts := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/schema/VideoDescriptions", r.URL.Path)
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(&models.Class{Class: "VideoDescriptions"})
		})
		defer ts.Close()

		exists, err := adapter.ClassExists(context.Background(), "VideoDescriptions")
		assert.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("NotFound", func(t *testing.T) {
		adapter, ts := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		defer ts.Close()

		exists, err := adapter.ClassExists(context.Background(), "VideoDescriptions")
		assert.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestWeaviateClientAdapter_CreateClass(t *testing.T) {
	adapter, ts := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/schema", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusOK)
	})
	defer ts.Close()

	err := adapter.CreateClass(context.Background(), &models.Class{Class: "Videos"})
	assert.NoError(t, err)
}

func TestWeaviateClientAdapter_DeleteClass(t *testing.T) {
	adapter, ts := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/schema/Videos", r.URL.Path)
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusOK)
	})
	defer ts.Close()

	err := adapter.DeleteClass(context.Background(), "Videos")
	assert.NoError(t, err)
}
