package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureOllamaModel_Available(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[{"name":"nomic-embed-text:latest"}]}`))
	}))
	defer srv.Close()

	err := EnsureOllamaModel(context.Background(), srv.Client(), srv.URL, "nomic-embed-text", false)
	assert.NoError(t, err)
}

func TestEnsureOllamaModel_Pull(t *testing.T) {
	var pulled string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models":[]}`))
		case "/api/pull":
			var body struct {
				Name string `json:"name"`
			}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			pulled = body.Name
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	err := EnsureOllamaModel(context.Background(), srv.Client(), srv.URL+"/", "all-minilm", true)
	require.NoError(t, err)
	assert.Equal(t, "all-minilm", pulled)
}

func TestEnsureOllamaModel_MissingWithoutPull(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3:latest"}]}`))
	}))
	defer srv.Close()

	err := EnsureOllamaModel(context.Background(), srv.Client(), srv.URL, "all-minilm", false)
	assert.Error(t, err)
}

func TestEnsureOllamaModel_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := EnsureOllamaModel(context.Background(), nil, url, "all-minilm", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not reachable")
}

func TestOpenAIEmbedder_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/embeddings"), r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "text-embedding-3-small", body["model"])
		assert.Equal(t, "hello", body["input"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"object": "list",
			"data": [{"object": "embedding", "index": 0, "embedding": [0.25, -0.5, 1]}],
			"model": "text-embedding-3-small",
			"usage": {"prompt_tokens": 1, "total_tokens": 1}
		}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(srv.URL+"/v1/", "test-key", "text-embedding-3-small", 0, option.WithMaxRetries(0))
	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, -0.5, 1}, vec)
}

func TestOpenAIEmbedder_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad input","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	e := Checked(NewOpenAIEmbedder(srv.URL+"/v1/", "test-key", "m", 0, option.WithMaxRetries(0)))
	_, err := e.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrEmbeddingFailure)
}

func TestRateLimited(t *testing.T) {
	calls := 0
	inner := EmbedderFunc(func(context.Context, string) ([]float32, error) {
		calls++
		return []float32{1}, nil
	})

	_, isLimited := NewRateLimited(inner, 0, 1).(*RateLimited)
	assert.False(t, isLimited)

	limited := NewRateLimited(inner, 1000, 2)
	for i := 0; i < 3; i++ {
		_, err := limited.Embed(context.Background(), "x")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, calls)

	slow := NewRateLimited(inner, 0.001, 1)
	_, err := slow.Embed(context.Background(), "x")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = slow.Embed(ctx, "x")
	assert.Error(t, err)
	assert.Equal(t, 4, calls)
}
