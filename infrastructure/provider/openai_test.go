package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// embeddingServer mimics the OpenAI embeddings endpoint. It answers every
// text with a fixed 3-dimensional vector until failFirst requests have been
// answered with status instead.
func embeddingServer(t *testing.T, counter *atomic.Int64, failFirst int64, status int) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := counter.Add(1)

		var body struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if n <= failFirst {
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"message": "model overloaded", "type": "server_error"},
			})
			return
		}

		data := make([]map[string]any, len(body.Input))
		for i := range body.Input {
			data[i] = map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float64{0.1, 0.2, float64(i)},
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  body.Model,
			"usage": map[string]int{
				"prompt_tokens": len(body.Input) * 4,
				"total_tokens":  len(body.Input) * 4,
			},
		})
	}))
}

func newTestProvider(url string, maxRetries int) *OpenAIProvider {
	return NewOpenAIProviderFromConfig(OpenAIConfig{
		APIKey:       "test-key",
		BaseURL:      url,
		Model:        "test-model",
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
	})
}

func TestOpenAIProvider_Defaults(t *testing.T) {
	p := NewOpenAIProvider("test-key")
	require.Equal(t, DefaultEmbeddingModel, p.Model())
	require.Equal(t, 0, p.maxRetries)

	p = NewOpenAIProviderFromConfig(OpenAIConfig{APIKey: "k", Model: "text-embedding-3-small", MaxRetries: 2})
	require.Equal(t, "text-embedding-3-small", p.Model())
	require.Equal(t, 2, p.maxRetries)
}

func TestOpenAIProvider_EmbedEmpty(t *testing.T) {
	var counter atomic.Int64
	srv := embeddingServer(t, &counter, 0, 0)
	defer srv.Close()

	resp, err := newTestProvider(srv.URL, 0).Embed(context.Background(), NewEmbeddingRequest(nil))
	require.NoError(t, err)
	require.Empty(t, resp.Embeddings())
	require.Equal(t, int64(0), counter.Load(), "no HTTP request for empty input")
}

func TestOpenAIProvider_EmbedSingle(t *testing.T) {
	var counter atomic.Int64
	srv := embeddingServer(t, &counter, 0, 0)
	defer srv.Close()

	resp, err := newTestProvider(srv.URL, 0).Embed(context.Background(), NewEmbeddingRequest([]string{"Hey Jude"}))
	require.NoError(t, err)
	require.Len(t, resp.Embeddings(), 1)
	require.Len(t, resp.Embeddings()[0], 3)
	require.InDelta(t, 0.1, resp.Embeddings()[0][0], 1e-6)
	require.Equal(t, 4, resp.Usage().PromptTokens())
	require.Equal(t, int64(1), counter.Load())
}

func TestOpenAIProvider_EmbedKeepsOrder(t *testing.T) {
	var counter atomic.Int64
	srv := embeddingServer(t, &counter, 0, 0)
	defer srv.Close()

	texts := []string{"a", "b", "c", "d"}
	resp, err := newTestProvider(srv.URL, 0).Embed(context.Background(), NewEmbeddingRequest(texts))
	require.NoError(t, err)

	embeddings := resp.Embeddings()
	require.Len(t, embeddings, 4)
	for i, vec := range embeddings {
		require.InDelta(t, float64(i), vec[2], 1e-6)
	}
	require.Equal(t, 16, resp.Usage().TotalTokens())
	require.Equal(t, int64(1), counter.Load(), "one request per call")
}

func TestOpenAIProvider_NoRetryByDefault(t *testing.T) {
	var counter atomic.Int64
	srv := embeddingServer(t, &counter, 1, http.StatusServiceUnavailable)
	defer srv.Close()

	_, err := newTestProvider(srv.URL, 0).Embed(context.Background(), NewEmbeddingRequest([]string{"Let It Be"}))
	require.Error(t, err)
	require.Equal(t, int64(1), counter.Load())

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, "embedding", perr.Operation())
	require.Equal(t, http.StatusServiceUnavailable, perr.StatusCode())
}

func TestOpenAIProvider_RetriesServerErrors(t *testing.T) {
	var counter atomic.Int64
	srv := embeddingServer(t, &counter, 2, http.StatusServiceUnavailable)
	defer srv.Close()

	resp, err := newTestProvider(srv.URL, 3).Embed(context.Background(), NewEmbeddingRequest([]string{"Let It Be"}))
	require.NoError(t, err)
	require.Len(t, resp.Embeddings(), 1)
	require.Equal(t, int64(3), counter.Load(), "two failures then success")
}

func TestOpenAIProvider_ClientErrorsAreNotRetried(t *testing.T) {
	var counter atomic.Int64
	srv := embeddingServer(t, &counter, 10, http.StatusBadRequest)
	defer srv.Close()

	_, err := newTestProvider(srv.URL, 3).Embed(context.Background(), NewEmbeddingRequest([]string{"x"}))
	require.Error(t, err)
	require.Equal(t, int64(1), counter.Load())
}

func TestOpenAIProvider_RateLimited(t *testing.T) {
	var counter atomic.Int64
	srv := embeddingServer(t, &counter, 10, http.StatusTooManyRequests)
	defer srv.Close()

	_, err := newTestProvider(srv.URL, 1).Embed(context.Background(), NewEmbeddingRequest([]string{"x"}))
	require.ErrorIs(t, err, ErrRateLimited)
	require.Equal(t, int64(2), counter.Load())
}

func TestOpenAIProvider_EmbedCancelledContext(t *testing.T) {
	var counter atomic.Int64
	srv := embeddingServer(t, &counter, 0, 0)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestProvider(srv.URL, 0).Embed(ctx, NewEmbeddingRequest([]string{"x"}))
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, int64(0), counter.Load())
}

// shortResponseServer returns fewer vectors than requested for the first
// failCount requests.
func shortResponseServer(t *testing.T, counter *atomic.Int64, failCount int64) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := counter.Add(1)

		var body struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		count := len(body.Input)
		if n <= failCount {
			count = 0
		}
		data := make([]map[string]any, count)
		for i := range data {
			data[i] = map[string]any{"object": "embedding", "index": i, "embedding": []float64{0.1, 0.2, 0.3}}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  body.Model,
			"usage":  map[string]int{"prompt_tokens": 0, "total_tokens": 0},
		})
	}))
}

func TestOpenAIProvider_CountMismatch(t *testing.T) {
	var counter atomic.Int64
	srv := shortResponseServer(t, &counter, 999)
	defer srv.Close()

	_, err := newTestProvider(srv.URL, 0).Embed(context.Background(), NewEmbeddingRequest([]string{"a", "b"}))
	require.ErrorIs(t, err, errEmbeddingCountMismatch)
}

func TestOpenAIProvider_CountMismatchRetries(t *testing.T) {
	var counter atomic.Int64
	srv := shortResponseServer(t, &counter, 2)
	defer srv.Close()

	resp, err := newTestProvider(srv.URL, 3).Embed(context.Background(), NewEmbeddingRequest([]string{"a", "b"}))
	require.NoError(t, err)
	require.Len(t, resp.Embeddings(), 2)
	require.Equal(t, int64(3), counter.Load())
}

func TestOpenAIProvider_UpstreamFailureIsNotRetried(t *testing.T) {
	var counter atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		counter.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":{"message":"No successful provider responses","code":502}}`))
	}))
	defer srv.Close()

	_, err := newTestProvider(srv.URL, 3).Embed(context.Background(), NewEmbeddingRequest([]string{"a"}))
	require.ErrorIs(t, err, errUpstreamProviderFailure)
	require.Equal(t, int64(1), counter.Load())
}

func TestTextEmbedder(t *testing.T) {
	var counter atomic.Int64
	srv := embeddingServer(t, &counter, 0, 0)
	defer srv.Close()

	vectors, err := NewTextEmbedder(newTestProvider(srv.URL, 0)).Embed(context.Background(), []string{"Yesterday"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	require.Len(t, vectors[0], 3)
}
