package provider

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransport(t *testing.T, inner http.RoundTripper) *CachingTransport {
	t.Helper()
	transport, err := NewCachingTransport(t.TempDir(), inner)
	require.NoError(t, err)
	t.Cleanup(func() { _ = transport.Close() })
	return transport
}

func post(t *testing.T, transport http.RoundTripper, url, body string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := transport.RoundTrip(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func TestCachingTransport_CacheHit(t *testing.T) {
	var count atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		count.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Request-Id", "abc")
		_, _ = w.Write([]byte(`{"result":"ok"}`))
	}))
	defer srv.Close()

	transport := newTestTransport(t, srv.Client().Transport)

	for range 3 {
		resp, body := post(t, transport, srv.URL+"/v1/embeddings", `{"input":["Hey Jude"]}`)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, `{"result":"ok"}`, body)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		assert.Equal(t, "abc", resp.Header.Get("X-Request-Id"))
	}
	assert.Equal(t, int32(1), count.Load())
}

func TestCachingTransport_DifferentBodies(t *testing.T) {
	var count atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count.Add(1)
		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	transport := newTestTransport(t, srv.Client().Transport)

	for _, b := range []string{`{"input":["Help!"]}`, `{"input":["Yesterday"]}`} {
		_, body := post(t, transport, srv.URL+"/v1/embeddings", b)
		assert.Equal(t, b, body)
	}
	assert.Equal(t, int32(2), count.Load())
}

func TestCachingTransport_NonSuccessNotCached(t *testing.T) {
	var count atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		count.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	transport := newTestTransport(t, srv.Client().Transport)

	for range 2 {
		resp, _ := post(t, transport, srv.URL+"/api", "body")
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	}
	assert.Equal(t, int32(2), count.Load())
}

func TestCachingTransport_GetPassesThrough(t *testing.T) {
	var count atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		count.Add(1)
	}))
	defer srv.Close()

	transport := newTestTransport(t, srv.Client().Transport)
	for range 2 {
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/models", nil)
		require.NoError(t, err)
		resp, err := transport.RoundTrip(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
	}
	assert.Equal(t, int32(2), count.Load())
}

func TestCachingTransport_CorruptEntryFallsThrough(t *testing.T) {
	var count atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		count.Add(1)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	transport := newTestTransport(t, srv.Client().Transport)
	post(t, transport, srv.URL+"/api", "body")

	key := cacheKey(http.MethodPost, srv.URL+"/api", []byte("body"))
	require.NoError(t, transport.db.Session(t.Context()).
		Model(&cacheEntry{}).Where(cacheEntry{Key: key}).
		Update("header", []byte("not json{{{")).Error)

	_, body := post(t, transport, srv.URL+"/api", "body")
	assert.Equal(t, `{"ok":true}`, body)
	assert.Equal(t, int32(2), count.Load())
}

func TestCachingTransport_InnerError(t *testing.T) {
	transport := newTestTransport(t, failingTransport{})

	req, err := http.NewRequest(http.MethodPost, "http://localhost/api", strings.NewReader("body"))
	require.NoError(t, err)
	_, err = transport.RoundTrip(req)
	assert.ErrorIs(t, err, http.ErrServerClosed)
}

func TestCachingTransport_PersistsAcrossInstances(t *testing.T) {
	var count atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		count.Add(1)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	first, err := NewCachingTransport(dir, srv.Client().Transport)
	require.NoError(t, err)
	post(t, first, srv.URL+"/api", "body")
	require.NoError(t, first.Close())

	second, err := NewCachingTransport(dir, srv.Client().Transport)
	require.NoError(t, err)
	defer func() { _ = second.Close() }()
	post(t, second, srv.URL+"/api", "body")

	assert.Equal(t, int32(1), count.Load())
}

func TestCachingTransport_WithOpenAIProvider(t *testing.T) {
	var count atomic.Int64
	srv := embeddingServer(t, &count, 0, 0)
	defer srv.Close()

	transport := newTestTransport(t, srv.Client().Transport)
	p := NewOpenAIProviderFromConfig(OpenAIConfig{
		APIKey:     "test-key",
		BaseURL:    srv.URL + "/v1",
		Model:      "gte-small",
		HTTPClient: &http.Client{Transport: transport, Timeout: 5 * time.Second},
	})

	texts := []string{"Hey Jude", "Let It Be"}
	for range 2 {
		resp, err := p.Embed(t.Context(), NewEmbeddingRequest(texts))
		require.NoError(t, err)
		require.Len(t, resp.Embeddings(), 2)
	}
	assert.Equal(t, int64(1), count.Load(), "identical request served from cache")

	_, err := p.Embed(t.Context(), NewEmbeddingRequest([]string{"Yesterday"}))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count.Load())
}

// failingTransport always returns an error.
type failingTransport struct{}

func (failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, http.ErrServerClosed
}
