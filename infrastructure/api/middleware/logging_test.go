package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AntanasZilinskas/fd2p/internal/log"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoggedRouter(buf *bytes.Buffer, handler http.HandlerFunc) chi.Router {
	logger := slog.New(slog.NewJSONHandler(buf, nil))
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(Correlation)
	router.Use(Logging(logger))
	router.Get("/", handler)
	return router
}

func TestLogging_RecordsRequest(t *testing.T) {
	var buf bytes.Buffer
	router := newLoggedRouter(&buf, func(w http.ResponseWriter, _ *http.Request) {
		WriteText(w, http.StatusTeapot, "short and stout")
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "request completed", entry["msg"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, float64(http.StatusTeapot), entry["status"])
	assert.Equal(t, float64(len("short and stout")), entry["bytes"])
	assert.NotEmpty(t, entry["request_id"])
	assert.Equal(t, entry["request_id"], entry["correlation_id"])
}

func TestCorrelation_UsesCallerHeader(t *testing.T) {
	var buf bytes.Buffer
	var seen string
	router := newLoggedRouter(&buf, func(w http.ResponseWriter, r *http.Request) {
		seen = log.CorrelationID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationHeader, "batch-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "batch-42", seen)
	assert.Equal(t, "batch-42", w.Header().Get(CorrelationHeader))
}
