package provider

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/AntanasZilinskas/fd2p/internal/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const cacheFile = "http-cache.db"

// cacheEntry is one cached POST response.
type cacheEntry struct {
	Key        string `gorm:"column:key;primaryKey"`
	StatusCode int    `gorm:"column:status_code"`
	Header     []byte `gorm:"column:header"`
	Body       []byte `gorm:"column:body"`
	CreatedAt  time.Time
}

// TableName returns the table name.
func (cacheEntry) TableName() string { return "http_cache" }

// CachingTransport is an http.RoundTripper that replays identical POST
// requests from a SQLite file in dir, keyed by the SHA-256 of method, URL
// and body. Only 2xx responses are stored. Cache failures fall through to
// the inner transport.
type CachingTransport struct {
	inner http.RoundTripper
	db    database.Database
}

// NewCachingTransport opens (or creates) the cache under dir. If inner is
// nil, http.DefaultTransport is used.
func NewCachingTransport(dir string, inner http.RoundTripper) (*CachingTransport, error) {
	if inner == nil {
		inner = http.DefaultTransport
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	ctx := context.Background()
	url := "sqlite:///" + filepath.Join(dir, cacheFile)
	db, err := database.NewDatabaseWithConfig(ctx, url, &gorm.Config{Logger: logger.Discard})
	if err != nil {
		return nil, fmt.Errorf("open http cache: %w", err)
	}
	if err := db.Session(ctx).AutoMigrate(&cacheEntry{}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate http cache: %w", err)
	}

	return &CachingTransport{inner: inner, db: db}, nil
}

// Close closes the cache database.
func (t *CachingTransport) Close() error {
	return t.db.Close()
}

// RoundTrip implements http.RoundTripper.
func (t *CachingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodPost || req.Body == nil {
		return t.inner.RoundTrip(req)
	}

	body, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, err
	}
	req.Body = io.NopCloser(bytes.NewReader(body))

	key := cacheKey(req.Method, req.URL.String(), body)
	if resp, ok := t.read(req, key); ok {
		return resp, nil
	}

	resp, err := t.inner.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, nil
	}

	respBody, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}

	t.write(req.Context(), key, resp.StatusCode, resp.Header, respBody)

	resp.Body = io.NopCloser(bytes.NewReader(respBody))
	return resp, nil
}

func cacheKey(method, url string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte("\n"))
	h.Write([]byte(url))
	h.Write([]byte("\n"))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func (t *CachingTransport) read(req *http.Request, key string) (*http.Response, bool) {
	var entry cacheEntry
	err := t.db.Session(req.Context()).Where(cacheEntry{Key: key}).Limit(1).Find(&entry).Error
	if err != nil || entry.Key == "" {
		return nil, false
	}

	var header http.Header
	if err := json.Unmarshal(entry.Header, &header); err != nil {
		return nil, false
	}

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", entry.StatusCode, http.StatusText(entry.StatusCode)),
		StatusCode:    entry.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(entry.Body)),
		ContentLength: int64(len(entry.Body)),
		Request:       req,
	}, true
}

func (t *CachingTransport) write(ctx context.Context, key string, statusCode int, header http.Header, body []byte) {
	encoded, err := json.Marshal(header)
	if err != nil {
		return
	}
	entry := cacheEntry{Key: key, StatusCode: statusCode, Header: encoded, Body: body}
	_ = t.db.Session(context.WithoutCancel(ctx)).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&entry).Error
}
