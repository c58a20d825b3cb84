// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultHost                     = "0.0.0.0"
	DefaultPort                     = 8080
	DefaultLogLevel                 = "INFO"
	DefaultTitlesTable              = "music_features"
	DefaultMatchFunction            = "match_similar_songs"
	DefaultTextSearchFunction       = "search_songs_by_title"
	DefaultBatchSize                = 25
	DefaultBatchConcurrency         = 4
	DefaultSearchTopN               = 5
	DefaultSearchMaxResults         = 10
	DefaultEmbeddingDimension       = 384
	DefaultEndpointTimeout          = 60 * time.Second
	DefaultEndpointMaxRetries       = 0
	DefaultPeriodicBackfillInterval = 3600.0 // seconds
	DefaultCORSAllowedOrigins       = "*"
	DefaultModelSubdir              = "models"
)

// LogFormat represents the log output format.
type LogFormat string

// LogFormat values.
const (
	LogFormatPretty LogFormat = "pretty"
	LogFormatJSON   LogFormat = "json"
)

// Endpoint configures a remote embedding service.
type Endpoint struct {
	baseURL    string
	model      string
	apiKey     string
	timeout    time.Duration
	maxRetries int
}

// NewEndpoint creates a new Endpoint with defaults.
func NewEndpoint() Endpoint {
	return Endpoint{
		timeout:    DefaultEndpointTimeout,
		maxRetries: DefaultEndpointMaxRetries,
	}
}

// BaseURL returns the base URL for the endpoint.
func (e Endpoint) BaseURL() string { return e.baseURL }

// Model returns the model identifier.
func (e Endpoint) Model() string { return e.model }

// APIKey returns the API key.
func (e Endpoint) APIKey() string { return e.apiKey }

// Timeout returns the request timeout.
func (e Endpoint) Timeout() time.Duration { return e.timeout }

// MaxRetries returns the maximum retry count.
func (e Endpoint) MaxRetries() int { return e.maxRetries }

// IsConfigured returns true if the endpoint can be called.
func (e Endpoint) IsConfigured() bool {
	return e.baseURL != "" && e.apiKey != ""
}

// EndpointOption is a functional option for Endpoint.
type EndpointOption func(*Endpoint)

// WithBaseURL sets the base URL.
func WithBaseURL(url string) EndpointOption {
	return func(e *Endpoint) { e.baseURL = url }
}

// WithModel sets the model.
func WithModel(model string) EndpointOption {
	return func(e *Endpoint) { e.model = model }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) EndpointOption {
	return func(e *Endpoint) { e.apiKey = key }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) EndpointOption {
	return func(e *Endpoint) { e.timeout = d }
}

// WithMaxRetries sets the maximum retry count.
func WithMaxRetries(n int) EndpointOption {
	return func(e *Endpoint) { e.maxRetries = n }
}

// NewEndpointWithOptions creates an Endpoint with the given options applied to defaults.
func NewEndpointWithOptions(opts ...EndpointOption) Endpoint {
	e := NewEndpoint()
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// BatchConfig configures the backfill job.
type BatchConfig struct {
	size        int
	concurrency int
}

// NewBatchConfig creates a BatchConfig with defaults.
func NewBatchConfig() BatchConfig {
	return BatchConfig{
		size:        DefaultBatchSize,
		concurrency: DefaultBatchConcurrency,
	}
}

// Size returns the number of rows fetched per batch.
func (b BatchConfig) Size() int { return b.size }

// Concurrency returns the number of embedding calls in flight per batch.
func (b BatchConfig) Concurrency() int { return b.concurrency }

// WithSize returns a new config with the specified batch size.
func (b BatchConfig) WithSize(n int) BatchConfig {
	if n > 0 {
		b.size = n
	}
	return b
}

// WithConcurrency returns a new config with the specified concurrency.
func (b BatchConfig) WithConcurrency(n int) BatchConfig {
	if n > 0 {
		b.concurrency = n
	}
	return b
}

// PeriodicBackfillConfig configures the timer-driven backfill sweep.
type PeriodicBackfillConfig struct {
	enabled         bool
	intervalSeconds float64
}

// NewPeriodicBackfillConfig creates a PeriodicBackfillConfig with defaults.
func NewPeriodicBackfillConfig() PeriodicBackfillConfig {
	return PeriodicBackfillConfig{
		enabled:         false,
		intervalSeconds: DefaultPeriodicBackfillInterval,
	}
}

// Enabled returns whether the periodic backfill runs.
func (p PeriodicBackfillConfig) Enabled() bool { return p.enabled }

// Interval returns the time between sweeps.
func (p PeriodicBackfillConfig) Interval() time.Duration {
	return time.Duration(p.intervalSeconds * float64(time.Second))
}

// WithEnabled returns a new config with the specified enabled state.
func (p PeriodicBackfillConfig) WithEnabled(enabled bool) PeriodicBackfillConfig {
	p.enabled = enabled
	return p
}

// WithIntervalSeconds returns a new config with the specified interval.
func (p PeriodicBackfillConfig) WithIntervalSeconds(seconds float64) PeriodicBackfillConfig {
	if seconds > 0 {
		p.intervalSeconds = seconds
	}
	return p
}

// StoreConfig names the table and database functions the service talks to.
type StoreConfig struct {
	table              string
	matchFunction      string
	textSearchFunction string
}

// NewStoreConfig creates a StoreConfig with defaults.
func NewStoreConfig() StoreConfig {
	return StoreConfig{
		table:              DefaultTitlesTable,
		matchFunction:      DefaultMatchFunction,
		textSearchFunction: DefaultTextSearchFunction,
	}
}

// Table returns the title table name.
func (s StoreConfig) Table() string { return s.table }

// MatchFunction returns the nearest-neighbour database function.
func (s StoreConfig) MatchFunction() string { return s.matchFunction }

// TextSearchFunction returns the lexical search database function.
func (s StoreConfig) TextSearchFunction() string { return s.textSearchFunction }

// WithNames returns a copy with the given names. Empty values are kept.
func (s StoreConfig) WithNames(table, matchFunction, textSearchFunction string) StoreConfig {
	if table != "" {
		s.table = table
	}
	if matchFunction != "" {
		s.matchFunction = matchFunction
	}
	if textSearchFunction != "" {
		s.textSearchFunction = textSearchFunction
	}
	return s
}

// AppConfig holds the main application configuration.
type AppConfig struct {
	host               string
	port               int
	dataDir            string
	dbURL              string
	dbPassword         string
	logLevel           string
	logFormat          LogFormat
	store              StoreConfig
	batch              BatchConfig
	searchTopN         int
	searchMaxResults   int
	embeddingDimension int
	embeddingEndpoint  *Endpoint
	modelDir           string
	httpCacheDir       string
	periodicBackfill   PeriodicBackfillConfig
	corsAllowedOrigins []string
}

// DefaultDataDir returns the default data directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".fd2p"
	}
	return filepath.Join(home, ".fd2p")
}

// DefaultLogger returns the default slog logger for library consumers.
func DefaultLogger() *slog.Logger {
	return slog.Default()
}

// PrepareDataDir creates the data directory if it does not exist and returns it.
func PrepareDataDir(dataDir string) (string, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	return dataDir, nil
}

// NewAppConfig creates a new AppConfig with defaults.
func NewAppConfig() AppConfig {
	dataDir := DefaultDataDir()
	return AppConfig{
		host:               DefaultHost,
		port:               DefaultPort,
		dataDir:            dataDir,
		dbURL:              "sqlite:///" + filepath.Join(dataDir, "fd2p.db"),
		logLevel:           DefaultLogLevel,
		logFormat:          LogFormatPretty,
		store:              NewStoreConfig(),
		batch:              NewBatchConfig(),
		searchTopN:         DefaultSearchTopN,
		searchMaxResults:   DefaultSearchMaxResults,
		embeddingDimension: DefaultEmbeddingDimension,
		periodicBackfill:   NewPeriodicBackfillConfig(),
		corsAllowedOrigins: []string{DefaultCORSAllowedOrigins},
	}
}

// NewAppConfigWithOptions creates an AppConfig with the given options applied to defaults.
func NewAppConfigWithOptions(opts ...AppConfigOption) AppConfig {
	return NewAppConfig().Apply(opts...)
}

// Host returns the server host to bind to.
func (c AppConfig) Host() string { return c.host }

// Port returns the server port to listen on.
func (c AppConfig) Port() int { return c.port }

// Addr returns the combined host:port address.
func (c AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.host, c.port)
}

// DataDir returns the data directory path.
func (c AppConfig) DataDir() string { return c.dataDir }

// DBURL returns the database connection URL with the configured password
// substituted in when the URL itself carries none.
func (c AppConfig) DBURL() string {
	if c.dbPassword == "" || IsSQLiteURL(c.dbURL) {
		return c.dbURL
	}
	u, err := url.Parse(c.dbURL)
	if err != nil || u.User == nil {
		return c.dbURL
	}
	if _, set := u.User.Password(); set {
		return c.dbURL
	}
	u.User = url.UserPassword(u.User.Username(), c.dbPassword)
	return u.String()
}

// LogLevel returns the log level.
func (c AppConfig) LogLevel() string { return c.logLevel }

// LogFormat returns the log format.
func (c AppConfig) LogFormat() LogFormat { return c.logFormat }

// Store returns the table and function names.
func (c AppConfig) Store() StoreConfig { return c.store }

// Batch returns the backfill batch policy.
func (c AppConfig) Batch() BatchConfig { return c.batch }

// SearchTopN returns the default similarity result count.
func (c AppConfig) SearchTopN() int { return c.searchTopN }

// SearchMaxResults returns the default lexical result count.
func (c AppConfig) SearchMaxResults() int { return c.searchMaxResults }

// EmbeddingDimension returns the expected vector length (0 disables the check).
func (c AppConfig) EmbeddingDimension() int { return c.embeddingDimension }

// EmbeddingEndpoint returns the remote embedding endpoint config, or nil.
func (c AppConfig) EmbeddingEndpoint() *Endpoint { return c.embeddingEndpoint }

// ModelDir returns the built-in model directory.
func (c AppConfig) ModelDir() string {
	if c.modelDir != "" {
		return c.modelDir
	}
	return filepath.Join(c.dataDir, DefaultModelSubdir)
}

// HTTPCacheDir returns the provider response cache directory, or empty.
func (c AppConfig) HTTPCacheDir() string { return c.httpCacheDir }

// PeriodicBackfill returns the periodic backfill config.
func (c AppConfig) PeriodicBackfill() PeriodicBackfillConfig { return c.periodicBackfill }

// CORSAllowedOrigins returns the allowed CORS origins.
func (c AppConfig) CORSAllowedOrigins() []string {
	origins := make([]string, len(c.corsAllowedOrigins))
	copy(origins, c.corsAllowedOrigins)
	return origins
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c AppConfig) EnsureDataDir() error {
	return os.MkdirAll(c.dataDir, 0o755)
}

// AppConfigOption is a functional option for AppConfig.
type AppConfigOption func(*AppConfig)

// WithHost sets the server host.
func WithHost(host string) AppConfigOption {
	return func(c *AppConfig) { c.host = host }
}

// WithPort sets the server port.
func WithPort(port int) AppConfigOption {
	return func(c *AppConfig) { c.port = port }
}

// WithDataDir sets the data directory.
func WithDataDir(dir string) AppConfigOption {
	return func(c *AppConfig) {
		c.dataDir = dir
		// Update default DB URL when data dir changes
		if c.dbURL == "" || strings.HasSuffix(c.dbURL, "fd2p.db") {
			c.dbURL = "sqlite:///" + filepath.Join(dir, "fd2p.db")
		}
	}
}

// WithDBURL sets the database URL.
func WithDBURL(url string) AppConfigOption {
	return func(c *AppConfig) { c.dbURL = url }
}

// WithDBPassword sets the database credential used when the URL has none.
func WithDBPassword(password string) AppConfigOption {
	return func(c *AppConfig) { c.dbPassword = password }
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) AppConfigOption {
	return func(c *AppConfig) { c.logLevel = level }
}

// WithLogFormat sets the log format.
func WithLogFormat(format LogFormat) AppConfigOption {
	return func(c *AppConfig) { c.logFormat = format }
}

// WithStoreNames sets the table and function names. Empty values keep the default.
func WithStoreNames(table, matchFunction, textSearchFunction string) AppConfigOption {
	return func(c *AppConfig) {
		c.store = c.store.WithNames(table, matchFunction, textSearchFunction)
	}
}

// WithBatchConfig sets the backfill batch policy.
func WithBatchConfig(b BatchConfig) AppConfigOption {
	return func(c *AppConfig) { c.batch = b }
}

// WithSearchDefaults sets the default result counts for both searches.
func WithSearchDefaults(topN, maxResults int) AppConfigOption {
	return func(c *AppConfig) {
		if topN > 0 {
			c.searchTopN = topN
		}
		if maxResults > 0 {
			c.searchMaxResults = maxResults
		}
	}
}

// WithEmbeddingDimension sets the expected vector length.
func WithEmbeddingDimension(n int) AppConfigOption {
	return func(c *AppConfig) { c.embeddingDimension = n }
}

// WithEmbeddingEndpoint sets the remote embedding endpoint.
func WithEmbeddingEndpoint(e Endpoint) AppConfigOption {
	return func(c *AppConfig) { c.embeddingEndpoint = &e }
}

// WithModelDir sets the built-in model directory.
func WithModelDir(dir string) AppConfigOption {
	return func(c *AppConfig) { c.modelDir = dir }
}

// WithHTTPCacheDir sets the provider response cache directory.
func WithHTTPCacheDir(dir string) AppConfigOption {
	return func(c *AppConfig) { c.httpCacheDir = dir }
}

// WithPeriodicBackfillConfig sets the periodic backfill config.
func WithPeriodicBackfillConfig(p PeriodicBackfillConfig) AppConfigOption {
	return func(c *AppConfig) { c.periodicBackfill = p }
}

// WithCORSAllowedOrigins sets the allowed CORS origins.
func WithCORSAllowedOrigins(origins []string) AppConfigOption {
	return func(c *AppConfig) {
		c.corsAllowedOrigins = make([]string, len(origins))
		copy(c.corsAllowedOrigins, origins)
	}
}

// Apply returns a copy of the config with the options applied.
func (c AppConfig) Apply(opts ...AppConfigOption) AppConfig {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// LogAttrs returns slog attributes for logging the configuration.
// Credentials are never included.
func (c AppConfig) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("data_dir", c.dataDir),
		slog.String("log_level", c.logLevel),
		slog.String("db_url", c.maskedDBURL()),
		slog.String("table", c.store.table),
		slog.String("match_function", c.store.matchFunction),
		slog.String("text_search_function", c.store.textSearchFunction),
		slog.Int("batch_size", c.batch.size),
		slog.Int("batch_concurrency", c.batch.concurrency),
		slog.Int("embedding_dimension", c.embeddingDimension),
		slog.String("embedding_base_url", c.endpointBaseURL()),
		slog.String("embedding_model", c.endpointModel()),
		slog.Bool("periodic_backfill_enabled", c.periodicBackfill.Enabled()),
		slog.Duration("periodic_backfill_interval", c.periodicBackfill.Interval()),
	}
}

func (c AppConfig) maskedDBURL() string {
	if c.dbURL == "" {
		return "(default)"
	}
	if IsSQLiteURL(c.dbURL) {
		return c.dbURL
	}
	return "postgres://***@***"
}

func (c AppConfig) endpointBaseURL() string {
	if c.embeddingEndpoint == nil || c.embeddingEndpoint.BaseURL() == "" {
		return "(built-in)"
	}
	return c.embeddingEndpoint.BaseURL()
}

func (c AppConfig) endpointModel() string {
	if c.embeddingEndpoint == nil || c.embeddingEndpoint.Model() == "" {
		return "(default)"
	}
	return c.embeddingEndpoint.Model()
}

// IsSQLiteURL reports whether the database URL points at SQLite.
func IsSQLiteURL(url string) bool {
	return strings.HasPrefix(url, "sqlite:")
}
