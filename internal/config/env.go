package config

import (
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvConfig holds all environment-based configuration.
// Nested structs use underscore delimiter (e.g., EMBEDDING_ENDPOINT_BASE_URL).
type EnvConfig struct {
	// Host is the server host to bind to.
	// Env: HOST (default: 0.0.0.0)
	Host string `envconfig:"HOST" default:"0.0.0.0"`

	// Port is the server port to listen on.
	// Env: PORT (default: 8080)
	Port int `envconfig:"PORT" default:"8080"`

	// DataDir is the data directory path.
	// Env: DATA_DIR
	// Default: ~/.fd2p
	DataDir string `envconfig:"DATA_DIR"`

	// DBURL is the database connection URL.
	// Env: DB_URL
	// Default: sqlite:///{data_dir}/fd2p.db
	DBURL string `envconfig:"DB_URL"`

	// DBPassword is substituted into a Postgres DB_URL that carries no password.
	// Env: DB_PASSWORD
	DBPassword string `envconfig:"DB_PASSWORD"`

	// LogLevel is the log verbosity level.
	// Env: LOG_LEVEL (default: INFO)
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`

	// LogFormat is the log output format (pretty or json).
	// Env: LOG_FORMAT (default: pretty)
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// TitlesTable is the table holding title records.
	// Env: TITLES_TABLE (default: music_features)
	TitlesTable string `envconfig:"TITLES_TABLE" default:"music_features"`

	// MatchFunction is the nearest-neighbour database function.
	// Env: MATCH_FUNCTION (default: match_similar_songs)
	MatchFunction string `envconfig:"MATCH_FUNCTION" default:"match_similar_songs"`

	// TextSearchFunction is the lexical search database function.
	// Env: TEXT_SEARCH_FUNCTION (default: search_songs_by_title)
	TextSearchFunction string `envconfig:"TEXT_SEARCH_FUNCTION" default:"search_songs_by_title"`

	// BatchSize is the number of rows fetched per backfill batch.
	// Env: BATCH_SIZE (default: 25)
	BatchSize int `envconfig:"BATCH_SIZE" default:"25"`

	// BatchConcurrency bounds embedding calls in flight per batch.
	// Env: BATCH_CONCURRENCY (default: 4)
	BatchConcurrency int `envconfig:"BATCH_CONCURRENCY" default:"4"`

	// SearchTopN is the default similarity result count.
	// Env: SEARCH_TOP_N (default: 5)
	SearchTopN int `envconfig:"SEARCH_TOP_N" default:"5"`

	// SearchMaxResults is the default lexical result count.
	// Env: SEARCH_MAX_RESULTS (default: 10)
	SearchMaxResults int `envconfig:"SEARCH_MAX_RESULTS" default:"10"`

	// EmbeddingDimension is the expected vector length. Zero disables the check.
	// Env: EMBEDDING_DIMENSION (default: 384)
	EmbeddingDimension int `envconfig:"EMBEDDING_DIMENSION" default:"384"`

	// EmbeddingEndpoint configures a remote embedding service.
	// When unset the built-in model is used.
	EmbeddingEndpoint EndpointEnv `envconfig:"EMBEDDING_ENDPOINT"`

	// ModelDir is where the built-in model lives.
	// Env: MODEL_DIR
	// Default: {data_dir}/models
	ModelDir string `envconfig:"MODEL_DIR"`

	// HTTPCacheDir is the directory for caching HTTP responses to disk.
	// When set, POST request/response pairs are cached to avoid repeated API calls.
	// Env: HTTP_CACHE_DIR
	HTTPCacheDir string `envconfig:"HTTP_CACHE_DIR"`

	// PeriodicBackfill configures the timer-driven backfill sweep.
	PeriodicBackfill PeriodicBackfillEnv `envconfig:"PERIODIC_BACKFILL"`

	// CORSAllowedOrigins is a comma-separated list of allowed origins.
	// Env: CORS_ALLOWED_ORIGINS (default: *)
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// EndpointEnv holds environment configuration for an embedding endpoint.
type EndpointEnv struct {
	// BaseURL is the base URL for the endpoint.
	// Env: *_BASE_URL
	BaseURL string `envconfig:"BASE_URL"`

	// Model is the model identifier (e.g., text-embedding-3-small).
	// Env: *_MODEL
	Model string `envconfig:"MODEL"`

	// APIKey is the API key for authentication.
	// Env: *_API_KEY
	APIKey string `envconfig:"API_KEY"`

	// Timeout is the request timeout in seconds.
	// Env: *_TIMEOUT (default: 60)
	Timeout float64 `envconfig:"TIMEOUT" default:"60"`

	// MaxRetries is the maximum number of retries.
	// Env: *_MAX_RETRIES (default: 0)
	MaxRetries int `envconfig:"MAX_RETRIES" default:"0"`
}

// PeriodicBackfillEnv holds environment configuration for periodic backfill.
type PeriodicBackfillEnv struct {
	// Enabled controls whether the sweep runs.
	// Env: PERIODIC_BACKFILL_ENABLED (default: false)
	Enabled bool `envconfig:"ENABLED" default:"false"`

	// IntervalSeconds is the time between sweeps in seconds.
	// Env: PERIODIC_BACKFILL_INTERVAL_SECONDS (default: 3600)
	IntervalSeconds float64 `envconfig:"INTERVAL_SECONDS" default:"3600"`
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// LoadFromEnvWithPrefix loads configuration with a custom prefix.
// For example, prefix "FD2P" would require FD2P_DATA_DIR instead of DATA_DIR.
func LoadFromEnvWithPrefix(prefix string) (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// ToAppConfig converts EnvConfig to AppConfig.
func (e EnvConfig) ToAppConfig() AppConfig {
	cfg := NewAppConfig()

	if e.Host != "" {
		cfg = applyOption(cfg, WithHost(e.Host))
	}
	if e.Port != 0 {
		cfg = applyOption(cfg, WithPort(e.Port))
	}
	if e.DataDir != "" {
		cfg = applyOption(cfg, WithDataDir(e.DataDir))
	}
	if e.DBURL != "" {
		cfg = applyOption(cfg, WithDBURL(e.DBURL))
	}
	if e.DBPassword != "" {
		cfg = applyOption(cfg, WithDBPassword(e.DBPassword))
	}
	if e.LogLevel != "" {
		cfg = applyOption(cfg, WithLogLevel(e.LogLevel))
	}
	if e.LogFormat != "" {
		cfg = applyOption(cfg, WithLogFormat(parseLogFormat(e.LogFormat)))
	}

	cfg = applyOption(cfg, WithStoreNames(e.TitlesTable, e.MatchFunction, e.TextSearchFunction))
	cfg = applyOption(cfg, WithBatchConfig(NewBatchConfig().WithSize(e.BatchSize).WithConcurrency(e.BatchConcurrency)))
	cfg = applyOption(cfg, WithSearchDefaults(e.SearchTopN, e.SearchMaxResults))

	if e.EmbeddingDimension >= 0 {
		cfg = applyOption(cfg, WithEmbeddingDimension(e.EmbeddingDimension))
	}

	if e.EmbeddingEndpoint.IsConfigured() {
		cfg = applyOption(cfg, WithEmbeddingEndpoint(e.EmbeddingEndpoint.ToEndpoint()))
	}

	if e.ModelDir != "" {
		cfg = applyOption(cfg, WithModelDir(e.ModelDir))
	}
	if e.HTTPCacheDir != "" {
		cfg = applyOption(cfg, WithHTTPCacheDir(e.HTTPCacheDir))
	}

	cfg = applyOption(cfg, WithPeriodicBackfillConfig(e.PeriodicBackfill.ToPeriodicBackfillConfig()))

	if origins := ParseOrigins(e.CORSAllowedOrigins); len(origins) > 0 {
		cfg = applyOption(cfg, WithCORSAllowedOrigins(origins))
	}

	return cfg
}

// applyOption applies an option to the config.
func applyOption(cfg AppConfig, opt AppConfigOption) AppConfig {
	opt(&cfg)
	return cfg
}

// IsConfigured returns true if the endpoint has a base URL configured.
func (e EndpointEnv) IsConfigured() bool {
	return e.BaseURL != ""
}

// ToEndpoint converts EndpointEnv to Endpoint.
func (e EndpointEnv) ToEndpoint() Endpoint {
	opts := []EndpointOption{
		WithBaseURL(e.BaseURL),
		WithModel(e.Model),
		WithTimeout(time.Duration(e.Timeout * float64(time.Second))),
		WithMaxRetries(e.MaxRetries),
	}
	if e.APIKey != "" {
		opts = append(opts, WithAPIKey(e.APIKey))
	}
	return NewEndpointWithOptions(opts...)
}

// ToPeriodicBackfillConfig converts PeriodicBackfillEnv to PeriodicBackfillConfig.
func (p PeriodicBackfillEnv) ToPeriodicBackfillConfig() PeriodicBackfillConfig {
	return NewPeriodicBackfillConfig().
		WithEnabled(p.Enabled).
		WithIntervalSeconds(p.IntervalSeconds)
}

// ParseOrigins splits a comma-separated origin list, dropping blanks.
func ParseOrigins(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// parseLogFormat parses a log format string.
func parseLogFormat(s string) LogFormat {
	switch strings.ToLower(s) {
	case "json":
		return LogFormatJSON
	default:
		return LogFormatPretty
	}
}
