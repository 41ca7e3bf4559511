package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/vasanthk84/oi-analyzer/models"
	"gopkg.in/yaml.v3"
)

// Config represents the complete gateway configuration
type Config struct {
	Server        ServerConfig
	Upstreams     []UpstreamConfig
	Resilience    ResilienceConfig
	Cache         CacheConfig
	Stream        StreamConfig
	Journal       JournalConfig
	Auth          AuthConfig
	CORS          CORSConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// UpstreamConfig declares one upstream target. Duration-like fields are plain
// ints with unit suffixes so the YAML stays free of custom types.
type UpstreamConfig struct {
	Name              string              `yaml:"name"`
	BaseURL           string              `yaml:"base_url"`
	Capabilities      []string            `yaml:"capabilities"`
	Enabled           *bool               `yaml:"enabled"`
	TimeoutSeconds    int                 `yaml:"timeout_seconds"`
	RequestsPerSecond float64             `yaml:"requests_per_second"`
	Burst             int                 `yaml:"burst"`
	Resilience        *UpstreamResilience `yaml:"resilience"`
}

// UpstreamResilience overrides breaker settings for one target
type UpstreamResilience struct {
	FailureThreshold    int `yaml:"failure_threshold"`
	ResetTimeoutSeconds int `yaml:"reset_timeout_seconds"`
}

// IsEnabled reports whether the target is enabled; absent means enabled
func (u UpstreamConfig) IsEnabled() bool {
	return u.Enabled == nil || *u.Enabled
}

// Timeout returns the per-request timeout as a time.Duration
func (u UpstreamConfig) Timeout() time.Duration {
	return time.Duration(u.TimeoutSeconds) * time.Second
}

// Target converts the declaration into the runtime upstream identity
func (u UpstreamConfig) Target() models.UpstreamTarget {
	caps := make([]models.Capability, 0, len(u.Capabilities))
	for _, c := range u.Capabilities {
		caps = append(caps, models.Capability(c))
	}
	return models.UpstreamTarget{
		Name:         u.Name,
		BaseURL:      u.BaseURL,
		Capabilities: models.NewCapabilitySet(caps...),
		Enabled:      u.IsEnabled(),
	}
}

// ResilienceConfig holds the default breaker and retry settings. Per-target
// breaker overrides live on the upstream declarations.
type ResilienceConfig struct {
	FailureThreshold int
	ResetTimeout     time.Duration
	MaxAttempts      int
	BaseDelay        time.Duration
	MaxDelay         time.Duration
}

// CacheConfig holds the positions snapshot cache settings
type CacheConfig struct {
	// StalenessCutoff is the oldest cached snapshot still served as a
	// degraded result. Zero disables the cutoff.
	StalenessCutoff time.Duration
}

// StreamConfig holds the positions stream settings
type StreamConfig struct {
	PollInterval   time.Duration
	SendBufferSize int
}

// JournalConfig holds the trade journal settings
type JournalConfig struct {
	Enabled bool
	Path    string
}

// AuthConfig holds the settings for the optional auth middleware on
// execution routes
type AuthConfig struct {
	Enabled bool
	Secret  string
	Issuer  string
}

// CORSConfig holds the allowed browser origins
type CORSConfig struct {
	AllowedOrigins []string
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or console
}

// New creates a new Config instance by loading environment variables and the
// upstreams YAML file
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Resilience: ResilienceConfig{
			FailureThreshold: getEnvAsInt("BREAKER_FAILURE_THRESHOLD", 3),
			ResetTimeout:     getEnvAsDuration("BREAKER_RESET_TIMEOUT", 30*time.Second),
			MaxAttempts:      getEnvAsInt("RETRY_MAX_ATTEMPTS", 3),
			BaseDelay:        getEnvAsDuration("RETRY_BASE_DELAY", 250*time.Millisecond),
			MaxDelay:         getEnvAsDuration("RETRY_MAX_DELAY", 2*time.Second),
		},
		Cache: CacheConfig{
			StalenessCutoff: getEnvAsDuration("CACHE_STALENESS_CUTOFF", 15*time.Minute),
		},
		Stream: StreamConfig{
			PollInterval:   getEnvAsDuration("STREAM_POLL_INTERVAL", 5*time.Second),
			SendBufferSize: getEnvAsInt("STREAM_SEND_BUFFER", 16),
		},
		Journal: JournalConfig{
			Enabled: getEnvAsBool("JOURNAL_ENABLED", true),
			Path:    getEnv("JOURNAL_DB_PATH", "journal.db"),
		},
		Auth: AuthConfig{
			Enabled: getEnvAsBool("AUTH_ENABLED", false),
			Secret:  getEnv("AUTH_JWT_SECRET", ""),
			Issuer:  getEnv("AUTH_JWT_ISSUER", "oi-analyzer"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	upstreams, err := loadUpstreams()
	if err != nil {
		return nil, err
	}
	cfg.Upstreams = upstreams

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if len(c.Upstreams) == 0 {
		return fmt.Errorf("at least one upstream target is required")
	}
	seen := make(map[string]bool, len(c.Upstreams))
	for _, u := range c.Upstreams {
		if u.Name == "" {
			return fmt.Errorf("upstream name is required")
		}
		if seen[u.Name] {
			return fmt.Errorf("duplicate upstream name %q", u.Name)
		}
		seen[u.Name] = true
		if u.BaseURL == "" {
			return fmt.Errorf("upstream %q: base URL is required", u.Name)
		}
		if len(u.Capabilities) == 0 {
			return fmt.Errorf("upstream %q: at least one capability is required", u.Name)
		}
		if u.Resilience != nil && u.Resilience.FailureThreshold < 0 {
			return fmt.Errorf("upstream %q: failure threshold must not be negative", u.Name)
		}
	}

	if c.Resilience.FailureThreshold < 1 {
		return fmt.Errorf("breaker failure threshold must be at least 1")
	}
	if c.Resilience.ResetTimeout <= 0 {
		return fmt.Errorf("breaker reset timeout must be positive")
	}
	if c.Resilience.MaxAttempts < 1 {
		return fmt.Errorf("retry max attempts must be at least 1")
	}
	if c.Resilience.BaseDelay <= 0 || c.Resilience.MaxDelay <= 0 {
		return fmt.Errorf("retry delays must be positive")
	}
	if c.Cache.StalenessCutoff < 0 {
		return fmt.Errorf("cache staleness cutoff must not be negative")
	}
	if c.Stream.PollInterval <= 0 {
		return fmt.Errorf("stream poll interval must be positive")
	}

	if c.Journal.Enabled && c.Journal.Path == "" {
		return fmt.Errorf("journal path is required when the journal is enabled")
	}
	if c.Auth.Enabled && c.Auth.Secret == "" {
		return fmt.Errorf("auth secret is required when auth is enabled")
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// Upstream returns the declaration for a named target, or nil
func (c *Config) Upstream(name string) *UpstreamConfig {
	for i := range c.Upstreams {
		if c.Upstreams[i].Name == name {
			return &c.Upstreams[i]
		}
	}
	return nil
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// loadUpstreams reads the upstream targets from the YAML file named by
// UPSTREAMS_CONFIG. A missing file is not an error: the two standard targets
// are derived from env vars so the gateway runs with no files present.
func loadUpstreams() ([]UpstreamConfig, error) {
	path := getEnv("UPSTREAMS_CONFIG", "upstreams.yaml")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultUpstreams(), nil
		}
		return nil, fmt.Errorf("failed to read upstreams config %q: %w", path, err)
	}

	var doc struct {
		Upstreams []UpstreamConfig `yaml:"upstreams"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse upstreams config %q: %w", path, err)
	}
	if len(doc.Upstreams) == 0 {
		return nil, fmt.Errorf("upstreams config %q declares no targets", path)
	}
	return doc.Upstreams, nil
}

// defaultUpstreams derives the standard executor + analytics pair from env vars
func defaultUpstreams() []UpstreamConfig {
	executorEnabled := getEnvAsBool("EXECUTOR_ENABLED", true)
	analyticsEnabled := getEnvAsBool("ANALYTICS_ENABLED", true)

	return []UpstreamConfig{
		{
			Name:    "executor",
			BaseURL: getEnv("EXECUTOR_BASE_URL", "http://localhost:5000"),
			Capabilities: []string{
				string(models.CapabilityExecution),
				string(models.CapabilityPositionManagement),
				string(models.CapabilityRiskManagement),
				string(models.CapabilityAutoTrading),
			},
			Enabled: &executorEnabled,
		},
		{
			Name:    "analytics",
			BaseURL: getEnv("ANALYTICS_BASE_URL", "http://localhost:8000"),
			Capabilities: []string{
				string(models.CapabilityAnalytics),
			},
			Enabled: &analyticsEnabled,
		},
	}
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
