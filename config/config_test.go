package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasanthk84/oi-analyzer/models"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "default configuration",
			envVars: map[string]string{
				"ENVIRONMENT": "development",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "development", cfg.Environment)
				assert.Equal(t, "0.0.0.0", cfg.Server.Host)
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
				assert.Equal(t, 3, cfg.Resilience.FailureThreshold)
				assert.Equal(t, 30*time.Second, cfg.Resilience.ResetTimeout)
				assert.Equal(t, 3, cfg.Resilience.MaxAttempts)
				assert.Equal(t, 250*time.Millisecond, cfg.Resilience.BaseDelay)
				assert.Equal(t, 2*time.Second, cfg.Resilience.MaxDelay)
				assert.Equal(t, 15*time.Minute, cfg.Cache.StalenessCutoff)
				assert.Equal(t, 5*time.Second, cfg.Stream.PollInterval)
				assert.Equal(t, 16, cfg.Stream.SendBufferSize)
				assert.True(t, cfg.Journal.Enabled)
				assert.Equal(t, "journal.db", cfg.Journal.Path)
				assert.False(t, cfg.Auth.Enabled)
				assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORS.AllowedOrigins)
				assert.Equal(t, "info", cfg.Observability.LogLevel)
				assert.Equal(t, "json", cfg.Observability.LogFormat)
			},
		},
		{
			name: "default upstreams when no yaml file exists",
			envVars: map[string]string{
				"ENVIRONMENT": "development",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				require.Len(t, cfg.Upstreams, 2)
				assert.Equal(t, "executor", cfg.Upstreams[0].Name)
				assert.Equal(t, "http://localhost:5000", cfg.Upstreams[0].BaseURL)
				assert.Len(t, cfg.Upstreams[0].Capabilities, 4)
				assert.True(t, cfg.Upstreams[0].IsEnabled())
				assert.Equal(t, "analytics", cfg.Upstreams[1].Name)
				assert.Equal(t, "http://localhost:8000", cfg.Upstreams[1].BaseURL)
				assert.Equal(t, []string{"analytics"}, cfg.Upstreams[1].Capabilities)
				assert.True(t, cfg.Upstreams[1].IsEnabled())
			},
		},
		{
			name: "upstream base URLs and enabled flags from env",
			envVars: map[string]string{
				"ENVIRONMENT":        "development",
				"EXECUTOR_BASE_URL":  "http://executor.internal:5000",
				"ANALYTICS_BASE_URL": "http://analytics.internal:8000",
				"EXECUTOR_ENABLED":   "false",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				require.Len(t, cfg.Upstreams, 2)
				assert.Equal(t, "http://executor.internal:5000", cfg.Upstreams[0].BaseURL)
				assert.False(t, cfg.Upstreams[0].IsEnabled())
				assert.Equal(t, "http://analytics.internal:8000", cfg.Upstreams[1].BaseURL)
				assert.True(t, cfg.Upstreams[1].IsEnabled())
			},
		},
		{
			name: "production configuration",
			envVars: map[string]string{
				"ENVIRONMENT": "production",
				"SERVER_PORT": "9000",
				"LOG_FORMAT":  "json",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.IsProduction())
				assert.False(t, cfg.IsDevelopment())
				assert.Equal(t, 9000, cfg.Server.Port)
			},
		},
		{
			name: "custom resilience settings",
			envVars: map[string]string{
				"ENVIRONMENT":               "development",
				"BREAKER_FAILURE_THRESHOLD": "5",
				"BREAKER_RESET_TIMEOUT":     "60s",
				"RETRY_MAX_ATTEMPTS":        "2",
				"RETRY_BASE_DELAY":          "100ms",
				"RETRY_MAX_DELAY":           "1s",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 5, cfg.Resilience.FailureThreshold)
				assert.Equal(t, 60*time.Second, cfg.Resilience.ResetTimeout)
				assert.Equal(t, 2, cfg.Resilience.MaxAttempts)
				assert.Equal(t, 100*time.Millisecond, cfg.Resilience.BaseDelay)
				assert.Equal(t, time.Second, cfg.Resilience.MaxDelay)
			},
		},
		{
			name: "PORT env var takes precedence over SERVER_PORT",
			envVars: map[string]string{
				"ENVIRONMENT": "development",
				"PORT":        "9443",
				"SERVER_PORT": "9000",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9443, cfg.Server.Port)
			},
		},
		{
			name: "SERVER_PORT env var when PORT not set",
			envVars: map[string]string{
				"ENVIRONMENT": "development",
				"SERVER_PORT": "9000",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9000, cfg.Server.Port)
			},
		},
		{
			name: "journal can be disabled",
			envVars: map[string]string{
				"ENVIRONMENT":     "development",
				"JOURNAL_ENABLED": "false",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.False(t, cfg.Journal.Enabled)
			},
		},
		{
			name: "auth enabled with secret",
			envVars: map[string]string{
				"ENVIRONMENT":     "development",
				"AUTH_ENABLED":    "true",
				"AUTH_JWT_SECRET": "super-secret",
				"AUTH_JWT_ISSUER": "trading-desk",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Auth.Enabled)
				assert.Equal(t, "super-secret", cfg.Auth.Secret)
				assert.Equal(t, "trading-desk", cfg.Auth.Issuer)
			},
		},
		{
			name: "auth enabled without secret",
			envVars: map[string]string{
				"ENVIRONMENT":  "development",
				"AUTH_ENABLED": "true",
			},
			wantErr: true,
		},
		{
			name: "cors origins are split and trimmed",
			envVars: map[string]string{
				"ENVIRONMENT":          "development",
				"CORS_ALLOWED_ORIGINS": "http://localhost:5173, http://localhost:3000",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"http://localhost:5173", "http://localhost:3000"}, cfg.CORS.AllowedOrigins)
			},
		},
		{
			name: "zero retry attempts rejected",
			envVars: map[string]string{
				"ENVIRONMENT":        "development",
				"RETRY_MAX_ATTEMPTS": "0",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear environment
			os.Clearenv()

			// Set test environment variables
			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}

			// Create config
			cfg, err := New(context.Background())

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestNew_UpstreamsFromYAML(t *testing.T) {
	writeYAML := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "upstreams.yaml")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	t.Run("full declaration with per-target override", func(t *testing.T) {
		os.Clearenv()
		path := writeYAML(t, `
upstreams:
  - name: executor
    base_url: http://localhost:5000
    capabilities: [execution, position_management, risk_management, auto_trading]
    timeout_seconds: 5
    requests_per_second: 20
    burst: 5
    resilience:
      failure_threshold: 1
      reset_timeout_seconds: 10
  - name: analytics
    base_url: http://localhost:8000
    capabilities: [analytics]
    enabled: false
`)
		os.Setenv("UPSTREAMS_CONFIG", path)

		cfg, err := New(context.Background())
		require.NoError(t, err)
		require.Len(t, cfg.Upstreams, 2)

		executor := cfg.Upstream("executor")
		require.NotNil(t, executor)
		assert.Equal(t, "http://localhost:5000", executor.BaseURL)
		assert.Equal(t, 5*time.Second, executor.Timeout())
		assert.Equal(t, 20.0, executor.RequestsPerSecond)
		assert.Equal(t, 5, executor.Burst)
		require.NotNil(t, executor.Resilience)
		assert.Equal(t, 1, executor.Resilience.FailureThreshold)
		assert.Equal(t, 10, executor.Resilience.ResetTimeoutSeconds)

		analytics := cfg.Upstream("analytics")
		require.NotNil(t, analytics)
		assert.False(t, analytics.IsEnabled())
		assert.Nil(t, analytics.Resilience)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		os.Clearenv()
		path := writeYAML(t, "upstreams: [broken")
		os.Setenv("UPSTREAMS_CONFIG", path)

		_, err := New(context.Background())
		assert.Error(t, err)
	})

	t.Run("empty upstream list", func(t *testing.T) {
		os.Clearenv()
		path := writeYAML(t, "upstreams: []\n")
		os.Setenv("UPSTREAMS_CONFIG", path)

		_, err := New(context.Background())
		assert.Error(t, err)
	})

	t.Run("unreadable path falls back only for missing files", func(t *testing.T) {
		os.Clearenv()
		os.Setenv("UPSTREAMS_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))

		cfg, err := New(context.Background())
		require.NoError(t, err)
		assert.Len(t, cfg.Upstreams, 2)
	})
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Environment: "development",
			Server:      ServerConfig{Host: "0.0.0.0", Port: 8080},
			Upstreams: []UpstreamConfig{
				{Name: "executor", BaseURL: "http://localhost:5000", Capabilities: []string{"execution"}},
				{Name: "analytics", BaseURL: "http://localhost:8000", Capabilities: []string{"analytics"}},
			},
			Resilience: ResilienceConfig{
				FailureThreshold: 3,
				ResetTimeout:     30 * time.Second,
				MaxAttempts:      3,
				BaseDelay:        250 * time.Millisecond,
				MaxDelay:         2 * time.Second,
			},
			Cache:         CacheConfig{StalenessCutoff: 15 * time.Minute},
			Stream:        StreamConfig{PollInterval: 5 * time.Second, SendBufferSize: 16},
			Journal:       JournalConfig{Enabled: true, Path: "journal.db"},
			Observability: ObservabilityConfig{LogLevel: "info"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "no upstreams",
			mutate:  func(c *Config) { c.Upstreams = nil },
			wantErr: true,
			errMsg:  "at least one upstream",
		},
		{
			name: "duplicate upstream names",
			mutate: func(c *Config) {
				c.Upstreams[1].Name = "executor"
			},
			wantErr: true,
			errMsg:  "duplicate upstream name",
		},
		{
			name: "upstream without base URL",
			mutate: func(c *Config) {
				c.Upstreams[0].BaseURL = ""
			},
			wantErr: true,
			errMsg:  "base URL is required",
		},
		{
			name: "upstream without capabilities",
			mutate: func(c *Config) {
				c.Upstreams[0].Capabilities = nil
			},
			wantErr: true,
			errMsg:  "capability",
		},
		{
			name: "negative per-target failure threshold",
			mutate: func(c *Config) {
				c.Upstreams[0].Resilience = &UpstreamResilience{FailureThreshold: -1}
			},
			wantErr: true,
			errMsg:  "must not be negative",
		},
		{
			name:    "breaker threshold zero",
			mutate:  func(c *Config) { c.Resilience.FailureThreshold = 0 },
			wantErr: true,
			errMsg:  "failure threshold",
		},
		{
			name:    "retry attempts zero",
			mutate:  func(c *Config) { c.Resilience.MaxAttempts = 0 },
			wantErr: true,
			errMsg:  "max attempts",
		},
		{
			name:    "stream poll interval zero",
			mutate:  func(c *Config) { c.Stream.PollInterval = 0 },
			wantErr: true,
			errMsg:  "poll interval",
		},
		{
			name: "journal enabled without path",
			mutate: func(c *Config) {
				c.Journal = JournalConfig{Enabled: true, Path: ""}
			},
			wantErr: true,
			errMsg:  "journal path",
		},
		{
			name: "journal disabled needs no path",
			mutate: func(c *Config) {
				c.Journal = JournalConfig{Enabled: false, Path: ""}
			},
			wantErr: false,
		},
		{
			name: "auth enabled without secret",
			mutate: func(c *Config) {
				c.Auth = AuthConfig{Enabled: true}
			},
			wantErr: true,
			errMsg:  "auth secret",
		},
		{
			name:    "missing log level",
			mutate:  func(c *Config) { c.Observability.LogLevel = "" },
			wantErr: true,
			errMsg:  "log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()

			if tt.wantErr {
				assert.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_IsProduction(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		want        bool
	}{
		{"production", "production", true},
		{"prod", "prod", true},
		{"development", "development", false},
		{"dev", "dev", false},
		{"staging", "staging", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Environment: tt.environment}
			assert.Equal(t, tt.want, cfg.IsProduction())
		})
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		want        bool
	}{
		{"development", "development", true},
		{"dev", "dev", true},
		{"production", "production", false},
		{"staging", "staging", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Environment: tt.environment}
			assert.Equal(t, tt.want, cfg.IsDevelopment())
		})
	}
}

func TestConfig_Upstream(t *testing.T) {
	cfg := &Config{
		Upstreams: []UpstreamConfig{
			{Name: "executor"},
			{Name: "analytics"},
		},
	}

	require.NotNil(t, cfg.Upstream("analytics"))
	assert.Equal(t, "analytics", cfg.Upstream("analytics").Name)
	assert.Nil(t, cfg.Upstream("reporting"))
}

func TestUpstreamConfig_Target(t *testing.T) {
	disabled := false
	u := UpstreamConfig{
		Name:         "executor",
		BaseURL:      "http://localhost:5000",
		Capabilities: []string{"execution", "position_management"},
		Enabled:      &disabled,
	}

	target := u.Target()

	assert.Equal(t, "executor", target.Name)
	assert.Equal(t, "http://localhost:5000", target.BaseURL)
	assert.False(t, target.Enabled)
	assert.True(t, target.Capabilities.Has(models.CapabilityExecution))
	assert.True(t, target.Capabilities.Has(models.CapabilityPositionManagement))
	assert.False(t, target.Capabilities.Has(models.CapabilityAnalytics))
}

func TestUpstreamConfig_IsEnabled(t *testing.T) {
	enabled := true
	disabled := false

	assert.True(t, UpstreamConfig{}.IsEnabled())
	assert.True(t, UpstreamConfig{Enabled: &enabled}.IsEnabled())
	assert.False(t, UpstreamConfig{Enabled: &disabled}.IsEnabled())
}

func TestServerConfig_Address(t *testing.T) {
	cfg := ServerConfig{
		Host: "0.0.0.0",
		Port: 8080,
	}

	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
}

func TestGetEnvAsInt(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		value        string
		defaultValue int
		want         int
	}{
		{"valid int", "TEST_INT", "42", 10, 42},
		{"empty value", "TEST_INT", "", 10, 10},
		{"invalid int", "TEST_INT", "not-a-number", 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			if tt.value != "" {
				os.Setenv(tt.key, tt.value)
			}
			got := getEnvAsInt(tt.key, tt.defaultValue)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetEnvAsBool(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		value        string
		defaultValue bool
		want         bool
	}{
		{"true", "TEST_BOOL", "true", false, true},
		{"false", "TEST_BOOL", "false", true, false},
		{"empty value", "TEST_BOOL", "", true, true},
		{"invalid bool", "TEST_BOOL", "not-a-bool", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			if tt.value != "" {
				os.Setenv(tt.key, tt.value)
			}
			got := getEnvAsBool(tt.key, tt.defaultValue)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		value        string
		defaultValue time.Duration
		want         time.Duration
	}{
		{"valid duration", "TEST_DURATION", "30s", 10 * time.Second, 30 * time.Second},
		{"empty value", "TEST_DURATION", "", 10 * time.Second, 10 * time.Second},
		{"invalid duration", "TEST_DURATION", "not-a-duration", 10 * time.Second, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			if tt.value != "" {
				os.Setenv(tt.key, tt.value)
			}
			got := getEnvAsDuration(tt.key, tt.defaultValue)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetEnvAsSlice(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		value        string
		defaultValue []string
		want         []string
	}{
		{"single value", "TEST_SLICE", "http://a", []string{"x"}, []string{"http://a"}},
		{"comma separated with spaces", "TEST_SLICE", "http://a, http://b ,http://c", []string{"x"}, []string{"http://a", "http://b", "http://c"}},
		{"empty value", "TEST_SLICE", "", []string{"x"}, []string{"x"}},
		{"only commas", "TEST_SLICE", ",,", []string{"x"}, []string{"x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			if tt.value != "" {
				os.Setenv(tt.key, tt.value)
			}
			got := getEnvAsSlice(tt.key, tt.defaultValue)
			assert.Equal(t, tt.want, got)
		})
	}
}
