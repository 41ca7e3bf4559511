package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/vasanthk84/oi-analyzer/app"
	"github.com/vasanthk84/oi-analyzer/auth"
	"github.com/vasanthk84/oi-analyzer/config"
	"github.com/vasanthk84/oi-analyzer/models"
	"github.com/vasanthk84/oi-analyzer/routes"
)

func TestMain(m *testing.M) {
	os.Setenv("ENVIRONMENT", "test")
	os.Setenv("LOG_LEVEL", "error")

	os.Exit(m.Run())
}

func TestInitLogger(t *testing.T) {
	t.Run("default json logger", func(t *testing.T) {
		os.Setenv("LOG_LEVEL", "info")
		os.Setenv("LOG_FORMAT", "json")

		logger, err := initLogger()
		require.NoError(t, err)
		require.NotNil(t, logger)
		defer logger.Sync()
	})

	t.Run("development console logger", func(t *testing.T) {
		os.Setenv("LOG_LEVEL", "debug")
		os.Setenv("LOG_FORMAT", "console")

		logger, err := initLogger()
		require.NoError(t, err)
		require.NotNil(t, logger)
		defer logger.Sync()
	})

	t.Run("invalid log level", func(t *testing.T) {
		os.Setenv("LOG_LEVEL", "invalid")
		os.Setenv("LOG_FORMAT", "json")

		logger, err := initLogger()
		assert.Error(t, err)
		assert.Nil(t, logger)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("defaults when not set", func(t *testing.T) {
		os.Unsetenv("LOG_LEVEL")
		os.Unsetenv("LOG_FORMAT")

		logger, err := initLogger()
		require.NoError(t, err)
		require.NotNil(t, logger)
		defer logger.Sync()
	})
}

func TestApplicationStartup(t *testing.T) {
	t.Run("successful startup with real dependencies", func(t *testing.T) {
		ts, _ := newTestServer(t, testConfig(t))

		resp, err := http.Get(ts.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		data := body["data"].(map[string]interface{})
		assert.Equal(t, "healthy", data["status"])
	})
}

func TestHealthEndpoints(t *testing.T) {
	ts, _ := newTestServer(t, testConfig(t))

	t.Run("health check returns healthy", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	})

	t.Run("readiness ignores unreachable upstreams", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/readyz")
		require.NoError(t, err)
		defer resp.Body.Close()

		// The journal store is up, so the gateway is ready even though both
		// upstreams are unreachable.
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		data := body["data"].(map[string]interface{})
		assert.Equal(t, "ready", data["status"])

		checks := data["checks"].(map[string]interface{})
		assert.Equal(t, "healthy", checks["journal"])
		assert.Equal(t, "unreachable", checks["upstream_executor"])
		assert.Equal(t, "unreachable", checks["upstream_analytics"])
	})
}

func TestAPIEndpoints(t *testing.T) {
	ts, _ := newTestServer(t, testConfig(t))

	testCases := []struct {
		name           string
		method         string
		path           string
		body           string
		expectedStatus int
	}{
		{"system status always answers", "GET", "/api/status", "", http.StatusOK},
		{"analysis fails as bad gateway when analytics is down", "GET", "/api/analysis", "", http.StatusBadGateway},
		{"positions degrade to empty snapshot", "GET", "/api/positions", "", http.StatusServiceUnavailable},
		{"execute rejects malformed body", "POST", "/api/execute-strangle", "{not json", http.StatusBadRequest},
		{"unknown endpoint", "GET", "/api/nonexistent", "", http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var body *bytes.Reader
			if tc.body != "" {
				body = bytes.NewReader([]byte(tc.body))
			} else {
				body = bytes.NewReader(nil)
			}

			req, err := http.NewRequest(tc.method, ts.URL+tc.path, body)
			require.NoError(t, err)

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tc.expectedStatus, resp.StatusCode, "endpoint: %s %s", tc.method, tc.path)
		})
	}

	t.Run("status reports both upstreams unavailable", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/status")
		require.NoError(t, err)
		defer resp.Body.Close()

		body := decodeBody(t, resp)
		data := body["data"].(map[string]interface{})

		upstreams := data["upstreams"].([]interface{})
		require.Len(t, upstreams, 2)
		for _, raw := range upstreams {
			status := raw.(map[string]interface{})
			assert.Equal(t, false, status["available"])
		}

		features := data["features"].(map[string]interface{})
		assert.Equal(t, false, features["analytics"])
		assert.Equal(t, false, features["execution"])
	})

	t.Run("exhausted positions still return a well formed snapshot", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/positions")
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		body := decodeBody(t, resp)
		data := body["data"].(map[string]interface{})
		assert.Equal(t, "none", data["source"])
		assert.Equal(t, "none", data["reliability"])
		assert.Empty(t, data["data"])
	})
}

func TestBreakerSurfacedOverHTTP(t *testing.T) {
	cfg := testConfig(t)
	cfg.Resilience.FailureThreshold = 1
	cfg.Resilience.ResetTimeout = time.Minute
	ts, _ := newTestServer(t, cfg)

	// First call fails against the dead upstream and trips the breaker.
	resp, err := http.Get(ts.URL + "/api/analysis")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	// Second call is rejected by the open breaker with a back-off hint.
	resp, err = http.Get(ts.URL + "/api/analysis")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	body := decodeBody(t, resp)
	assert.Equal(t, "service_unavailable", body["error"])
}

func TestExecutionAuth(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.Enabled = true
	cfg.Auth.Secret = "test-secret"
	cfg.Auth.Issuer = "oi-analyzer"
	ts, _ := newTestServer(t, cfg)

	orderBody, _ := json.Marshal(models.ExecutionRequest{
		CallStrike: 25000,
		PutStrike:  24400,
		Quantity:   50,
	})

	t.Run("execution without token is rejected", func(t *testing.T) {
		resp, err := http.Post(ts.URL+"/api/execute-strangle", "application/json", bytes.NewReader(orderBody))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("read routes stay open", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/status")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("valid token reaches the router", func(t *testing.T) {
		token, err := auth.IssueToken("test-secret", "oi-analyzer", "desk-operator", time.Hour)
		require.NoError(t, err)

		req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/execute-strangle", bytes.NewReader(orderBody))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		// Auth passed; the dead executor turns the call into a bad gateway.
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	})

	t.Run("token with wrong secret is rejected", func(t *testing.T) {
		token, err := auth.IssueToken("other-secret", "oi-analyzer", "desk-operator", time.Hour)
		require.NoError(t, err)

		req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/execute-strangle", bytes.NewReader(orderBody))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestJournalFlow(t *testing.T) {
	ts, _ := newTestServer(t, testConfig(t))

	entryBody, _ := json.Marshal(models.JournalEntryRequest{
		Symbol:     "NIFTY25AUG25000CE",
		Quantity:   50,
		EntryPrice: 100,
		Context:    models.MarketContext{Spot: 24700, VIX: 13.5, DTE: 3},
	})

	resp, err := http.Post(ts.URL+"/api/journal/entry", "application/json", bytes.NewReader(entryBody))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp)
	resp.Body.Close()
	trade := body["data"].(map[string]interface{})
	tradeID := uuid.MustParse(trade["trade_id"].(string))

	t.Run("entry shows up in open trades", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/journal/open")
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		open := body["data"].([]interface{})
		require.Len(t, open, 1)
	})

	t.Run("trade is fetchable by id", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/journal/trades/" + tradeID.String())
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		data := body["data"].(map[string]interface{})
		assert.Equal(t, "NIFTY25AUG25000CE", data["symbol"])
	})

	t.Run("exit realizes the short side pnl", func(t *testing.T) {
		exitBody, _ := json.Marshal(models.JournalExitRequest{
			TradeID:   tradeID,
			ExitPrice: 80,
			Reason:    models.ExitReasonManual,
			Context:   models.MarketContext{Spot: 24650, VIX: 13.1},
		})

		resp, err := http.Post(ts.URL+"/api/journal/exit", "application/json", bytes.NewReader(exitBody))
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		data := body["data"].(map[string]interface{})
		assert.Equal(t, float64(1000), data["realized_pnl"])
	})

	t.Run("performance counts the closed trade", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/journal/performance?days=30")
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		data := body["data"].(map[string]interface{})
		overall := data["overall"].(map[string]interface{})
		assert.Equal(t, float64(1), overall["total_trades"])
	})
}

func TestWebsocketStream(t *testing.T) {
	ts, deps := newTestServer(t, testConfig(t))

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	deps.Broadcaster.Broadcast(models.NewPositionsSnapshot([]models.Position{
		{Symbol: "NIFTY25AUG25000CE", Quantity: -50, AveragePrice: 100, LastPrice: 80, MTM: 1000},
	}, models.SourcePrimary, models.ReliabilityLive))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var snapshot models.PositionsSnapshot
	require.NoError(t, conn.ReadJSON(&snapshot))

	assert.Equal(t, models.SourcePrimary, snapshot.Source)
	require.Len(t, snapshot.Positions, 1)
	assert.Equal(t, float64(1000), snapshot.TotalMTM)
}

func TestCORSMiddleware(t *testing.T) {
	ts, _ := newTestServer(t, testConfig(t))

	t.Run("OPTIONS preflight request", func(t *testing.T) {
		req, err := http.NewRequest("OPTIONS", ts.URL+"/api/status", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", "http://localhost:5173")
		req.Header.Set("Access-Control-Request-Method", "GET")
		req.Header.Set("Access-Control-Request-Headers", "Content-Type")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("Access-Control-Allow-Origin"))
	})
}

// Test helpers

// newTestServer wires real dependencies against unreachable upstream
// addresses. The gateway is built to start and serve regardless, which is
// exactly what these tests lean on.
func newTestServer(t *testing.T, cfg *config.Config) (*httptest.Server, *app.Dependencies) {
	t.Helper()

	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	deps, err := app.NewDependencies(ctx, cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close(context.Background()) })

	ts := httptest.NewServer(routes.SetupRoutes(deps))
	t.Cleanup(ts.Close)

	return ts, deps
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	// Port 1 is never listening; connection refused is immediate, so the
	// retry loops stay fast even with real delays disabled.
	return &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			Host:            "localhost",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Upstreams: []config.UpstreamConfig{
			{
				Name:    "executor",
				BaseURL: "http://127.0.0.1:1",
				Capabilities: []string{
					string(models.CapabilityExecution),
					string(models.CapabilityPositionManagement),
				},
			},
			{
				Name:         "analytics",
				BaseURL:      "http://127.0.0.1:1",
				Capabilities: []string{string(models.CapabilityAnalytics)},
			},
		},
		Resilience: config.ResilienceConfig{
			// High threshold: endpoint tests share a server and must not trip
			// breakers as a side effect.
			FailureThreshold: 50,
			ResetTimeout:     time.Minute,
			MaxAttempts:      2,
			BaseDelay:        time.Millisecond,
			MaxDelay:         5 * time.Millisecond,
		},
		Cache: config.CacheConfig{
			StalenessCutoff: 15 * time.Minute,
		},
		Stream: config.StreamConfig{
			PollInterval:   5 * time.Second,
			SendBufferSize: 16,
		},
		Journal: config.JournalConfig{
			Enabled: true,
			Path:    filepath.Join(t.TempDir(), "journal.db"),
		},
		CORS: config.CORSConfig{
			AllowedOrigins: []string{"http://localhost:5173"},
		},
		Observability: config.ObservabilityConfig{
			LogLevel:  "error",
			LogFormat: "json",
		},
	}
}
