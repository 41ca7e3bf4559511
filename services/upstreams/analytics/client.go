// Package analytics is the HTTP client for the option-chain analytics
// upstream. It serves the analysis surface (/analyze and friends) and doubles
// as the secondary positions source when the executor is down.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/vasanthk84/oi-analyzer/models"
	"github.com/vasanthk84/oi-analyzer/services/normalize"
	"github.com/vasanthk84/oi-analyzer/services/upstreams"
	"golang.org/x/time/rate"
)

const defaultName = "analytics"

// Client talks to the analytics upstream over HTTP
type Client struct {
	config     upstreams.ClientConfig
	target     models.UpstreamTarget
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates an analytics upstream client
func NewClient(target models.UpstreamTarget, config upstreams.ClientConfig) *Client {
	if target.Name == "" {
		target.Name = defaultName
	}
	if config.BaseURL == "" {
		config.BaseURL = target.BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}

	var limiter *rate.Limiter
	if config.RequestsPerSecond > 0 {
		burst := config.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}

	return &Client{
		config: config,
		target: target,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: limiter,
	}
}

// Name returns the upstream name
func (c *Client) Name() string {
	return c.target.Name
}

// Target returns the configured identity of this upstream
func (c *Client) Target() models.UpstreamTarget {
	return c.target
}

// Ping probes the upstream. The analytics backend has no dedicated health
// endpoint, so a bounded /analyze round-trip stands in: any 2xx means the
// service is up and its market-data session works.
func (c *Client) Ping(ctx context.Context) error {
	return c.get(ctx, "/analyze", nil)
}

// FetchAnalysis returns the live analysis report
func (c *Client) FetchAnalysis(ctx context.Context) (*models.AnalysisReport, error) {
	var report models.AnalysisReport
	if err := c.get(ctx, "/analyze", &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// FetchHistoricalAnalysis returns up to days of daily context
func (c *Client) FetchHistoricalAnalysis(ctx context.Context, days int) (*models.HistoricalAnalysis, error) {
	path := "/historical_analysis"
	if days > 0 {
		path += "?days=" + strconv.Itoa(days)
	}

	var hist models.HistoricalAnalysis
	if err := c.get(ctx, path, &hist); err != nil {
		return nil, err
	}
	return &hist, nil
}

// UpdateDailyOHLC pushes daily bars into the upstream's OHLC store
func (c *Client) UpdateDailyOHLC(ctx context.Context, rows []models.OHLCRow) error {
	body := ohlcUpdateRequest{Rows: rows}
	return c.post(ctx, "/update_daily_ohlc", body, nil)
}

// FetchPositions returns the current normalized position list. The analytics
// upstream serves the broker's net book; day-book rows are ignored.
func (c *Client) FetchPositions(ctx context.Context) ([]models.Position, error) {
	var resp positionsResponse
	if err := c.get(ctx, "/positions", &resp); err != nil {
		return nil, err
	}
	return normalize.PositionsFromAnalytics(resp.Net), nil
}

// ExecuteStrangle places both legs of a short strangle through the analytics
// upstream's broker session.
func (c *Client) ExecuteStrangle(ctx context.Context, req models.ExecutionRequest) (*models.ExecutionResult, error) {
	var resp executionResponse
	if err := c.post(ctx, "/execute_strangle", req, &resp); err != nil {
		return nil, err
	}
	return resp.toResult(), nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

// do runs one rate-limited HTTP round-trip and decodes the response into out
// (if non-nil). Transport failures come back retryable; HTTP status errors are
// classified by upstreams.RetryableStatus.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return upstreams.NewUpstreamError(c.Name(), "marshal_error", "failed to marshal request", 0, false, err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reqBody)
	if err != nil {
		return upstreams.NewUpstreamError(c.Name(), "request_error", "failed to create request", 0, false, err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		code := "connection"
		if errors.Is(err, context.DeadlineExceeded) {
			code = "timeout"
		}
		return upstreams.NewUpstreamError(c.Name(), code, "request failed", 0, true, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return upstreams.NewUpstreamError(c.Name(), "read_error", "failed to read response", resp.StatusCode, true, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(resp.StatusCode, respBody)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return upstreams.NewUpstreamError(c.Name(), "decode_error", "failed to decode response", resp.StatusCode, false, err)
		}
	}

	return nil
}

// statusError maps a non-2xx response to an UpstreamError, pulling the
// message out of the FastAPI-style {"detail": ...} body when present.
func (c *Client) statusError(statusCode int, body []byte) error {
	message := fmt.Sprintf("upstream returned status %d", statusCode)

	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		if detail := errResp.message(); detail != "" {
			message = detail
		}
	}

	return upstreams.NewUpstreamError(
		c.Name(),
		"http_error",
		message,
		statusCode,
		upstreams.RetryableStatus(statusCode),
		errors.New(message),
	)
}

// Analytics-specific request/response types

type positionsResponse struct {
	Net []normalize.AnalyticsPosition `json:"net"`
	Day []normalize.AnalyticsPosition `json:"day"`
}

type ohlcUpdateRequest struct {
	Rows []models.OHLCRow `json:"rows"`
}

type executionResponse struct {
	Success bool              `json:"success"`
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Orders  []models.LegOrder `json:"orders"`
	Detail  string            `json:"detail"`
}

func (r *executionResponse) toResult() *models.ExecutionResult {
	success := r.Success || r.Status == "success"
	return &models.ExecutionResult{
		Success:     success,
		Message:     r.Message,
		Orders:      r.Orders,
		ExecutedAt:  time.Now(),
		ErrorDetail: r.Detail,
	}
}

type errorResponse struct {
	Detail  string `json:"detail"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (e *errorResponse) message() string {
	switch {
	case e.Detail != "":
		return e.Detail
	case e.Error != "":
		return e.Error
	default:
		return e.Message
	}
}
