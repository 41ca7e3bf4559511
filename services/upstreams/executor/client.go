// Package executor is the HTTP client for the order-execution upstream: the
// richer of the two backends, owning order placement, position management and
// the risk engine. It is the primary positions source.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vasanthk84/oi-analyzer/models"
	"github.com/vasanthk84/oi-analyzer/services/normalize"
	"github.com/vasanthk84/oi-analyzer/services/upstreams"
	"golang.org/x/time/rate"
)

const defaultName = "executor"

// Client talks to the executor upstream over HTTP
type Client struct {
	config     upstreams.ClientConfig
	target     models.UpstreamTarget
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates an executor upstream client
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

// Ping probes the upstream's health endpoint
func (c *Client) Ping(ctx context.Context) error {
	return c.get(ctx, "/health", nil)
}

// FetchPositions returns the current normalized position list
func (c *Client) FetchPositions(ctx context.Context) ([]models.Position, error) {
	var resp positionsResponse
	if err := c.get(ctx, "/api/positions", &resp); err != nil {
		return nil, err
	}
	return normalize.PositionsFromExecutor(resp.rows()), nil
}

// ExecuteStrangle places both legs of a short strangle
func (c *Client) ExecuteStrangle(ctx context.Context, req models.ExecutionRequest) (*models.ExecutionResult, error) {
	var resp executionResponse
	if err := c.post(ctx, "/api/strangle/execute", buildStrangleRequest(req), &resp); err != nil {
		return nil, err
	}
	return resp.toResult(), nil
}

// ClosePosition closes (part of) one position
func (c *Client) ClosePosition(ctx context.Context, req models.CloseRequest) (*models.ExecutionResult, error) {
	var resp executionResponse
	if err := c.post(ctx, "/api/position/close", req, &resp); err != nil {
		return nil, err
	}
	return resp.toResult(), nil
}

// CloseAllPositions closes every open position
func (c *Client) CloseAllPositions(ctx context.Context) (*models.CloseAllResult, error) {
	var resp closeAllResponse
	if err := c.post(ctx, "/api/positions/close-all", nil, &resp); err != nil {
		return nil, err
	}
	return &models.CloseAllResult{
		Success:     resp.Success,
		Message:     resp.Message,
		ClosedCount: resp.ClosedCount,
		ExecutedAt:  time.Now(),
	}, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

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
// message out of the Express-style {"error": ...} body when present.
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

// Executor-specific request/response types. The executor speaks camelCase on
// the wire; multi-word requests are rebuilt field by field rather than reusing
// the canonical snake_case tags. CloseRequest's fields are single words, so it
// goes out as-is.

type strangleRequest struct {
	CallStrike float64 `json:"callStrike"`
	PutStrike  float64 `json:"putStrike"`
	Quantity   int     `json:"quantity"`
	Profile    string  `json:"profile,omitempty"`
	AutoTrade  bool    `json:"autoTrade"`
}

func buildStrangleRequest(req models.ExecutionRequest) strangleRequest {
	return strangleRequest{
		CallStrike: req.CallStrike,
		PutStrike:  req.PutStrike,
		Quantity:   req.Quantity,
		Profile:    string(req.Profile),
		AutoTrade:  req.AutoTrade,
	}
}

// positionsResponse tolerates both envelope generations the executor has
// shipped: {"positions": [...]} and {"data": [...]}.
type positionsResponse struct {
	Positions []normalize.ExecutorPosition `json:"positions"`
	Data      []normalize.ExecutorPosition `json:"data"`
}

func (r *positionsResponse) rows() []normalize.ExecutorPosition {
	if r.Positions != nil {
		return r.Positions
	}
	return r.Data
}

type executionResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Orders  []legOrder `json:"orders"`
	Error   string     `json:"error"`
}

func (r *executionResponse) toResult() *models.ExecutionResult {
	orders := make([]models.LegOrder, 0, len(r.Orders))
	for _, o := range r.Orders {
		orders = append(orders, models.LegOrder{
			Symbol:    o.Symbol,
			OrderID:   o.OrderID,
			FillPrice: o.FillPrice,
		})
	}

	return &models.ExecutionResult{
		Success:     r.Success,
		Message:     r.Message,
		Orders:      orders,
		ExecutedAt:  time.Now(),
		ErrorDetail: r.Error,
	}
}

type legOrder struct {
	Symbol    string  `json:"symbol"`
	OrderID   string  `json:"orderId"`
	FillPrice float64 `json:"fillPrice"`
}

type closeAllResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	ClosedCount int    `json:"closedCount"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (e *errorResponse) message() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}
