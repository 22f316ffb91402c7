// Package breeze is the HTTP and WebSocket client of the brokerage proxy that
// fronts exchange market data.
package breeze

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/marketdesk/internal/common"
	"github.com/ternarybob/marketdesk/internal/market"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the default HTTP timeout
	DefaultTimeout = 10 * time.Second

	// DefaultInterval is the minimum spacing between proxy calls
	DefaultInterval = 80 * time.Millisecond

	// ExchangeNSE is the only exchange the proxy is queried for
	ExchangeNSE = "NSE"

	productCash = "cash"
)

// HealthStatus is the proxy's view of its broker session
type HealthStatus struct {
	Status                  string `json:"status"`
	SessionActive           bool   `json:"session_active"`
	BreezeClientInitialized bool   `json:"breeze_client_initialized"`
	SessionKeySet           bool   `json:"session_key_set"`
}

// Client is a Breeze proxy client
type Client struct {
	baseURL    string
	proxyKey   string
	adminKey   string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
}

// ClientOption configures the Client
type ClientOption func(*Client)

// WithBaseURL sets the proxy base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithAdminKey sets the key required by the session admin endpoint
func WithAdminKey(adminKey string) ClientOption {
	return func(c *Client) {
		c.adminKey = adminKey
	}
}

// WithTimeout sets the HTTP timeout of the default client
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithRateLimit spaces calls at least interval apart. Zero disables limiting.
func WithRateLimit(interval time.Duration) ClientOption {
	return func(c *Client) {
		if interval <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
}

// NewClient creates a new proxy client
func NewClient(proxyKey string, opts ...ClientOption) *Client {
	c := &Client{
		proxyKey: proxyKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Every(DefaultInterval), 1),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ProxyKey returns the key sent with every proxy request
func (c *Client) ProxyKey() string {
	return c.proxyKey
}

// envelope is the proxy response wrapper. Error responses use either key.
type envelope struct {
	Success json.RawMessage `json:"Success"`
	Error   string          `json:"Error"`
	Message string          `json:"error"`
}

func (e *envelope) errorMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// do sends one request and returns the raw response body of a 2xx reply
func (c *Client) do(ctx context.Context, method, path string, body interface{}, headers map[string]string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &RateLimitError{RetryAfter: DefaultInterval}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", common.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.proxyKey != "" {
		req.Header.Set("X-Proxy-Key", c.proxyKey)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	if c.logger != nil {
		c.logger.Debug().Str("method", method).Str("url", c.baseURL+path).Msg("Breeze proxy request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := strings.TrimSpace(string(data))
		var env envelope
		if json.Unmarshal(data, &env) == nil && env.errorMessage() != "" {
			message = env.errorMessage()
		}
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    message,
			Endpoint:   path,
		}
	}

	return data, nil
}

// postSuccess posts a stock request and returns the Success payload. Bodies
// without a Success key are returned whole.
func (c *Client) postSuccess(ctx context.Context, path string, body interface{}) (json.RawMessage, error) {
	data, err := c.do(ctx, http.MethodPost, path, body, nil)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(env.Success) == 0 || string(env.Success) == "null" {
		if msg := env.errorMessage(); msg != "" {
			return nil, &APIError{StatusCode: http.StatusOK, Message: msg, Endpoint: path}
		}
		return json.RawMessage(data), nil
	}
	return env.Success, nil
}

type stockRequest struct {
	StockCode    string `json:"stock_code"`
	ExchangeCode string `json:"exchange_code"`
	ProductType  string `json:"product_type"`
	FromDate     string `json:"from_date,omitempty"`
	ToDate       string `json:"to_date,omitempty"`
	Interval     string `json:"interval,omitempty"`
}

func newStockRequest(stockCode string) stockRequest {
	return stockRequest{
		StockCode:    stockCode,
		ExchangeCode: ExchangeNSE,
		ProductType:  productCash,
	}
}

// GetQuote returns the NSE quote row for stockCode
func (c *Client) GetQuote(ctx context.Context, stockCode string) (market.Row, error) {
	payload, err := c.postSuccess(ctx, "/breeze/quotes", newStockRequest(stockCode))
	if err != nil {
		return nil, err
	}
	return pickRow(payload, stockCode, "/breeze/quotes")
}

// GetDepth returns the top of book row for stockCode
func (c *Client) GetDepth(ctx context.Context, stockCode string) (market.Row, error) {
	payload, err := c.postSuccess(ctx, "/breeze/depth", newStockRequest(stockCode))
	if err != nil {
		return nil, err
	}
	return pickRow(payload, stockCode, "/breeze/depth")
}

// GetHistorical returns daily bars between from and to, oldest first
func (c *Client) GetHistorical(ctx context.Context, stockCode string, from, to time.Time) ([]market.Bar, error) {
	req := newStockRequest(stockCode)
	req.FromDate = from.UTC().Format("2006-01-02T07:00:00.000Z")
	req.ToDate = to.UTC().Format("2006-01-02T07:00:00.000Z")
	req.Interval = "1day"

	payload, err := c.postSuccess(ctx, "/breeze/historical", req)
	if err != nil {
		return nil, err
	}

	var rows []market.Row
	if err := json.Unmarshal(payload, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode historical bars: %w", err)
	}

	bars := make([]market.Bar, 0, len(rows))
	for _, row := range rows {
		date := row.String("datetime")
		if len(date) > 10 {
			date = date[:10]
		}
		bars = append(bars, market.Bar{
			Date:   date,
			Open:   row.Float("open"),
			High:   row.Float("high"),
			Low:    row.Float("low"),
			Close:  row.Float("close"),
			Volume: row.Float("volume"),
		})
	}
	return bars, nil
}

// Health queries the proxy health endpoint
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	data, err := c.do(ctx, http.MethodGet, "/breeze/health", nil, nil)
	if err != nil {
		return nil, err
	}
	var status HealthStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to decode health: %w", err)
	}
	return &status, nil
}

// SetSession activates the proxy's daily broker session with apiSession
func (c *Client) SetSession(ctx context.Context, apiSession string) error {
	if strings.TrimSpace(apiSession) == "" {
		return fmt.Errorf("api_session is required")
	}
	if c.adminKey == "" {
		return fmt.Errorf("breeze admin key is not configured")
	}

	headers := map[string]string{"X-Proxy-Admin-Key": c.adminKey}
	body := map[string]string{"api_session": apiSession}
	if _, err := c.do(ctx, http.MethodPost, "/breeze/admin/api-session", body, headers); err != nil {
		return err
	}

	if c.logger != nil {
		c.logger.Info().Msg("Breeze daily session activated")
	}
	return nil
}

// pickRow selects one row from a Success payload that is either an object
// or an array. From an array the NSE row wins, then the row matching
// stockCode, then the first row.
func pickRow(payload json.RawMessage, stockCode, endpoint string) (market.Row, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var rows []market.Row
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, fmt.Errorf("failed to decode rows: %w", err)
		}
		if len(rows) == 0 {
			return nil, &APIError{StatusCode: http.StatusNotFound, Message: "no data for " + stockCode, Endpoint: endpoint}
		}
		for _, row := range rows {
			if row.String("exchange_code") == ExchangeNSE {
				return row, nil
			}
		}
		for _, row := range rows {
			if strings.EqualFold(row.String("stock_code"), stockCode) {
				return row, nil
			}
		}
		return rows[0], nil
	}

	var row market.Row
	if err := json.Unmarshal(trimmed, &row); err != nil {
		return nil, fmt.Errorf("failed to decode row: %w", err)
	}
	return row, nil
}
