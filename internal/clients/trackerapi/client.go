// Package trackerapi provides the HTTP client for the portfolio tracker backend API.
package trackerapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/foliosync/foliosync/internal/domain"
)

const (
	DefaultTimeout   = 15 * time.Second
	DefaultRateLimit = 5 // requests per second
)

// TokenSource holds the bearer token for the active session. The engine sets
// it at login and clears it at logout; the client only attaches it.
type TokenSource struct {
	mu    sync.RWMutex
	token string
}

// Set replaces the current token
func (t *TokenSource) Set(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.token = token
}

// Clear drops the current token
func (t *TokenSource) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.token = ""
}

// Token returns the current token, empty when unauthenticated
func (t *TokenSource) Token() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.token
}

// Client is the authenticated HTTP client for the backend REST surface.
// All outbound calls share one rate limiter; market-data reads additionally
// pass through a circuit breaker so a flaky provider cannot pile up requests.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     *TokenSource
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	log        zerolog.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithRateLimit sets the outbound request rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithHTTPClient sets the underlying HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a new backend API client
func NewClient(baseURL string, log zerolog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		tokens:  &TokenSource{},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		log:     log.With().Str("client", "trackerapi").Logger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "trackerapi-market",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("market data circuit breaker state changed")
		},
	})

	return c
}

// Tokens returns the client's token source
func (c *Client) Tokens() *TokenSource { return c.tokens }

// Portfolio returns the portfolio endpoint adapter
func (c *Client) Portfolio() *PortfolioAPI { return &PortfolioAPI{c: c} }

// Watchlist returns the watchlist endpoint adapter
func (c *Client) Watchlist() *WatchlistAPI { return &WatchlistAPI{c: c} }

// do performs a rate-limited request and decodes the JSON response into
// result when result is non-nil. Non-2xx replies come back as typed errors.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.log.Debug().Str("method", method).Str("path", path).Msg("backend request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewTransportError(0, "backend unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.errorFromResponse(resp, path)
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// getMarket performs a GET through the market-data circuit breaker.
// Mutation calls use do directly and are never short-circuited.
func (c *Client) getMarket(ctx context.Context, path string, params url.Values, result interface{}) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.do(ctx, http.MethodGet, path, params, nil, result)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return domain.NewTransportError(0, "market data temporarily unavailable", err)
	}
	return err
}

// errorFromResponse maps a non-2xx reply onto the typed error taxonomy.
// The backend reports duplicate records as 400s, so those are sniffed from
// the detail message rather than the status alone.
func (c *Client) errorFromResponse(resp *http.Response, path string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	detail := parseDetail(body)
	if detail == "" {
		detail = fmt.Sprintf("request to %s failed with status %d", path, resp.StatusCode)
	}

	c.log.Debug().Int("status", resp.StatusCode).Str("path", path).Str("detail", detail).Msg("backend error response")

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.NewNotFoundError("%s", detail)
	case (resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusConflict) && indicatesConflict(detail):
		return domain.NewConflictError("%s", detail)
	default:
		return domain.NewTransportError(resp.StatusCode, detail, nil)
	}
}

func parseDetail(body []byte) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Detail
}

func indicatesConflict(detail string) bool {
	lower := strings.ToLower(detail)
	return strings.Contains(lower, "already exists") ||
		strings.Contains(lower, "already in") ||
		strings.Contains(lower, "duplicate")
}
