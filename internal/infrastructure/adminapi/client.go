// Package adminapi is the REST client for the admin system of record. It is
// used by the polling transport and the catalog mirror.
package adminapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/storefront/backend/internal/domain/integration"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultPageSize         = 100
	defaultMaxResponseBytes = 10 * 1024 * 1024
	maxPages                = 1000
)

// ErrInvalidConfig is returned by NewClient for an unusable configuration
var ErrInvalidConfig = errors.New("adminapi: invalid configuration")

// Config holds admin API client settings
type Config struct {
	BaseURL          string
	Token            string
	Timeout          time.Duration
	PageSize         int
	MaxResponseBytes int64
	RateLimit        float64 // requests per second, 0 disables limiting
	RateBurst        int
	BreakerFailures  uint32
	BreakerTimeout   time.Duration
}

// Client calls the admin REST API. Every request goes through a rate
// limiter and a circuit breaker; 4xx responses other than 429 do not count
// as breaker failures.
type Client struct {
	baseURL    *url.URL
	token      string
	pageSize   int
	maxBytes   int64
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

// Option is a functional option for Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates a new admin API client
func NewClient(cfg Config, logger *zap.Logger, opts ...Option) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: base url %q", ErrInvalidConfig, cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	}

	c := &Client{
		baseURL:    base,
		token:      cfg.Token,
		pageSize:   cfg.PageSize,
		maxBytes:   cfg.MaxResponseBytes,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With(zap.String("component", "adminapi")),
	}
	if c.pageSize <= 0 {
		c.pageSize = defaultPageSize
	}
	if c.maxBytes <= 0 {
		c.maxBytes = defaultMaxResponseBytes
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(limit, burst)

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "admin-api",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !isTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("Circuit breaker state change",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ListOrdersByStatus returns every remote order in the given status, following pagination
func (c *Client) ListOrdersByStatus(ctx context.Context, status string) ([]map[string]any, error) {
	q := url.Values{}
	q.Set("status", status)
	return fetchAll[map[string]any](ctx, c, "/orders", q)
}

// ListCategories returns the full admin category list
func (c *Client) ListCategories(ctx context.Context) ([]integration.RemoteCategory, error) {
	return fetchAll[integration.RemoteCategory](ctx, c, "/categories", url.Values{})
}

// ListProducts returns the full admin product list
func (c *Client) ListProducts(ctx context.Context) ([]integration.RemoteProduct, error) {
	return fetchAll[integration.RemoteProduct](ctx, c, "/products", url.Values{})
}

// BreakerState returns the current circuit breaker state
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// get performs one GET through the limiter and the breaker and returns the body
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrAdminRateLimited, err)
	}

	body, err := c.breaker.Execute(func() (interface{}, error) {
		return c.do(ctx, path, query)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", integration.ErrAdminUnavailable, err)
		}
		return nil, err
	}
	return body.([]byte), nil
}

func (c *Client) do(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.baseURL.JoinPath(path)
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("adminapi: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrAdminUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", integration.ErrAdminUnavailable, err)
	}

	c.logger.Debug("Admin API request completed",
		zap.String("path", path),
		zap.String("query", u.RawQuery),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if err := statusError(resp.StatusCode); err != nil {
		return nil, err
	}
	if int64(len(body)) > c.maxBytes {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", integration.ErrAdminInvalidResponse, c.maxBytes)
	}
	return body, nil
}

func statusError(code int) error {
	switch {
	case code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", integration.ErrAdminAuthFailed, code)
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: HTTP %d", integration.ErrAdminRateLimited, code)
	case code >= 500:
		return fmt.Errorf("%w: HTTP %d", integration.ErrAdminUnavailable, code)
	default:
		return fmt.Errorf("%w: HTTP %d", integration.ErrAdminRequestFailed, code)
	}
}

func isTransient(err error) bool {
	return errors.Is(err, integration.ErrAdminUnavailable) || errors.Is(err, integration.ErrAdminRateLimited)
}

// page is a Spring Data style page
type page[T any] struct {
	Content []T   `json:"content"`
	Last    *bool `json:"last"`
}

// fetchAll follows pagination until the last page. A bare JSON array is
// treated as a single complete page.
func fetchAll[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	var all []T
	for n := 0; n < maxPages; n++ {
		q := cloneValues(query)
		q.Set("page", strconv.Itoa(n))
		q.Set("size", strconv.Itoa(c.pageSize))

		body, err := c.get(ctx, path, q)
		if err != nil {
			return nil, err
		}

		items, last, err := decodePage[T](body)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", integration.ErrAdminInvalidResponse, path, err)
		}
		all = append(all, items...)
		if len(items) == 0 {
			return all, nil
		}
		if last != nil && *last {
			return all, nil
		}
		if last == nil && len(items) < c.pageSize {
			return all, nil
		}
	}
	c.logger.Warn("Admin API pagination limit reached", zap.String("path", path), zap.Int("pages", maxPages))
	return all, nil
}

// decodePage returns the page items and the page's last flag, which is nil
// when the response does not say.
func decodePage[T any](body []byte) ([]T, *bool, error) {
	complete := true
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, &complete, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	if trimmed[0] == '[' {
		var items []T
		if err := dec.Decode(&items); err != nil {
			return nil, nil, err
		}
		return items, &complete, nil
	}

	var p page[T]
	if err := dec.Decode(&p); err != nil {
		return nil, nil, err
	}
	return p.Content, p.Last, nil
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v)+2)
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}

var (
	_ integration.OrderSource   = (*Client)(nil)
	_ integration.CatalogSource = (*Client)(nil)
)
