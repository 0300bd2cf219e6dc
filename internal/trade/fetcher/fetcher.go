// Package fetcher retrieves single pages of the trade data API with retry
// and backoff.
package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"tradesync/internal/platform/config"
	"tradesync/internal/trade/models"
	"tradesync/pkg/platform/sentinel"
)

// ErrPageUnavailable marks a page that could not be fetched after all
// retries or failed permanently. It is distinct from a genuine empty page
// and wraps sentinel.ErrUnavailable.
var ErrPageUnavailable = fmt.Errorf("page %w", sentinel.ErrUnavailable)

// TokenProvider supplies the bearer token for each attempt.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// Metrics is the subset of platform metrics the fetcher records.
type Metrics interface {
	IncPageFetch(result string)
	ObservePageFetch(d time.Duration)
}

// PageRequest identifies one page of one declaration date.
type PageRequest struct {
	Date time.Time
	Page int
}

// Client fetches trade pages.
type Client struct {
	cfg        config.Trade
	tokens     TokenProvider
	httpClient *http.Client
	logger     *slog.Logger
	metrics    Metrics
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithMetrics(m Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func New(cfg config.Trade, tokens TokenProvider, opts ...Option) (*Client, error) {
	if cfg.DataURL == "" {
		return nil, errors.New("trade data URL is required")
	}
	if tokens == nil {
		return nil, errors.New("token provider is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 2 * time.Second
	}
	c := &Client{
		cfg:        cfg,
		tokens:     tokens,
		httpClient: &http.Client{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Fetch returns one page. Network errors, timeouts, 5xx and 429 are retried
// with exponential backoff up to MaxRetries times. When the page cannot be
// obtained it returns an empty response together with an error wrapping
// ErrPageUnavailable.
func (c *Client) Fetch(ctx context.Context, req PageRequest) (*models.PageResponse, error) {
	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.ObservePageFetch(time.Since(start))
		}
	}()

	date := req.Date.Format(models.DateLayout)
	hinted := &retryAfterBackOff{BackOff: c.newBackOff()}
	policy := backoff.WithContext(backoff.WithMaxRetries(hinted, uint64(max(c.cfg.MaxRetries, 0))), ctx)

	var page *models.PageResponse
	attempt := 0
	operation := func() error {
		attempt++
		p, retryAfter, err := c.fetchOnce(ctx, req)
		if err != nil {
			hinted.hint = retryAfter
			return err
		}
		page = p
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.incFetch("retry")
		c.logger.Warn("retrying trade page",
			"date", date,
			"page", req.Page,
			"attempt", attempt,
			"wait", wait,
			"error", err,
		)
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		c.incFetch("unavailable")
		c.logger.Error("trade page unavailable",
			"date", date,
			"page", req.Page,
			"attempts", attempt,
			"error", err,
		)
		return &models.PageResponse{}, fmt.Errorf("%w: date %s page %d: %w", ErrPageUnavailable, date, req.Page, err)
	}

	c.incFetch("ok")
	if page.ErrorCode != "" {
		c.logger.Warn("trade page carries upstream error code",
			"date", date,
			"page", req.Page,
			"error_code", page.ErrorCode,
			"records", len(page.Records),
		)
	}
	return page, nil
}

func (c *Client) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.BackoffBase
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func (c *Client) incFetch(result string) {
	if c.metrics != nil {
		c.metrics.IncPageFetch(result)
	}
}

// fetchOnce performs a single attempt. Errors that must not be retried are
// wrapped with backoff.Permanent.
func (c *Client) fetchOnce(ctx context.Context, req PageRequest) (*models.PageResponse, time.Duration, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, 0, backoff.Permanent(fmt.Errorf("obtain token: %w", err))
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, c.pageURL(req), nil)
	if err != nil {
		return nil, 0, backoff.Permanent(fmt.Errorf("build page request: %w", err))
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, fmt.Errorf("page request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read page body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, parseRetryAfter(resp), fmt.Errorf("trade API rate limited (%s)", resp.Status)
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, 0, fmt.Errorf("trade API server error (%s): %s", resp.Status, snippet(body))
	case resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices:
		return nil, 0, backoff.Permanent(fmt.Errorf("trade API rejected request (%s): %s", resp.Status, snippet(body)))
	}

	var page models.PageResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, 0, backoff.Permanent(fmt.Errorf("decode page: %w", err))
	}
	return &page, 0, nil
}

func (c *Client) pageURL(req PageRequest) string {
	query := url.Values{}
	query.Set("transaction_id", c.cfg.TransactionID)
	query.Set("sender_pin", c.cfg.SenderPIN)
	query.Set("consent", "1")
	query.Set("reqDate", req.Date.Format(models.DateLayout))
	query.Set("page", strconv.Itoa(req.Page))
	query.Set("size", strconv.Itoa(c.cfg.PageSize))

	sep := "?"
	if strings.Contains(c.cfg.DataURL, "?") {
		sep = "&"
	}
	return c.cfg.DataURL + sep + query.Encode()
}

// retryAfterBackOff waits at least as long as the last Retry-After hint.
type retryAfterBackOff struct {
	backoff.BackOff
	hint time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if next != backoff.Stop && b.hint > next {
		next = b.hint
	}
	b.hint = 0
	return next
}

func parseRetryAfter(resp *http.Response) time.Duration {
	value := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := time.Parse(http.TimeFormat, value); err == nil {
		if wait := time.Until(when); wait > 0 {
			return wait
		}
	}
	return 0
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 256 {
		return s[:256]
	}
	return s
}
