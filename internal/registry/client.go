// Package registry looks up legal entities and individual entrepreneurs in
// the business registry.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"tradesync/internal/platform/config"
	platformstrings "tradesync/pkg/platform/strings"
)

const (
	lookupLegal      = "legal"
	lookupIndividual = "individual"

	legalLength      = 9
	individualLength = 14
)

// TokenProvider supplies the bearer token shared with the trade API.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// Client calls the registry endpoints. It never retries; the caller decides
// what a failed lookup means.
type Client struct {
	legalURL      string
	individualURL string
	timeout       time.Duration
	tokens        TokenProvider
	httpClient    *http.Client
	logger        *slog.Logger
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func New(cfg config.Registry, tokens TokenProvider, opts ...Option) (*Client, error) {
	if cfg.LegalURL == "" || cfg.IndividualURL == "" {
		return nil, errors.New("registry URLs are required")
	}
	if tokens == nil {
		return nil, errors.New("token provider is required")
	}
	c := &Client{
		legalURL:      cfg.LegalURL,
		individualURL: cfg.IndividualURL,
		timeout:       cfg.Timeout,
		tokens:        tokens,
		httpClient:    &http.Client{},
		logger:        slog.Default(),
	}
	if c.timeout <= 0 {
		c.timeout = 10 * time.Second
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// LookupLegal fetches a legal entity by its 9-digit TIN. A malformed TIN
// returns nil, nil without a network call.
func (c *Client) LookupLegal(ctx context.Context, tin string) (*LegalInfo, error) {
	if len(tin) != legalLength || !platformstrings.IsDigits(tin) {
		c.logger.Warn("skipping legal lookup for malformed identifier", "identifier", tin)
		return nil, nil
	}
	u, err := url.Parse(c.legalURL)
	if err != nil {
		return nil, newError(ErrorInternal, lookupLegal, tin, "parse legal URL", err)
	}
	q := u.Query()
	q.Set("tin", tin)
	u.RawQuery = q.Encode()

	var info LegalInfo
	if err := c.do(ctx, lookupLegal, tin, http.MethodGet, u.String(), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// LookupIndividual fetches an individual by 14-digit PINFL.
func (c *Client) LookupIndividual(ctx context.Context, pinfl string) (*IndividualInfo, error) {
	if len(pinfl) != individualLength || !platformstrings.IsDigits(pinfl) {
		c.logger.Warn("skipping individual lookup for malformed identifier", "identifier", pinfl)
		return nil, nil
	}
	body, err := json.Marshal(map[string]string{"pinfl": pinfl})
	if err != nil {
		return nil, newError(ErrorInternal, lookupIndividual, pinfl, "encode request", err)
	}

	var info IndividualInfo
	if err := c.do(ctx, lookupIndividual, pinfl, http.MethodPost, c.individualURL, body, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) do(ctx context.Context, lookup, identifier, method, target string, body []byte, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return newError(ErrorAuthentication, lookup, identifier, "no bearer token", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return newError(ErrorInternal, lookup, identifier, "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return newError(ErrorTimeout, lookup, identifier, "request timed out", err)
		}
		return newError(ErrorProviderOutage, lookup, identifier, "request failed", err)
	}
	defer resp.Body.Close()

	if err := statusError(resp, lookup, identifier); err != nil {
		if err.Category == ErrorRateLimited {
			c.logger.Warn("registry rate limited", "lookup", lookup, "identifier", identifier)
		}
		return err
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return newError(ErrorProviderOutage, lookup, identifier, "read response", err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return newError(ErrorNotFound, lookup, identifier, "empty response", nil)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return newError(ErrorBadData, lookup, identifier, "decode response", err)
	}
	return nil
}

func statusError(resp *http.Response, lookup, identifier string) *Error {
	code := resp.StatusCode
	if code >= 200 && code < 300 {
		if code == http.StatusNoContent {
			return newError(ErrorNotFound, lookup, identifier, "no content", nil)
		}
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	msg := fmt.Sprintf("status %d: %s", code, bytes.TrimSpace(snippet))
	switch {
	case code == http.StatusTooManyRequests:
		return newError(ErrorRateLimited, lookup, identifier, msg, nil)
	case code == http.StatusNotFound:
		return newError(ErrorNotFound, lookup, identifier, msg, nil)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return newError(ErrorAuthentication, lookup, identifier, msg, nil)
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return newError(ErrorTimeout, lookup, identifier, msg, nil)
	case code >= 500:
		return newError(ErrorProviderOutage, lookup, identifier, msg, nil)
	default:
		return newError(ErrorBadData, lookup, identifier, msg, nil)
	}
}
