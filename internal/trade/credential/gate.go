// Package credential keeps the bearer token shared by every outbound call.
// The token is published atomically; readers block only until the first
// successful refresh.
package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"tradesync/internal/platform/metrics"
)

// ErrNotReady is returned when a caller gives up before the first token
// has been obtained.
var ErrNotReady = errors.New("credential not ready")

// Token is one issued bearer token.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Source fetches a fresh token from the auth endpoint.
type Source interface {
	Fetch(ctx context.Context) (Token, error)
}

// Gate caches the latest token. Many readers, one periodic writer.
type Gate struct {
	source  Source
	period  time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics

	token     atomic.Pointer[string]
	ready     chan struct{}
	readyOnce sync.Once
}

type Option func(*Gate)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

// WithRefreshPeriod overrides the default 9 minute refresh cadence.
func WithRefreshPeriod(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.period = d
		}
	}
}

func NewGate(source Source, opts ...Option) (*Gate, error) {
	if source == nil {
		return nil, errors.New("token source is required")
	}
	g := &Gate{
		source: source,
		period: 9 * time.Minute,
		logger: slog.Default(),
		ready:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Token returns the latest token, waiting for the first successful refresh
// if none has happened yet. Once ready it never blocks.
func (g *Gate) Token(ctx context.Context) (string, error) {
	if t := g.token.Load(); t != nil {
		return *t, nil
	}
	select {
	case <-g.ready:
		return *g.token.Load(), nil
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", ErrNotReady, ctx.Err())
	}
}

// Ready reports whether a token has been obtained at least once.
func (g *Gate) Ready() bool {
	select {
	case <-g.ready:
		return true
	default:
		return false
	}
}

// Refresh fetches a new token and publishes it. On failure the previous
// token stays in place.
func (g *Gate) Refresh(ctx context.Context) error {
	tok, err := g.source.Fetch(ctx)
	if err == nil && tok.Value == "" {
		err = errors.New("empty access token")
	}
	if err != nil {
		g.metrics.IncTokenRefresh("failure")
		g.logger.Warn("token refresh failed, keeping previous token",
			"ready", g.Ready(),
			"error", err,
		)
		return fmt.Errorf("refresh token: %w", err)
	}

	value := tok.Value
	g.token.Store(&value)
	g.readyOnce.Do(func() { close(g.ready) })

	g.metrics.IncTokenRefresh("success")
	g.metrics.SetTokenExpiry(tok.ExpiresAt)
	g.logger.Debug("token refreshed", "expires_at", tok.ExpiresAt)
	return nil
}

// Run refreshes immediately and then on every period tick until ctx ends.
func (g *Gate) Run(ctx context.Context) error {
	_ = g.Refresh(ctx)

	ticker := time.NewTicker(g.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_ = g.Refresh(ctx)
		}
	}
}
