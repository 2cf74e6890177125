// ABOUTME: Collapses N concurrent refresh demands into exactly one network round-trip
// ABOUTME: Single-flight protected; failures clear the session and propagate to every waiter

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"marketplace-client/models"

	"golang.org/x/sync/singleflight"
)

// Coordinator error definitions
var (
	ErrNoSession           = errors.New("no session to refresh")
	ErrRefreshTokenExpired = errors.New("refresh token past its lifetime")
)

// RefreshMetrics tracks coordinator activity, mainly for tests and the CLI
// status output.
type RefreshMetrics struct {
	Attempts         int64 `json:"attempts"`
	Successes        int64 `json:"successes"`
	Failures         int64 `json:"failures"`
	SingleFlightHits int64 `json:"singleflight_hits"`
}

// RefreshCoordinator guarantees that at most one refresh call is outstanding
// at any instant. Every concurrent caller observes the outcome of that single
// call. A refresh token past its lifetime short-circuits without any network
// activity, since such a refresh can never succeed.
type RefreshCoordinator struct {
	sessions *SessionService
	driver   AuthDriver
	logger   *slog.Logger
	skew     time.Duration
	window   time.Duration

	refreshGroup singleflight.Group

	attempts         atomic.Int64
	successes        atomic.Int64
	failures         atomic.Int64
	singleFlightHits atomic.Int64
}

// NewRefreshCoordinator creates the coordinator. Zero durations fall back to
// the default skew margin and proactive window.
func NewRefreshCoordinator(sessions *SessionService, driver AuthDriver, skew, window time.Duration, logger *slog.Logger) *RefreshCoordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if skew <= 0 {
		skew = models.TokenExpirySkew
	}
	if window <= skew {
		window = models.AccessRefreshWindow
	}

	return &RefreshCoordinator{
		sessions: sessions,
		driver:   driver,
		logger:   logger,
		skew:     skew,
		window:   window,
	}
}

// Refresh obtains a fresh session for the caller, deduplicating concurrent
// attempts. On failure the session is cleared (marked unauthorized) and the
// error is returned to every waiting caller; the coordinator deduplicates
// the attempt, it does not swallow the outcome.
func (c *RefreshCoordinator) Refresh(ctx context.Context, current *models.Session) (*models.Session, error) {
	if current == nil {
		return nil, ErrNoSession
	}

	if current.IsRefreshTokenExpired(c.skew) {
		c.logger.Warn("refresh token already expired, clearing session without network call")
		c.sessions.Clear(ctx, true)
		return nil, ErrRefreshTokenExpired
	}

	c.attempts.Add(1)

	result, err, shared := c.refreshGroup.Do("session-refresh", func() (interface{}, error) {
		return c.performRefresh(ctx, current.AccessToken)
	})
	if shared {
		c.singleFlightHits.Add(1)
		c.logger.Debug("refresh result shared with concurrent caller")
	}
	if err != nil {
		c.failures.Add(1)
		return nil, err
	}

	c.successes.Add(1)
	return result.(*models.Session), nil
}

// performRefresh runs inside the single-flight slot. callerToken identifies
// the access token the caller believed to be stale, so a refresh that
// settled just before this flight started can be reused instead of issuing
// another network call.
func (c *RefreshCoordinator) performRefresh(ctx context.Context, callerToken string) (*models.Session, error) {
	cached := c.sessions.GetCached()
	if cached == nil {
		return nil, ErrNoSession
	}
	if cached.AccessToken != callerToken && !cached.IsAccessTokenExpired(c.skew) {
		c.logger.Debug("session was already refreshed by an earlier flight")
		return cached, nil
	}

	resp, err := c.driver.Refresh(ctx, &models.RefreshRequest{
		RefreshToken: cached.RefreshToken,
		Fingerprint:  cached.Fingerprint,
	})
	if err != nil {
		c.logger.Error("session refresh failed, clearing session", "error", err)
		c.sessions.Clear(ctx, true)
		return nil, fmt.Errorf("session refresh failed: %w", err)
	}

	next := c.nextSession(cached, resp)
	if err := c.sessions.Persist(ctx, next); err != nil {
		// The cache already holds the fresh session; losing the write only
		// costs persistence across restarts.
		c.logger.Warn("refreshed session could not be fully persisted", "error", err)
	}

	c.logger.Info("session refreshed",
		"user_id", next.UserID,
		"rotated_refresh_token", resp.RefreshToken != "",
		"access_expires_at", next.AccessExpiresAt)

	return next, nil
}

// nextSession merges the refresh response onto the previous session. Expiry
// timestamps are absolute, anchored at the moment the response is processed.
// Identity fields always carry over; the refresh token and fingerprint carry
// over when the server did not rotate them.
func (c *RefreshCoordinator) nextSession(previous *models.Session, resp *models.RefreshResponse) *models.Session {
	now := time.Now()

	next := previous.Clone()
	next.AccessToken = resp.AccessToken
	next.AccessExpiresAt = models.ExpiryFromLifetime(now, resp.ExpiresIn)
	if resp.RefreshToken != "" {
		next.RefreshToken = resp.RefreshToken
	}
	if resp.RefreshExpiresIn != nil {
		next.RefreshExpiresAt = models.ExpiryFromLifetime(now, resp.RefreshExpiresIn)
	}
	if resp.Fingerprint != "" {
		next.Fingerprint = resp.Fingerprint
	}
	return next
}

// Metrics returns a snapshot of coordinator activity.
func (c *RefreshCoordinator) Metrics() RefreshMetrics {
	return RefreshMetrics{
		Attempts:         c.attempts.Load(),
		Successes:        c.successes.Load(),
		Failures:         c.failures.Load(),
		SingleFlightHits: c.singleFlightHits.Load(),
	}
}
