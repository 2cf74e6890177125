// ABOUTME: http.RoundTripper that attaches bearer credentials to outbound requests
// ABOUTME: Refreshes the session proactively or blockingly and retries once on 401/403

package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"marketplace-client/models"
	"marketplace-client/service"

	"github.com/google/uuid"
)

// SkipAuthHeader marks a request that must go out without credentials even
// when a session exists. The header is stripped before the request is sent.
const SkipAuthHeader = "X-Skip-Auth"

const requestIDHeader = "X-Request-ID"

// AuthTransport wraps a base round tripper with the session lifecycle:
// outbound requests get a bearer token (refreshing the session first when
// the access token is expired or about to expire), and a 401/403 response
// triggers at most one refresh-and-resend before the session is cleared.
type AuthTransport struct {
	base      http.RoundTripper
	sessions  *service.SessionService
	refresher *service.RefreshCoordinator
	skew      time.Duration
	window    time.Duration
	logger    *slog.Logger
}

func NewAuthTransport(base http.RoundTripper, sessions *service.SessionService, refresher *service.RefreshCoordinator, skew, window time.Duration, logger *slog.Logger) *AuthTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	if skew <= 0 {
		skew = models.TokenExpirySkew
	}
	if window <= skew {
		window = models.AccessRefreshWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthTransport{
		base:      base,
		sessions:  sessions,
		refresher: refresher,
		skew:      skew,
		window:    window,
		logger:    logger,
	}
}

func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not mutate the caller's request.
	out := req.Clone(req.Context())
	if out.Header.Get(requestIDHeader) == "" {
		out.Header.Set(requestIDHeader, uuid.New().String())
	}

	if out.Header.Get(SkipAuthHeader) != "" {
		out.Header.Del(SkipAuthHeader)
		return t.base.RoundTrip(out)
	}

	token, attached, err := t.outboundToken(out.Context())
	if err != nil {
		return nil, err
	}
	if attached {
		out.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		// Network-level failures never trigger a refresh.
		return nil, err
	}

	if !attached || !isAuthFailure(resp.StatusCode) {
		return resp, nil
	}
	return t.retryAfterRefresh(req, out, resp)
}

// outboundToken decides what credential, if any, the request goes out with.
// A session past its refresh lifetime is cleared on the spot; an expired
// access token blocks the request on a refresh; a token inside the proactive
// window is still sent while a background refresh replaces it.
func (t *AuthTransport) outboundToken(ctx context.Context) (string, bool, error) {
	session := t.sessions.LoadSession(ctx)
	if session == nil {
		return "", false, nil
	}

	if session.IsRefreshTokenExpired(t.skew) {
		t.sessions.Clear(ctx, true)
		return "", false, nil
	}

	if session.IsAccessTokenExpired(t.skew) {
		refreshed, err := t.refresher.Refresh(ctx, session)
		if err != nil {
			if errors.Is(err, service.ErrRefreshTokenExpired) || errors.Is(err, service.ErrNoSession) {
				return "", false, nil
			}
			return "", false, err
		}
		return refreshed.AccessToken, true, nil
	}

	if session.ShouldProactivelyRefresh(t.window) {
		t.refreshInBackground(ctx, session)
	}
	return session.AccessToken, true, nil
}

// refreshInBackground kicks off a best-effort refresh without holding up the
// current request. The token being sent is still valid, so failures are only
// logged; the blocking path will deal with them once the token has expired.
func (t *AuthTransport) refreshInBackground(ctx context.Context, session *models.Session) {
	detached := context.WithoutCancel(ctx)
	go func() {
		if _, err := t.refresher.Refresh(detached, session); err != nil {
			t.logger.Warn("proactive session refresh failed", "error", err)
		}
	}()
}

// retryAfterRefresh handles a 401/403 on a request that carried a bearer
// token. The refresh uses the currently cached session, since the token that
// was attached may already have been replaced by another caller's refresh.
func (t *AuthTransport) retryAfterRefresh(original, sent *http.Request, resp *http.Response) (*http.Response, error) {
	ctx := original.Context()

	if !retryEligible(original) {
		t.logger.Warn("authorization failure on a non-replayable request, clearing session",
			"status", resp.StatusCode, "method", original.Method, "path", original.URL.Path)
		t.sessions.Clear(ctx, true)
		return resp, nil
	}

	refreshed, err := t.refresher.Refresh(ctx, t.sessions.GetCached())
	if err != nil {
		// The coordinator has already cleared the session and notified
		// listeners; surface the server's answer to the caller.
		return resp, nil
	}

	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	retry := sent.Clone(ctx)
	if original.GetBody != nil {
		body, err := original.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	retry.Header.Set("Authorization", "Bearer "+refreshed.AccessToken)

	retryResp, err := t.base.RoundTrip(retry)
	if err != nil {
		return nil, err
	}
	if isAuthFailure(retryResp.StatusCode) {
		t.logger.Warn("request rejected again after refresh, clearing session",
			"status", retryResp.StatusCode, "method", original.Method, "path", original.URL.Path)
		t.sessions.Clear(ctx, true)
	}
	return retryResp, nil
}

func isAuthFailure(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// retryEligible reports whether the request body can be replayed. Requests
// without a body always qualify.
func retryEligible(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}
