// ABOUTME: Tests for the authenticated round tripper
// ABOUTME: Covers bearer attachment, blocking/proactive refresh, retry-once, and bypass

package transport

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"marketplace-client/driver"
	"marketplace-client/event"
	"marketplace-client/models"
	"marketplace-client/repository"
	"marketplace-client/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type transportFixture struct {
	sessions     *service.SessionService
	refresher    *service.RefreshCoordinator
	bus          *event.Bus
	transport    *AuthTransport
	api          *httptest.Server
	apiHandler   atomic.Pointer[http.HandlerFunc]
	apiCalls     atomic.Int64
	refreshCalls atomic.Int64
	unauthorized atomic.Int64
}

func newTransportFixture(t *testing.T) *transportFixture {
	t.Helper()
	f := &transportFixture{}

	f.bus = event.NewBus(slog.Default())
	f.bus.OnUnauthorized(func() { f.unauthorized.Add(1) })
	f.sessions = service.NewSessionService(
		repository.NewInMemoryTokenRepository(),
		repository.NewInMemorySessionDataRepository(),
		f.bus, 30*time.Second, slog.Default())

	authServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/jwt/refresh" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		f.refreshCalls.Add(1)
		json.NewEncoder(w).Encode(map[string]any{
			"accessToken": "fresh-access",
			"tokenType":   "Bearer",
			"expiresIn":   3600,
		})
	}))
	t.Cleanup(authServer.Close)

	authClient := driver.NewAuthClient(authServer.URL, 5*time.Second, slog.Default())
	f.refresher = service.NewRefreshCoordinator(f.sessions, authClient, 30*time.Second, 60*time.Second, slog.Default())

	defaultHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Echo-Authorization", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, `{"ok":true}`)
	})
	f.apiHandler.Store(&defaultHandler)

	f.api = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.apiCalls.Add(1)
		(*f.apiHandler.Load())(w, r)
	}))
	t.Cleanup(f.api.Close)

	f.transport = NewAuthTransport(http.DefaultTransport, f.sessions, f.refresher, 30*time.Second, 60*time.Second, slog.Default())
	return f
}

func (f *transportFixture) persist(t *testing.T, session *models.Session) {
	t.Helper()
	require.NoError(t, f.sessions.Persist(context.Background(), session))
}

func (f *transportFixture) roundTrip(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := f.transport.RoundTrip(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func sessionWithExpiries(access, refresh time.Duration) *models.Session {
	accessAt := time.Now().Add(access)
	refreshAt := time.Now().Add(refresh)
	return &models.Session{
		TokenPair: models.TokenPair{
			AccessToken:      "old-access",
			RefreshToken:     "refresh-token",
			AccessExpiresAt:  &accessAt,
			RefreshExpiresAt: &refreshAt,
		},
		UserID: 42,
		Roles:  []string{"SELLER"},
	}
}

func TestAuthTransport_AttachesBearerToken(t *testing.T) {
	f := newTransportFixture(t)
	f.persist(t, sessionWithExpiries(time.Hour, 24*time.Hour))

	req, _ := http.NewRequest(http.MethodGet, f.api.URL+"/api/v1/listings", nil)
	resp := f.roundTrip(t, req)

	assert.Equal(t, "Bearer old-access", resp.Header.Get("X-Echo-Authorization"))
	assert.Equal(t, int64(0), f.refreshCalls.Load())
}

func TestAuthTransport_NoSessionSendsUnauthenticated(t *testing.T) {
	f := newTransportFixture(t)

	req, _ := http.NewRequest(http.MethodGet, f.api.URL+"/api/v1/listings", nil)
	resp := f.roundTrip(t, req)

	assert.Empty(t, resp.Header.Get("X-Echo-Authorization"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthTransport_SkipAuthHeaderBypassesAndIsStripped(t *testing.T) {
	f := newTransportFixture(t)
	f.persist(t, sessionWithExpiries(time.Hour, 24*time.Hour))

	var sawSkipHeader, sawAuth string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawSkipHeader = r.Header.Get(SkipAuthHeader)
		sawAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	})
	f.apiHandler.Store(&handler)

	req, _ := http.NewRequest(http.MethodPost, f.api.URL+"/api/v1/listings", strings.NewReader(`{}`))
	req.Header.Set(SkipAuthHeader, "1")
	f.roundTrip(t, req)

	assert.Empty(t, sawSkipHeader, "bypass marker must never reach the server")
	assert.Empty(t, sawAuth)
}

func TestAuthTransport_ExpiredRefreshTokenClearsAndSendsUnauthenticated(t *testing.T) {
	f := newTransportFixture(t)
	f.persist(t, sessionWithExpiries(-time.Minute, -time.Minute))

	req, _ := http.NewRequest(http.MethodGet, f.api.URL+"/api/v1/listings", nil)
	resp := f.roundTrip(t, req)

	assert.Empty(t, resp.Header.Get("X-Echo-Authorization"))
	assert.Equal(t, int64(0), f.refreshCalls.Load(), "an expired refresh token never hits the network")
	assert.Equal(t, int64(1), f.unauthorized.Load())
	assert.Nil(t, f.sessions.GetCached())
}

func TestAuthTransport_ExpiredAccessTokenBlocksOnRefresh(t *testing.T) {
	f := newTransportFixture(t)
	f.persist(t, sessionWithExpiries(-time.Minute, 24*time.Hour))

	req, _ := http.NewRequest(http.MethodGet, f.api.URL+"/api/v1/listings", nil)
	resp := f.roundTrip(t, req)

	assert.Equal(t, "Bearer fresh-access", resp.Header.Get("X-Echo-Authorization"))
	assert.Equal(t, int64(1), f.refreshCalls.Load())
	assert.Equal(t, int64(1), f.apiCalls.Load(), "the original request is sent once, after the refresh")
}

func TestAuthTransport_ProactiveWindowRefreshesInBackground(t *testing.T) {
	f := newTransportFixture(t)
	// Inside the 60s proactive window but outside the 30s expiry skew.
	f.persist(t, sessionWithExpiries(45*time.Second, 24*time.Hour))

	req, _ := http.NewRequest(http.MethodGet, f.api.URL+"/api/v1/listings", nil)
	resp := f.roundTrip(t, req)

	assert.Equal(t, "Bearer old-access", resp.Header.Get("X-Echo-Authorization"),
		"the still-valid token is used without waiting for the refresh")

	assert.Eventually(t, func() bool {
		cached := f.sessions.GetCached()
		return cached != nil && cached.AccessToken == "fresh-access"
	}, 2*time.Second, 10*time.Millisecond, "the background refresh replaces the token")
	assert.Equal(t, int64(1), f.refreshCalls.Load())
}

func TestAuthTransport_RetriesOnceAfterUnauthorized(t *testing.T) {
	f := newTransportFixture(t)
	f.persist(t, sessionWithExpiries(time.Hour, 24*time.Hour))

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh-access" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, `{"ok":true}`)
	})
	f.apiHandler.Store(&handler)

	body := strings.NewReader(`{"title":"bike"}`)
	req, _ := http.NewRequest(http.MethodPost, f.api.URL+"/api/v1/listings", body)
	resp := f.roundTrip(t, req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(2), f.apiCalls.Load(), "one original attempt plus one retry")
	assert.Equal(t, int64(1), f.refreshCalls.Load())
	assert.Equal(t, int64(0), f.unauthorized.Load())
}

func TestAuthTransport_PersistentRejectionClearsSessionOnce(t *testing.T) {
	f := newTransportFixture(t)
	f.persist(t, sessionWithExpiries(time.Hour, 24*time.Hour))

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	f.apiHandler.Store(&handler)

	req, _ := http.NewRequest(http.MethodGet, f.api.URL+"/api/v1/listings", nil)
	resp := f.roundTrip(t, req)

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, int64(2), f.apiCalls.Load(), "resent exactly once, never a second retry")
	assert.Equal(t, int64(1), f.refreshCalls.Load())
	assert.Equal(t, int64(1), f.unauthorized.Load())
	assert.Nil(t, f.sessions.GetCached())
}

func TestAuthTransport_UnauthorizedWithoutCredentialPassesThrough(t *testing.T) {
	f := newTransportFixture(t)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	f.apiHandler.Store(&handler)

	req, _ := http.NewRequest(http.MethodGet, f.api.URL+"/api/v1/listings", nil)
	resp := f.roundTrip(t, req)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, int64(1), f.apiCalls.Load(), "no credential was attached, so there is nothing to refresh")
	assert.Equal(t, int64(0), f.refreshCalls.Load())
}

func TestAuthTransport_NonReplayableBodyIsNotRetried(t *testing.T) {
	f := newTransportFixture(t)
	f.persist(t, sessionWithExpiries(time.Hour, 24*time.Hour))

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	f.apiHandler.Store(&handler)

	// A plain reader gives the request no GetBody, so it cannot be replayed.
	req, _ := http.NewRequest(http.MethodPost, f.api.URL+"/api/v1/listings",
		io.NopCloser(struct{ io.Reader }{strings.NewReader(`{"title":"bike"}`)}))
	resp := f.roundTrip(t, req)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, int64(1), f.apiCalls.Load())
	assert.Equal(t, int64(0), f.refreshCalls.Load())
	assert.Equal(t, int64(1), f.unauthorized.Load())
	assert.Nil(t, f.sessions.GetCached())
}

func TestAuthTransport_DoesNotMutateCallerRequest(t *testing.T) {
	f := newTransportFixture(t)
	f.persist(t, sessionWithExpiries(time.Hour, 24*time.Hour))

	req, _ := http.NewRequest(http.MethodGet, f.api.URL+"/api/v1/listings", nil)
	f.roundTrip(t, req)

	assert.Empty(t, req.Header.Get("Authorization"))
}
