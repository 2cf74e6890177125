// ABOUTME: Tests for the auth endpoint driver against a mock backend
// ABOUTME: Verifies payload shapes, error categorization, and optional response fields

package driver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketplace-client/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthClient_Login(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/jwt/login", r.URL.Path)

		var req models.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "buyer@example.com", req.Username)
		assert.Equal(t, "hunter2", req.Password)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"accessToken":      "access-token",
			"refreshToken":     "refresh-token",
			"tokenType":        "Bearer",
			"expiresIn":        3600,
			"refreshExpiresIn": 86400,
			"roles":            []string{"BUYER"},
			"userId":           42,
			"fingerprint":      "device-1",
		})
	}))
	defer server.Close()

	client := NewAuthClient(server.URL, 5*time.Second, slog.Default())
	resp, err := client.Login(context.Background(), &models.LoginRequest{Username: "buyer@example.com", Password: "hunter2"})
	require.NoError(t, err)

	assert.Equal(t, "access-token", resp.AccessToken)
	require.NotNil(t, resp.ExpiresIn)
	assert.Equal(t, int64(3600), *resp.ExpiresIn)
	require.NotNil(t, resp.RefreshExpiresIn)
	assert.Equal(t, int64(86400), *resp.RefreshExpiresIn)
	assert.Equal(t, int64(42), resp.UserID)
	assert.Equal(t, "device-1", resp.Fingerprint)
}

func TestAuthClient_Login_InvalidCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "bad credentials"})
	}))
	defer server.Close()

	client := NewAuthClient(server.URL, 5*time.Second, slog.Default())
	_, err := client.Login(context.Background(), &models.LoginRequest{Username: "x", Password: "y"})

	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Contains(t, err.Error(), "bad credentials")
}

func TestAuthClient_Refresh_SendsFingerprint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/jwt/refresh", r.URL.Path)

		var req models.RefreshRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "refresh-token", req.RefreshToken)
		assert.Equal(t, "device-1", req.Fingerprint)

		// Minimal rotation response: only a new access token and lifetime.
		json.NewEncoder(w).Encode(map[string]any{
			"accessToken": "rotated-access",
			"tokenType":   "Bearer",
			"expiresIn":   3600,
		})
	}))
	defer server.Close()

	client := NewAuthClient(server.URL, 5*time.Second, slog.Default())
	resp, err := client.Refresh(context.Background(), &models.RefreshRequest{RefreshToken: "refresh-token", Fingerprint: "device-1"})
	require.NoError(t, err)

	assert.Equal(t, "rotated-access", resp.AccessToken)
	assert.Empty(t, resp.RefreshToken, "server did not rotate the refresh token")
	assert.Empty(t, resp.Fingerprint)
	assert.Nil(t, resp.RefreshExpiresIn)
}

func TestAuthClient_Refresh_ErrorCategorization(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantErr    error
	}{
		{"401 is invalid refresh token", http.StatusUnauthorized, ErrInvalidRefreshToken},
		{"403 is invalid refresh token", http.StatusForbidden, ErrInvalidRefreshToken},
		{"503 is temporary", http.StatusServiceUnavailable, ErrTemporaryFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			client := NewAuthClient(server.URL, 5*time.Second, slog.Default())
			_, err := client.Refresh(context.Background(), &models.RefreshRequest{RefreshToken: "r"})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAuthClient_Logout_Headers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/auth/logout", r.URL.Path)
		assert.Equal(t, "Bearer access-token", r.Header.Get("Authorization"))
		assert.Equal(t, "device-1", r.Header.Get("X-Device-Fingerprint"))

		json.NewEncoder(w).Encode(models.LogoutResponse{Code: "OK", Message: "logged out"})
	}))
	defer server.Close()

	client := NewAuthClient(server.URL, 5*time.Second, slog.Default())
	resp, err := client.Logout(context.Background(), "access-token", "device-1")
	require.NoError(t, err)
	assert.Equal(t, "OK", resp.Code)
}

func TestAuthClient_Logout_OmitsEmptyHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Empty(t, r.Header.Get("X-Device-Fingerprint"))
		json.NewEncoder(w).Encode(models.LogoutResponse{Code: "OK"})
	}))
	defer server.Close()

	client := NewAuthClient(server.URL, 5*time.Second, slog.Default())
	_, err := client.Logout(context.Background(), "", "")
	require.NoError(t, err)
}

func TestAuthClient_ResolveSellerID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/sellers/42", r.URL.Path)
		assert.Equal(t, "Bearer access-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{"sellerId": 17})
	}))
	defer server.Close()

	client := NewAuthClient(server.URL, 5*time.Second, slog.Default())
	sellerID, err := client.ResolveSellerID(context.Background(), "access-token", 42)
	require.NoError(t, err)
	require.NotNil(t, sellerID)
	assert.Equal(t, int64(17), *sellerID)
}

func TestAuthClient_ResolveSellerID_NotASeller(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewAuthClient(server.URL, 5*time.Second, slog.Default())
	sellerID, err := client.ResolveSellerID(context.Background(), "access-token", 42)
	require.NoError(t, err)
	assert.Nil(t, sellerID)
}

func TestAuthClient_Register_SurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/users/register", r.URL.Path)
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"errorMessage": "email already registered", "errorCode": "KB-2001"})
	}))
	defer server.Close()

	client := NewAuthClient(server.URL, 5*time.Second, slog.Default())
	err := client.Register(context.Background(), &models.RegisterRequest{Email: "x@example.com"})

	var apiErr *models.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "email already registered", apiErr.Message)
	assert.Equal(t, "KB-2001", apiErr.ErrorCode)
}
