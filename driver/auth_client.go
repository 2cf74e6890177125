// ABOUTME: HTTP driver for the marketplace auth endpoints
// ABOUTME: Handles login, refresh, logout, registration, and seller resolution with typed errors

package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"marketplace-client/models"
)

// Auth endpoint error types for better error handling
var (
	ErrInvalidCredentials  = errors.New("username or password rejected")
	ErrInvalidRefreshToken = errors.New("refresh token is invalid or expired")
	ErrUnauthorized        = errors.New("request not authorized")
	ErrTemporaryFailure    = errors.New("temporary auth service failure")
)

const userAgent = "marketplace-client/1.0"

// AuthClient talks to the auth surface of the marketplace backend. It uses
// its own bare HTTP client so auth calls never pass through the session
// pipeline and can never trigger a recursive refresh.
type AuthClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewAuthClient creates an auth driver against baseURL. Each call carries the
// given fixed timeout.
func NewAuthClient(baseURL string, timeout time.Duration, logger *slog.Logger) *AuthClient {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &AuthClient{
		baseURL: baseURL,
		logger:  logger,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: timeout,
				IdleConnTimeout:       90 * time.Second,
				MaxIdleConns:          10,
				MaxIdleConnsPerHost:   2,
			},
		},
	}
}

// SetHTTPClient allows injecting a custom HTTP client (useful for testing).
func (c *AuthClient) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Login exchanges credentials for a token pair at POST /jwt/login.
func (c *AuthClient) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error) {
	resp, body, err := c.postJSON(ctx, "/jwt/login", req, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to execute login request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		message, _ := models.ParseErrorBody(body)
		c.logger.Warn("login rejected", "status_code", resp.StatusCode, "message", message)

		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, fmt.Errorf("%w: %s", ErrInvalidCredentials, message)
		case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return nil, fmt.Errorf("%w: HTTP %d", ErrTemporaryFailure, resp.StatusCode)
		default:
			return nil, fmt.Errorf("login failed with status %d: %s", resp.StatusCode, message)
		}
	}

	var loginResp models.LoginResponse
	if err := json.Unmarshal(body, &loginResp); err != nil {
		return nil, fmt.Errorf("failed to decode login response: %w", err)
	}

	c.logger.Info("login successful",
		"user_id", loginResp.UserID,
		"roles", loginResp.Roles,
		"has_fingerprint", loginResp.Fingerprint != "")

	return &loginResp, nil
}

// Refresh exchanges a refresh token for a new pair at POST /jwt/refresh. The
// response may omit the refresh token, its lifetime, or the fingerprint when
// the server chooses not to rotate them.
func (c *AuthClient) Refresh(ctx context.Context, req *models.RefreshRequest) (*models.RefreshResponse, error) {
	resp, body, err := c.postJSON(ctx, "/jwt/refresh", req, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to execute refresh request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		message, _ := models.ParseErrorBody(body)
		c.logger.Warn("token refresh rejected", "status_code", resp.StatusCode, "message", message)

		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, fmt.Errorf("%w: %s", ErrInvalidRefreshToken, message)
		case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return nil, fmt.Errorf("%w: HTTP %d", ErrTemporaryFailure, resp.StatusCode)
		default:
			return nil, fmt.Errorf("token refresh failed with status %d: %s", resp.StatusCode, message)
		}
	}

	var refreshResp models.RefreshResponse
	if err := json.Unmarshal(body, &refreshResp); err != nil {
		return nil, fmt.Errorf("failed to decode refresh response: %w", err)
	}

	c.logger.Info("token refresh successful",
		"access_token_length", len(refreshResp.AccessToken),
		"rotated_refresh_token", refreshResp.RefreshToken != "",
		"rotated_fingerprint", refreshResp.Fingerprint != "")

	return &refreshResp, nil
}

// Logout invalidates the session server-side at POST /api/v1/auth/logout.
// Callers treat failures as best-effort; the driver still reports them.
func (c *AuthClient) Logout(ctx context.Context, accessToken, fingerprint string) (*models.LogoutResponse, error) {
	headers := http.Header{}
	if accessToken != "" {
		headers.Set("Authorization", "Bearer "+accessToken)
	}
	if fingerprint != "" {
		headers.Set("X-Device-Fingerprint", fingerprint)
	}

	resp, body, err := c.postJSON(ctx, "/api/v1/auth/logout", nil, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to execute logout request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		message, _ := models.ParseErrorBody(body)
		return nil, fmt.Errorf("logout failed with status %d: %s", resp.StatusCode, message)
	}

	var logoutResp models.LogoutResponse
	if err := json.Unmarshal(body, &logoutResp); err != nil {
		return nil, fmt.Errorf("failed to decode logout response: %w", err)
	}
	return &logoutResp, nil
}

// Register creates a new user account at POST /api/v1/users/register.
func (c *AuthClient) Register(ctx context.Context, req *models.RegisterRequest) error {
	resp, body, err := c.postJSON(ctx, "/api/v1/users/register", req, nil)
	if err != nil {
		return fmt.Errorf("failed to execute register request: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		message, errorCode := models.ParseErrorBody(body)
		return &models.APIError{
			StatusCode: resp.StatusCode,
			Message:    message,
			ErrorCode:  errorCode,
		}
	}
	return nil
}

// ResolveSellerID looks up the seller identity for a user via
// GET /api/v1/sellers/{userId}. A user without a seller profile yields nil.
func (c *AuthClient) ResolveSellerID(ctx context.Context, accessToken string, userID int64) (*int64, error) {
	url := fmt.Sprintf("%s/api/v1/sellers/%d", c.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create seller lookup request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute seller lookup request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var sellerResp models.SellerResponse
		if err := json.NewDecoder(resp.Body).Decode(&sellerResp); err != nil {
			return nil, fmt.Errorf("failed to decode seller response: %w", err)
		}
		return sellerResp.SellerID, nil
	case http.StatusNotFound:
		return nil, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("%w: seller lookup rejected", ErrUnauthorized)
	default:
		return nil, fmt.Errorf("seller lookup failed with status %d", resp.StatusCode)
	}
}

// postJSON issues a POST with an optional JSON body and returns the response
// plus its fully read body.
func (c *AuthClient) postJSON(ctx context.Context, path string, payload any, headers http.Header) (*http.Response, []byte, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for key, values := range headers {
		for _, value := range values {
			req.Header.Set(key, value)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp, raw, nil
}
