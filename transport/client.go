// ABOUTME: JSON HTTP client for the marketplace backend built on AuthTransport
// ABOUTME: Normalizes every failure into models.APIError with network/timeout flags

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"marketplace-client/models"
)

const maxErrorBodyBytes = 1 << 20

// Client issues authenticated JSON requests against the backend. All
// failures, transport-level or server-reported, come back as *models.APIError
// so callers have one shape to inspect.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, transport http.RoundTripper, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// Do sends the request and normalizes the outcome. A response with a status
// below 400 is returned as-is with its body intact; anything else is drained
// into an *models.APIError.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError(req, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		return nil, c.serverError(resp)
	}
	return resp, nil
}

// Get issues a GET against the backend and decodes the JSON response into
// out. Pass nil to discard the body.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	return c.doJSON(req, out)
}

// Post issues a POST with a JSON body and decodes the JSON response into out.
func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	return c.post(ctx, path, in, out, false)
}

// PostPublic is Post with credentials deliberately withheld, for endpoints
// that operate without a caller identity.
func (c *Client) PostPublic(ctx context.Context, path string, in, out any) error {
	return c.post(ctx, path, in, out, true)
}

func (c *Client) post(ctx context.Context, path string, in, out any, skipAuth bool) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request body for %s: %w", path, err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if skipAuth {
		req.Header.Set(SkipAuthHeader, "1")
	}
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &models.APIError{
			StatusCode: resp.StatusCode,
			Message:    "unexpected response from server",
			Err:        err,
		}
	}
	return nil
}

// transportError classifies a failure where no response was received.
func (c *Client) transportError(req *http.Request, err error) *models.APIError {
	apiErr := &models.APIError{
		IsNetwork: true,
		Message:   "unable to reach server",
		Err:       err,
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		apiErr.IsTimeout = true
		apiErr.Message = "request timed out"
	}

	c.logger.Warn("request failed before a response arrived",
		"method", req.Method, "path", req.URL.Path,
		"timeout", apiErr.IsTimeout, "error", err)
	return apiErr
}

func (c *Client) serverError(resp *http.Response) *models.APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	message, code := models.ParseErrorBody(body)
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	c.logger.Warn("server rejected request",
		"status", resp.StatusCode, "path", resp.Request.URL.Path, "errorCode", code)
	return &models.APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		ErrorCode:  code,
	}
}
