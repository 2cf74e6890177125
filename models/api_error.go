// ABOUTME: Uniform error shape for every request that leaves the client
// ABOUTME: Distinguishes network-level failures from server responses and extracts friendly messages

package models

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

const defaultErrorMessage = "Something went wrong. Please try again."

// APIError is the normalized failure for any request issued through the
// client. A network-level failure carries no status code; a server-reported
// failure carries the HTTP status and a best-effort message from the body.
type APIError struct {
	StatusCode int    // 0 when no response was received
	Message    string // best-effort human-readable message
	ErrorCode  string // backend error code when present
	IsNetwork  bool   // no response received at all
	IsTimeout  bool   // the request deadline elapsed
	Err        error  // underlying cause, if any
}

func (e *APIError) Error() string {
	switch {
	case e.IsTimeout:
		return fmt.Sprintf("request timed out: %s", e.Message)
	case e.IsNetwork:
		return fmt.Sprintf("network error: %s", e.Message)
	case e.StatusCode > 0:
		return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
	default:
		return e.Message
	}
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// errorBody covers the message shapes the backend is known to produce.
type errorBody struct {
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
	Message      string `json:"message"`
	Details      string `json:"details"`
	Error        struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ParseErrorBody extracts a message and error code from a server error
// payload. Malformed payloads degrade to an empty message rather than
// failing, since unexpected shapes must never break error reporting.
func ParseErrorBody(body []byte) (message, errorCode string) {
	if len(body) == 0 {
		return "", ""
	}
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", ""
	}
	message = firstNonEmpty(parsed.ErrorMessage, parsed.Message, parsed.Error.Message, parsed.Details)
	return message, strings.TrimSpace(parsed.ErrorCode)
}

var unexpectedPrefix = regexp.MustCompile(`(?i)^an unexpected error occurred:?\s*`)

// FriendlyMessage turns an error into something a screen can show. Backend
// boilerplate prefixes are stripped; when nothing usable remains the
// fallback is used, annotated with the backend error code when one exists.
func (e *APIError) FriendlyMessage(fallback string) string {
	if fallback == "" {
		fallback = defaultErrorMessage
	}

	candidate := firstNonEmpty(e.Message)
	if candidate != "" {
		sanitized := strings.TrimSpace(unexpectedPrefix.ReplaceAllString(candidate, ""))
		if sanitized == "" {
			sanitized = candidate
		}
		if !strings.EqualFold(sanitized, "an unexpected error occurred") {
			return sanitized
		}
	}

	if e.ErrorCode != "" {
		return fmt.Sprintf("%s (Error code: %s). If this keeps happening, please contact support with this code.", fallback, e.ErrorCode)
	}
	return fallback + " If this keeps happening, please contact support."
}

func firstNonEmpty(candidates ...string) string {
	for _, candidate := range candidates {
		if cleaned := strings.TrimSpace(candidate); cleaned != "" {
			return cleaned
		}
	}
	return ""
}
