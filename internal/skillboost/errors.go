package skillboost

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Error codes for UpstreamError.
const (
	ErrCodeTimeout         = "timeout"
	ErrCodeAuthentication  = "authentication"
	ErrCodeInvalidRequest  = "invalid_request"
	ErrCodeServerError     = "server_error"
	ErrCodeUnreachable     = "unreachable"
	ErrCodeInvalidResponse = "invalid_response"
)

// UpstreamError is a failure talking to an external endpoint. It is reported
// back to the caller of a single tool invocation; nothing retries it.
type UpstreamError struct {
	Endpoint string
	Code     string
	Message  string
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Endpoint, e.Code, e.Message)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// statusError represents a non-2xx HTTP response.
type statusError struct {
	StatusCode int
	Message    string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("http %d %s", e.StatusCode, e.Message)
}

// mapError translates transport and HTTP errors into typed UpstreamError values.
func mapError(endpoint string, err error) error {
	if err == nil {
		return nil
	}

	var ue *UpstreamError
	if errors.As(err, &ue) {
		return err
	}

	// Context errors.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &UpstreamError{Endpoint: endpoint, Code: ErrCodeTimeout, Message: "request timed out or cancelled", Err: err}
	}

	var se *statusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == 401 || se.StatusCode == 403:
			return &UpstreamError{Endpoint: endpoint, Code: ErrCodeAuthentication, Message: se.Message, Err: err}
		case se.StatusCode >= 500:
			return &UpstreamError{Endpoint: endpoint, Code: ErrCodeServerError, Message: se.Message, Err: err}
		case se.StatusCode >= 400:
			return &UpstreamError{Endpoint: endpoint, Code: ErrCodeInvalidRequest, Message: se.Message, Err: err}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &UpstreamError{Endpoint: endpoint, Code: ErrCodeTimeout, Message: "request timed out", Err: err}
	}

	// Connection refused, DNS errors, etc.
	msg := err.Error()
	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "dial tcp") {
		return &UpstreamError{Endpoint: endpoint, Code: ErrCodeUnreachable, Message: "endpoint unreachable", Err: err}
	}

	return &UpstreamError{Endpoint: endpoint, Code: ErrCodeServerError, Message: "request failed", Err: err}
}

// invalidResponse wraps a decoding failure.
func invalidResponse(endpoint string, err error) error {
	return &UpstreamError{Endpoint: endpoint, Code: ErrCodeInvalidResponse, Message: err.Error(), Err: err}
}
