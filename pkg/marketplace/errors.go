package marketplace

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors for classified remote failures. Callers match with
// errors.Is to decide between retrying, skipping the item, or halting the
// destination batch.
var (
	// ErrTransient covers transport failures, timeouts and 5xx
	// responses; retryable.
	ErrTransient = errors.New("transient network failure")

	// ErrRateLimited is a 429; retryable with backoff.
	ErrRateLimited = errors.New("rate limited")

	// ErrAuthExpired signals the session token is likely invalid; worth
	// one refresh-and-retry before giving up.
	ErrAuthExpired = errors.New("authentication expired")

	// ErrInsufficientFunds is fatal for the whole destination batch:
	// the balance will not replenish mid-run.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrNoPermission is fatal for the item.
	ErrNoPermission = errors.New("no permission to publish")

	// ErrModerated means the name or content failed moderation; fatal
	// for the item.
	ErrModerated = errors.New("rejected by moderation")
)

// APIError is a non-2xx application response, kept verbatim so the
// operator can see exactly what the remote side said.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("marketplace error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("marketplace error (status %d): %s", e.StatusCode, e.Body)
}

// classify maps an application error response onto the sentinel taxonomy.
// The structured message field carries the interesting rejections; the
// status code decides the rest.
func classify(apiErr *APIError) error {
	msg := apiErr.Message
	switch {
	case strings.Contains(msg, "InsufficientFunds"):
		return fmt.Errorf("%w: %v", ErrInsufficientFunds, apiErr)
	case strings.Contains(msg, "unauthorized"), strings.Contains(strings.ToLower(msg), "permission"):
		return fmt.Errorf("%w: %v", ErrNoPermission, apiErr)
	case strings.Contains(msg, "moderated"):
		return fmt.Errorf("%w: %v", ErrModerated, apiErr)
	}
	switch {
	case apiErr.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %v", ErrRateLimited, apiErr)
	case apiErr.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %v", ErrAuthExpired, apiErr)
	case apiErr.StatusCode >= 500:
		return fmt.Errorf("%w: %v", ErrTransient, apiErr)
	}
	return apiErr
}

// ReleaseError reports a failed pricing/release call with enough detail
// (HTTP status, application status, body) for an operator to distinguish
// transient from permanent causes. It is deliberately not classified
// further.
type ReleaseError struct {
	StatusCode int
	Status     int // application status; 0 means success
	Body       string
}

func (e *ReleaseError) Error() string {
	return fmt.Sprintf("release failed: http %d, status %d: %s", e.StatusCode, e.Status, e.Body)
}
