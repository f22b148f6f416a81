package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyPaid      = errors.New("target already paid")
	ErrAlreadyProcessed = errors.New("webhook already processed")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedPayload = errors.New("malformed webhook payload")
	ErrNotPending       = errors.New("payment is not pending")
)

// GatewayError carries the provider's diagnostic payload. Body is truncated
// before it gets here; it is safe to log and to surface to callers.
type GatewayError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *GatewayError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gateway: %s (status %d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("gateway: status %d: %s", e.StatusCode, e.Body)
}
