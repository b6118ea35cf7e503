package services

import (
	"errors"
	"fmt"
)

var (
	ErrMissingField     = errors.New("missing required field")
	ErrInvalidCategory  = errors.New("invalid appointment category")
	ErrInvalidTimestamp = errors.New("invalid appointment timestamp")
	ErrGatewayFailure   = errors.New("notification gateway failure")
	ErrStoreUpdate      = errors.New("status update failed")
	ErrStoreQuery       = errors.New("pending lead query failed")
	ErrLeadNotFound     = errors.New("lead not found")
)

// GatewayError is returned by notifiers when the provider rejects a message.
// StatusCode is zero for transport errors.
type GatewayError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *GatewayError) Unwrap() []error {
	return []error{ErrGatewayFailure, e.Err}
}
