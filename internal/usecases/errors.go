package usecases

import (
	"errors"
	"fmt"
)

// Pre-debit failures carry no side effects; post-debit failures leave money
// spent and are reported through StillProcessingError.
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNoActiveConfig      = errors.New("no active upstream config")
	ErrUpstreamRejected    = errors.New("upstream rejected the request")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrFulfillmentTimeout  = errors.New("fulfillment retry budget exhausted")
	ErrOrderNotFound       = errors.New("order not found")
)

// ValidationError rejects bad input before any upstream or ledger side effect.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StillProcessingError reports a post-debit fulfillment failure: the balance
// is already debited and the order row (if persisted) remains processing. The
// manual re-check entry point is the recovery path.
type StillProcessingError struct {
	OrderID         int64
	ExternalOrderID string
	Err             error
}

func (e *StillProcessingError) Error() string {
	return fmt.Sprintf("order %s still processing: %v", e.ExternalOrderID, e.Err)
}

func (e *StillProcessingError) Unwrap() error {
	return e.Err
}
