package reconcile

import (
	"errors"
	"fmt"
)

// ErrSignature marks a payload whose webhook signature did not verify. It is
// rejected before any state mutation and must never be retried.
var ErrSignature = errors.New("webhook signature verification failed")

// ReconciliationError wraps a transient failure (store unavailable, network)
// during event processing. The retrier treats these as retryable.
type ReconciliationError struct {
	Op  string
	Err error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconciliation failed during %s: %v", e.Op, e.Err)
}

func (e *ReconciliationError) Unwrap() error {
	return e.Err
}

func reconciliationErr(op string, err error) error {
	return &ReconciliationError{Op: op, Err: err}
}
