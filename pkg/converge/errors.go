package converge

import (
	"errors"
	"fmt"
)

// Failure kinds. Callers match these with errors.Is; the wrapping Error
// carries the binding identifiers and the provider's reason text.
var (
	ErrUnavailable = errors.New("instance not recognized by load balancer")
	ErrTimeout     = errors.New("timed out waiting for instance state")
	ErrFailed      = errors.New("instance failed to reach awaited state")
)

// Error is a convergence failure for one binding.
type Error struct {
	LoadBalancer string
	Instance     string
	Description  string // last provider-supplied reason text, may be empty
	Err          error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("instance %s on load balancer %s: %v", e.Instance, e.LoadBalancer, e.Err)
	if e.Description != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Description)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }
