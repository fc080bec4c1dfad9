package exchange

import (
	"errors"
	"fmt"
)

// TransientError marks a gateway failure that is safe to retry: network
// timeouts, 5xx responses, rate limiting. Position state must not change on
// a transient failure.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient gateway failure: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// RejectedError marks a business rejection (4xx, filter violation). Retrying
// will not help; the order is simply not placed.
type RejectedError struct {
	Op   string
	Code int64
	Err  error
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: order rejected (code=%d): %v", e.Op, e.Code, e.Err)
}

func (e *RejectedError) Unwrap() error { return e.Err }

func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

func IsRejected(err error) bool {
	var re *RejectedError
	return errors.As(err, &re)
}
