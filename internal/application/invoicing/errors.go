// Package invoicing orchestrates one issuance run: number allocation,
// ledger append, rendering, distribution and cleanup.
package invoicing

import (
	"fmt"
	"time"
)

// StageError reports the stage a run failed in. Err keeps the cause, so
// errors.Is and errors.As see through it.
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("invoice issuance failed at %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// TimeoutError reports an external call that exceeded its deadline
type TimeoutError struct {
	Op      string
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Op, e.Timeout)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}
