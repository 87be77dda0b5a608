package operations

import (
	"errors"
	"fmt"
	"time"
)

// StepError is the failure of one step. It unwraps to the cause.
type StepError struct {
	StepID string
	Cause  error
	Time   time.Time
}

// NewStepError wraps the failure of a step
func NewStepError(stepID string, cause error) *StepError {
	return &StepError{StepID: stepID, Cause: cause, Time: time.Now()}
}

// Error implements the error interface
func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed: %v", e.StepID, e.Cause)
}

// Unwrap returns the underlying error
func (e *StepError) Unwrap() error {
	return e.Cause
}

// FailedStep returns the ID of the step that produced err, if any
func FailedStep(err error) (string, bool) {
	var se *StepError
	if errors.As(err, &se) {
		return se.StepID, true
	}
	return "", false
}
