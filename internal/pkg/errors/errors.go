package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConflict reports a state that forbids the requested transition.
	ErrConflict = errors.New("conflict")
)

// ValidationError reports an unmet calculation prerequisite or a rejected edit.
// It is never retried automatically.
type ValidationError struct {
	Check    string
	Messages []string
}

func (e *ValidationError) Error() string {
	if len(e.Messages) == 0 {
		return "validation failed: " + e.Check
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Check, strings.Join(e.Messages, "; "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidArgument }

func NewValidation(check string, msgs ...string) *ValidationError {
	return &ValidationError{Check: check, Messages: msgs}
}

// DataInsufficiencyError means too few historical rows to compute a metric.
// Fatal to a sector sub-calculation only.
type DataInsufficiencyError struct {
	Metric string
	Have   int
	Need   int
}

func (e *DataInsufficiencyError) Error() string {
	return fmt.Sprintf("insufficient data for %s: have %d, need %d", e.Metric, e.Have, e.Need)
}

// ConnectivityError means the upstream source did not answer.
type ConnectivityError struct {
	Source  string
	Latency time.Duration
	Err     error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("upstream %s unreachable after %s: %v", e.Source, e.Latency.Round(time.Millisecond), e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// ConsistencyError flags a parameter version / target projection mismatch.
// It must never be swallowed.
type ConsistencyError struct {
	Key  string
	Want float64
	Got  *float64
}

func (e *ConsistencyError) Error() string {
	if e.Got == nil {
		return fmt.Sprintf("target projection for %s missing, want %v", e.Key, e.Want)
	}
	return fmt.Sprintf("target projection for %s is %v, want %v", e.Key, *e.Got, e.Want)
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsDataInsufficiency(err error) bool {
	var v *DataInsufficiencyError
	return errors.As(err, &v)
}

func IsConnectivity(err error) bool {
	var v *ConnectivityError
	return errors.As(err, &v)
}

func IsConsistency(err error) bool {
	var v *ConsistencyError
	return errors.As(err, &v)
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }
