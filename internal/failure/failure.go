// Package failure defines the error taxonomy shared by the snapshot pipeline.
package failure

import (
	"errors"
	"fmt"
)

// ErrLayoutUnavailable is returned by layout clients when no positions could
// be computed. Callers degrade to default positions.
var ErrLayoutUnavailable = errors.New("layout unavailable")

// ConfigError reports invalid input detected before any work starts.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Msg
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Msg)
}

// Configf builds a ConfigError for field.
func Configf(field, format string, args ...any) error {
	return &ConfigError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// TransientError wraps a backend failure that may succeed on retry.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err (or anything it wraps) is a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// FatalError aborts the timespan or snapshot run. Timespan is a printable
// identity of the unit being computed, empty for snapshot-level failures.
type FatalError struct {
	Stage    string
	Timespan string
	Err      error
}

func (e *FatalError) Error() string {
	if e.Timespan == "" {
		return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s failed for timespan %s: %v", e.Stage, e.Timespan, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Fatal wraps err as a FatalError unless it already is one.
func Fatal(stage, timespan string, err error) error {
	var fe *FatalError
	if errors.As(err, &fe) {
		if fe.Timespan == "" && timespan != "" {
			return &FatalError{Stage: fe.Stage, Timespan: timespan, Err: fe.Err}
		}
		return err
	}
	return &FatalError{Stage: stage, Timespan: timespan, Err: err}
}

// IntegrityError reports aggregate data that is missing or inconsistent
// after it was written.
type IntegrityError struct {
	Table string
	Msg   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity error in %s: %s", e.Table, e.Msg)
}
