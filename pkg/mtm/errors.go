package mtm

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError reports malformed input rejected before any remote call.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// DomainError reports a date outside the program.
type DomainError struct {
	Day   string
	Epoch time.Time
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("date %s precedes epoch %s", e.Day, FormatDay(e.Epoch))
}

// ConfigError reports missing or invalid configuration.
type ConfigError struct {
	Missing []string // Property names, in declaration order
	Reason  string
}

func (e *ConfigError) Error() string {
	switch {
	case len(e.Missing) > 0 && e.Reason != "":
		return fmt.Sprintf("missing required properties: %s (%s)", strings.Join(e.Missing, ", "), e.Reason)
	case len(e.Missing) > 0:
		return "missing required properties: " + strings.Join(e.Missing, ", ")
	default:
		return "configuration error: " + e.Reason
	}
}

// RemoteError wraps a fatal failure from an external service.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Remote wraps err as a *RemoteError unless it is nil.
func Remote(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RemoteError{Op: op, Err: err}
}
