// Package errors defines the error kinds surfaced by deadline enforcement.
//
// Three kinds exist and callers are expected to tell them apart:
//
//   - TimeoutError: the expected, user-visible outcome when a deadline elapses.
//   - DataError: a configuration-time problem (unparsable timeout spec, failed
//     variable resolution) deferred until the work is about to run.
//   - FrameworkError: an orchestration bug, such as running a timeout that was
//     never started. Not expected in correct usage.
//
// All three implement the error interface and support errors.Is against the
// package sentinels, so callers can branch without type assertions:
//
//	if errors.Is(err, tberrors.ErrTimeout) { ... }
package errors

import "errors"

// Sentinels for errors.Is matching. The concrete types below report themselves
// as matching these via Is.
var (
	ErrTimeout   = errors.New("deadline exceeded")
	ErrData      = errors.New("invalid configuration")
	ErrFramework = errors.New("framework error")
)

// TimeoutError reports that a deadline elapsed before the runnable finished.
// Message is the human-readable text captured when the deadline was armed:
// either the user-supplied message or a generated "<type> <spec> exceeded."
// string.
type TimeoutError struct {
	Message string
}

// NewTimeout creates a TimeoutError with the given message.
func NewTimeout(message string) *TimeoutError {
	return &TimeoutError{Message: message}
}

func (e *TimeoutError) Error() string {
	return e.Message
}

// Timeout reports true so the error satisfies the net.Error-style timeout
// convention used across the ecosystem.
func (e *TimeoutError) Timeout() bool {
	return true
}

// Is matches the ErrTimeout sentinel.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// DataError reports a configuration problem detected while resolving a timeout
// spec. It is captured at resolve time and surfaced exactly once, on the first
// attempt to run under the broken timeout.
type DataError struct {
	Message string
}

// NewData creates a DataError with the given message.
func NewData(message string) *DataError {
	return &DataError{Message: message}
}

func (e *DataError) Error() string {
	return e.Message
}

// Is matches the ErrData sentinel.
func (e *DataError) Is(target error) bool {
	return target == ErrData
}

// FrameworkError reports a violation of the enforcement contract by the
// calling orchestrator, e.g. running a timeout that is not active.
type FrameworkError struct {
	Message string
}

// NewFramework creates a FrameworkError with the given message.
func NewFramework(message string) *FrameworkError {
	return &FrameworkError{Message: message}
}

func (e *FrameworkError) Error() string {
	return e.Message
}

// Is matches the ErrFramework sentinel.
func (e *FrameworkError) Is(target error) bool {
	return target == ErrFramework
}

// Compile-time interface checks.
var (
	_ error = (*TimeoutError)(nil)
	_ error = (*DataError)(nil)
	_ error = (*FrameworkError)(nil)
)
