// Package exception provides custom error types and error handling utilities for the
// gemflux pipeline. It standardizes errors that occur during day assembly so that
// callers can classify them with errors.Is and decide whether a failure is scoped
// to one hour slot or fatal for the whole calendar day.
package exception

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"
)

// Sentinel errors forming the pipeline's error taxonomy.
// Every error surfaced from the per-day pipeline wraps exactly one of these.
var (
	// ErrMalformedInput indicates a decoded hour file lacks an expected field or has
	// the wrong grid shape. The affected hour is treated as unavailable; the day is
	// still salvageable if the resulting gap can be interpolated.
	ErrMalformedInput = errors.New("MalformedInputError")

	// ErrSourceUnavailable indicates an entire forecast cycle's files cannot be read
	// for a day. Fatal for that day only; batch processing continues to the next day.
	ErrSourceUnavailable = errors.New("SourceUnavailableError")

	// ErrUnfillableGap indicates a missing-hour run touches the open start or end of
	// the processed span, or exceeds the interpolation length bound. Fatal for that day.
	ErrUnfillableGap = errors.New("UnfillableGapError")
)

// errorRegistry maps error type names to concrete Go error instances.
// It holds error instances (singletons) for comparison using errors.Is.
var errorRegistry = make(map[string]error)

// registryMutex protects access to errorRegistry.
var registryMutex sync.RWMutex

// RegisterErrorType registers an error type in the registry.
// Registered error types are referenced by the IsErrorOfType function and are used
// for error classification in configuration-driven policies.
//
// name: A unique identifier for the error type.
// prototype: An instance of the error to be registered. Used for comparison with errors.Is.
//
// If prototype is nil or name is empty, this function will panic.
func RegisterErrorType(name string, prototype error) {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if name == "" {
		panic("Error type name cannot be empty")
	}
	if prototype == nil {
		panic(fmt.Sprintf("Cannot register nil prototype for name: %s", name))
	}

	errorRegistry[name] = prototype
}

// IsErrorTypeRegistered checks if the specified error type name is registered in the registry.
// name: The error type name to check.
// Returns: true if registered, false otherwise.
func IsErrorTypeRegistered(name string) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	_, ok := errorRegistry[name]
	return ok
}

// IsErrorOfType checks if an error matches a registered type name.
// err: The error to check.
// errorTypeName: The registered error type name to compare against.
// Returns: true if it matches, false otherwise.
func IsErrorOfType(err error, errorTypeName string) bool {
	if err == nil {
		return false
	}
	registryMutex.RLock()
	target, ok := errorRegistry[errorTypeName]
	registryMutex.RUnlock()
	if !ok {
		return false
	}
	return errors.Is(err, target)
}

func init() {
	// Register sentinel errors so that errors.Is can detect them by constant name.
	RegisterErrorType("MalformedInputError", ErrMalformedInput)
	RegisterErrorType("SourceUnavailableError", ErrSourceUnavailable)
	RegisterErrorType("UnfillableGapError", ErrUnfillableGap)
}

// PipelineError is a custom error type that occurs during day processing.
// It holds the module where the error occurred, a message, the wrapped original error,
// and the date/hour context needed to re-run just the affected day once the input is fixed.
type PipelineError struct {
	// Module indicates the module where the error occurred (e.g., "normalize", "assemble", "writer").
	Module string
	// Message is a concise description of the error.
	Message string
	// OriginalErr is the wrapped original error.
	OriginalErr error
	// Day is the target calendar day being processed when the error occurred, if known.
	Day time.Time
	// Hour is the slot index (0..23) within the day, or -1 when not hour-scoped.
	Hour int
	// StackTrace is the stack trace at the time of the error (for debugging).
	StackTrace string
}

// New creates a new PipelineError instance without day/hour context.
// module: The module where the error occurred.
// message: The error message.
// originalErr: The original error to wrap.
// Returns: A new PipelineError instance.
func New(module, message string, originalErr error) *PipelineError {
	return newError(module, message, originalErr, time.Time{}, -1)
}

// Newf creates a new PipelineError instance using a format string.
// An optional error is extracted from the end of the variadic arguments.
//
// Example:
// Newf("assemble", "failed to read hour %d", 7, io.EOF)
// -> message: "failed to read hour 7", originalErr: io.EOF
func Newf(module, format string, a ...interface{}) *PipelineError {
	var originalErr error
	args := a
	if len(args) > 0 {
		if err, ok := args[len(args)-1].(error); ok {
			originalErr = err
			args = args[:len(args)-1]
		}
	}
	return newError(module, fmt.Sprintf(format, args...), originalErr, time.Time{}, -1)
}

// NewDayError creates a PipelineError scoped to one calendar day.
// day: The target calendar day whose processing failed.
// hour: The slot index within the day, or -1 when the whole day is affected.
func NewDayError(module, message string, originalErr error, day time.Time, hour int) *PipelineError {
	return newError(module, message, originalErr, day, hour)
}

func newError(module, message string, originalErr error, day time.Time, hour int) *PipelineError {
	// Capture stack trace (for debugging purposes)
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)

	return &PipelineError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		Day:         day,
		Hour:        hour,
		StackTrace:  string(buf[:n]),
	}
}

// Error implements the error interface.
// It returns the error's module, message, day/hour context, and the string
// representation of the original error.
func (e *PipelineError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Module, e.Message)
	if !e.Day.IsZero() {
		if e.Hour >= 0 {
			msg = fmt.Sprintf("%s (day=%s hour=%02d)", msg, e.Day.Format("2006-01-02"), e.Hour)
		} else {
			msg = fmt.Sprintf("%s (day=%s)", msg, e.Day.Format("2006-01-02"))
		}
	}
	if e.OriginalErr != nil {
		return fmt.Sprintf("%s: %v", msg, e.OriginalErr)
	}
	return msg
}

// Unwrap returns the original error for errors.Unwrap.
func (e *PipelineError) Unwrap() error {
	return e.OriginalErr
}

// IsPipelineError determines if the given error is of type PipelineError.
// err: The error to check.
// Returns: true if it is a PipelineError, false otherwise.
func IsPipelineError(err error) bool {
	if err == nil {
		return false
	}
	var pe *PipelineError
	return errors.As(err, &pe)
}

// IsDayFatal determines whether an error terminates the whole calendar day's unit
// of work. Malformed hours are not day-fatal on their own; the gap interpolator
// decides whether the resulting hole is fillable.
func IsDayFatal(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrSourceUnavailable) || errors.Is(err, ErrUnfillableGap)
}

// ExtractErrorMessage extracts the error message string from an error.
// For PipelineError, it returns the cleaner Message field.
// Otherwise, it returns the standard Error() string.
// err: The error from which to extract the message.
// Returns: The error message string.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Message
	}
	return err.Error()
}
