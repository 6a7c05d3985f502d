// Package errors provides the structured error taxonomy for stagecopy.
//
// Every failure surfaced by a transfer carries an ErrorType so callers can
// branch on the kind of failure (credentials, upload, warehouse execution...)
// without string matching. Errors raised inside the orchestrator additionally
// carry the stage they happened in.
package errors

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/hashicorp/go-multierror"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents internal errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeValidation represents invalid caller input
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeCredentials represents missing or unusable credentials
	ErrorTypeCredentials ErrorType = "credentials"
	// ErrorTypeConfig represents unreadable or malformed configuration
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeConnection represents failures to reach a warehouse
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeQuery represents warehouse statement execution failures
	ErrorTypeQuery ErrorType = "query"
	// ErrorTypeUpload represents object upload failures
	ErrorTypeUpload ErrorType = "upload"
	// ErrorTypeDownload represents object download or listing failures
	ErrorTypeDownload ErrorType = "download"
	// ErrorTypeDeletion represents object deletion failures
	ErrorTypeDeletion ErrorType = "deletion"
	// ErrorTypeStorageConfig represents unparseable storage locations
	ErrorTypeStorageConfig ErrorType = "storage_config"
	// ErrorTypeCompression represents compression and decompression failures
	ErrorTypeCompression ErrorType = "compression"
	// ErrorTypeSplit represents file split failures
	ErrorTypeSplit ErrorType = "split"
	// ErrorTypeConcat represents file concatenation failures
	ErrorTypeConcat ErrorType = "concat"
	// ErrorTypeIgnoreHeader represents conflicting header-skip options
	ErrorTypeIgnoreHeader ErrorType = "ignore_header"
	// ErrorTypeFile represents local file errors
	ErrorTypeFile ErrorType = "file"
)

// StageKey is the detail key holding the orchestrator stage of a failure.
const StageKey = "stage"

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf is New with a format string.
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context. A nil err yields nil.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// Wrapf is Wrap with a format string.
func Wrapf(err error, errType ErrorType, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return Wrap(err, errType, fmt.Sprintf(format, args...))
}

// Aggregate folds several failures into one typed error. It returns nil when
// every element of errs is nil.
func Aggregate(errType ErrorType, message string, errs ...error) error {
	var merr *multierror.Error
	for _, err := range errs {
		if err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	if merr.ErrorOrNil() == nil {
		return nil
	}
	merr.ErrorFormat = listFormat
	return &Error{
		Type:    errType,
		Message: message,
		Cause:   merr,
		Details: map[string]interface{}{"failures": len(merr.Errors)},
		Stack:   captureStack(2),
	}
}

func listFormat(es []error) string {
	if len(es) == 1 {
		return es[0].Error()
	}
	s := fmt.Sprintf("%d errors occurred:", len(es))
	for _, e := range es {
		s += " [" + e.Error() + "]"
	}
	return s
}

// Failures returns the individual errors folded by Aggregate, or err itself.
func Failures(err error) []error {
	var merr *multierror.Error
	if errors.As(err, &merr) {
		return merr.WrappedErrors()
	}
	if err == nil {
		return nil
	}
	return []error{err}
}

// WithStage tags err with the orchestrator stage it failed in. Errors that are
// not *Error are wrapped as internal first.
func WithStage(err error, stage string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if !errors.As(err, &e) {
		e = Wrap(err, ErrorTypeInternal, "stage failed")
		err = e
	}
	if _, ok := e.Details[StageKey]; !ok {
		e.WithDetail(StageKey, stage)
	}
	return err
}

// Stage reports the orchestrator stage recorded on err, if any.
func Stage(err error) string {
	var e *Error
	for err != nil {
		if errors.As(err, &e) {
			if s, ok := e.Details[StageKey].(string); ok {
				return s
			}
			err = e.Cause
			continue
		}
		break
	}
	return ""
}

// TypeOf returns the type of the outermost *Error in err's chain.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ""
}

// IsRetryable returns true if the error is retryable
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}

	switch e.Type {
	case ErrorTypeUpload, ErrorTypeDownload, ErrorTypeDeletion, ErrorTypeConnection:
		return true
	default:
		return false
	}
}

// IsType checks if the error is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool { return errors.As(err, target) }

// captureStack captures the current call stack
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
