// Package errors provides AppError, the structured error carried across every
// layer of the dashboard. The HTTP layer turns the code into a status, the
// logger records the detail and the cause chain stays available to errors.Is
// and errors.As.
package errors

import (
	"errors"
	"fmt"
)

// AppError is a coded application error.
//
//	return errors.New(errors.ErrCodeUnknownDataset, "dataset not configured").WithDetail("name=XYZ")
//	return errors.Wrap(err, errors.ErrCodeCacheError, "load snapshot")
type AppError struct {
	Code    ErrorCode
	Message string
	// Detail is extra context for logs; it is not returned to API clients.
	Detail string
	Cause  error
}

// Error formats as "[CODE] message: detail: cause", omitting empty parts.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Detail != "" {
		s += ": " + e.Detail
	}
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	return s
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches another *AppError by code so that sentinel values such as
// ErrSnapshotMissing work with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// WithDetail returns a copy of e with Detail set. Safe on nil.
func (e *AppError) WithDetail(detail string) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Detail = detail
	return &clone
}

// WithDetailf is WithDetail with formatting.
func (e *AppError) WithDetailf(format string, args ...interface{}) *AppError {
	return e.WithDetail(fmt.Sprintf(format, args...))
}

// WithCause returns a copy of e with Cause set. Safe on nil.
func (e *AppError) WithCause(err error) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Cause = err
	return &clone
}

// New creates an AppError. An empty message is replaced by the code's default.
func New(code ErrorCode, message string) *AppError {
	if message == "" {
		message = DefaultMessageForCode(code)
	}
	return &AppError{Code: code, Message: message}
}

// Wrap wraps err with a code and message and returns nil for a nil err.
// Passing CodeUnknown keeps the code of an AppError already in the chain.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	if code == CodeUnknown {
		var ae *AppError
		if errors.As(err, &ae) {
			code = ae.Code
		}
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// IsCode reports whether any AppError in err's chain has the given code.
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		if ae, ok := err.(*AppError); ok && ae.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// IsNotFound reports whether err carries one of the not-found codes.
func IsNotFound(err error) bool {
	return IsCode(err, ErrCodeNotFound) ||
		IsCode(err, ErrCodeClusterNotFound) ||
		IsCode(err, ErrCodeUnknownDataset)
}

// GetCode returns the code of the first AppError in err's chain, CodeOK for
// nil and CodeUnknown when there is none.
func GetCode(err error) ErrorCode {
	if err == nil {
		return CodeOK
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeUnknown
}

// Sentinels compared with errors.Is.
var (
	ErrSnapshotMissing = New(ErrCodeSnapshotMissing, "")
	ErrInvalidConfig   = New(ErrCodeInvalidConfig, "")
	ErrThrottled       = New(ErrCodeNotifyThrottled, "")
)

// NotFound builds an ErrCodeNotFound error.
func NotFound(message string) *AppError { return New(ErrCodeNotFound, message) }

// InvalidParam builds an ErrCodeBadRequest error.
func InvalidParam(message string) *AppError { return New(ErrCodeBadRequest, message) }

// Internal builds an ErrCodeInternal error.
func Internal(message string) *AppError { return New(ErrCodeInternal, message) }

// Conflict builds an ErrCodeConflict error.
func Conflict(message string) *AppError { return New(ErrCodeConflict, message) }
