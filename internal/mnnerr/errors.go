// Package mnnerr defines the single error type returned across the module.
//
// Every failure carries a Kind so callers can branch with errors.Is against
// the sentinels below, plus free-form details and the caller location that
// created it.
package mnnerr

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/born-ml/mnn/internal/native"
)

// Kind classifies an Error.
type Kind int

// Error kinds.
const (
	KindInternal Kind = iota
	KindSizeMismatch
	KindTensorCopyFailed
	KindIO
	KindInterpreter
	KindASCII
	KindTypeMismatch
	KindParse
	KindSync
	KindTensor
	KindDynamicTensor
)

func (k Kind) String() string {
	switch k {
	case KindInternal:
		return "internal error"
	case KindSizeMismatch:
		return "size mismatch"
	case KindTensorCopyFailed:
		return "tensor copy failed"
	case KindIO:
		return "io error"
	case KindInterpreter:
		return "interpreter error"
	case KindASCII:
		return "ascii error"
	case KindTypeMismatch:
		return "type mismatch"
	case KindParse:
		return "parse error"
	case KindSync:
		return "sync error"
	case KindTensor:
		return "tensor error"
	case KindDynamicTensor:
		return "dynamic tensor error: tensor needs to be resized before use"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Sentinels for errors.Is. They match any Error of the same Kind.
var (
	ErrInternal         = &Error{Kind: KindInternal}
	ErrSizeMismatch     = &Error{Kind: KindSizeMismatch}
	ErrTensorCopyFailed = &Error{Kind: KindTensorCopyFailed}
	ErrIO               = &Error{Kind: KindIO}
	ErrInterpreter      = &Error{Kind: KindInterpreter}
	ErrASCII            = &Error{Kind: KindASCII}
	ErrTypeMismatch     = &Error{Kind: KindTypeMismatch}
	ErrParse            = &Error{Kind: KindParse}
	ErrSync             = &Error{Kind: KindSync}
	ErrTensor           = &Error{Kind: KindTensor}
	ErrDynamicTensor    = &Error{Kind: KindDynamicTensor}
)

// Error is the module's error value.
type Error struct {
	Kind Kind
	// Code is the native status for KindInternal and KindTensorCopyFailed.
	Code native.ErrorCode
	// Expected and Got are set for KindSizeMismatch.
	Expected, Got int
	// Details holds printable context attached along the way.
	Details []string
	// Location is the file:line that created the error.
	Location string

	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	switch e.Kind {
	case KindInternal:
		fmt.Fprintf(&b, "internal error: %s", e.Code)
	case KindTensorCopyFailed:
		fmt.Fprintf(&b, "tensor copy failed: %s", e.Code)
	case KindSizeMismatch:
		fmt.Fprintf(&b, "size mismatch: expected %d, got %d", e.Expected, e.Got)
	default:
		b.WriteString(e.Kind.String())
	}
	for _, d := range e.Details {
		b.WriteString(": ")
		b.WriteString(d)
	}
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// Is reports whether target is an Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// WithDetail attaches printable context and returns e.
func (e *Error) WithDetail(format string, args ...any) *Error {
	e.Details = append(e.Details, fmt.Sprintf(format, args...))
	return e
}

// New creates an Error of kind with a formatted detail.
func New(kind Kind, format string, args ...any) *Error {
	e := &Error{Kind: kind, Location: caller(2)}
	if format != "" {
		e.Details = []string{fmt.Sprintf(format, args...)}
	}
	return e
}

// Wrap creates an Error of kind around err.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	e := &Error{Kind: kind, Location: caller(2), cause: err}
	if format != "" {
		e.Details = []string{fmt.Sprintf(format, args...)}
	}
	return e
}

// FromCode converts a native status into an error. NoError yields nil.
func FromCode(code native.ErrorCode) error {
	if code == native.NoError {
		return nil
	}
	return &Error{Kind: KindInternal, Code: code, Location: caller(2)}
}

// Status reports a non-zero native status with context.
func Status(code native.ErrorCode, format string, args ...any) *Error {
	e := &Error{Kind: KindInternal, Code: code, Location: caller(2)}
	if format != "" {
		e.Details = []string{fmt.Sprintf(format, args...)}
	}
	return e
}

// CopyFailed reports a failed native tensor copy.
func CopyFailed(code native.ErrorCode, format string, args ...any) *Error {
	e := &Error{Kind: KindTensorCopyFailed, Code: code, Location: caller(2)}
	if format != "" {
		e.Details = []string{fmt.Sprintf(format, args...)}
	}
	return e
}

// SizeMismatch reports an element-count mismatch.
func SizeMismatch(expected, got int) *Error {
	return &Error{Kind: KindSizeMismatch, Expected: expected, Got: got, Location: caller(2)}
}

// KindOf returns the Kind of err, and false when err is not an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// CodeOf returns the native status carried by err, or NoError.
func CodeOf(err error) native.ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return native.NoError
}

func caller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return ""
	}
	if i := strings.LastIndex(file, "/"); i >= 0 {
		if j := strings.LastIndex(file[:i], "/"); j >= 0 {
			file = file[j+1:]
		}
	}
	return fmt.Sprintf("%s:%d", file, line)
}
