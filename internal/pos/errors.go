package pos

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies adapter failures so callers can branch without inspecting
// vendor specific payloads.
type Kind string

const (
	KindValidation               Kind = "validation"
	KindAuthentication           Kind = "authentication"
	KindNotFound                 Kind = "not_found"
	KindUnsupportedVendor        Kind = "unsupported_vendor"
	KindUnsupportedOperation     Kind = "unsupported_operation"
	KindMissingRestaurantContext Kind = "missing_restaurant_context"
	KindAmountMismatch           Kind = "amount_mismatch"
	KindVendor                   Kind = "vendor"
)

// Sentinel values usable with errors.Is. Matching is done on Kind only.
var (
	ErrValidation               = &Error{Kind: KindValidation}
	ErrAuthentication           = &Error{Kind: KindAuthentication}
	ErrNotFound                 = &Error{Kind: KindNotFound}
	ErrUnsupportedVendor        = &Error{Kind: KindUnsupportedVendor}
	ErrUnsupportedOperation     = &Error{Kind: KindUnsupportedOperation}
	ErrMissingRestaurantContext = &Error{Kind: KindMissingRestaurantContext}
	ErrAmountMismatch           = &Error{Kind: KindAmountMismatch}
	ErrVendor                   = &Error{Kind: KindVendor}
)

// Error is the failure half of every adapter operation.
type Error struct {
	Kind   Kind           `json:"kind"`
	Detail string         `json:"detail,omitempty"`
	Errors []string       `json:"errors,omitempty"`
	Status int            `json:"status,omitempty"`
	Meta   map[string]any `json:"meta,omitempty"`
	Err    error          `json:"-"`
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if len(e.Errors) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(e.Errors, "; "))
		b.WriteString("]")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind
}

// Message returns the most specific human readable description available.
func (e *Error) Message() string {
	switch {
	case e.Detail != "":
		return e.Detail
	case len(e.Errors) > 0:
		return strings.Join(e.Errors, "; ")
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

// WithMeta attaches a key/value pair and returns the receiver.
func (e *Error) WithMeta(key string, value any) *Error {
	if e.Meta == nil {
		e.Meta = make(map[string]any)
	}
	e.Meta[key] = value
	return e
}

// Newf builds an *Error of the given kind.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with kind. A nil err still yields a usable *Error.
func Wrap(kind Kind, err error, detail string) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// Validation reports malformed or missing caller input.
func Validation(format string, args ...any) *Error {
	return Newf(KindValidation, format, args...)
}

// NotFound reports a missing vendor resource.
func NotFound(format string, args ...any) *Error {
	return Newf(KindNotFound, format, args...)
}

// Vendor reports a failure on the vendor side of a call.
func Vendor(format string, args ...any) *Error {
	return Newf(KindVendor, format, args...)
}

// Unsupported reports an operation the vendor cannot perform.
func Unsupported(vendor, operation string) *Error {
	return Newf(KindUnsupportedOperation, "%s does not support %s", vendor, operation)
}

// AsError converts any error into an *Error, classifying unknown errors as
// vendor failures. A nil error returns nil.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	return Wrap(KindVendor, err, "")
}

// KindOf returns the Kind of err or an empty Kind when err is nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return AsError(err).Kind
}
