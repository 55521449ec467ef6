// Package apperr defines the failure kinds returned by the data-access layer.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnexpected Kind = iota
	KindInvalidArgument
	KindNotFound
	KindForbidden
	KindStoreUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindStoreUnavailable:
		return "store_unavailable"
	default:
		return "unexpected"
	}
}

// Sentinels for errors.Is checks. Any *Error matches the sentinel of its kind.
var (
	ErrInvalidArgument  = &Error{Kind: KindInvalidArgument}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrForbidden        = &Error{Kind: KindForbidden}
	ErrStoreUnavailable = &Error{Kind: KindStoreUnavailable}
	ErrUnexpected       = &Error{Kind: KindUnexpected}
)

// Error carries the failure kind plus the operation and key it happened on.
type Error struct {
	Kind Kind
	Op   string
	Key  string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = fmt.Sprintf("[%s] %s", e.Op, msg)
	}
	if e.Key != "" {
		msg = fmt.Sprintf("%s (key=%s)", msg, e.Key)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Key == "" && t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

func InvalidArgument(op, format string, args ...any) error {
	return &Error{Kind: KindInvalidArgument, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// MissingField reports a required argument that was empty.
func MissingField(op, field string) error {
	return &Error{Kind: KindInvalidArgument, Op: op, Msg: field + " must be a non-empty string"}
}

func NotFound(op, key string) error {
	return &Error{Kind: KindNotFound, Op: op, Key: key, Msg: "not found"}
}

func Forbidden(op, key string) error {
	return &Error{Kind: KindForbidden, Op: op, Key: key, Msg: "forbidden"}
}

// StoreUnavailable wraps a failed or timed out store call.
func StoreUnavailable(op, key string, err error) error {
	var ae *Error
	if errors.As(err, &ae) && ae.Kind == KindStoreUnavailable {
		return err
	}
	msg := "store call failed"
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		msg = "store call cancelled"
	}
	return &Error{Kind: KindStoreUnavailable, Op: op, Key: key, Msg: msg, Err: err}
}

// Unexpected keeps the original message for diagnostics.
func Unexpected(op string, err error) error {
	return &Error{Kind: KindUnexpected, Op: op, Msg: "unexpected error", Err: err}
}

// KindOf reports the kind of err. Errors not produced by this package are
// KindUnexpected.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnexpected
}
