// Package apierr defines the failure kinds shared by the action client and
// the stream channels. Control flow dispatches on Kind, never on message text.
package apierr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindUnauthorized means the host answered 401; the AuthGate owns it.
	KindUnauthorized
	// KindServiceUnavailable means the host answered 503.
	KindServiceUnavailable
	// KindTimeout means the request exceeded its deadline.
	KindTimeout
	// KindNetwork is a transport failure before a response arrived.
	KindNetwork
	// KindDecode is a malformed stream payload.
	KindDecode
	// KindUserCancelled means the credential prompt was dismissed.
	KindUserCancelled
	// KindFailed is any other non-2xx answer.
	KindFailed
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindServiceUnavailable:
		return "service_unavailable"
	case KindTimeout:
		return "timeout"
	case KindNetwork:
		return "network"
	case KindDecode:
		return "decode"
	case KindUserCancelled:
		return "cancelled"
	case KindFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Error carries a Kind plus whatever context the failing operation had.
type Error struct {
	Kind   Kind
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Status != 0:
		return fmt.Sprintf("%s: %s (status %d): %v", e.Op, e.Kind, e.Status, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Body != "":
		return fmt.Sprintf("%s: %s (status %d): %s", e.Op, e.Kind, e.Status, e.Body)
	case e.Status != 0:
		return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Kind, e.Status)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error wrapping err.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// FromStatus builds an Error for a non-2xx HTTP answer.
func FromStatus(kind Kind, op string, status int, body string) *Error {
	return &Error{Kind: kind, Op: op, Status: status, Body: body}
}

// KindOf returns the Kind of the first *Error in err's chain, or
// KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Detail returns the most user-meaningful text of err: the response body
// when there is one, otherwise the wrapped error text.
func Detail(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Body != "" {
			return e.Body
		}
		if e.Err != nil {
			return e.Err.Error()
		}
		return e.Kind.String()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
