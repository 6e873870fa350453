package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	// ErrNetworkFailure indicates no response was received from the backend.
	ErrNetworkFailure = errors.New("network failure")

	// ErrTimeout indicates the request exceeded its deadline. A timeout is
	// also a network failure.
	ErrTimeout = errors.New("request timed out")

	// ErrUnauthorized indicates the backend rejected the session credential (HTTP 401).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrValidation indicates a 4xx rejection or a local precondition violation.
	ErrValidation = errors.New("validation failed")

	// ErrServerFailure indicates a 5xx response or a payload that could not be decoded.
	ErrServerFailure = errors.New("server failure")

	// ErrCancelled indicates the caller abandoned the request.
	ErrCancelled = errors.New("request cancelled")
)

// Kind classifies a gateway error.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindUnauthorized
	KindValidation
	KindServer
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "NETWORK"
	case KindUnauthorized:
		return "UNAUTHORIZED"
	case KindValidation:
		return "VALIDATION"
	case KindServer:
		return "SERVER"
	case KindCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Error is the error type returned for every failed gateway call and for
// local validation failures raised by callers.
type Error struct {
	Kind    Kind
	Op      string // e.g. "POST /gpt/generate"; empty for local failures
	Status  int    // HTTP status, 0 when no response was received
	Message string
	Fields  map[string]string
	Timeout bool
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch {
	case e.Timeout:
		b.WriteString(ErrTimeout.Error())
	case e.Message != "":
		b.WriteString(e.Message)
	default:
		b.WriteString(e.sentinel().Error())
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind, so callers can use
// errors.Is(err, gateway.ErrUnauthorized) and friends.
func (e *Error) Is(target error) bool {
	if target == ErrTimeout {
		return e.Timeout
	}
	return target == e.sentinel()
}

func (e *Error) sentinel() error {
	switch e.Kind {
	case KindNetwork:
		return ErrNetworkFailure
	case KindUnauthorized:
		return ErrUnauthorized
	case KindValidation:
		return ErrValidation
	case KindServer:
		return ErrServerFailure
	case KindCancelled:
		return ErrCancelled
	default:
		return errUnknown
	}
}

var errUnknown = errors.New("unknown gateway error")

// Validation builds a local validation failure. No request is involved.
func Validation(message string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// KindOf reports the classification of err. Bare context errors are
// classified too, so callers can treat them like gateway failures.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Kind
	}
	switch {
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return KindNetwork
	}
	return KindUnknown
}

// IsTimeout reports whether err represents an exceeded deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// Reason returns the short human-readable reason shown next to a failed stage.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	if IsTimeout(err) {
		return "timeout"
	}
	var gwErr *Error
	if errors.As(err, &gwErr) {
		if gwErr.Message != "" {
			return gwErr.Message
		}
		return gwErr.sentinel().Error()
	}
	return err.Error()
}

// transportError classifies a failure that happened before a response arrived.
func transportError(op string, err error) *Error {
	e := &Error{Kind: KindNetwork, Op: op, Err: err}
	switch {
	case errors.Is(err, context.Canceled):
		e.Kind = KindCancelled
	case errors.Is(err, context.DeadlineExceeded):
		e.Timeout = true
	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			e.Timeout = true
		}
	}
	return e
}
