package checker

import (
	"context"
	"errors"
	"net"
)

// OutcomeKind tags how a probe finished.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeFailure
	OutcomeTimeout
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Outcome is the single result a probe produces per invocation.
// Value is only meaningful when Kind is OutcomeSuccess.
type Outcome[T any] struct {
	Kind   OutcomeKind
	Value  T
	Reason string
}

// Succeeded wraps a probe value.
func Succeeded[T any](v T) Outcome[T] {
	return Outcome[T]{Kind: OutcomeSuccess, Value: v}
}

// Failed records a probe failure with a human readable reason.
func Failed[T any](reason string) Outcome[T] {
	return Outcome[T]{Kind: OutcomeFailure, Reason: reason}
}

// TimedOut records a probe that hit its deadline.
func TimedOut[T any]() Outcome[T] {
	return Outcome[T]{Kind: OutcomeTimeout, Reason: "timed out"}
}

// OK reports whether the outcome carries a value.
func (o Outcome[T]) OK() bool {
	return o.Kind == OutcomeSuccess
}

// fromError converts a transport error into a failure or timeout outcome.
func fromError[T any](err error) Outcome[T] {
	if isTimeout(err) {
		return TimedOut[T]()
	}
	return Failed[T](err.Error())
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
