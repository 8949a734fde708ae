package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorKind classifies an upstream call failure.
type ErrorKind int

const (
	KindTransient      ErrorKind = iota // timeout, 5xx, connection reset
	KindRateLimited                     // upstream throttling
	KindInvalidRequest                  // malformed call
	KindUnauthorized                    // bad credentials
	KindCircuitOpen                     // breaker refused the call
)

// String returns the human-readable name for the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindRateLimited:
		return "rate_limited"
	case KindInvalidRequest:
		return "invalid_request"
	case KindUnauthorized:
		return "unauthorized"
	case KindCircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

// Retryable reports whether a failure of this kind may be retried.
func (k ErrorKind) Retryable() bool {
	return k == KindTransient || k == KindRateLimited
}

// CallError wraps an upstream failure with its classification and the
// endpoint that produced it.
type CallError struct {
	Kind     ErrorKind
	Endpoint string
	Err      error
}

func (e *CallError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Endpoint, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Endpoint, e.Kind, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// NewCallError builds a classified call error.
func NewCallError(kind ErrorKind, endpoint string, err error) *CallError {
	return &CallError{Kind: kind, Endpoint: endpoint, Err: err}
}

// ErrCircuitOpen is returned when a breaker refuses a call without a
// network attempt.
var ErrCircuitOpen = errors.New("circuit open")

// IsCircuitOpen reports whether err is a breaker refusal.
func IsCircuitOpen(err error) bool {
	if errors.Is(err, ErrCircuitOpen) {
		return true
	}
	var ce *CallError
	return errors.As(err, &ce) && ce.Kind == KindCircuitOpen
}

// AllCandidatesFailedError is surfaced when every candidate in a round
// failed even after the round retry limit.
type AllCandidatesFailedError struct {
	RoundIndex int
	Attempts   int
	Last       error
}

func (e *AllCandidatesFailedError) Error() string {
	return fmt.Sprintf("round %d: all candidates failed after %d attempts: %v",
		e.RoundIndex, e.Attempts, e.Last)
}

func (e *AllCandidatesFailedError) Unwrap() error { return e.Last }

// Classify determines the kind for an arbitrary error. Typed CallErrors
// keep their kind; everything else falls back to message inspection the
// way upstream providers report failures.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindTransient
	}

	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	if errors.Is(err, ErrCircuitOpen) {
		return KindCircuitOpen
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTransient
	}

	s := strings.ToLower(err.Error())

	if strings.Contains(s, "429") || strings.Contains(s, "too many requests") ||
		strings.Contains(s, "rate limit") || strings.Contains(s, "quota") {
		return KindRateLimited
	}
	if strings.Contains(s, "401") || strings.Contains(s, "403") ||
		strings.Contains(s, "unauthorized") || strings.Contains(s, "forbidden") ||
		strings.Contains(s, "invalid api key") {
		return KindUnauthorized
	}
	if strings.Contains(s, "400") || strings.Contains(s, "invalid request") ||
		strings.Contains(s, "malformed") || strings.Contains(s, "context length") {
		return KindInvalidRequest
	}

	// Network, 5xx, resets default to transient.
	return KindTransient
}
