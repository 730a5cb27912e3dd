package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for transport failure classification.
// Use errors.Is(err, ErrXxx) for typed assertions.
var (
	// ErrNotFound indicates the object does not exist (404, NoSuchKey).
	ErrNotFound = errors.New("not found")

	// ErrTimeout indicates the fetch exceeded its deadline.
	ErrTimeout = errors.New("operation timed out")

	// ErrNetwork indicates a network-level failure (connection refused, DNS).
	ErrNetwork = errors.New("network unreachable")

	// ErrStatus indicates a non-success response not covered by another kind.
	ErrStatus = errors.New("unexpected response status")

	// ErrAuth indicates missing or rejected credentials (401, 403).
	ErrAuth = errors.New("authentication failed")

	// ErrThrottled indicates rate limiting (429, SlowDown).
	ErrThrottled = errors.New("rate limited")

	// ErrUnknown is used when no other kind matches.
	ErrUnknown = errors.New("transport error")
)

// TransportError wraps an underlying error with a classification.
// It preserves the original error in the chain for inspection via errors.As.
type TransportError struct {
	// Kind is the sentinel error for classification (e.g., ErrNotFound).
	Kind error
	// Op is the operation that failed.
	Op string
	// Name is the object that was being fetched.
	Name string
	// Err is the underlying error.
	Err error
}

func (e *TransportError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Name, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As chain traversal.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target sentinel.
func (e *TransportError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// NewTransportError creates a classified transport error.
func NewTransportError(kind error, op, name string, err error) *TransportError {
	return &TransportError{Kind: kind, Op: op, Name: name, Err: err}
}

// StatusError is returned for non-2xx HTTP responses.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// kindForStatus maps an HTTP status code to a sentinel.
func kindForStatus(code int) error {
	switch {
	case code == 404:
		return ErrNotFound
	case code == 401 || code == 403:
		return ErrAuth
	case code == 429:
		return ErrThrottled
	case code == 408 || code == 504:
		return ErrTimeout
	default:
		return ErrStatus
	}
}

// Classify determines the sentinel for err.
// Typed checks run first, then message patterns.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return kindForStatus(statusErr.Code)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return ErrTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "nosuchkey", "not found", "statuscode: 404", "no such file"):
		return ErrNotFound
	case containsAny(msg, "timeout", "timed out", "deadline exceeded"):
		return ErrTimeout
	case containsAny(msg, "slowdown", "throttl", "statuscode: 429", "toomanyrequests"):
		return ErrThrottled
	case containsAny(msg, "accessdenied", "forbidden", "statuscode: 403", "statuscode: 401", "unauthorized",
		"invalidaccesskeyid", "signaturedoesnotmatch", "expiredtoken", "credentials"):
		return ErrAuth
	case containsAny(msg, "connection refused", "no route to host", "network is unreachable",
		"no such host", "dial tcp", "connection reset"):
		return ErrNetwork
	default:
		return ErrUnknown
	}
}

// containsAny checks if s contains any of the lowercase substrings.
func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
