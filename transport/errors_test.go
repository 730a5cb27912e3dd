package transport

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"status 404", &StatusError{Code: 404}, ErrNotFound},
		{"wrapped status 401", fmt.Errorf("x: %w", &StatusError{Code: 401}), ErrAuth},
		{"deadline", context.DeadlineExceeded, ErrTimeout},
		{"no such key", errors.New("api error NoSuchKey"), ErrNotFound},
		{"slowdown", errors.New("SlowDown: please reduce your request rate"), ErrThrottled},
		{"access denied", errors.New("AccessDenied: Access Denied"), ErrAuth},
		{"refused", errors.New("dial tcp 127.0.0.1:1: connect: connection refused"), ErrNetwork},
		{"other", errors.New("something odd"), ErrUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestTransportError_Chain(t *testing.T) {
	inner := errors.New("boom")
	err := fmt.Errorf("round: %w", NewTransportError(ErrNetwork, "fetch", "a.unity3d", inner))

	if !errors.Is(err, ErrNetwork) {
		t.Error("errors.Is(ErrNetwork) = false")
	}
	if !errors.Is(err, inner) {
		t.Error("underlying error not reachable")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("errors.Is(ErrNotFound) = true")
	}
	if got := err.Error(); got != "round: fetch a.unity3d: network unreachable: boom" {
		t.Errorf("Error() = %q", got)
	}
}

func TestStubFetcher(t *testing.T) {
	s := NewStubFetcher(map[string][]byte{"a": []byte("1")})
	s.Errs["b"] = errors.New("connection refused")

	if data, err := s.Fetch(t.Context(), "a"); err != nil || string(data) != "1" {
		t.Errorf("Fetch(a) = %q, %v", data, err)
	}
	if _, err := s.Fetch(t.Context(), "b"); !errors.Is(err, ErrNetwork) {
		t.Errorf("Fetch(b) error = %v, want ErrNetwork", err)
	}
	if _, err := s.Fetch(t.Context(), "c"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Fetch(c) error = %v, want ErrNotFound", err)
	}
	if s.TotalCalls() != 3 || s.CallCount("a") != 1 {
		t.Errorf("calls = %v", s.Calls)
	}
}
