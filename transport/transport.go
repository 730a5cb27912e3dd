// Package transport fetches manifests and content files from a remote
// content root.
//
// Two fetchers are provided: HTTPFetcher for a CDN or any static HTTP
// origin, and S3Fetcher for reading straight from an S3-compatible bucket.
// Every failure is returned as a *TransportError carrying a sentinel kind.
package transport

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultTimeout bounds each individual fetch.
const DefaultTimeout = 15 * time.Second

// Fetcher retrieves named objects relative to a content root.
//
// name is either the manifest file name or a manifest entry path.
// Implementations must be safe for concurrent use.
type Fetcher interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
	Close() error
}

// joinKey joins a prefix and a name with exactly one slash.
func joinKey(prefix, name string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	name = strings.TrimPrefix(name, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// StubFetcher serves objects from memory for testing.
// Fetch calls are recorded in order.
type StubFetcher struct {
	mu      sync.Mutex
	Objects map[string][]byte
	// Errs forces an error for the named object.
	Errs  map[string]error
	Calls []string
	// Hook, when set, runs at the start of every Fetch outside the lock.
	Hook func(ctx context.Context, name string)
}

// NewStubFetcher creates a stub serving objects.
func NewStubFetcher(objects map[string][]byte) *StubFetcher {
	if objects == nil {
		objects = make(map[string][]byte)
	}
	return &StubFetcher{Objects: objects, Errs: make(map[string]error)}
}

// Fetch implements Fetcher.
func (s *StubFetcher) Fetch(ctx context.Context, name string) ([]byte, error) {
	if s.Hook != nil {
		s.Hook(ctx, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, name)

	if err, ok := s.Errs[name]; ok {
		return nil, NewTransportError(Classify(err), "fetch", name, err)
	}
	data, ok := s.Objects[name]
	if !ok {
		return nil, NewTransportError(ErrNotFound, "fetch", name, fmt.Errorf("no object %q", name))
	}
	return append([]byte(nil), data...), nil
}

// CallCount returns the number of Fetch calls for name.
func (s *StubFetcher) CallCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.Calls {
		if c == name {
			n++
		}
	}
	return n
}

// TotalCalls returns the number of Fetch calls.
func (s *StubFetcher) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Calls)
}

// Close implements Fetcher.
func (s *StubFetcher) Close() error { return nil }

var _ Fetcher = (*StubFetcher)(nil)
