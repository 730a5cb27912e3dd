package storage

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/bundlesync/iox"
	"github.com/pithecene-io/bundlesync/transport"
)

// StoreFetcher reads a published content root back out of a lode store.
// It lets a sync round run against the same store a build published to.
type StoreFetcher struct {
	factory lode.StoreFactory
	prefix  string
	timeout time.Duration

	storeOnce sync.Once
	store     lode.Store
	storeErr  error
}

// NewStoreFetcher creates a fetcher reading keys under prefix. Each Fetch
// is bounded by timeout; zero or less uses transport.DefaultTimeout.
func NewStoreFetcher(factory lode.StoreFactory, prefix string, timeout time.Duration) (*StoreFetcher, error) {
	if factory == nil {
		return nil, errors.New("store fetcher requires a store factory")
	}
	if timeout <= 0 {
		timeout = transport.DefaultTimeout
	}
	return &StoreFetcher{factory: factory, prefix: prefix, timeout: timeout}, nil
}

func (f *StoreFetcher) getOrCreateStore() (lode.Store, error) {
	f.storeOnce.Do(func() {
		f.store, f.storeErr = f.factory()
	})
	return f.store, f.storeErr
}

// Fetch implements transport.Fetcher.
func (f *StoreFetcher) Fetch(ctx context.Context, name string) ([]byte, error) {
	store, err := f.getOrCreateStore()
	if err != nil {
		return nil, transport.NewTransportError(transport.ErrUnknown, "init", name, err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	key := joinKey(f.prefix, name)
	rc, err := store.Get(ctx, key)
	if err != nil {
		return nil, transport.NewTransportError(f.kind(ctx, store, key, err), "fetch", name, err)
	}
	defer iox.DiscardClose(rc)

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, transport.NewTransportError(transport.Classify(err), "read", name, err)
	}
	return data, nil
}

// kind classifies a Get failure. A key the store reports as absent is
// ErrNotFound regardless of how the backend phrased the error.
func (f *StoreFetcher) kind(ctx context.Context, store lode.Store, key string, err error) error {
	if exists, existsErr := store.Exists(ctx, key); existsErr == nil && !exists {
		return transport.ErrNotFound
	}
	return transport.Classify(err)
}

// Close is a no-op; stores hold no per-fetcher resources.
func (f *StoreFetcher) Close() error { return nil }

var _ transport.Fetcher = (*StoreFetcher)(nil)
