package storage

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/bundlesync/manifest"
	"github.com/pithecene-io/bundlesync/transport"
)

func TestStoreFetcher_ReadsPublishedContent(t *testing.T) {
	store := lode.NewMemory()
	p, _ := newPublisher(t, store)
	dir := writeOutput(t, map[string]string{"a.unity3d": "A", "b.unity3d": "BB"}, 2)
	if _, err := p.Publish(t.Context(), dir, PublishOptions{Prefix: "android/1.0.0/2"}); err != nil {
		t.Fatal(err)
	}

	f, err := NewStoreFetcher(sharedFactory(store), "android/1.0.0/2", 0)
	if err != nil {
		t.Fatalf("NewStoreFetcher() error = %v", err)
	}
	defer f.Close()

	data, err := f.Fetch(t.Context(), manifest.FileName)
	if err != nil {
		t.Fatalf("Fetch(manifest) error = %v", err)
	}
	m, err := manifest.Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if m.Revision != 2 || len(m.FileInfos) != 2 {
		t.Errorf("manifest = rev %d, %d entries", m.Revision, len(m.FileInfos))
	}

	got, err := f.Fetch(t.Context(), "b.unity3d")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(got) != "BB" {
		t.Errorf("Fetch() = %q, want BB", got)
	}
}

func TestStoreFetcher_MissingKey(t *testing.T) {
	f, err := NewStoreFetcher(sharedFactory(lode.NewMemory()), "root", 0)
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.Fetch(t.Context(), "missing.unity3d")
	if !errors.Is(err, transport.ErrNotFound) {
		t.Fatalf("Fetch() error = %v, want transport.ErrNotFound", err)
	}
	var te *transport.TransportError
	if !errors.As(err, &te) || te.Name != "missing.unity3d" {
		t.Errorf("expected TransportError naming the object, got %v", err)
	}
}

func TestStoreFetcher_ClassifiesBackendErrors(t *testing.T) {
	store := &FailingStore{
		GetErr:    errors.New("SlowDown: reduce request rate"),
		ExistsErr: errors.New("SlowDown: reduce request rate"),
	}
	f, err := NewStoreFetcher(sharedFactory(store), "", 0)
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.Fetch(t.Context(), "a.unity3d")
	if !errors.Is(err, transport.ErrThrottled) {
		t.Fatalf("Fetch() error = %v, want transport.ErrThrottled", err)
	}
}

func TestStoreFetcher_FactoryFailure(t *testing.T) {
	boom := errors.New("boom")
	f, err := NewStoreFetcher(func() (lode.Store, error) { return nil, boom }, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.Fetch(t.Context(), "a.unity3d")
	if !errors.Is(err, boom) {
		t.Fatalf("Fetch() error = %v, want boom in chain", err)
	}
}

func TestNewStoreFetcher_RequiresFactory(t *testing.T) {
	if _, err := NewStoreFetcher(nil, "", 0); err == nil {
		t.Fatal("expected error for nil factory")
	}
}

// blockingStore stalls reads until the caller's context ends.
type blockingStore struct {
	FailingStore
}

func (s *blockingStore) Get(ctx context.Context, _ string) (io.ReadCloser, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *blockingStore) Exists(ctx context.Context, _ string) (bool, error) {
	<-ctx.Done()
	return false, ctx.Err()
}

func TestStoreFetcher_Timeout(t *testing.T) {
	f, err := NewStoreFetcher(sharedFactory(&blockingStore{}), "root", 50*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	_, err = f.Fetch(t.Context(), manifest.FileName)
	if !errors.Is(err, transport.ErrTimeout) {
		t.Fatalf("Fetch() error = %v, want transport.ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Fetch() took %v, want it bounded by the timeout", elapsed)
	}
}

func TestNewStoreFetcher_DefaultTimeout(t *testing.T) {
	f, err := NewStoreFetcher(sharedFactory(lode.NewMemory()), "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if f.timeout != transport.DefaultTimeout {
		t.Errorf("timeout = %v, want %v", f.timeout, transport.DefaultTimeout)
	}
}
