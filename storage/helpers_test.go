package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/bundlesync/fingerprint"
	"github.com/pithecene-io/bundlesync/manifest"
)

// sharedFactory returns a StoreFactory that always returns the given store.
// This lets a publisher and a fetcher share the same in-memory state.
func sharedFactory(store lode.Store) lode.StoreFactory {
	return func() (lode.Store, error) { return store, nil }
}

// FailingStore is a lode.Store that returns configurable errors.
type FailingStore struct {
	PutErr    error
	GetErr    error
	ExistsErr error
	ListErr   error
	DeleteErr error

	PutPaths []string
}

func (s *FailingStore) Put(_ context.Context, path string, _ io.Reader) error {
	s.PutPaths = append(s.PutPaths, path)
	return s.PutErr
}

func (s *FailingStore) Get(_ context.Context, _ string) (io.ReadCloser, error) {
	return nil, s.GetErr
}

func (s *FailingStore) Exists(_ context.Context, _ string) (bool, error) {
	return false, s.ExistsErr
}

func (s *FailingStore) List(_ context.Context, _ string) ([]string, error) {
	return nil, s.ListErr
}

func (s *FailingStore) Delete(_ context.Context, _ string) error {
	return s.DeleteErr
}

func (s *FailingStore) ReadRange(_ context.Context, _ string, _, _ int64) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (s *FailingStore) ReaderAt(_ context.Context, _ string) (io.ReaderAt, error) {
	return nil, errors.New("not implemented")
}

var _ lode.Store = (*FailingStore)(nil)

// writeOutput lays out a build output directory holding files and a
// manifest describing them.
func writeOutput(t *testing.T, files map[string]string, revision int) string {
	t.Helper()
	dir := t.TempDir()

	m := manifest.New(manifest.PlatformAndroid, "1.0.0", revision)
	for path, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		m.FileInfos = append(m.FileInfos, manifest.FileDescriptor{
			Label: "label-" + path,
			Path:  path,
			Hash:  fingerprint.String([]byte(content)),
			Size:  int64(len(content)),
		})
	}
	m.SortByPath()
	if err := manifest.Save(filepath.Join(dir, manifest.FileName), m); err != nil {
		t.Fatal(err)
	}
	return dir
}

func readKey(t *testing.T, store lode.Store, key string) string {
	t.Helper()
	rc, err := store.Get(t.Context(), key)
	if err != nil {
		t.Fatalf("Get(%s) error = %v", key, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}
