package syncer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pithecene-io/bundlesync/fingerprint"
	"github.com/pithecene-io/bundlesync/manifest"
	"github.com/pithecene-io/bundlesync/transport"
)

// files maps a manifest path to its content.
type files map[string]string

func descriptor(path, body string) manifest.FileDescriptor {
	return manifest.FileDescriptor{
		Label: "label-" + path,
		Path:  path,
		Hash:  fingerprint.String([]byte(body)),
		Size:  int64(len(body)),
	}
}

func manifestOf(revision int, fs files) *manifest.Manifest {
	m := manifest.New(manifest.PlatformAndroid, "1.0.0", revision)
	for path, body := range fs {
		m.FileInfos = append(m.FileInfos, descriptor(path, body))
	}
	m.SortByPath()
	m.FileCount = len(m.FileInfos)
	return m
}

// remoteOf serves a manifest at revision plus the files it lists.
func remoteOf(t *testing.T, revision int, fs files) *transport.StubFetcher {
	t.Helper()
	data, err := manifest.Encode(manifestOf(revision, fs))
	if err != nil {
		t.Fatal(err)
	}
	objects := map[string][]byte{manifest.FileName: data}
	for path, body := range fs {
		objects[path] = []byte(body)
	}
	return transport.NewStubFetcher(objects)
}

// writeLocal populates dir with files and a manifest at revision.
func writeLocal(t *testing.T, dir string, revision int, fs files) {
	t.Helper()
	for path, body := range fs {
		full := filepath.Join(dir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := manifest.Save(filepath.Join(dir, manifest.FileName), manifestOf(revision, fs)); err != nil {
		t.Fatal(err)
	}
}

func newEngine(t *testing.T, cacheDir string, f transport.Fetcher, opts ...func(*Config)) *Engine {
	t.Helper()
	cfg := Config{
		CacheDir:     cacheDir,
		AppVersion:   "1.0.0",
		Platform:     manifest.PlatformAndroid,
		RetryBackoff: time.Millisecond,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	e, err := New(cfg, f, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := e.Initialize(t.Context()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return e
}

func readCache(t *testing.T, dir, path string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(path)))
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func assertAbsent(t *testing.T, dir, path string) {
	t.Helper()
	if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(path))); !os.IsNotExist(err) {
		t.Errorf("%s should not exist (err=%v)", path, err)
	}
}
