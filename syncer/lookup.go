package syncer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// current returns the committed manifest, reading it from disk when it
// is not held in memory.
func (e *Engine) current() error {
	e.mu.RLock()
	held := e.local != nil
	e.mu.RUnlock()
	if held {
		return nil
	}
	m, err := e.LocalManifest()
	if err != nil {
		return err
	}
	e.mu.Lock()
	if e.local == nil {
		e.local = m
	}
	e.mu.Unlock()
	return nil
}

// PathByLabel returns the path of the first committed entry with label.
func (e *Engine) PathByLabel(label string) (string, bool) {
	if err := e.current(); err != nil {
		return "", false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.local.PathByLabel(label)
}

// Locate resolves path to a file on disk: the cache directory first,
// then the seed directory.
func (e *Engine) Locate(path string) (string, error) {
	cached, err := e.cachePath(path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(cached); err == nil {
		return cached, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	if e.config.SeedDir != "" {
		seeded := filepath.Join(e.config.SeedDir, filepath.FromSlash(path))
		if _, err := os.Stat(seeded); err == nil {
			return seeded, nil
		}
	}
	return "", fmt.Errorf("%s: %w", path, os.ErrNotExist)
}

// Open opens path from the cache directory or, failing that, the seed
// directory.
func (e *Engine) Open(path string) (io.ReadCloser, error) {
	full, err := e.Locate(path)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}

// Load returns the content of path, memoized until the file is replaced
// by a round or the engine is torn down.
func (e *Engine) Load(path string) ([]byte, error) {
	e.mu.RLock()
	data, ok := e.loaded[path]
	e.mu.RUnlock()
	if ok {
		return data, nil
	}

	full, err := e.Locate(path)
	if err != nil {
		return nil, err
	}
	data, err = os.ReadFile(full)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.loaded[path] = data
	e.mu.Unlock()
	return data, nil
}

// LoadByLabels memoizes the files carrying each label. Unknown labels are
// skipped. Returns the loaded paths keyed by label.
func (e *Engine) LoadByLabels(labels []string) (map[string]string, error) {
	out := make(map[string]string, len(labels))
	for _, label := range labels {
		path, ok := e.PathByLabel(label)
		if !ok {
			continue
		}
		if _, err := e.Load(path); err != nil {
			return out, fmt.Errorf("load %s: %w", label, err)
		}
		out[label] = path
	}
	return out, nil
}

func (e *Engine) forget(path string) {
	e.mu.Lock()
	delete(e.loaded, path)
	e.mu.Unlock()
}
