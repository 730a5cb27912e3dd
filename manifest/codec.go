package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pithecene-io/bundlesync/iox"
)

// ErrNotExist is returned by Load when no manifest exists at the path.
var ErrNotExist = errors.New("manifest does not exist")

// Encode serializes m as JSON text. FileCount is recomputed from the
// entries before encoding; m is not modified.
func Encode(m *Manifest) ([]byte, error) {
	out := *m
	if out.FileInfos == nil {
		out.FileInfos = []FileDescriptor{}
	}
	out.FileCount = len(out.FileInfos)
	data, err := json.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return data, nil
}

// Decode parses a manifest and validates it.
func Decode(data []byte) (*Manifest, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("decode manifest: empty input")
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if m.FileInfos == nil {
		m.FileInfos = []FileDescriptor{}
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}

// Read decodes a manifest from r.
func Read(r io.Reader) (*Manifest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Decode(data)
}

// Load reads the manifest file at path. A missing file yields ErrNotExist.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotExist, path)
		}
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	m, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Save writes m to path in a single atomic replacement.
func Save(path string, m *Manifest) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}
	if err := iox.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest %s: %w", path, err)
	}
	return nil
}
