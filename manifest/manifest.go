// Package manifest defines the versioned record of a content set and the
// differ that compares two of them.
//
// A manifest is produced at build time, published next to the bundles it
// describes, and mirrored into the client cache after each sync round.
package manifest

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// FileName is the well-known name of a manifest under a content root.
const FileName = "filesinfo.dat"

// Platform identifies the target platform of a content set.
// The numeric values are part of the manifest file format.
type Platform int

const (
	// PlatformUnknown is the zero value and is never valid in a manifest
	// produced by a build.
	PlatformUnknown Platform = 0
	// PlatformAndroid is encoded as 1.
	PlatformAndroid Platform = 1
	// PlatformIOS is encoded as 2.
	PlatformIOS Platform = 2
)

// String returns the lowercase platform name, also used as the output
// directory name.
func (p Platform) String() string {
	switch p {
	case PlatformAndroid:
		return "android"
	case PlatformIOS:
		return "ios"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// ParsePlatform parses "android" or "ios" (case-insensitive).
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(s) {
	case "android":
		return PlatformAndroid, nil
	case "ios":
		return PlatformIOS, nil
	default:
		return PlatformUnknown, fmt.Errorf("unknown platform: %q (must be android or ios)", s)
	}
}

// FileDescriptor describes one file of a content set.
type FileDescriptor struct {
	// Label is the logical name assets are loaded by. May be empty.
	Label string `json:"Label"`
	// Path is the path relative to the content root. Unique per manifest.
	Path string `json:"Path"`
	// Hash is the fingerprint in decimal text form.
	Hash string `json:"Hash"`
	// Size is the file size in bytes.
	Size int64 `json:"Size"`
}

// Equivalent reports whether d and other describe the same content.
// Size is compared before hash; paths are not compared.
func (d FileDescriptor) Equivalent(other FileDescriptor) bool {
	if d.Size != other.Size {
		return false
	}
	return d.Hash == other.Hash
}

// Manifest is the serializable record of a content set.
type Manifest struct {
	FileInfos  []FileDescriptor `json:"FileInfos"`
	Platform   Platform         `json:"Platform"`
	AppVersion string           `json:"AppVersion"`
	Revision   int              `json:"Revision"`
	FileCount  int              `json:"FileCount"`
}

// ErrDuplicatePath is returned when two descriptors share a path.
var ErrDuplicatePath = errors.New("duplicate path in manifest")

// New returns an empty manifest for the given platform.
func New(platform Platform, appVersion string, revision int) *Manifest {
	return &Manifest{
		FileInfos:  []FileDescriptor{},
		Platform:   platform,
		AppVersion: appVersion,
		Revision:   revision,
	}
}

// Validate checks the per-manifest invariants: unique non-empty paths and
// a FileCount that matches the entry list.
func (m *Manifest) Validate() error {
	seen := make(map[string]struct{}, len(m.FileInfos))
	for _, fi := range m.FileInfos {
		if fi.Path == "" {
			return errors.New("manifest entry with empty path")
		}
		if _, dup := seen[fi.Path]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicatePath, fi.Path)
		}
		seen[fi.Path] = struct{}{}
	}
	if m.FileCount != len(m.FileInfos) {
		return fmt.Errorf("manifest file count %d does not match %d entries", m.FileCount, len(m.FileInfos))
	}
	return nil
}

// Index returns the entries keyed by path.
func (m *Manifest) Index() map[string]FileDescriptor {
	idx := make(map[string]FileDescriptor, len(m.FileInfos))
	for _, fi := range m.FileInfos {
		idx[fi.Path] = fi
	}
	return idx
}

// Lookup returns the entry with the given path.
func (m *Manifest) Lookup(path string) (FileDescriptor, bool) {
	for _, fi := range m.FileInfos {
		if fi.Path == path {
			return fi, true
		}
	}
	return FileDescriptor{}, false
}

// PathByLabel returns the path of the first entry carrying label.
func (m *Manifest) PathByLabel(label string) (string, bool) {
	for _, fi := range m.FileInfos {
		if fi.Label == label {
			return fi.Path, true
		}
	}
	return "", false
}

// TotalSize returns the sum of all entry sizes.
func (m *Manifest) TotalSize() int64 {
	var n int64
	for _, fi := range m.FileInfos {
		n += fi.Size
	}
	return n
}

// Clone returns a deep copy.
func (m *Manifest) Clone() *Manifest {
	c := *m
	c.FileInfos = append([]FileDescriptor(nil), m.FileInfos...)
	return &c
}

// Without returns a copy of m with the given paths removed.
func (m *Manifest) Without(paths map[string]struct{}) *Manifest {
	c := m.Clone()
	c.FileInfos = c.FileInfos[:0]
	for _, fi := range m.FileInfos {
		if _, drop := paths[fi.Path]; drop {
			continue
		}
		c.FileInfos = append(c.FileInfos, fi)
	}
	c.FileCount = len(c.FileInfos)
	return c
}

// SortByPath orders entries by path.
func (m *Manifest) SortByPath() {
	sort.Slice(m.FileInfos, func(i, j int) bool {
		return m.FileInfos[i].Path < m.FileInfos[j].Path
	})
}
