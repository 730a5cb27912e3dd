// Package buildcache records the per-source-file fingerprints observed by
// the previous successful build, so the orchestrator can tell which bundle
// folders need repacking.
//
// The cache is read once at the start of a build, mutated in place while
// folders are evaluated, and written back wholesale at the end of a full
// pass. It is never flushed incrementally: a build that dies half way
// leaves the previous file untouched, or no file at all, and the next
// build repacks whatever it cannot prove unchanged.
package buildcache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pithecene-io/bundlesync/fingerprint"
	"github.com/pithecene-io/bundlesync/iox"
)

// FileName is the cache file name under the build output root.
const FileName = "AssetFileInfo.txt"

// Entry is the fingerprint of one source file.
type Entry struct {
	Path string `json:"Path"`
	Hash string `json:"Hash"`
	Size int64  `json:"Size"`
}

// Cache maps a source-folder key to the entries seen for that folder.
type Cache struct {
	folders map[string][]Entry
}

// Decision is the outcome of evaluating one folder.
type Decision struct {
	// NeedBuild is true when any file is new or changed, or files were removed.
	NeedBuild bool
	// Added lists files with no previous entry.
	Added []string
	// Changed lists files whose size or hash differs from the entry.
	Changed []string
	// Removed lists previous entries whose file no longer exists.
	Removed []string
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{folders: make(map[string][]Entry)}
}

// Load reads the cache file at path. A missing file yields an empty cache.
func Load(path string) (*Cache, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("read build cache %s: %w", path, err)
	}
	folders := make(map[string][]Entry)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &folders); err != nil {
			return nil, fmt.Errorf("parse build cache %s: %w", path, err)
		}
	}
	return &Cache{folders: folders}, nil
}

// Save writes the whole cache to path.
func (c *Cache) Save(path string) error {
	data, err := json.MarshalIndent(c.folders, "", "  ")
	if err != nil {
		return fmt.Errorf("encode build cache: %w", err)
	}
	data = append(data, '\n')
	if err := iox.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write build cache %s: %w", path, err)
	}
	return nil
}

// Entries returns the entries recorded for folder.
func (c *Cache) Entries(folder string) []Entry {
	return c.folders[folder]
}

// Folders returns the recorded folder keys in sorted order.
func (c *Cache) Folders() []string {
	keys := make([]string, 0, len(c.folders))
	for k := range c.folders {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Evaluate fingerprints every file of folder and updates the folder's
// entries in place.
//
// files are slash-separated paths relative to root; they double as the
// entry keys. Once one file needs a build the whole folder does. A
// differing entry count (files removed) also forces a build; entries for
// removed files are dropped so the next run compares equal counts.
func (c *Cache) Evaluate(folder, root string, files []string) (Decision, error) {
	var d Decision
	entries := c.folders[folder]
	prevCount := len(entries)

	index := make(map[string]int, len(entries))
	for i, e := range entries {
		index[e.Path] = i
	}

	present := make(map[string]struct{}, len(files))
	for _, rel := range files {
		present[rel] = struct{}{}

		sum, size, err := fingerprint.SumFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			return Decision{}, err
		}
		current := Entry{Path: rel, Hash: fingerprint.Format(sum), Size: size}

		i, ok := index[rel]
		switch {
		case !ok:
			entries = append(entries, current)
			index[rel] = len(entries) - 1
			d.Added = append(d.Added, rel)
			d.NeedBuild = true
		case entries[i].Hash != current.Hash || entries[i].Size != current.Size:
			entries[i] = current
			d.Changed = append(d.Changed, rel)
			d.NeedBuild = true
		}
	}

	if prevCount+len(d.Added) != len(files) {
		d.NeedBuild = true
	}

	kept := entries[:0]
	for _, e := range entries {
		if _, ok := present[e.Path]; !ok {
			d.Removed = append(d.Removed, e.Path)
			continue
		}
		kept = append(kept, e)
	}
	c.folders[folder] = kept
	return d, nil
}

// Forget drops the entries of folder.
func (c *Cache) Forget(folder string) {
	delete(c.folders, folder)
}
