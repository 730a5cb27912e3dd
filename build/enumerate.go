package build

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pithecene-io/bundlesync/manifest"
)

// BundleExtension is appended to every artifact name.
const BundleExtension = ".unity3d"

// skipSuffixes are editor and OS metadata files never packaged.
var skipSuffixes = []string{".meta", ".DS_Store", ".localized", ".db"}

// Eligible reports whether a file name takes part in packaging.
func Eligible(name string) bool {
	for _, s := range skipSuffixes {
		if strings.HasSuffix(name, s) {
			return false
		}
	}
	return true
}

// Enumerate walks root recursively and returns the eligible files as
// slash-separated paths relative to root, sorted lexically.
func Enumerate(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !Eligible(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// BundleName derives the flat artifact name for a folder key.
//
//	"characters/hero" -> "characters~hero.unity3d"
func BundleName(folder string) string {
	key := strings.Trim(filepath.ToSlash(folder), "/")
	return strings.ReplaceAll(key, "/", manifest.PathDelimiter) + BundleExtension
}
