package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pithecene-io/bundlesync/fingerprint"
)

// PathDelimiter replaces path separators in bundle names so that the
// artifact name stays flat.
const PathDelimiter = "~"

// Scan builds a manifest from the artifacts with the given extension
// directly inside dir. Labels maps a source folder key to its label. An
// artifact takes the label of the folder key it was named after; when no
// key matches exactly it falls back to the first key (in sorted order)
// whose trailing path segments equal the artifact's folder key.
// Platform, AppVersion and Revision are left for the caller to fill in.
func Scan(dir string, labels map[string]string, ext string) (*Manifest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	exact := make(map[string]string, len(labels))
	keys := make([]string, 0, len(labels))
	for k, label := range labels {
		k = strings.Trim(k, "/")
		exact[k] = label
		keys = append(keys, k)
	}
	sort.Strings(keys)

	suffix := "." + strings.TrimPrefix(ext, ".")
	m := &Manifest{FileInfos: []FileDescriptor{}}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		sum, size, err := fingerprint.SumFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}

		key := strings.ReplaceAll(strings.TrimSuffix(e.Name(), suffix), PathDelimiter, "/")
		label, ok := exact[key]
		if !ok {
			label = labelBySuffix(keys, exact, key)
		}

		m.FileInfos = append(m.FileInfos, FileDescriptor{
			Label: label,
			Path:  e.Name(),
			Hash:  fingerprint.Format(sum),
			Size:  size,
		})
	}
	m.SortByPath()
	m.FileCount = len(m.FileInfos)
	return m, nil
}

func labelBySuffix(keys []string, labels map[string]string, key string) string {
	for _, k := range keys {
		if strings.HasSuffix(k, "/"+key) {
			return labels[k]
		}
	}
	return ""
}
