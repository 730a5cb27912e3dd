package reader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pithecene-io/bundlesync/build"
	"github.com/pithecene-io/bundlesync/fingerprint"
	"github.com/pithecene-io/bundlesync/manifest"
	"github.com/pithecene-io/bundlesync/storage"
	"github.com/pithecene-io/bundlesync/syncer"
)

// Status reads the manifest and sync state in cacheDir and checks that
// every listed file is present in the cache or, failing that, in seedDir.
// With verify set, present files are also fingerprinted.
func Status(cacheDir, seedDir, manifestName string, verify bool) (*StatusResponse, error) {
	if manifestName == "" {
		manifestName = manifest.FileName
	}
	resp := &StatusResponse{
		CacheDir: cacheDir,
		Revision: -1,
		Missing:  []string{},
		Corrupt:  []string{},
		Verified: verify,
	}

	state, err := syncer.LoadState(cacheDir)
	switch {
	case err == nil:
		resp.LastRound = lastRound(state)
	case !errors.Is(err, syncer.ErrNoState):
		return nil, err
	}

	m, err := manifest.Load(filepath.Join(cacheDir, manifestName))
	if errors.Is(err, manifest.ErrNotExist) {
		return resp, nil
	}
	if err != nil {
		return nil, err
	}

	resp.Seeded = true
	resp.Platform = m.Platform.String()
	resp.AppVersion = m.AppVersion
	resp.Revision = m.Revision
	resp.Files = len(m.FileInfos)
	resp.TotalBytes = m.TotalSize()

	for _, fi := range m.FileInfos {
		rel := filepath.FromSlash(fi.Path)
		if !filepath.IsLocal(rel) {
			resp.Corrupt = append(resp.Corrupt, fi.Path)
			continue
		}
		path, fromSeed := locate(cacheDir, seedDir, rel)
		if path == "" {
			resp.Missing = append(resp.Missing, fi.Path)
			continue
		}
		resp.Present++
		if fromSeed {
			resp.FromSeed++
		}
		if !verify {
			continue
		}
		sum, size, err := fingerprint.SumFile(path)
		if err != nil || size != fi.Size || fingerprint.Format(sum) != fi.Hash {
			resp.Corrupt = append(resp.Corrupt, fi.Path)
		}
	}
	return resp, nil
}

func locate(cacheDir, seedDir, rel string) (string, bool) {
	if p := filepath.Join(cacheDir, rel); isFile(p) {
		return p, false
	}
	if seedDir != "" {
		if p := filepath.Join(seedDir, rel); isFile(p) {
			return p, true
		}
	}
	return "", false
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func lastRound(s *syncer.SyncState) *LastRound {
	failed := s.FailedPaths
	if failed == nil {
		failed = []string{}
	}
	return &LastRound{
		RoundID:           s.RoundID,
		Outcome:           string(s.Outcome),
		CommittedRevision: s.CommittedRevision,
		Downloaded:        s.Downloaded,
		Deleted:           s.Deleted,
		FailedPaths:       failed,
		Error:             s.Error,
		FinishedAt:        s.FinishedAt,
	}
}

// Diff converts a sync plan.
func Diff(p *syncer.Plan) *DiffResponse {
	return &DiffResponse{
		LocalRevision:  p.Local.Revision,
		RemoteRevision: p.Remote.Revision,
		Current:        p.Current,
		ToAdd:          diffItems(p.Diff.ToAdd),
		ToUpdate:       diffItems(p.Diff.ToUpdate),
		ToRemove:       diffItems(p.Diff.ToRemove),
		DownloadBytes:  p.Diff.DownloadSize(),
	}
}

func diffItems(fds []manifest.FileDescriptor) []DiffItem {
	items := make([]DiffItem, 0, len(fds))
	for _, fd := range fds {
		items = append(items, DiffItem{Path: fd.Path, Label: fd.Label, Hash: fd.Hash, Size: fd.Size})
	}
	return items
}

// Hash fingerprints each path. Directories contribute every eligible
// file beneath them, reported relative to the working directory.
func Hash(paths []string) ([]HashItem, error) {
	items := []HashItem{}
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			item, err := hashFile(p, p)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
			continue
		}

		files, err := build.Enumerate(p)
		if err != nil {
			return nil, err
		}
		for _, rel := range files {
			full := filepath.Join(p, filepath.FromSlash(rel))
			item, err := hashFile(full, filepath.ToSlash(full))
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
	}
	return items, nil
}

func hashFile(path, name string) (HashItem, error) {
	sum, size, err := fingerprint.SumFile(path)
	if err != nil {
		return HashItem{}, fmt.Errorf("hash %s: %w", path, err)
	}
	return HashItem{Path: name, Hash: fingerprint.Format(sum), Size: size}, nil
}

// Sync converts a round result.
func Sync(mode syncer.Mode, r *syncer.RoundResult) *SyncResponse {
	failed := make([]FailedItem, 0, len(r.Failed))
	for _, p := range r.FailedPaths() {
		failed = append(failed, FailedItem{Path: p, Error: r.Failed[p].Error()})
	}
	return &SyncResponse{
		RoundID:           r.RoundID,
		Mode:              string(mode),
		Outcome:           string(r.Outcome),
		LocalRevision:     r.LocalRevision,
		RemoteRevision:    r.RemoteRevision,
		CommittedRevision: r.CommittedRevision,
		ToAdd:             r.ToAdd,
		ToUpdate:          r.ToUpdate,
		ToRemove:          r.ToRemove,
		Downloaded:        r.Downloaded,
		DownloadedBytes:   r.DownloadedBytes,
		Deleted:           r.Deleted,
		Failed:            failed,
		DurationMs:        r.Duration().Milliseconds(),
	}
}

// Build converts a build result.
func Build(r *build.Result) *BuildResponse {
	return &BuildResponse{
		BuildID:    r.BuildID,
		OutputDir:  r.Layout.OutputDir,
		Platform:   r.Manifest.Platform.String(),
		AppVersion: r.Manifest.AppVersion,
		Revision:   r.Manifest.Revision,
		Files:      len(r.Manifest.FileInfos),
		TotalBytes: r.Manifest.TotalSize(),
		Packaged:   nonNil(r.Packaged),
		Reused:     nonNil(r.Reused),
		Skipped:    nonNil(r.Skipped),
		DurationMs: r.Duration.Milliseconds(),
	}
}

// Publish converts a publish result.
func Publish(prefix string, r *storage.PublishResult) *PublishResponse {
	return &PublishResponse{
		Prefix:      prefix,
		ManifestKey: r.ManifestKey,
		Platform:    r.Platform,
		AppVersion:  r.AppVersion,
		Revision:    r.Revision,
		Uploaded:    nonNil(r.Uploaded),
		Unchanged:   nonNil(r.Unchanged),
		Pruned:      nonNil(r.Pruned),
		Bytes:       r.Bytes,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
