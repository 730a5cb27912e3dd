package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pithecene-io/bundlesync/fingerprint"
	"github.com/pithecene-io/bundlesync/manifest"
)

// Backend is the content source the host application talks to.
type Backend interface {
	Synchronize(ctx context.Context, progress ProgressFunc) (*RoundResult, error)
	// Plan reports what the next Synchronize would transfer.
	Plan(ctx context.Context) (*Plan, error)
	PathByLabel(label string) (string, bool)
	Open(path string) (io.ReadCloser, error)
}

// Mode selects a Backend variant.
type Mode string

const (
	// ModeBundle trusts the local manifest and transfers only the diff.
	ModeBundle Mode = "bundle"
	// ModeCatalog mirrors every remote entry each round, checking the
	// files on disk instead of the local manifest.
	ModeCatalog Mode = "catalog"
)

// ParseMode parses a mode name. Empty selects ModeBundle.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeBundle:
		return ModeBundle, nil
	case ModeCatalog:
		return ModeCatalog, nil
	default:
		return "", fmt.Errorf("unknown sync mode: %q (must be bundle or catalog)", s)
	}
}

// NewBackend wraps engine in the variant for mode.
func NewBackend(mode Mode, engine *Engine) (Backend, error) {
	switch mode {
	case "", ModeBundle:
		return &BundleBackend{Engine: engine}, nil
	case ModeCatalog:
		return &CatalogBackend{Engine: engine}, nil
	default:
		return nil, fmt.Errorf("unknown sync mode: %q", mode)
	}
}

// BundleBackend runs incremental rounds.
type BundleBackend struct {
	*Engine
}

// Synchronize implements Backend.
func (b *BundleBackend) Synchronize(ctx context.Context, progress ProgressFunc) (*RoundResult, error) {
	return b.Sync(ctx, progress)
}

// CatalogBackend runs whole-catalog rounds.
type CatalogBackend struct {
	*Engine
}

// Synchronize implements Backend. Every remote entry is checked against
// the file on disk, regardless of the local revision.
func (b *CatalogBackend) Synchronize(ctx context.Context, progress ProgressFunc) (*RoundResult, error) {
	return b.run(ctx, progress, b.catalog)
}

// Plan implements Backend. Files on disk are fingerprinted; nothing is
// written.
func (b *CatalogBackend) Plan(ctx context.Context) (*Plan, error) {
	return b.plan(ctx, b.catalog)
}

// catalog diffs the remote manifest against what is actually on disk for
// every path either manifest names.
func (b *CatalogBackend) catalog(local, remote *manifest.Manifest) (*manifest.DiffResult, bool, error) {
	onDisk := manifest.New(local.Platform, local.AppVersion, local.Revision)
	seen := make(map[string]struct{}, len(local.FileInfos)+len(remote.FileInfos))

	for _, set := range [][]manifest.FileDescriptor{remote.FileInfos, local.FileInfos} {
		for _, fd := range set {
			if _, dup := seen[fd.Path]; dup {
				continue
			}
			seen[fd.Path] = struct{}{}

			path, err := b.cachePath(fd.Path)
			if err != nil {
				continue
			}
			sum, size, err := fingerprint.SumFile(path)
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			if err != nil {
				return nil, false, fmt.Errorf("fingerprint %s: %w", fd.Path, err)
			}
			onDisk.FileInfos = append(onDisk.FileInfos, manifest.FileDescriptor{
				Label: fd.Label,
				Path:  fd.Path,
				Hash:  fingerprint.Format(sum),
				Size:  size,
			})
		}
	}
	onDisk.FileCount = len(onDisk.FileInfos)
	return manifest.Diff(onDisk, remote), false, nil
}

var (
	_ Backend = (*BundleBackend)(nil)
	_ Backend = (*CatalogBackend)(nil)
)
