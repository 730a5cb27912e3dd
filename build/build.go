// Package build produces a revision of packaged artifacts and its
// synchronization manifest from a set of source folders.
//
// A Builder enumerates each configured folder, asks the fingerprint cache
// whether the folder changed, and either packages it or copies the
// previous artifact forward. After every folder succeeds it removes
// packager sidecars, scans the output directory into a manifest and
// writes filesinfo.dat. The fingerprint cache is saved last.
package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pithecene-io/bundlesync/buildcache"
	"github.com/pithecene-io/bundlesync/fingerprint"
	"github.com/pithecene-io/bundlesync/iox"
	"github.com/pithecene-io/bundlesync/log"
	"github.com/pithecene-io/bundlesync/manifest"
	"github.com/pithecene-io/bundlesync/metrics"
)

// Folder is one source folder packaged into one artifact.
type Folder struct {
	// Path is the folder key: a slash path relative to the source root.
	Path string
	// Label is the logical name recorded in the manifest.
	Label string
}

// Config configures a build run.
type Config struct {
	// SourceRoot is the directory folder paths are relative to.
	SourceRoot string
	Folders    []Folder
	// OutputRoot receives {platform}/... output directories.
	OutputRoot string
	Platform   manifest.Platform
	AppVersion string
	// Revision below 1 selects the integral layout.
	Revision int
}

// Validate checks the configuration without mutating the filesystem.
// Source folders must exist and map to distinct bundle names.
func (c *Config) Validate() error {
	if c.SourceRoot == "" {
		return &ConfigError{Field: "source_root", Reason: "path is required"}
	}
	if len(c.Folders) == 0 {
		return &ConfigError{Field: "folders", Reason: "at least one folder is required"}
	}
	seen := make(map[string]struct{}, len(c.Folders))
	for i, f := range c.Folders {
		key := strings.Trim(f.Path, "/")
		if key == "" {
			return &ConfigError{Field: fmt.Sprintf("folders[%d].path", i), Reason: "path is required"}
		}
		if strings.Contains(key, manifest.PathDelimiter) {
			return &ConfigError{Field: fmt.Sprintf("folders[%d].path", i), Reason: fmt.Sprintf("folder %q contains reserved character %q", f.Path, manifest.PathDelimiter)}
		}
		name := BundleName(key)
		if _, dup := seen[name]; dup {
			return &ConfigError{Field: fmt.Sprintf("folders[%d].path", i), Reason: fmt.Sprintf("duplicate folder %q", f.Path)}
		}
		seen[name] = struct{}{}

		info, err := os.Stat(filepath.Join(c.SourceRoot, filepath.FromSlash(key)))
		if err != nil {
			return &ConfigError{Field: fmt.Sprintf("folders[%d].path", i), Reason: fmt.Sprintf("source folder %q: %v", f.Path, err)}
		}
		if !info.IsDir() {
			return &ConfigError{Field: fmt.Sprintf("folders[%d].path", i), Reason: fmt.Sprintf("%q is not a directory", f.Path)}
		}
	}
	_, err := ResolveLayout(c.OutputRoot, c.Platform, c.AppVersion, c.Revision)
	return err
}

// Result summarizes a completed build.
type Result struct {
	BuildID  string
	Layout   Layout
	Manifest *manifest.Manifest
	// Packaged, Reused and Skipped hold folder keys.
	Packaged []string
	Reused   []string
	Skipped  []string
	Duration time.Duration
}

// Builder runs builds.
type Builder struct {
	config    Config
	packager  Packager
	logger    *log.Logger
	collector *metrics.Collector
}

// New creates a Builder. A nil logger discards output; a nil collector
// records nothing.
func New(cfg Config, packager Packager, logger *log.Logger, collector *metrics.Collector) *Builder {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Builder{config: cfg, packager: packager, logger: logger, collector: collector}
}

type folderPlan struct {
	Folder
	key    string
	root   string
	bundle string
	files  []string
}

// Run executes one build.
//
// Execution flow:
//  1. Validate configuration and enumerate folders (no mutation)
//  2. Rotate or clear the output directory
//  3. Package or copy forward each folder
//  4. Remove sidecars and write the manifest
//  5. Save the fingerprint cache
func (b *Builder) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	if b.packager == nil {
		return nil, &ConfigError{Field: "packager", Reason: "packager is required"}
	}
	layout, err := ResolveLayout(b.config.OutputRoot, b.config.Platform, b.config.AppVersion, b.config.Revision)
	if err != nil {
		return nil, err
	}

	result := &Result{BuildID: uuid.NewString(), Layout: layout}
	logger := b.logger.With(map[string]any{"build_id": result.BuildID})
	b.collector.IncBuildStarted()

	plans, err := b.enumerate()
	if err != nil {
		b.collector.IncBuildFailed()
		return nil, err
	}

	cachePath := filepath.Join(layout.PlatformDir, buildcache.FileName)
	cache, err := buildcache.Load(cachePath)
	if err != nil {
		b.collector.IncBuildFailed()
		return nil, fmt.Errorf("load build cache: %w", err)
	}

	discarded, err := layout.Prepare()
	if err != nil {
		b.collector.IncBuildFailed()
		return nil, err
	}
	if discarded {
		logger.Warn("older integral backup discarded; it is not restored if this build fails", map[string]any{
			"backup": layout.PrevDir,
		})
	}

	prev, err := manifest.Load(filepath.Join(layout.PrevDir, manifest.FileName))
	if err != nil {
		if !errors.Is(err, manifest.ErrNotExist) {
			logger.Warn("previous manifest unreadable, nothing will be reused", map[string]any{
				"error": err.Error(),
			})
		}
		prev = nil
	}

	logger.Info("starting build", map[string]any{
		"output":      layout.OutputDir,
		"platform":    b.config.Platform.String(),
		"app_version": b.config.AppVersion,
		"revision":    b.config.Revision,
		"folders":     len(plans),
	})

	for _, p := range plans {
		if err := ctx.Err(); err != nil {
			b.collector.IncBuildFailed()
			return nil, err
		}
		action, err := b.buildFolder(ctx, logger, cache, layout, prev, p)
		if err != nil {
			b.collector.IncBuildFailed()
			return nil, err
		}
		switch action {
		case actionPackaged:
			result.Packaged = append(result.Packaged, p.key)
		case actionReused:
			result.Reused = append(result.Reused, p.key)
		case actionSkipped:
			result.Skipped = append(result.Skipped, p.key)
		}
	}

	if err := removeSidecars(layout.OutputDir); err != nil {
		b.collector.IncBuildFailed()
		return nil, err
	}

	m, err := b.publishManifest(layout.OutputDir)
	if err != nil {
		b.collector.IncBuildFailed()
		return nil, err
	}
	result.Manifest = m

	if err := cache.Save(cachePath); err != nil {
		b.collector.IncBuildFailed()
		return nil, fmt.Errorf("save build cache: %w", err)
	}

	result.Duration = time.Since(start)
	b.collector.IncBuildCompleted()
	logger.Info("build completed", map[string]any{
		"packaged":    len(result.Packaged),
		"reused":      len(result.Reused),
		"skipped":     len(result.Skipped),
		"files":       m.FileCount,
		"duration_ms": result.Duration.Milliseconds(),
	})
	return result, nil
}

func (b *Builder) enumerate() ([]folderPlan, error) {
	plans := make([]folderPlan, 0, len(b.config.Folders))
	for _, f := range b.config.Folders {
		key := strings.Trim(f.Path, "/")
		root := filepath.Join(b.config.SourceRoot, filepath.FromSlash(key))
		files, err := Enumerate(root)
		if err != nil {
			return nil, fmt.Errorf("enumerate %s: %w", key, err)
		}
		plans = append(plans, folderPlan{
			Folder: f,
			key:    key,
			root:   root,
			bundle: BundleName(key),
			files:  files,
		})
	}
	return plans, nil
}

type folderAction int

const (
	actionSkipped folderAction = iota
	actionReused
	actionPackaged
)

// buildFolder packages one folder, or copies its previous artifact forward
// when the sources are unchanged and prev vouches for that artifact. A
// previous directory without a manifest is the leftover of a failed run
// and is never reused from.
func (b *Builder) buildFolder(ctx context.Context, logger *log.Logger, cache *buildcache.Cache, layout Layout, prev *manifest.Manifest, p folderPlan) (folderAction, error) {
	fields := map[string]any{"folder": p.key, "bundle": p.bundle}

	if len(p.files) == 0 {
		cache.Forget(p.key)
		b.collector.IncFolderSkipped()
		logger.Debug("folder has no eligible files, skipping", fields)
		return actionSkipped, nil
	}

	decision, err := cache.Evaluate(p.key, p.root, p.files)
	if err != nil {
		return actionSkipped, fmt.Errorf("fingerprint %s: %w", p.key, err)
	}

	dst := filepath.Join(layout.OutputDir, p.bundle)
	if !decision.NeedBuild {
		src := filepath.Join(layout.PrevDir, p.bundle)
		if reusable(prev, src, p.bundle) {
			if err := iox.CopyFile(src, dst); err != nil {
				return actionSkipped, fmt.Errorf("copy forward %s: %w", p.bundle, err)
			}
			b.collector.IncFolderReused()
			logger.Debug("folder unchanged, reusing previous artifact", fields)
			return actionReused, nil
		}
		logger.Info("folder unchanged but no verified previous artifact, packaging", fields)
	} else {
		logger.Info("folder changed, packaging", map[string]any{
			"folder":  p.key,
			"bundle":  p.bundle,
			"added":   len(decision.Added),
			"changed": len(decision.Changed),
			"removed": len(decision.Removed),
		})
	}

	assets := make([]Asset, len(p.files))
	for i, rel := range p.files {
		assets[i] = Asset{Name: rel, Path: filepath.Join(p.root, filepath.FromSlash(rel))}
	}

	if err := b.packager.Package(ctx, layout.OutputDir, p.bundle, assets); err != nil {
		b.collector.IncPackagingFailure()
		logger.Error("packaging failed", map[string]any{
			"folder": p.key,
			"bundle": p.bundle,
			"error":  err.Error(),
		})
		return actionSkipped, &PackagingError{Folder: p.key, Bundle: p.bundle, Err: err}
	}
	if _, err := os.Stat(dst); err != nil {
		b.collector.IncPackagingFailure()
		return actionSkipped, &PackagingError{Folder: p.key, Bundle: p.bundle, Err: fmt.Errorf("artifact not produced: %w", err)}
	}
	b.collector.IncFolderPackaged()
	return actionPackaged, nil
}

// reusable reports whether the artifact at path is the one prev recorded
// for bundle.
func reusable(prev *manifest.Manifest, path, bundle string) bool {
	if prev == nil {
		return false
	}
	fd, ok := prev.Lookup(bundle)
	if !ok {
		return false
	}
	sum, size, err := fingerprint.SumFile(path)
	if err != nil {
		return false
	}
	return size == fd.Size && fingerprint.Format(sum) == fd.Hash
}

// removeSidecars deletes packager leftovers from dir: every *.manifest
// file and the file named after dir itself.
func removeSidecars(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	index := filepath.Base(dir)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), SidecarExtension) || e.Name() == index {
			if err := os.Remove(filepath.Join(dir, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("remove sidecar %s: %w", e.Name(), err)
			}
		}
	}
	return nil
}

func (b *Builder) publishManifest(dir string) (*manifest.Manifest, error) {
	labels := make(map[string]string, len(b.config.Folders))
	for _, f := range b.config.Folders {
		labels[f.Path] = f.Label
	}

	m, err := manifest.Scan(dir, labels, BundleExtension)
	if err != nil {
		return nil, err
	}
	m.Platform = b.config.Platform
	m.AppVersion = b.config.AppVersion
	m.Revision = b.config.Revision

	if err := manifest.Save(filepath.Join(dir, manifest.FileName), m); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	return m, nil
}
