// Package syncer keeps a local content cache synchronized with a remote
// content root.
//
// A round fetches the remote manifest, diffs it against the local one,
// deletes stale files, downloads added and changed files under a fixed
// concurrency bound, verifies each by size and fingerprint, and commits
// the new manifest in one atomic write.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/pithecene-io/bundlesync/log"
	"github.com/pithecene-io/bundlesync/manifest"
	"github.com/pithecene-io/bundlesync/metrics"
	"github.com/pithecene-io/bundlesync/transport"
)

const (
	// DefaultConcurrency is the number of transfer slots.
	DefaultConcurrency = 5
	// DefaultMaxAttempts bounds fetch-and-verify attempts per file.
	DefaultMaxAttempts = 3
	// DefaultRetryBackoff is the delay before the second attempt; later
	// attempts wait proportionally longer.
	DefaultRetryBackoff = 250 * time.Millisecond

	// unseededRevision marks a cache that has never held content, so any
	// remote revision (including the integral revision 0) is fetched.
	unseededRevision = -1
)

// Config configures an Engine.
type Config struct {
	// CacheDir holds the local manifest and downloaded files.
	CacheDir string
	// SeedDir optionally holds a read-only copy of the content shipped
	// with the application: a manifest and its files.
	SeedDir string
	// AppVersion is the running application version. When it differs
	// from the seed manifest's version the cache is cleared on Initialize.
	AppVersion string
	// Platform, when set, must match the remote manifest.
	Platform manifest.Platform
	// ManifestName is the manifest object name (default filesinfo.dat).
	ManifestName string
	Concurrency  int
	MaxAttempts  int
	RetryBackoff time.Duration
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.ManifestName == "" {
		c.ManifestName = manifest.FileName
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.CacheDir == "" {
		return errors.New("cache dir is required")
	}
	return nil
}

// Engine runs sync rounds against one cache directory.
// Only one round runs at a time.
type Engine struct {
	config    Config
	fetcher   transport.Fetcher
	logger    *log.Logger
	collector *metrics.Collector

	ready    chan struct{}
	initOnce sync.Once
	initErr  error

	downloading atomic.Bool
	state       atomic.Int32
	closed      atomic.Bool

	mu     sync.RWMutex
	local  *manifest.Manifest
	loaded map[string][]byte
	last   *RoundResult
}

// New creates an Engine. Initialize must be called before rounds proceed.
func New(cfg Config, fetcher transport.Fetcher, logger *log.Logger, collector *metrics.Collector) (*Engine, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Engine{
		config:    cfg,
		fetcher:   fetcher,
		logger:    logger,
		collector: collector,
		ready:     make(chan struct{}),
		loaded:    make(map[string][]byte),
	}, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.config
}

// State returns the current round state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) setState(s State) {
	e.state.Store(int32(s))
}

// IsDownloading reports whether a round is in flight.
func (e *Engine) IsDownloading() bool {
	return e.downloading.Load()
}

// LastResult returns the result of the most recent round, or nil.
func (e *Engine) LastResult() *RoundResult {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last
}

func (e *Engine) localPath() string {
	return filepath.Join(e.config.CacheDir, e.config.ManifestName)
}

// Initialize prepares the cache directory and opens the round gate.
//
// When a seed manifest exists and AppVersion differs from its version,
// every file in the cache directory is removed. A missing local manifest
// is then seeded from the seed copy, or written empty when there is no
// seed. Subsequent calls return the first call's result.
func (e *Engine) Initialize(ctx context.Context) error {
	e.initOnce.Do(func() {
		defer close(e.ready)
		e.initErr = e.initialize(ctx)
	})
	return e.initErr
}

func (e *Engine) initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(e.config.CacheDir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	seed, err := e.loadSeed()
	if err != nil {
		return err
	}

	if seed != nil && e.config.AppVersion != "" && seed.AppVersion != e.config.AppVersion {
		e.logger.Info("app version changed, clearing cache", map[string]any{
			"app_version":  e.config.AppVersion,
			"seed_version": seed.AppVersion,
		})
		if err := clearFiles(e.config.CacheDir); err != nil {
			return err
		}
	}

	if _, err := os.Stat(e.localPath()); errors.Is(err, os.ErrNotExist) {
		initial := seed
		if initial == nil {
			initial = manifest.New(e.config.Platform, e.config.AppVersion, unseededRevision)
		}
		if err := manifest.Save(e.localPath(), initial); err != nil {
			return fmt.Errorf("seed local manifest: %w", err)
		}
		e.logger.Debug("local manifest seeded", map[string]any{
			"revision": initial.Revision,
			"files":    len(initial.FileInfos),
		})
	} else if err != nil {
		return err
	}

	local, err := manifest.Load(e.localPath())
	if err != nil {
		return fmt.Errorf("load local manifest: %w", err)
	}
	e.mu.Lock()
	e.local = local
	e.mu.Unlock()
	return nil
}

func (e *Engine) loadSeed() (*manifest.Manifest, error) {
	if e.config.SeedDir == "" {
		return nil, nil
	}
	seed, err := manifest.Load(filepath.Join(e.config.SeedDir, e.config.ManifestName))
	if errors.Is(err, manifest.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load seed manifest: %w", err)
	}
	return seed, nil
}

// clearFiles removes the regular files directly inside dir.
func clearFiles(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("clear cache: %w", err)
		}
	}
	return nil
}

// Teardown drops cached lookups and closes the fetcher.
func (e *Engine) Teardown() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.mu.Lock()
	e.local = nil
	e.loaded = make(map[string][]byte)
	e.mu.Unlock()
	return e.fetcher.Close()
}

// LocalManifest reads the committed local manifest from disk.
func (e *Engine) LocalManifest() (*manifest.Manifest, error) {
	return manifest.Load(e.localPath())
}

// RemoteManifest fetches and decodes the remote manifest.
func (e *Engine) RemoteManifest(ctx context.Context) (*manifest.Manifest, error) {
	data, err := e.fetcher.Fetch(ctx, e.config.ManifestName)
	if err != nil {
		return nil, err
	}
	remote, err := manifest.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	if e.config.Platform != manifest.PlatformUnknown && remote.Platform != e.config.Platform {
		return nil, fmt.Errorf("%w: remote %s, local %s", ErrPlatformMismatch, remote.Platform, e.config.Platform)
	}
	return remote, nil
}

// Plan is a dry-run view of the next round.
type Plan struct {
	Local  *manifest.Manifest
	Remote *manifest.Manifest
	Diff   *manifest.DiffResult
	// Current is true when the revisions match and no round would
	// transfer anything.
	Current bool
}

// Plan fetches the remote manifest and diffs it against the local one
// without touching the cache.
func (e *Engine) Plan(ctx context.Context) (*Plan, error) {
	return e.plan(ctx, e.incremental)
}

func (e *Engine) plan(ctx context.Context, fn planner) (*Plan, error) {
	local, err := e.LocalManifest()
	if errors.Is(err, manifest.ErrNotExist) {
		local = manifest.New(e.config.Platform, e.config.AppVersion, unseededRevision)
	} else if err != nil {
		return nil, err
	}
	remote, err := e.RemoteManifest(ctx)
	if err != nil {
		return nil, err
	}
	diff, skip, err := fn(local, remote)
	if err != nil {
		return nil, err
	}
	p := &Plan{Local: local, Remote: remote, Diff: diff}
	if skip {
		p.Current = true
		p.Diff = &manifest.DiffResult{}
	}
	return p, nil
}

// planner computes the diff for a round. skip reports an up-to-date cache
// that needs no diff at all.
type planner func(local, remote *manifest.Manifest) (diff *manifest.DiffResult, skip bool, err error)

// incremental trusts the local manifest and short-circuits on equal
// revisions.
func (e *Engine) incremental(local, remote *manifest.Manifest) (*manifest.DiffResult, bool, error) {
	if local.Revision == remote.Revision {
		return nil, true, nil
	}
	return manifest.Diff(local, remote), false, nil
}

// Sync runs one incremental round. It waits for Initialize to complete
// and returns ErrSyncInProgress when another round is running.
//
// A non-nil error means the round aborted and the local manifest is
// unchanged. Partial rounds return a result with OutcomePartial and a nil
// error.
func (e *Engine) Sync(ctx context.Context, progress ProgressFunc) (*RoundResult, error) {
	return e.run(ctx, progress, e.incremental)
}

func (e *Engine) run(ctx context.Context, progress ProgressFunc, plan planner) (*RoundResult, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	if !e.downloading.CompareAndSwap(false, true) {
		return nil, ErrSyncInProgress
	}
	defer e.downloading.Store(false)

	select {
	case <-e.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if e.initErr != nil {
		return nil, fmt.Errorf("engine not initialized: %w", e.initErr)
	}

	result := &RoundResult{
		RoundID:        uuid.NewString(),
		RemoteRevision: -1,
		Failed:         make(map[string]error),
		StartedAt:      time.Now(),
	}
	logger := e.logger.With(map[string]any{"round_id": result.RoundID})
	e.collector.IncRoundStarted()

	err := e.round(ctx, logger, result, progress, plan)
	result.FinishedAt = time.Now()
	if err != nil {
		e.setState(StateFailed)
		result.Outcome = OutcomeFailed
		result.CommittedRevision = result.LocalRevision
		logger.Error("sync round aborted", map[string]any{
			"error": err.Error(),
			"state": "failed",
		})
	} else {
		logger.Info("sync round finished", map[string]any{
			"outcome":     string(result.Outcome),
			"revision":    result.CommittedRevision,
			"downloaded":  result.Downloaded,
			"deleted":     result.Deleted,
			"failed":      len(result.Failed),
			"duration_ms": result.Duration().Milliseconds(),
		})
	}
	e.collector.RecordOutcome(string(result.Outcome))

	if stateErr := SaveState(e.config.CacheDir, NewSyncState(result, err)); stateErr != nil {
		logger.Warn("failed to record sync state", map[string]any{"error": stateErr.Error()})
	}

	e.mu.Lock()
	e.last = result
	e.mu.Unlock()
	e.setState(StateIdle)
	return result, err
}

func (e *Engine) round(ctx context.Context, logger *log.Logger, result *RoundResult, progress ProgressFunc, plan planner) error {
	local, err := e.LocalManifest()
	if errors.Is(err, manifest.ErrNotExist) {
		local = manifest.New(e.config.Platform, e.config.AppVersion, unseededRevision)
	} else if err != nil {
		return fmt.Errorf("load local manifest: %w", err)
	}
	result.LocalRevision = local.Revision

	e.setState(StateFetchingRemoteManifest)
	remote, err := e.RemoteManifest(ctx)
	if err != nil {
		return fmt.Errorf("fetch remote manifest: %w", err)
	}
	result.RemoteRevision = remote.Revision

	e.setState(StateDiffing)
	diff, skip, err := plan(local, remote)
	if err != nil {
		return err
	}
	if skip {
		result.Outcome = OutcomeCurrent
		result.CommittedRevision = local.Revision
		logger.Debug("local revision is current", map[string]any{"revision": local.Revision})
		return nil
	}
	result.ToAdd = len(diff.ToAdd)
	result.ToUpdate = len(diff.ToUpdate)
	result.ToRemove = len(diff.ToRemove)

	if diff.Empty() {
		e.setState(StateCommitting)
		if err := e.commit(remote); err != nil {
			return err
		}
		result.Outcome = OutcomeCurrent
		result.CommittedRevision = remote.Revision
		return nil
	}

	logger.Info("content changes found", map[string]any{
		"local_revision":  local.Revision,
		"remote_revision": remote.Revision,
		"add":             result.ToAdd,
		"update":          result.ToUpdate,
		"remove":          result.ToRemove,
		"download_bytes":  diff.DownloadSize(),
	})

	e.setState(StateDeleting)
	e.deleteStale(logger, diff.ToRemove, result)

	e.setState(StateDownloading)
	e.download(ctx, logger, diff.Transfers(), progress, result)
	if err := ctx.Err(); err != nil {
		return err
	}

	e.setState(StateCommitting)
	committed := remote
	result.Outcome = OutcomeSuccess
	if len(result.Failed) > 0 {
		committed = partialManifest(local, remote, result.Failed)
		result.Outcome = OutcomePartial
		logger.Warn("some files failed, keeping previous revision", map[string]any{
			"failed":   result.FailedPaths(),
			"revision": committed.Revision,
		})
	}
	if err := e.commit(committed); err != nil {
		return err
	}
	result.CommittedRevision = committed.Revision
	return nil
}

// partialManifest is the manifest committed when some transfers failed:
// the remote content minus the failed files, with the local descriptor
// kept for failed updates whose previous version is still on disk, at
// the local revision so the next round diffs again.
func partialManifest(local, remote *manifest.Manifest, failed map[string]error) *manifest.Manifest {
	excluded := make(map[string]struct{}, len(failed))
	for p := range failed {
		excluded[p] = struct{}{}
	}
	m := remote.Without(excluded)
	for p := range failed {
		if prev, ok := local.Lookup(p); ok {
			m.FileInfos = append(m.FileInfos, prev)
		}
	}
	m.SortByPath()
	m.FileCount = len(m.FileInfos)
	m.Revision = local.Revision
	return m
}

func (e *Engine) commit(m *manifest.Manifest) error {
	if err := manifest.Save(e.localPath(), m); err != nil {
		return fmt.Errorf("commit manifest: %w", err)
	}
	e.mu.Lock()
	e.local = m
	e.mu.Unlock()
	return nil
}

// deleteStale removes files no longer present remotely. Absent files are
// not an error; other failures are logged and the round continues.
func (e *Engine) deleteStale(logger *log.Logger, files []manifest.FileDescriptor, result *RoundResult) {
	for _, fd := range files {
		path, err := e.cachePath(fd.Path)
		if err != nil {
			logger.Warn("skipping unsafe path", map[string]any{"path": fd.Path})
			continue
		}
		err = os.Remove(path)
		switch {
		case err == nil:
			result.Deleted++
			e.collector.IncDeleted()
			e.forget(fd.Path)
			logger.Debug("removed stale file", map[string]any{"path": fd.Path})
		case errors.Is(err, os.ErrNotExist):
		default:
			logger.Warn("failed to remove stale file", map[string]any{
				"path":  fd.Path,
				"error": err.Error(),
			})
		}
	}
}

// cachePath maps a manifest path into the cache directory, rejecting
// paths that would escape it.
func (e *Engine) cachePath(p string) (string, error) {
	local := filepath.FromSlash(p)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, p)
	}
	return filepath.Join(e.config.CacheDir, local), nil
}
