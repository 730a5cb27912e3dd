// Package metrics provides per-process counters for build runs and sync rounds.
//
// The Collector is a leaf package with no internal dependencies. Callers
// hold a *Collector and increment it as work settles; the CLI reads a
// Snapshot at exit for rendering.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Build lifecycle
	BuildsStarted   int64
	BuildsCompleted int64
	BuildsFailed    int64

	// Build folders
	FoldersPackaged   int64
	FoldersReused     int64
	FoldersSkipped    int64
	PackagingFailures int64

	// Sync rounds, by outcome
	RoundsStarted   int64
	RoundsSucceeded int64
	RoundsCurrent   int64
	RoundsPartial   int64
	RoundsFailed    int64

	// Sync transfers
	FilesDownloaded   int64
	FilesDeleted      int64
	BytesDownloaded   int64
	TransferRetries   int64
	TransferFailures  int64
	IntegrityFailures int64

	// Publishing
	PublishSuccess int64
	PublishFailure int64

	// Dimensions (informational, set at construction)
	Platform string
	Backend  string
	RunID    string
}

// Collector accumulates counters.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex
	s  Snapshot
}

// NewCollector creates a Collector with dimension labels.
// backend names the transport or storage backend ("http", "s3", "fs").
func NewCollector(platform, backend, runID string) *Collector {
	return &Collector{s: Snapshot{Platform: platform, Backend: backend, RunID: runID}}
}

func (c *Collector) add(field func(*Snapshot) *int64, n int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	*field(&c.s) += n
	c.mu.Unlock()
}

// --- Build lifecycle ---

// IncBuildStarted records a build run start.
func (c *Collector) IncBuildStarted() {
	c.add(func(s *Snapshot) *int64 { return &s.BuildsStarted }, 1)
}

// IncBuildCompleted records a build run that wrote its manifest.
func (c *Collector) IncBuildCompleted() {
	c.add(func(s *Snapshot) *int64 { return &s.BuildsCompleted }, 1)
}

// IncBuildFailed records a build run aborted before publishing.
func (c *Collector) IncBuildFailed() {
	c.add(func(s *Snapshot) *int64 { return &s.BuildsFailed }, 1)
}

// IncFolderPackaged records a folder handed to the packager.
func (c *Collector) IncFolderPackaged() {
	c.add(func(s *Snapshot) *int64 { return &s.FoldersPackaged }, 1)
}

// IncFolderReused records a folder whose previous artifact was copied forward.
func (c *Collector) IncFolderReused() {
	c.add(func(s *Snapshot) *int64 { return &s.FoldersReused }, 1)
}

// IncFolderSkipped records a folder with no eligible files.
func (c *Collector) IncFolderSkipped() {
	c.add(func(s *Snapshot) *int64 { return &s.FoldersSkipped }, 1)
}

// IncPackagingFailure records a packager error.
func (c *Collector) IncPackagingFailure() {
	c.add(func(s *Snapshot) *int64 { return &s.PackagingFailures }, 1)
}

// --- Sync rounds ---

// IncRoundStarted records a sync round start.
func (c *Collector) IncRoundStarted() {
	c.add(func(s *Snapshot) *int64 { return &s.RoundsStarted }, 1)
}

// RecordOutcome records the outcome of a finished round.
// Unknown outcomes are ignored.
func (c *Collector) RecordOutcome(outcome string) {
	switch outcome {
	case "success":
		c.add(func(s *Snapshot) *int64 { return &s.RoundsSucceeded }, 1)
	case "current":
		c.add(func(s *Snapshot) *int64 { return &s.RoundsCurrent }, 1)
	case "partial":
		c.add(func(s *Snapshot) *int64 { return &s.RoundsPartial }, 1)
	case "failed":
		c.add(func(s *Snapshot) *int64 { return &s.RoundsFailed }, 1)
	}
}

// --- Sync transfers ---

// AddDownloaded records an accepted file of n bytes.
func (c *Collector) AddDownloaded(n int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.s.FilesDownloaded++
	c.s.BytesDownloaded += n
	c.mu.Unlock()
}

// IncDeleted records a removed cache file.
func (c *Collector) IncDeleted() {
	c.add(func(s *Snapshot) *int64 { return &s.FilesDeleted }, 1)
}

// IncRetry records a transfer attempt after the first.
func (c *Collector) IncRetry() {
	c.add(func(s *Snapshot) *int64 { return &s.TransferRetries }, 1)
}

// IncTransferFailure records a file that exhausted its attempts.
func (c *Collector) IncTransferFailure() {
	c.add(func(s *Snapshot) *int64 { return &s.TransferFailures }, 1)
}

// IncIntegrityFailure records a size or hash mismatch on a fetched file.
func (c *Collector) IncIntegrityFailure() {
	c.add(func(s *Snapshot) *int64 { return &s.IntegrityFailures }, 1)
}

// --- Publishing ---
// Publish counters are per-object, not per-run.

// IncPublishSuccess records a successful store write.
func (c *Collector) IncPublishSuccess() {
	c.add(func(s *Snapshot) *int64 { return &s.PublishSuccess }, 1)
}

// IncPublishFailure records a failed store write.
func (c *Collector) IncPublishFailure() {
	c.add(func(s *Snapshot) *int64 { return &s.PublishFailure }, 1)
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all counters.
// The Collector can continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s
}
