package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/bundlesync/metrics"
)

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	parent := c.Context
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// logSnapshot writes the run's counters at debug level.
func logSnapshot(e *env, collector *metrics.Collector) {
	s := collector.Snapshot()
	e.logger.Debug("metrics", map[string]any{
		"builds_completed":   s.BuildsCompleted,
		"folders_packaged":   s.FoldersPackaged,
		"folders_reused":     s.FoldersReused,
		"folders_skipped":    s.FoldersSkipped,
		"rounds_started":     s.RoundsStarted,
		"files_downloaded":   s.FilesDownloaded,
		"files_deleted":      s.FilesDeleted,
		"bytes_downloaded":   s.BytesDownloaded,
		"transfer_retries":   s.TransferRetries,
		"transfer_failures":  s.TransferFailures,
		"integrity_failures": s.IntegrityFailures,
		"publish_success":    s.PublishSuccess,
		"publish_failure":    s.PublishFailure,
		"platform":           s.Platform,
		"backend":            s.Backend,
	})
}
