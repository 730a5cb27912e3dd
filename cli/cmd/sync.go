package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/bundlesync/adapter"
	"github.com/pithecene-io/bundlesync/cli/reader"
	"github.com/pithecene-io/bundlesync/cli/render"
	"github.com/pithecene-io/bundlesync/cli/tui"
	"github.com/pithecene-io/bundlesync/metrics"
	"github.com/pithecene-io/bundlesync/syncer"
)

func syncFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "remote",
			Usage: "Remote content root URL for the http source (sync.remote_url)",
		},
		&cli.StringFlag{
			Name:  "source",
			Usage: "Content source: http, s3 or store (sync.source)",
		},
		&cli.StringFlag{
			Name:  "cache-dir",
			Usage: "Local cache directory (sync.cache_dir)",
		},
		&cli.StringFlag{
			Name:  "seed-dir",
			Usage: "Read-only seed directory shipped with the app (sync.seed_dir)",
		},
		&cli.StringFlag{
			Name:  "mode",
			Usage: "Sync mode: bundle or catalog (sync.mode)",
		},
		&cli.IntFlag{
			Name:  "concurrency",
			Usage: "Concurrent transfers (sync.concurrency)",
		},
	}
}

func applySyncFlags(c *cli.Context, e *env) error {
	s := &e.cfg.Sync
	setString(c, "remote", &s.RemoteURL)
	setString(c, "source", &s.Source)
	setString(c, "cache-dir", &s.CacheDir)
	setString(c, "seed-dir", &s.SeedDir)
	setString(c, "mode", &s.Mode)
	setInt(c, "concurrency", &s.Concurrency)
	return e.cfg.ValidateSync()
}

// SyncCommand returns the sync command.
// Sync runs one round against the remote content root.
func SyncCommand() *cli.Command {
	return &cli.Command{
		Name:   "sync",
		Usage:  "Synchronize the local cache with the remote content root",
		Flags:  withFlags(ConfigFlags(), syncFlags(), ReadOnlyFlags()),
		Action: syncAction,
	}
}

func syncAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return configError(err)
	}
	e, err := loadEnv(c, "sync")
	if err != nil {
		return err
	}
	if err := applySyncFlags(c, e); err != nil {
		return configError(err)
	}
	if err := e.cfg.ValidateAdapter(); err != nil {
		return configError(err)
	}
	mode, err := syncer.ParseMode(e.cfg.Sync.Mode)
	if err != nil {
		return configError(err)
	}

	notifier, err := newNotifier(e.cfg, e.logger)
	if err != nil {
		return configError(err)
	}
	defer func() { _ = notifier.Close() }()

	ctx, stop := signalContext(c)
	defer stop()

	collector := metrics.NewCollector(e.cfg.Sync.Platform, strings.ToLower(e.cfg.Sync.Source), "")
	engine, err := newEngine(ctx, e, collector)
	if err != nil {
		return exitError("sync failed", err)
	}
	defer func() { _ = engine.Teardown() }()

	backend, err := syncer.NewBackend(mode, engine)
	if err != nil {
		return configError(err)
	}

	useTUI := c.Bool("tui")
	if useTUI && !isTerminal(os.Stdout) {
		e.logger.Sugar().Warnf("--tui requires a terminal; continuing without it")
		useTUI = false
	}

	var result *syncer.RoundResult
	if useTUI {
		result, err = tui.RunSync(ctx, "Syncing "+e.cfg.Sync.CacheDir, func(ctx context.Context, progress syncer.ProgressFunc) (*syncer.RoundResult, error) {
			return backend.Synchronize(ctx, progress)
		})
	} else {
		result, err = backend.Synchronize(ctx, nil)
	}

	if result != nil {
		notifier.Notify(context.WithoutCancel(ctx), completedEvent(e, result))
		logSnapshot(e, collector)
		if !useTUI {
			if rerr := r.Render(reader.Sync(mode, result)); rerr != nil {
				return rerr
			}
		}
	}
	if err != nil {
		return exitError("sync failed", err)
	}
	if code := outcomeToExitCode(result.Outcome); code != exitSuccess {
		return cli.Exit(fmt.Sprintf("sync %s: %d file(s) not committed", result.Outcome, len(result.Failed)), code)
	}
	return nil
}

func completedEvent(e *env, r *syncer.RoundResult) *adapter.Event {
	ev := adapter.NewEvent(adapter.EventSyncCompleted, r.RoundID, r.Duration())
	ev.Platform = e.cfg.Sync.Platform
	ev.AppVersion = e.cfg.Sync.AppVersion
	ev.Revision = r.CommittedRevision
	ev.Outcome = string(r.Outcome)
	ev.Location = e.cfg.Sync.CacheDir
	ev.FileCount = r.Downloaded
	ev.Bytes = r.DownloadedBytes
	ev.FailedFiles = len(r.Failed)
	return ev
}

// DiffCommand returns the diff command.
// Diff fetches the remote manifest and reports what a round would do
// without transferring any file.
func DiffCommand() *cli.Command {
	return &cli.Command{
		Name:   "diff",
		Usage:  "Show what the next sync round would transfer",
		Flags:  withFlags(ConfigFlags(), syncFlags(), ReadOnlyFlags()),
		Action: diffAction,
	}
}

func diffAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return configError(err)
	}
	e, err := loadEnv(c, "diff")
	if err != nil {
		return err
	}
	if err := applySyncFlags(c, e); err != nil {
		return configError(err)
	}
	mode, err := syncer.ParseMode(e.cfg.Sync.Mode)
	if err != nil {
		return configError(err)
	}

	ctx, stop := signalContext(c)
	defer stop()

	engine, err := newEngine(ctx, e, nil)
	if err != nil {
		return exitError("diff failed", err)
	}
	defer func() { _ = engine.Teardown() }()

	backend, err := syncer.NewBackend(mode, engine)
	if err != nil {
		return configError(err)
	}
	plan, err := backend.Plan(ctx)
	if err != nil {
		return exitError("diff failed", err)
	}
	resp := reader.Diff(plan)
	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewDiff, resp)
	}
	return r.Render(resp)
}
