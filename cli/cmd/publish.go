package cmd

import (
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/bundlesync/adapter"
	"github.com/pithecene-io/bundlesync/cli/reader"
	"github.com/pithecene-io/bundlesync/cli/render"
	"github.com/pithecene-io/bundlesync/metrics"
	"github.com/pithecene-io/bundlesync/storage"
)

// PublishCommand returns the publish command.
// Publish uploads a build output directory to the configured store,
// artifacts first and the manifest last.
func PublishCommand() *cli.Command {
	return &cli.Command{
		Name:  "publish",
		Usage: "Upload a build output to the content store",
		Flags: withFlags(ConfigFlags(), []cli.Flag{
			&cli.StringFlag{
				Name:  "dir",
				Usage: "Build output directory (default: resolved from the build section)",
			},
			&cli.StringFlag{
				Name:  "backend",
				Usage: "Storage backend: fs or s3 (storage.backend)",
			},
			&cli.StringFlag{
				Name:  "path",
				Usage: "Storage path (fs: directory, s3: bucket/prefix) (storage.path)",
			},
			&cli.StringFlag{
				Name:  "prefix",
				Usage: "Key prefix of the content root (storage.prefix)",
			},
			&cli.BoolFlag{
				Name:  "prune",
				Usage: "Delete keys under the prefix the manifest no longer lists (storage.prune)",
			},
		}, ReadOnlyFlags()),
		Action: publishAction,
	}
}

func publishAction(c *cli.Context) error {
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for publish command", exitFailed)
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return configError(err)
	}

	e, err := loadEnv(c, "publish")
	if err != nil {
		return err
	}
	st := &e.cfg.Storage
	setString(c, "backend", &st.Backend)
	setString(c, "path", &st.Path)
	setString(c, "prefix", &st.Prefix)
	setBool(c, "prune", &st.Prune)

	if err := e.cfg.ValidateStorage(); err != nil {
		return configError(err)
	}
	if err := e.cfg.ValidateAdapter(); err != nil {
		return configError(err)
	}

	dir := c.String("dir")
	if dir == "" {
		layout, err := resolveLayout(e.cfg.Build)
		if err != nil {
			return configError(err)
		}
		dir = layout.OutputDir
	}
	prefix, err := contentPrefix(e.cfg)
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

	factory, err := storage.NewStoreFactory(ctx, storageConfig(*st))
	if err != nil {
		return configError(err)
	}
	collector := metrics.NewCollector(e.cfg.Build.Platform, st.Backend, "")
	publisher, err := storage.NewPublisher(factory, e.logger, collector)
	if err != nil {
		return exitError("publish failed", err)
	}

	start := time.Now()
	result, err := publisher.Publish(ctx, dir, storage.PublishOptions{Prefix: prefix, Prune: st.Prune})
	if err != nil {
		return exitError("publish failed", err)
	}

	notifier.Notify(ctx, publishedEvent(prefix, result, time.Since(start)))
	logSnapshot(e, collector)
	return r.Render(reader.Publish(prefix, result))
}

func publishedEvent(prefix string, res *storage.PublishResult, duration time.Duration) *adapter.Event {
	ev := adapter.NewEvent(adapter.EventRevisionPublished, uuid.NewString(), duration)
	ev.Platform = res.Platform
	ev.AppVersion = res.AppVersion
	ev.Revision = res.Revision
	ev.Outcome = "success"
	ev.Location = prefix
	ev.FileCount = len(res.Uploaded) + len(res.Unchanged)
	ev.Bytes = res.Bytes
	return ev
}
