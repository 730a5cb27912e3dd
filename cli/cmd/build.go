package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/bundlesync/build"
	"github.com/pithecene-io/bundlesync/cli/reader"
	"github.com/pithecene-io/bundlesync/cli/render"
	"github.com/pithecene-io/bundlesync/manifest"
	"github.com/pithecene-io/bundlesync/metrics"
)

// BuildCommand returns the build command.
// Build packages the configured folders and writes the output manifest.
func BuildCommand() *cli.Command {
	return &cli.Command{
		Name:  "build",
		Usage: "Package source folders into bundles and write the manifest",
		Flags: withFlags(ConfigFlags(), []cli.Flag{
			&cli.StringFlag{
				Name:  "source",
				Usage: "Source root the folder paths are relative to (build.source_root)",
			},
			&cli.StringFlag{
				Name:  "output",
				Usage: "Output root (build.output_root)",
			},
			&cli.StringFlag{
				Name:  "platform",
				Usage: "Target platform: android or ios (build.platform)",
			},
			&cli.StringFlag{
				Name:  "app-version",
				Usage: "Application version (build.app_version)",
			},
			&cli.IntFlag{
				Name:  "revision",
				Usage: "Content revision; below 1 selects the integral layout (build.revision)",
			},
		}, ReadOnlyFlags()),
		Action: buildAction,
	}
}

func buildAction(c *cli.Context) error {
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for build command", exitFailed)
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return configError(err)
	}

	e, err := loadEnv(c, "build")
	if err != nil {
		return err
	}
	b := &e.cfg.Build
	setString(c, "source", &b.SourceRoot)
	setString(c, "output", &b.OutputRoot)
	setString(c, "platform", &b.Platform)
	setString(c, "app-version", &b.AppVersion)
	setInt(c, "revision", &b.Revision)

	if err := e.cfg.ValidateBuild(); err != nil {
		return configError(err)
	}
	platform, err := manifest.ParsePlatform(b.Platform)
	if err != nil {
		return configError(err)
	}
	packager, err := newPackager(b.Packager)
	if err != nil {
		return configError(err)
	}

	folders := make([]build.Folder, len(b.Folders))
	for i, f := range b.Folders {
		folders[i] = build.Folder{Path: f.Path, Label: f.Label}
	}

	collector := metrics.NewCollector(platform.String(), "fs", "")
	builder := build.New(build.Config{
		SourceRoot: b.SourceRoot,
		Folders:    folders,
		OutputRoot: b.OutputRoot,
		Platform:   platform,
		AppVersion: b.AppVersion,
		Revision:   b.Revision,
	}, packager, e.logger, collector)

	ctx, stop := signalContext(c)
	defer stop()

	result, err := builder.Run(ctx)
	if err != nil {
		return exitError("build failed", err)
	}
	logSnapshot(e, collector)
	return r.Render(reader.Build(result))
}
