package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/bundlesync/cli/reader"
	"github.com/pithecene-io/bundlesync/cli/render"
	"github.com/pithecene-io/bundlesync/cli/tui"
)

// StatusCommand returns the status command.
// Status reads the local cache only; it never contacts the remote.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the local cache revision, file presence and last round",
		Flags: withFlags(ConfigFlags(), []cli.Flag{
			&cli.StringFlag{
				Name:  "cache-dir",
				Usage: "Local cache directory (sync.cache_dir)",
			},
			&cli.StringFlag{
				Name:  "seed-dir",
				Usage: "Read-only seed directory (sync.seed_dir)",
			},
			&cli.BoolFlag{
				Name:  "verify",
				Usage: "Fingerprint every file and report corrupt ones",
			},
		}, ReadOnlyFlags()),
		Action: statusAction,
	}
}

func statusAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return configError(err)
	}
	e, err := loadEnv(c, "status")
	if err != nil {
		return err
	}
	s := &e.cfg.Sync
	setString(c, "cache-dir", &s.CacheDir)
	setString(c, "seed-dir", &s.SeedDir)
	if s.CacheDir == "" {
		return cli.Exit("config error: sync.cache_dir: is required", exitConfig)
	}

	resp, err := reader.Status(s.CacheDir, s.SeedDir, s.ManifestName, c.Bool("verify"))
	if err != nil {
		return exitError("status failed", err)
	}
	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewStatus, resp)
	}
	return r.Render(resp)
}

// HashCommand returns the hash command.
// Hash prints content fingerprints of files and directories.
func HashCommand() *cli.Command {
	return &cli.Command{
		Name:      "hash",
		Usage:     "Print content fingerprints of files or directories",
		ArgsUsage: "<path>...",
		Flags:     ReadOnlyFlags(),
		Action:    hashAction,
	}
}

func hashAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("at least one path required", exitFailed)
	}
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for hash command", exitFailed)
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return configError(err)
	}

	items, err := reader.Hash(c.Args().Slice())
	if err != nil {
		return exitError("hash failed", err)
	}
	return r.Render(items)
}
