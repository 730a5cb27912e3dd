package cmd

import (
	"runtime"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/bundlesync/cli/render"
	"github.com/pithecene-io/bundlesync/manifest"
	"github.com/pithecene-io/bundlesync/types"
)

// VersionResponse is the response for the version command.
type VersionResponse struct {
	Version      string `json:"version"`
	Commit       string `json:"commit"`
	GoVersion    string `json:"go_version"`
	ManifestFile string `json:"manifest_file"`
}

// VersionCommand returns the version command.
// It reads no config and touches no cache.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Show version information",
		Flags:  ReadOnlyFlags(),
		Action: versionAction(commit),
	}
}

func versionAction(commit string) cli.ActionFunc {
	return func(c *cli.Context) error {
		r, err := render.NewRenderer(c)
		if err != nil {
			return configError(err)
		}

		if c.Bool("tui") {
			return cli.Exit("--tui is not supported for version command", exitFailed)
		}

		return r.Render(VersionResponse{
			Version:      types.Version,
			Commit:       commit,
			GoVersion:    runtime.Version(),
			ManifestFile: manifest.FileName,
		})
	}
}

// Commands returns every bundlesync command.
func Commands(commit string) []*cli.Command {
	return []*cli.Command{
		BuildCommand(),
		PublishCommand(),
		SyncCommand(),
		DiffCommand(),
		StatusCommand(),
		HashCommand(),
		VersionCommand(commit),
	}
}
