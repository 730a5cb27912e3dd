// Package main provides the bundlesync CLI entrypoint.
//
// Usage:
//
//	bundlesync <command> [options]
//
// Exit codes:
//   - 0: success, or nothing to do
//   - 1: the build, publish or sync round failed
//   - 2: configuration error
//   - 3: partial sync (some files were left out of the commit)
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/bundlesync/cli/cmd"
	"github.com/pithecene-io/bundlesync/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "bundlesync",
		Usage:          "Build, publish and synchronize content bundles",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands:       cmd.Commands(commit),
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already handled the exit for cli.ExitCoder errors.
		os.Exit(1)
	}
}

// exitErrHandler prints err and exits with the code it carries.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	msg, code := exitStatus(err)
	if msg != "" {
		fmt.Fprintln(os.Stderr, msg)
	}
	os.Exit(code)
}

// exitStatus returns the message to print and the process exit code.
// cli.Exit("", N) prints nothing.
func exitStatus(err error) (string, int) {
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg == fmt.Sprintf("exit status %d", code) {
			msg = ""
		}
		return msg, code
	}
	return fmt.Sprintf("Error: %v", err), 1
}
