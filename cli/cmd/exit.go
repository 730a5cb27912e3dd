package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/bundlesync/build"
	"github.com/pithecene-io/bundlesync/cli/config"
	"github.com/pithecene-io/bundlesync/syncer"
)

// Exit codes.
const (
	exitSuccess = 0
	exitFailed  = 1
	exitConfig  = 2
	exitPartial = 3
)

// exitError converts err into a cli.Exit carrying its exit code.
func exitError(prefix string, err error) error {
	if err == nil {
		return nil
	}
	return cli.Exit(fmt.Sprintf("%s: %v", prefix, err), exitCodeFor(err))
}

func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, config.ErrInvalid), errors.Is(err, build.ErrConfig):
		return exitConfig
	default:
		return exitFailed
	}
}

// configError reports a configuration problem detected before any work.
func configError(err error) error {
	return cli.Exit(fmt.Sprintf("config error: %v", err), exitConfig)
}

func outcomeToExitCode(outcome syncer.Outcome) int {
	switch outcome {
	case syncer.OutcomeSuccess, syncer.OutcomeCurrent:
		return exitSuccess
	case syncer.OutcomePartial:
		return exitPartial
	default:
		return exitFailed
	}
}

// isTerminal returns true if f is a TTY.
func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
