package tui

import (
	"fmt"
	"slices"
)

// Read-only views with a TUI rendering.
const (
	ViewStatus = "status"
	ViewDiff   = "diff"
)

// Run starts the read-only TUI for viewType.
// Returns an error if the view type doesn't support TUI.
func Run(viewType string, data any) error {
	if !IsTUISupported(viewType) {
		return fmt.Errorf("TUI mode is not supported for %s", viewType)
	}
	return RunViewTUI(viewType, data)
}

// IsTUISupported returns true if the view type supports TUI mode.
func IsTUISupported(viewType string) bool {
	return slices.Contains(SupportedTUIViews(), viewType)
}

// SupportedTUIViews returns a list of view types that support TUI.
func SupportedTUIViews() []string {
	return []string{ViewStatus, ViewDiff}
}
