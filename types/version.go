// Package types holds values shared by every bundlesync component.
package types

// Version is the canonical project version, reported by the version
// command and the --version flag.
const Version = "0.4.0"
