// Package ui holds the terminal presentation helpers for zyrod's
// command output: TTY detection and the small ANSI palette used by the
// token and export commands.
package ui

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// IsTerminal reports whether f is attached to a terminal. zyrod uses
// it to pick human-readable log output over JSON when run by hand.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// ShouldUseColor returns true when ANSI colors should be used on
// stdout. It respects NO_COLOR, CLICOLOR_FORCE, CLICOLOR, and TTY
// detection, in that order.
func ShouldUseColor() bool {
	// https://no-color.org — any non-empty value disables color.
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	// CLICOLOR_FORCE=1 forces color even without a TTY.
	if strings.TrimSpace(os.Getenv("CLICOLOR_FORCE")) == "1" {
		return true
	}
	// CLICOLOR=0 explicitly disables color.
	if strings.TrimSpace(os.Getenv("CLICOLOR")) == "0" {
		return false
	}
	return IsTerminal(os.Stdout)
}
