package ui

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// ShouldUseColor reports whether ANSI colors should be written to stdout.
func ShouldUseColor() bool {
	return colorFor(os.Getenv, term.IsTerminal(int(os.Stdout.Fd())))
}

// colorFor applies NO_COLOR, CLICOLOR_FORCE and CLICOLOR in that order, then
// falls back to whether the output is a terminal.
func colorFor(getenv func(string) string, tty bool) bool {
	if getenv("NO_COLOR") != "" {
		return false
	}
	if strings.TrimSpace(getenv("CLICOLOR_FORCE")) == "1" {
		return true
	}
	if strings.TrimSpace(getenv("CLICOLOR")) == "0" {
		return false
	}
	return tty
}

// Width returns the terminal width of stdout, or fallback when stdout is not
// a terminal.
func Width(fallback int) int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return fallback
	}
	return w
}
