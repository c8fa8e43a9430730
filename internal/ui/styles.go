// Package ui styles CLI output with ANSI 256 colors.
package ui

import "fmt"

// Style is an ANSI 256 foreground color.
type Style int

// Palette used by the CLI.
const (
	Accent  Style = 74  // section headers, flag keys
	Command Style = 250 // command names
	Muted   Style = 245 // types, defaults, secondary text
	OK      Style = 114 // successful writes
	Error   Style = 203 // rejected writes and errors
)

var noColor bool

// Render returns s in style st, or s unchanged when color is disabled.
func (st Style) Render(s string) string {
	if noColor || s == "" {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", int(st), s)
}

func RenderAccent(s string) string  { return Accent.Render(s) }
func RenderCommand(s string) string { return Command.Render(s) }
func RenderMuted(s string) string   { return Muted.Render(s) }
func RenderOK(s string) string      { return OK.Render(s) }
func RenderError(s string) string   { return Error.Render(s) }

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
