package main

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/grapio/internal/ui"
)

// helpRule styles the submatches of one pattern in cobra's usage text.
// style receives the full submatch slice and returns the replacement.
type helpRule struct {
	re    *regexp.Regexp
	style func(m []string) string
}

var helpRules = []helpRule{
	// Group headers such as "Flags:" or "Global Flags:".
	{regexp.MustCompile(`(?m)^([A-Z][^\n]*:)[ \t]*$`), func(m []string) string {
		return ui.RenderAccent(strings.TrimSpace(m[1]))
	}},
	// Command names listed under a group.
	{regexp.MustCompile(`(?m)^(  )(\S+)(  )`), func(m []string) string {
		return m[1] + ui.RenderCommand(m[2]) + m[3]
	}},
	// Flag value types, e.g. "--server string".
	{regexp.MustCompile(`(--?\S+\s+)(string|int|duration|stringArray)\b`), func(m []string) string {
		return m[1] + ui.RenderMuted(m[2])
	}},
	{regexp.MustCompile(`\(default [^)]*\)`), func(m []string) string {
		return ui.RenderMuted(m[0])
	}},
}

// colorizedHelpFunc renders cobra's usage through helpRules when stdout
// supports color.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		if !ui.ShouldUseColor() {
			_ = cmd.Usage()
			return
		}
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(out)
		fmt.Fprint(out, colorizeHelp(buf.String()))
	}
}

func colorizeHelp(s string) string {
	for _, r := range helpRules {
		s = r.re.ReplaceAllStringFunc(s, func(match string) string {
			return r.style(r.re.FindStringSubmatch(match))
		})
	}
	return s
}
