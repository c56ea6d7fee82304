package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

type severity int

const (
	sevInfo severity = iota
	sevOK
	sevWarn
	sevError
)

var severityStyle = map[severity]struct{ label, color string }{
	sevInfo:  {"INFO", "\x1b[34m"},
	sevOK:    {"OK", "\x1b[32m"},
	sevWarn:  {"WARN", "\x1b[33m"},
	sevError: {"ERROR", "\x1b[31m"},
}

const colorReset = "\x1b[0m"

// printer writes human output for a command. Colour is used only when stdout
// is a terminal.
type printer struct {
	w     io.Writer
	color bool
}

func newPrinter(cmd *cobra.Command) printer {
	w := cmd.OutOrStdout()
	return printer{w: w, color: isTerminal(w)}
}

func (p printer) paint(color, text string) string {
	if !p.color || color == "" {
		return text
	}
	return color + text + colorReset
}

func (p printer) heading(title string) {
	title = "== " + strings.TrimSpace(title) + " =="
	fmt.Fprintln(p.w, p.paint(severityStyle[sevInfo].color, title))
	fmt.Fprintln(p.w, p.paint(severityStyle[sevInfo].color, strings.Repeat("-", len(title))))
}

// status prints "  Label:   [OK] detail" with the label column padded.
func (p printer) status(label string, sev severity, detail string) {
	style := severityStyle[sev]
	text := "[" + style.label + "]"
	if detail != "" {
		text += " " + detail
	}
	fmt.Fprintln(p.w, p.paint(style.color, fmt.Sprintf("  %-24s %s", label+":", text)))
}

func (p printer) json(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
