// printer.go renders the status lines and small tables the CLI prints for the operator.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
)

// Printer writes human-facing output. Color is only used on terminals.
type Printer struct {
	Out   io.Writer
	Color bool
	Width int
}

// NewPrinter returns a printer that colors output when w is a terminal.
func NewPrinter(w io.Writer) *Printer {
	p := &Printer{Out: w, Color: IsTerminalWriter(w) && !color.NoColor}
	if cols, ok := TerminalWidth(w); ok {
		p.Width = cols
	}
	return p
}

// Step announces the start of a named step.
func (p *Printer) Step(name string) {
	fmt.Fprintf(p.Out, "%s %s\n", p.paint(color.FgCyan, "==>"), name)
}

// Infof prints a plain line.
func (p *Printer) Infof(format string, args ...interface{}) {
	fmt.Fprintf(p.Out, format+"\n", args...)
}

// Warnf prints a highlighted notice.
func (p *Printer) Warnf(format string, args ...interface{}) {
	fmt.Fprintf(p.Out, "%s %s\n", p.paint(color.FgYellow, "warning:"), fmt.Sprintf(format, args...))
}

// Status prints "<label> <status> <detail>" with the label padded to labelWidth columns.
func (p *Printer) Status(label string, labelWidth int, status, detail string) {
	line := PadRight(label, labelWidth) + "  " + p.StatusWord(status)
	if detail != "" {
		line += "  " + detail
	}
	if p.Width > 0 && !p.Color {
		line = Truncate(line, p.Width)
	}
	fmt.Fprintln(p.Out, line)
}

// StatusWord colors well-known status words.
func (p *Printer) StatusWord(status string) string {
	switch strings.ToLower(status) {
	case "succeeded", "ok", "running", "uploaded", "created", "pushed":
		return p.paint(color.FgGreen, status)
	case "failed", "error":
		return p.paint(color.FgRed, status)
	case "skipped", "stopped", "incomplete", "manual":
		return p.paint(color.FgYellow, status)
	default:
		return p.paint(color.FgHiBlack, status)
	}
}

// Table prints rows aligned on display width. The first row is the header.
func (p *Printer) Table(rows [][]string) {
	if len(rows) == 0 {
		return
	}
	widths := make([]int, 0)
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}
	for r, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			if i == len(row)-1 {
				cells[i] = cell
			} else {
				cells[i] = PadRight(cell, widths[i])
			}
			if r == 0 {
				cells[i] = p.paint(color.Bold, cells[i])
			}
		}
		fmt.Fprintln(p.Out, strings.TrimRight(strings.Join(cells, "  "), " "))
	}
}

func (p *Printer) paint(attr color.Attribute, s string) string {
	if !p.Color {
		return s
	}
	c := color.New(attr)
	c.EnableColor()
	return c.Sprint(s)
}

// PadRight pads s with spaces to width display columns.
func PadRight(s string, width int) string {
	w := runewidth.StringWidth(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

// Truncate shortens s to width display columns, marking the cut with an ellipsis.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}
