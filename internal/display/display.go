// Package display prints to a plain terminal for the non-interactive
// commands and owns code highlighting shared with the TUI.
package display

import (
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	Reset   = "\033[0m"
	Bold    = "\033[1m"
	Dim     = "\033[2m"
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	White   = "\033[37m"
	Gray    = "\033[90m"
)

// Printer writes status lines, coloured when the destination is a terminal.
type Printer struct {
	out   io.Writer
	err   io.Writer
	color bool
}

// NewPrinter returns a printer. Errors go to errOut.
func NewPrinter(out, errOut io.Writer, color bool) *Printer {
	return &Printer{out: out, err: errOut, color: color}
}

// Color reports whether ANSI sequences are emitted.
func (p *Printer) Color() bool { return p.color }

// Paint wraps text in an ANSI code when colour is on.
func (p *Printer) Paint(code, text string) string {
	if !p.color || code == "" {
		return text
	}
	return code + text + Reset
}

func (p *Printer) Header(text string) {
	fmt.Fprintf(p.out, "\n%s\n", p.Paint(Bold+Cyan, text))
	fmt.Fprintln(p.out, strings.Repeat("─", min(len(text)+4, 80)))
}

func (p *Printer) Success(text string) {
	fmt.Fprintf(p.out, "%s %s\n", p.Paint(Green, "✓"), text)
}

func (p *Printer) Error(text string) {
	fmt.Fprintf(p.err, "%s %s\n", p.Paint(Red, "✗"), text)
}

func (p *Printer) Warn(text string) {
	fmt.Fprintf(p.out, "%s %s\n", p.Paint(Yellow, "!"), text)
}

// Info prints an aligned label/value pair.
func (p *Printer) Info(label, value string) {
	fmt.Fprintf(p.out, "  %s %s\n", p.Paint(Dim, fmt.Sprintf("%-20s", label)), value)
}

// Line prints text unchanged.
func (p *Printer) Line(text string) {
	fmt.Fprintln(p.out, text)
}

// KindLabel colours a transcript entry kind for listings.
func (p *Printer) KindLabel(kind string) string {
	colors := map[string]string{
		"assistant": Green,
		"user":      Cyan,
		"info":      Blue,
		"error":     Red,
		"help":      Magenta,
	}
	if c, ok := colors[kind]; ok {
		return p.Paint(c, kind)
	}
	return p.Paint(Gray, kind)
}

// FormatTime renders a timestamp in local time.
func FormatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}
