package cmd

import (
	"fmt"
	"io"
	"os"
)

// ---------------------------------------------------------------------------
// Pretty printing
// ---------------------------------------------------------------------------

// printer writes human output, coloured only when going to a terminal-like
// stdout.
type printer struct {
	w     io.Writer
	color bool
}

func newPrinter(w io.Writer) *printer {
	color := false
	if f, ok := w.(*os.File); ok && f == os.Stdout {
		color = os.Getenv("NO_COLOR") == "" && os.Getenv("TERM") != "dumb"
	}
	return &printer{w: w, color: color}
}

func (p *printer) paint(code, s string) string {
	if !p.color {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

func (p *printer) printStep(msg string) {
	fmt.Fprintf(p.w, "\n%s\n", p.paint("1", msg))
}

func (p *printer) printSuccess(msg string) {
	fmt.Fprintf(p.w, "%s %s\n", p.paint("1;32", "✓"), msg)
}

func (p *printer) printWarning(msg string) {
	fmt.Fprintf(p.w, "%s %s\n", p.paint("1;33", "⚠"), msg)
}

func (p *printer) printInfo(msg string) {
	fmt.Fprintf(p.w, "%s %s\n", p.paint("1;34", "ℹ"), msg)
}
