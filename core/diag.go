package core

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/josephlewis42/forksh/core/config"
)

var (
	ColorBoldRed    = color.New(color.FgRed, color.Bold)
	ColorBoldYellow = color.New(color.FgYellow, color.Bold)
)

// Diagnostics prints user facing error messages, coloured when the mode
// and the output allow it.
type Diagnostics struct {
	w      io.Writer
	name   string
	mode   string
	isTerm bool
}

// NewDiagnostics creates a printer prefixing every message with name.
// isTerm tells whether w is a terminal, for the auto colour mode.
func NewDiagnostics(w io.Writer, name, mode string, isTerm bool) *Diagnostics {
	return &Diagnostics{w: w, name: name, mode: mode, isTerm: isTerm}
}

// ShouldColor reports whether messages get colour.
func (d *Diagnostics) ShouldColor() bool {
	switch d.mode {
	case config.ColorNever:
		return false
	case config.ColorAlways:
		return true
	default:
		return d.isTerm
	}
}

// Sprintf formats with c if colour is enabled.
func (d *Diagnostics) Sprintf(c *color.Color, format string, a ...interface{}) string {
	if !d.ShouldColor() {
		return fmt.Sprintf(format, a...)
	}
	// The package level NoColor looks at stdout, which is not where this goes.
	colored := *c
	colored.EnableColor()
	return colored.Sprintf(format, a...)
}

// Errorf prints an error message.
func (d *Diagnostics) Errorf(format string, a ...interface{}) {
	msg := fmt.Sprintf(format, a...)
	fmt.Fprintf(d.w, "%s: %s\n", d.name, d.Sprintf(ColorBoldRed, "%s", msg))
}

// Warnf prints a message about a condition that did not stop the command.
func (d *Diagnostics) Warnf(format string, a ...interface{}) {
	msg := fmt.Sprintf(format, a...)
	fmt.Fprintf(d.w, "%s: %s\n", d.name, d.Sprintf(ColorBoldYellow, "%s", msg))
}

// Error prints err.
func (d *Diagnostics) Error(err error) {
	d.Errorf("%v", err)
}
