// Package ui provides terminal output helpers for the parts assistant CLI.
package ui

import (
	"io"
	"os"

	"github.com/fatih/color"
)

var (
	// Out receives regular output. Tests point it at a buffer.
	Out io.Writer = os.Stdout
	// Err receives progress indicators and errors.
	Err io.Writer = os.Stderr

	verboseFlag bool
)

// InitUI applies the color and verbosity settings.
func InitUI(noColor, verbose bool) {
	verboseFlag = verbose
	if noColor {
		color.NoColor = true
	}
}

// Verbose reports whether verbose output was requested.
func Verbose() bool {
	return verboseFlag
}
