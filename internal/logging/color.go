package logging

import (
	"github.com/fatih/color"
)

// Per-level colours. Shared by every logger.
var (
	colorTimestamp = color.New(color.FgWhite)
	colorError     = color.New(color.FgRed, color.Bold)
	colorWarn      = color.New(color.FgRed)
	colorInfo      = color.New(color.Reset)
	colorDebug     = color.New(color.FgGreen)
	colorTrace     = color.New(color.FgYellow)
)

var allColors = []*color.Color{
	colorTimestamp, colorError, colorWarn, colorInfo, colorDebug, colorTrace,
}

// SetColor turns ANSI colouring of log lines on or off. Colouring defaults to
// on only when stderr is a terminal.
func SetColor(enabled bool) {
	for _, c := range allColors {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
}

func init() {
	SetColor(!color.NoColor)
}
