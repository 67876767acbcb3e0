package logging

import (
	"github.com/fatih/color"
)

// Level colors. fatih/color disables itself when stderr is not a terminal, so
// log files and pipes stay free of escape sequences.
var (
	colorTimestamp = color.New(color.FgWhite)
	colorError     = color.New(color.FgRed, color.Bold)
	colorWarn      = color.New(color.FgRed)
	colorInfo      = color.New(color.Reset)
	colorDebug     = color.New(color.FgGreen)
	colorTrace     = color.New(color.FgYellow)
)

func colorize(buf *buffer, c *color.Color, s string) {
	if color.NoColor {
		buf.writeString(s)
		return
	}
	buf.writeString(c.Sprint(s))
}
