package gnucross

import (
	"os"

	"github.com/gookit/color"
	"golang.org/x/term"
)

var (
	version   = "dev"     // overridden at build time
	buildDate = "unknown" // overridden at build time

	// Debug enables debugf output. Set from GNUCROSS_DEBUG or --debug.
	Debug bool
)

// color helpers
var (
	colInfo    = color.Info
	colWarn    = color.Warn
	colError   = color.Error
	colSuccess = color.HEX("#1976D2")
	colArrow   = color.HEX("#FFEB3B")
	colNote    = color.Tag("notice")
)

// disableColorWithoutTTY turns styling off when stdout is piped to a file,
// so captured transcripts stay free of escape sequences.
func disableColorWithoutTTY() {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		color.Disable()
	}
}
