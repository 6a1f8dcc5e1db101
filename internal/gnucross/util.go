package gnucross

import (
	"fmt"
	"strings"
)

// color-compatible printer interface (works with *color.Theme and *color.Style)
type colorPrinter interface {
	Printf(format string, a ...any)
	Println(a ...any)
}

// cPrintf prints with a colored style or falls back to fmt.Printf when nil
func cPrintf(p colorPrinter, format string, a ...any) {
	if p == nil {
		fmt.Printf(format, a...)
		return
	}
	p.Printf(format, a...)
}

// cPrintln prints a line with the given style or falls back to fmt.Println when nil
func cPrintln(p colorPrinter, a ...any) {
	if p == nil {
		fmt.Println(a...)
		return
	}
	p.Println(a...)
}

// debugf prints debug messages when Debug is true
func debugf(format string, args ...any) {
	if Debug {
		fmt.Printf(format, args...)
	}
}

// arrowf prints a "-> message" progress line.
func arrowf(p colorPrinter, format string, a ...any) {
	colArrow.Print("-> ")
	cPrintf(p, format, a...)
}

// relativeTo strips the root prefix from s so transcripts read the same
// regardless of where the tree lives.
func relativeTo(root, s string) string {
	if root == "" {
		return s
	}
	return strings.ReplaceAll(s, strings.TrimRight(root, "/")+"/", "")
}
