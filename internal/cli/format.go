package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	headerColor  = color.New(color.FgBlue, color.Bold)
	labelColor   = color.New(color.FgWhite, color.Bold)
	dimColor     = color.New(color.FgHiBlack)
)

func printSection(w io.Writer, title string) {
	_, _ = headerColor.Fprintln(w, title)
	_, _ = dimColor.Fprintln(w, strings.Repeat("─", len(title)))
}

func printSuccess(w io.Writer, msg string) {
	_, _ = successColor.Fprint(w, "✓ ")
	_, _ = fmt.Fprintln(w, msg)
}

func printWarning(w io.Writer, msg string) {
	_, _ = warningColor.Fprint(w, "! ")
	_, _ = fmt.Fprintln(w, msg)
}

func printLabelValue(w io.Writer, label, value string) {
	_, _ = labelColor.Fprintf(w, "%-14s", label+":")
	_, _ = fmt.Fprintln(w, value)
}

// printError is used by Execute for the final error line.
func printError(w io.Writer, err error) {
	_, _ = errorColor.Fprint(w, "✗ ")
	_, _ = fmt.Fprintln(w, err)
}
