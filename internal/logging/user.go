package logging

import (
	"fmt"
	"io"
	"os"
)

// Operator-facing output, separate from the structured debug log. Container
// runtimes usually collect both streams, so the indicator prefix is what
// distinguishes a warning from progress output.
var (
	userOut io.Writer = os.Stdout
	userErr io.Writer = os.Stderr
)

// SetUserOutput redirects operator output. Nil writers restore the defaults.
func SetUserOutput(out, errOut io.Writer) {
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	userOut, userErr = out, errOut
}

// UserInfo prints an info message to stdout.
func UserInfo(format string, args ...any) {
	fmt.Fprintf(userOut, "ℹ "+format+"\n", args...)
}

// UserSuccess prints a success message to stdout.
func UserSuccess(format string, args ...any) {
	fmt.Fprintf(userOut, "✓ "+format+"\n", args...)
}

// UserWarning prints a warning message to stderr.
func UserWarning(format string, args ...any) {
	fmt.Fprintf(userErr, "⚠ "+format+"\n", args...)
}

// UserError prints an error message to stderr.
func UserError(format string, args ...any) {
	fmt.Fprintf(userErr, "✗ "+format+"\n", args...)
}
