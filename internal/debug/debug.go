// Package debug provides env-gated diagnostic logging. Output goes to
// stderr and is off unless TEMPO_DEBUG is set or verbose mode is enabled.
package debug

import (
	"fmt"
	"os"
)

var (
	enabled     = os.Getenv("TEMPO_DEBUG") != ""
	verboseMode = false
)

// Enabled reports whether debug output is active.
func Enabled() bool {
	return enabled || verboseMode
}

// SetVerbose enables debug output regardless of the environment.
func SetVerbose(verbose bool) {
	verboseMode = verbose
}

// Logf writes a debug line to stderr when debug output is active.
func Logf(format string, args ...interface{}) {
	if Enabled() {
		fmt.Fprintf(os.Stderr, "[tempo] "+format+"\n", args...)
	}
}
