// Package abort terminates the process on invariant violations.
//
// The driver's correctness depends on every member observing the same
// log; a process that hits an unexpected coordination-service response
// cannot keep participating safely, so it logs a diagnostic and exits.
package abort

import (
	"fmt"
	"log/slog"
	"os"
)

// Exit is swapped out by tests to observe aborts.
var Exit func(code int) = os.Exit

// Fatalf logs the diagnostic and terminates the process.
func Fatalf(format string, args ...any) {
	slog.Error(fmt.Sprintf(format, args...))
	Exit(1)
}
