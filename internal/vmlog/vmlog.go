// Package vmlog is the VM's diagnostic trace sink: package-level
// Trace/Error/Fatal functions over a swappable io.Writer, gated by a
// verbosity flag. Grounded on jacobin's trace.Trace/trace.Error
// free-function-over-a-sink idiom (src/classloader/classloader.go calls
// trace.Trace(...)/trace.Error(...) throughout) since the teacher
// (daimatz-gojvm) has no logging package at all and writes straight to
// Stdout/Stderr. Deliberately thin: no structured-logging library, since
// no complete repo in the pack pulls one in for this kind of embedded
// interpreter trace.
package vmlog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

var (
	mu      sync.Mutex
	out     io.Writer = os.Stderr
	verbose bool
)

// SetOutput redirects where Trace/Error/Fatal write; used by tests to
// capture output instead of polluting stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// SetVerbose gates Trace: when false (the default), Trace is a no-op,
// matching `rex`'s `-v/--verbose` flag (SPEC_FULL.md §6.1).
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

func timestamp() string { return time.Now().UTC().Format("15:04:05.000") }

// Trace emits a verbose-only diagnostic line (class loading, GC cycles,
// safepoint stalls) — silent unless SetVerbose(true).
func Trace(format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if !verbose {
		return
	}
	fmt.Fprintf(out, "[%s] TRACE %s\n", timestamp(), fmt.Sprintf(format, args...))
}

// Error emits a recoverable-error diagnostic line, always printed
// regardless of verbosity — used for propagated Java exceptions and
// other conditions the VM recovers from but still wants on record.
func Error(format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(out, "[%s] ERROR %s\n", timestamp(), fmt.Sprintf(format, args...))
}

// Fatal emits a diagnostic line for an unrecoverable internal invariant
// violation (spec §7's "Internal invariant violation" category) and
// terminates the process, mirroring the source's abort-with-diagnostic
// behavior for fatal panics.
func Fatal(format string, args ...interface{}) {
	mu.Lock()
	fmt.Fprintf(out, "[%s] FATAL %s\n", timestamp(), fmt.Sprintf(format, args...))
	mu.Unlock()
	os.Exit(2)
}
