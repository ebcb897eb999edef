// Package logger provides levelled logging for grantkb.
// Debug, Info and Section output is printed only in verbose mode (the
// --verbose flag); warnings and errors are always printed. Everything goes
// to stderr so command output on stdout stays clean.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
)

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer. Defaults to os.Stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	logf(true, "DEBUG", format, args...)
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	logf(true, "INFO", format, args...)
}

// Warn prints a warning.
func Warn(format string, args ...any) {
	logf(false, "WARN", format, args...)
}

// Error prints an error.
func Error(format string, args ...any) {
	logf(false, "ERROR", format, args...)
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.Lock()
	defer mu.Unlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

// logf holds the write lock so concurrent lines never interleave.
func logf(gated bool, level, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if gated && !verbose {
		return
	}
	fmt.Fprintf(output, "["+level+"] "+format+"\n", args...)
}
