// Package debug provides global debug logging flags
package debug

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
)

// Enabled controls whether debug logging is active
var Enabled bool

// Media controls whether per-frame video and audio logs are shown.
// Use --debug-media to enable these very verbose logs
var Media bool

var out atomic.Value

func init() {
	out.Store(io.Writer(os.Stdout))
}

// SetOutput redirects debug output.
func SetOutput(w io.Writer) {
	out.Store(w)
}

func writer() io.Writer {
	return out.Load().(io.Writer)
}

// Log prints a message only if debug mode is enabled
func Log(format string, args ...interface{}) {
	if Enabled {
		fmt.Fprintf(writer(), format, args...)
	}
}

// Logln prints a message with newline only if debug mode is enabled
func Logln(msg string) {
	if Enabled {
		fmt.Fprintln(writer(), msg)
	}
}

// MediaLog prints a message only if media debug mode is enabled
func MediaLog(format string, args ...interface{}) {
	if Media {
		fmt.Fprintf(writer(), format, args...)
	}
}
