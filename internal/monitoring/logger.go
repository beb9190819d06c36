package monitoring

import (
	"log"
	"sync/atomic"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// warnCount tracks data-quality warnings emitted during a run so the final
// summary can report how many rows or files needed attention.
var warnCount atomic.Int64

// Warnf logs a data-quality warning through Logf, prefixed "Warning: ", and
// increments the warning counter.
func Warnf(format string, v ...interface{}) {
	warnCount.Add(1)
	Logf("Warning: "+format, v...)
}

// WarningCount returns the number of warnings emitted since the last reset.
func WarningCount() int64 {
	return warnCount.Load()
}

// ResetWarnings zeroes the warning counter. Call at the start of a run.
func ResetWarnings() {
	warnCount.Store(0)
}
