// Package monitoring holds the process-wide diagnostic logger used by the
// sonar packages. Library code logs through Logf or a Tagged logger, never
// through the log package directly.
package monitoring

import "log"

// Logf receives every diagnostic line. It starts as log.Printf; replace it
// with SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger installs f as Logf. A nil f mutes logging.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Tagged returns a logger that prefixes every line with "[component] ".
// It looks Logf up on each call, so a later SetLogger still applies.
func Tagged(component string) func(format string, v ...interface{}) {
	prefix := "[" + component + "] "
	return func(format string, v ...interface{}) {
		Logf(prefix+format, v...)
	}
}
