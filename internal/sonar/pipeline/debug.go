package pipeline

import (
	"io"
	"log"

	"github.com/banshee-data/sonar.report/internal/monitoring"
)

var (
	opsLogger   *log.Logger
	diagLogger  *log.Logger
	traceLogger *log.Logger
)

// SetLogWriters configures the three logging streams for the pipeline package.
// Pass nil for any writer to disable that stream. With no writers at all,
// the default applies: ops goes to monitoring.Logf, diag and trace are off.
func SetLogWriters(ops, diag, trace io.Writer) {
	opsLogger = newLogger(ops)
	diagLogger = newLogger(diag)
	traceLogger = newLogger(trace)
	opsDefault = ops == nil && diag == nil && trace == nil
}

// opsDefault routes ops lines to monitoring.Logf while no writers are set.
var opsDefault = true

var monitorf = monitoring.Tagged("pipeline")

func newLogger(w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, "[pipeline] ", log.LstdFlags|log.Lmicroseconds)
}

// opsf logs dropped frames and failures.
func opsf(format string, args ...interface{}) {
	if opsLogger != nil {
		opsLogger.Printf(format, args...)
		return
	}
	if opsDefault {
		monitorf(format, args...)
	}
}

// diagf logs per-run summaries and configuration.
func diagf(format string, args ...interface{}) {
	if diagLogger != nil {
		diagLogger.Printf(format, args...)
	}
}

// tracef logs per-frame telemetry.
func tracef(format string, args ...interface{}) {
	if traceLogger != nil {
		traceLogger.Printf(format, args...)
	}
}
