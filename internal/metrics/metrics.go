// Package metrics records adapter activity with VictoriaMetrics counters and
// histograms, exposed in the Prometheus text format.
package metrics

import (
	"fmt"
	"io"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

const (
	operationsTotal    = "gedbpromise_operations_total"
	failuresTotal      = "gedbpromise_operation_failures_total"
	operationDuration  = "gedbpromise_operation_duration_seconds"
	protocolViolations = "gedbpromise_callback_protocol_violations_total"
)

var set = metrics.NewSet()

// ObserveOperation counts one settled operation and records how long it took
// since start. Failed operations are also counted apart.
func ObserveOperation(operation string, start time.Time, err error) {
	set.GetOrCreateCounter(labeled(operationsTotal, operation)).Inc()
	if err != nil {
		set.GetOrCreateCounter(labeled(failuresTotal, operation)).Inc()
	}
	set.GetOrCreateHistogram(labeled(operationDuration, operation)).UpdateDuration(start)
}

// Operations returns how many times operation settled.
func Operations(operation string) uint64 {
	return set.GetOrCreateCounter(labeled(operationsTotal, operation)).Get()
}

// Failures returns how many times operation was rejected.
func Failures(operation string) uint64 {
	return set.GetOrCreateCounter(labeled(failuresTotal, operation)).Get()
}

// ProtocolViolation counts a completion callback invoked after the first
// time.
func ProtocolViolation() {
	set.GetOrCreateCounter(protocolViolations).Inc()
}

// ProtocolViolations returns the number of ignored callback invocations.
func ProtocolViolations() uint64 {
	return set.GetOrCreateCounter(protocolViolations).Get()
}

// WritePrometheus writes every metric in the Prometheus text format.
func WritePrometheus(w io.Writer) {
	set.WritePrometheus(w)
}

func labeled(name, operation string) string {
	return fmt.Sprintf("%s{operation=%q}", name, operation)
}
