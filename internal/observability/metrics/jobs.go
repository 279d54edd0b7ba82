// Package metrics emits the standard job lifecycle metrics.
package metrics

import (
	"maps"
	"time"

	obserrors "github.com/converti/converti-api/internal/observability/errors"
	"github.com/converti/converti-api/internal/observability/statsd"
)

// Result tag values.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// JobMetric describes one job transition.
type JobMetric struct {
	// Category is the conversion category, reported as job_type.
	Category   string
	Transition string
	Result     string
	Duration   time.Duration
	Err        error
}

// EmitJobLifecycle emits job.transition and, when a duration is known, job.duration.
func EmitJobLifecycle(sink statsd.Sink, in JobMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"job_type":   in.Category,
		"transition": in.Transition,
		"result":     in.Result,
	}
	if in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("job.transition", 1, tags)
	if in.Duration > 0 {
		sink.Timing("job.duration", in.Duration, maps.Clone(tags))
	}
}

// EmitFileOutcome counts one per-file conversion outcome.
func EmitFileOutcome(sink statsd.Sink, category, result string, err error, took time.Duration) {
	if sink == nil {
		return
	}

	tags := map[string]string{"job_type": category, "result": result}
	if result == ResultError {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}
	sink.Count("file.converted", 1, tags)
	sink.Timing("file.duration", took, maps.Clone(tags))
}
