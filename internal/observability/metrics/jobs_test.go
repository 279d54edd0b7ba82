package metrics

import (
	"testing"
	"time"

	"github.com/converti/converti-api/internal/domain/model"
	"github.com/converti/converti-api/internal/observability/statsd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitJobLifecycle(t *testing.T) {
	var rec statsd.Recorder

	EmitJobLifecycle(&rec, JobMetric{
		Category:   "images",
		Transition: "failed",
		Result:     ResultError,
		Duration:   time.Second,
		Err:        model.NewConversionError("bad"),
	})

	counts := rec.Named("job.transition")
	require.Len(t, counts, 1)
	assert.Equal(t, map[string]string{
		"job_type":    "images",
		"transition":  "failed",
		"result":      "error",
		"error_class": "conversion",
	}, counts[0].Tags)
	assert.Len(t, rec.Named("job.duration"), 1)

	EmitJobLifecycle(nil, JobMetric{})
}

func TestEmitFileOutcome(t *testing.T) {
	var rec statsd.Recorder

	EmitFileOutcome(&rec, "audio", ResultSuccess, nil, 10*time.Millisecond)

	got := rec.Named("file.converted")
	require.Len(t, got, 1)
	assert.NotContains(t, got[0].Tags, "error_class")
	assert.Len(t, rec.Named("file.duration"), 1)
}
