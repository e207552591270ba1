package metric

import (
	"testing"
	"timeblock/src-server/recurrence"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	recorder := NewRecorder(reg)

	recorder.Materialized(recurrence.SourceBlock)
	recorder.Materialized(recurrence.SourceBlock)
	recorder.Materialized(recurrence.SourceInbox)
	recorder.Collided(recurrence.SourceInbox)
	recorder.CascadeDeleted(4)
	recorder.CascadeDeleted(0)

	assert.Equal(t, 2.0, testutil.ToFloat64(recorder.materialized.WithLabelValues("block")))
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.materialized.WithLabelValues("inbox")))
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.collisions.WithLabelValues("inbox")))
	assert.Equal(t, 4.0, testutil.ToFloat64(recorder.cascadeDeleted))

	// case: a second recorder on the same registry shares the counters
	again := NewRecorder(reg)
	again.CascadeDeleted(1)
	assert.Equal(t, 5.0, testutil.ToFloat64(recorder.cascadeDeleted))

	count, err := testutil.GatherAndCount(reg)
	assert.NoError(t, err)
	assert.Equal(t, 4, count)
}
