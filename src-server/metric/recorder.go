package metric

import (
	"errors"
	"timeblock/src-server/recurrence"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus counters for the recurrence engine
type Recorder struct {
	materialized   *prometheus.CounterVec
	collisions     *prometheus.CounterVec
	cascadeDeleted prometheus.Counter
}

var _ recurrence.Recorder = (*Recorder)(nil)

// Counters are registered on reg; nil means the default registry
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Recorder{
		materialized: registerOrExisting(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timeblock_occurrences_materialized_total",
			Help: "Occurrences written by the recurrence engine",
		}, []string{"source"})),
		collisions: registerOrExisting(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timeblock_occurrence_collisions_total",
			Help: "Occurrence inserts that lost a race to a concurrent writer",
		}, []string{"source"})),
		cascadeDeleted: registerOrExisting(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timeblock_occurrences_cascade_deleted_total",
			Help: "Future occurrences removed because their source was deleted or edited",
		})),
	}
}

// Creating a second recorder on the same registry shares the first one's counters
func registerOrExisting[T prometheus.Collector](reg prometheus.Registerer, collector T) T {
	if err := reg.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return collector
}

func (r *Recorder) Materialized(kind recurrence.SourceKind) {
	r.materialized.WithLabelValues(string(kind)).Inc()
}

func (r *Recorder) Collided(kind recurrence.SourceKind) {
	r.collisions.WithLabelValues(string(kind)).Inc()
}

func (r *Recorder) CascadeDeleted(n int64) {
	if n > 0 {
		r.cascadeDeleted.Add(float64(n))
	}
}
