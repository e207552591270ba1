package utils

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// Latency samples in microseconds, drained by the metric package
type Metric struct {
	DatabaseRead       chan float64
	DatabaseWrite      chan float64
	DiscordSendMessage chan float64
}

func NewMetric() *Metric {
	return &Metric{
		DatabaseRead:       make(chan float64),
		DatabaseWrite:      make(chan float64),
		DiscordSendMessage: make(chan float64),
	}
}

// Send a sample, dropped when nobody is listening
func (m *Metric) Observe(ch chan float64, latency time.Duration) {
	if m == nil {
		return
	}
	select {
	case ch <- float64(latency.Microseconds()):
	default:
	}
}

type queryLatencyHook struct {
	metric *Metric
}

var _ bun.QueryHook = (*queryLatencyHook)(nil)

// Bun hook feeding query latencies into the read/write channels
func NewQueryLatencyHook(m *Metric) bun.QueryHook {
	return &queryLatencyHook{metric: m}
}

func (h *queryLatencyHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *queryLatencyHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	latency := time.Since(event.StartTime)
	switch event.Operation() {
	case "SELECT":
		h.metric.Observe(h.metric.DatabaseRead, latency)
	case "INSERT", "UPDATE", "DELETE":
		h.metric.Observe(h.metric.DatabaseWrite, latency)
	}
}
