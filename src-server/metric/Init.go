package metric

import (
	"log/slog"
	"time"
	"timeblock/src-server/utils"

	"github.com/prometheus/client_golang/prometheus"
)

func register(name string, collector prometheus.Collector) bool {
	if err := prometheus.Register(collector); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
			slog.Error("can't register metric", "metric", name, "error", err)
			return false
		}
	}
	slog.Debug("metric registered", "metric", name)
	return true
}

func unregister(name string, collector prometheus.Collector) {
	switch prometheus.Unregister(collector) {
	case true:
		slog.Debug("metric unregistered", "metric", name)
	case false:
		slog.Warn("metric not registered", "metric", name)
	}
}

func occurrenceLookupLatency(as *utils.AppState, tickerInterval time.Duration) {
	name := "timeblock_occurrence_lookup_microsec"
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: name,
		Help: "The latency of an occurrence key lookup that matches nothing, in microseconds",
	})
	if !register(name, gauge) {
		return
	}
	gracefulShutdownCh := as.CreateGracefulShutdownChan()
	go func() {
		ticker := time.NewTicker(tickerInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gracefulShutdownCh:
				unregister(name, gauge)
				return
			case <-ticker.C:
				latency, err := occurrenceLookup(as)
				if err != nil {
					slog.Error("can't time occurrence lookup", "error", err)
					continue
				}
				gauge.Set(float64(latency.Microseconds()))
			}
		}
	}()
}

// Latest sample from ch, reset to 0 after clearTickerInterval without samples
func latencyGauge(as *utils.AppState, name, help string, ch chan float64, clearTickerInterval time.Duration) {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	if !register(name, gauge) {
		return
	}
	gracefulShutdownCh := as.CreateGracefulShutdownChan()
	go func() {
		clearTicker := time.NewTicker(clearTickerInterval)
		defer clearTicker.Stop()
		for {
			select {
			case <-gracefulShutdownCh:
				unregister(name, gauge)
				return
			case latency := <-ch:
				gauge.Set(latency)
				clearTicker.Reset(clearTickerInterval)
			case <-clearTicker.C:
				gauge.Set(0)
			}
		}
	}()
}

func discordHeartbeatLatency(as *utils.AppState, tickerInterval time.Duration) {
	name := "timeblock_discord_heartbeat_latency_microsec"
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: name,
		Help: "The latency of a discord heartbeat in microseconds",
	})
	if !register(name, gauge) {
		return
	}
	gracefulShutdownCh := as.CreateGracefulShutdownChan()
	go func() {
		ticker := time.NewTicker(tickerInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gracefulShutdownCh:
				unregister(name, gauge)
				return
			case <-ticker.C:
				gauge.Set(float64(as.DgSession.HeartbeatLatency().Microseconds()))
			}
		}
	}()
}

// Start the collectors. Everything is unregistered on graceful shutdown.
func Init(as *utils.AppState) {
	tickerInterval := as.Config.GetMetricCollectionInterval()
	clearTickerInterval := as.Config.GetMetricCollectionInterval() * 2

	occurrenceLookupLatency(as, tickerInterval)
	latencyGauge(as,
		"timeblock_database_read_microsec",
		"The latency of the last database read in microseconds",
		as.MetricChans.DatabaseRead,
		clearTickerInterval,
	)
	latencyGauge(as,
		"timeblock_database_write_microsec",
		"The latency of the last database write in microseconds",
		as.MetricChans.DatabaseWrite,
		clearTickerInterval,
	)
	if as.DgSession != nil {
		latencyGauge(as,
			"timeblock_discord_send_message_microsec",
			"The latency of a discord message send in microseconds",
			as.MetricChans.DiscordSendMessage,
			clearTickerInterval,
		)
		discordHeartbeatLatency(as, tickerInterval)
	}
}
