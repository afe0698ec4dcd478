// Package metrics exposes the conductor's Prometheus instrumentation,
// grounded on the teacher's internal/metrics/metrics.go (NewMetrics'
// promauto registration style, kept; the websocket-connection-specific
// collectors it registered are replaced with driver ones).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"aeron-driver/internal/wire"
)

// Metrics holds every Prometheus collector the conductor updates.
type Metrics struct {
	publicationsLive  *prometheus.GaugeVec
	subscriptionsLive prometheus.Gauge
	imagesLive        prometheus.Gauge

	commandsTotal  *prometheus.CounterVec
	eventsTotal    *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	broadcastDrops prometheus.Counter

	doWorkDuration prometheus.Histogram
	doWorkEmpty    prometheus.Counter
}

// New registers and returns the conductor's metric collectors.
func New() *Metrics {
	return &Metrics{
		publicationsLive: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aeron_driver_publications_live",
			Help: "Live publications by kind (network, ipc).",
		}, []string{"kind"}),
		subscriptionsLive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "aeron_driver_subscriptions_live",
			Help: "Live subscriptions.",
		}),
		imagesLive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "aeron_driver_images_live",
			Help: "Live publication images.",
		}),
		commandsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aeron_driver_commands_total",
			Help: "Client commands processed, by type.",
		}, []string{"type"}),
		eventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aeron_driver_events_total",
			Help: "Broadcast events emitted, by type.",
		}, []string{"type"}),
		errorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aeron_driver_errors_total",
			Help: "Errors raised, by error code.",
		}, []string{"code"}),
		broadcastDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aeron_driver_broadcast_drops_total",
			Help: "Events dropped because the broadcast buffer was full.",
		}),
		doWorkDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "aeron_driver_do_work_duration_seconds",
			Help:    "Wall-clock duration of a single conductor do_work tick.",
			Buckets: prometheus.DefBuckets,
		}),
		doWorkEmpty: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aeron_driver_do_work_empty_total",
			Help: "do_work ticks that found no work at all.",
		}),
	}
}

func (m *Metrics) SetPublicationsLive(kind string, n float64) {
	m.publicationsLive.WithLabelValues(kind).Set(n)
}
func (m *Metrics) SetSubscriptionsLive(n float64) { m.subscriptionsLive.Set(n) }
func (m *Metrics) SetImagesLive(n float64)        { m.imagesLive.Set(n) }

func (m *Metrics) IncCommand(typ string) { m.commandsTotal.WithLabelValues(typ).Inc() }
func (m *Metrics) IncEvent(typ string)   { m.eventsTotal.WithLabelValues(typ).Inc() }

// IncError increments the per-code error counter; cmd/aeron-driverd
// calls it from the conductor's error handler.
func (m *Metrics) IncError(code wire.ErrorCode) {
	m.errorsTotal.WithLabelValues(code.String()).Inc()
}

// OnBroadcastDrop is the events.DropCounter the broadcast buffer calls.
func (m *Metrics) OnBroadcastDrop(string) { m.broadcastDrops.Inc() }

// ObserveDoWork records one do_work tick's duration and whether it did
// any work at all.
func (m *Metrics) ObserveDoWork(seconds float64, workDone int) {
	m.doWorkDuration.Observe(seconds)
	if workDone == 0 {
		m.doWorkEmpty.Inc()
	}
}
