// monitor/monitor.go
package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wfunc/blockbattle/logger"
)

type Metrics struct {
	ActiveRooms        prometheus.Gauge
	Participants       *prometheus.GaugeVec
	RoundsStarted      prometheus.Counter
	RoundsEnded        prometheus.Counter
	MessagesReceived   prometheus.Counter
	MessageLatency     prometheus.Histogram
	UptimeSeconds      prometheus.GaugeFunc
	registeredAtLaunch time.Time
}

func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{registeredAtLaunch: time.Now()}
	m.ActiveRooms = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_rooms",
		Help:      "Number of open rooms",
	})
	m.Participants = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "participants",
		Help:      "Number of seated participants",
	}, []string{"kind"})
	m.RoundsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rounds_started_total",
		Help:      "Total number of rounds started",
	})
	m.RoundsEnded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rounds_ended_total",
		Help:      "Total number of rounds ended",
	})
	m.MessagesReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_received_total",
		Help:      "Total number of messages received",
	})
	m.MessageLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "message_latency_seconds",
		Help:      "Message processing latency",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
	})
	m.UptimeSeconds = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "uptime_seconds",
		Help:      "Seconds since the server started",
	}, func() float64 {
		return time.Since(m.registeredAtLaunch).Seconds()
	})

	reg.MustRegister(
		m.ActiveRooms,
		m.Participants,
		m.RoundsStarted,
		m.RoundsEnded,
		m.MessagesReceived,
		m.MessageLatency,
		m.UptimeSeconds,
	)

	return m
}

// Monitor reports room and transport activity to Prometheus. It satisfies
// room.Metrics.
type Monitor struct {
	metrics  *Metrics
	registry *prometheus.Registry
}

func NewMonitor(namespace string) *Monitor {
	reg := prometheus.NewRegistry()
	return &Monitor{
		metrics:  NewMetrics(namespace, reg),
		registry: reg,
	}
}

func (m *Monitor) Metrics() *Metrics              { return m.metrics }
func (m *Monitor) Registry() *prometheus.Registry { return m.registry }

// Handler serves the monitor's registry in the Prometheus text format.
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Monitor) StartServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Errorf("metrics server: %v", err)
		}
	}()
	return srv
}

func (m *Monitor) RoomOpened() { m.metrics.ActiveRooms.Inc() }
func (m *Monitor) RoomClosed() { m.metrics.ActiveRooms.Dec() }

func (m *Monitor) ParticipantJoined(bot bool) {
	m.metrics.Participants.WithLabelValues(kind(bot)).Inc()
}

func (m *Monitor) ParticipantLeft(bot bool) {
	m.metrics.Participants.WithLabelValues(kind(bot)).Dec()
}

func (m *Monitor) RoundStarted() { m.metrics.RoundsStarted.Inc() }
func (m *Monitor) RoundEnded()   { m.metrics.RoundsEnded.Inc() }

func (m *Monitor) IncMessagesReceived() {
	m.metrics.MessagesReceived.Inc()
}

func (m *Monitor) ObserveMessageLatency(duration time.Duration) {
	m.metrics.MessageLatency.Observe(duration.Seconds())
}

func kind(bot bool) string {
	if bot {
		return "bot"
	}
	return "human"
}
