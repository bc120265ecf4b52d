// monitor/monitor.go
package monitor

import (
	"expvar"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	OnlinePlayers    prometheus.Gauge
	ActiveGames      prometheus.Gauge
	MessagesReceived prometheus.Counter
	MessageLatency   prometheus.Histogram
	Actions          *prometheus.CounterVec // by action type
	Rejections       *prometheus.CounterVec // by action type
	Penalties        prometheus.Counter
	Outcomes         *prometheus.CounterVec // by outcome kind
}

func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OnlinePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_players",
			Help:      "Number of online players",
		}),
		ActiveGames: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_games",
			Help:      "Number of games hosted and not yet settled",
		}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total number of messages received",
		}),
		MessageLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_latency_seconds",
			Help:      "Message processing latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		}),
		Actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Accepted game actions",
		}, []string{"action"}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Rejected game actions",
		}, []string{"action"}),
		Penalties: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "penalties_total",
			Help:      "Penalty cards dealt to overdue players",
		}),
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "game_outcomes_total",
			Help:      "Finished games by outcome",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.OnlinePlayers,
		m.ActiveGames,
		m.MessagesReceived,
		m.MessageLatency,
		m.Actions,
		m.Rejections,
		m.Penalties,
		m.Outcomes,
	)

	return m
}

type Monitor struct {
	metrics      *Metrics
	gatherer     prometheus.Gatherer
	startTime    time.Time
	requestCount int64
	mutex        sync.Mutex
}

// NewMonitor registers the metrics on reg. gatherer serves them over HTTP and is
// usually the same registry.
func NewMonitor(namespace string, reg prometheus.Registerer, gatherer prometheus.Gatherer) *Monitor {
	return &Monitor{
		metrics:   NewMetrics(namespace, reg),
		gatherer:  gatherer,
		startTime: time.Now(),
	}
}

var current struct {
	sync.Mutex
	once sync.Once
	m    *Monitor
}

// PublishExpvar exposes uptime and request count under /debug/vars. expvar names
// are process global, so the last published monitor wins.
func (m *Monitor) PublishExpvar() {
	current.Lock()
	current.m = m
	current.Unlock()

	current.once.Do(func() {
		expvar.Publish("uptime", expvar.Func(func() interface{} {
			current.Lock()
			defer current.Unlock()
			return time.Since(current.m.startTime).Seconds()
		}))
		expvar.Publish("requests", expvar.Func(func() interface{} {
			current.Lock()
			mon := current.m
			current.Unlock()
			return mon.RequestCount()
		}))
	})
}

// Handler 返回 /metrics 处理器
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Monitor) Metrics() *Metrics {
	return m.metrics
}

func (m *Monitor) IncOnlinePlayers() {
	m.metrics.OnlinePlayers.Inc()
}

func (m *Monitor) DecOnlinePlayers() {
	m.metrics.OnlinePlayers.Dec()
}

func (m *Monitor) SetActiveGames(count int) {
	m.metrics.ActiveGames.Set(float64(count))
}

func (m *Monitor) IncMessagesReceived() {
	m.metrics.MessagesReceived.Inc()
	m.mutex.Lock()
	m.requestCount++
	m.mutex.Unlock()
}

func (m *Monitor) RequestCount() int64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.requestCount
}

func (m *Monitor) ObserveMessageLatency(duration time.Duration) {
	m.metrics.MessageLatency.Observe(duration.Seconds())
}

func (m *Monitor) IncAction(action string) {
	m.metrics.Actions.WithLabelValues(action).Inc()
}

func (m *Monitor) IncRejection(action string) {
	m.metrics.Rejections.WithLabelValues(action).Inc()
}

func (m *Monitor) IncPenalty() {
	m.metrics.Penalties.Inc()
}

func (m *Monitor) IncOutcome(outcome string) {
	m.metrics.Outcomes.WithLabelValues(outcome).Inc()
}
