package hermes

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons used as the reason label of nlu_dropped_messages_total.
const (
	DropDecodeError   = "decode_error"
	DropScopeMismatch = "scope_mismatch"
	DropUnknownTopic  = "unknown_topic"
)

// Query results used as the result label of nlu_queries_total.
const (
	ResultRecognized    = "recognized"
	ResultNotRecognized = "not_recognized"
	ResultFault         = "fault"
)

// Metrics holds the bridge's Prometheus collectors and the counters
// mirrored into health messages. A nil *Metrics records nothing.
type Metrics struct {
	queries          *prometheus.CounterVec
	queryDuration    prometheus.Histogram
	trains           *prometheus.CounterVec
	trainDuration    prometheus.Histogram
	dropped          *prometheus.CounterVec
	publishErrors    prometheus.Counter
	connected        prometheus.Gauge
	connects         prometheus.Counter
	graphIntents     prometheus.Gauge
	graphSentences   prometheus.Gauge
	trainQueueLength prometheus.Gauge

	stats struct {
		queries, recognized, notRecognized atomic.Uint64
		trains, trainErrors, dropped       atomic.Uint64
	}
}

// NewMetrics registers the bridge collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		queries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nlu_queries_total",
			Help: "NLU queries handled, by result",
		}, []string{"result"}),
		queryDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "nlu_query_duration_seconds",
			Help:    "Time spent recognising a query",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		trains: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nlu_trains_total",
			Help: "Training runs, by result",
		}, []string{"result"}),
		trainDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "nlu_train_duration_seconds",
			Help:    "Time spent building or loading an intent graph",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		dropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nlu_dropped_messages_total",
			Help: "Inbound messages dropped without a reply, by reason",
		}, []string{"reason"}),
		publishErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "nlu_publish_errors_total",
			Help: "Outbound messages that could not be published",
		}),
		connected: f.NewGauge(prometheus.GaugeOpts{
			Name: "nlu_mqtt_connected",
			Help: "1 while the broker session is up",
		}),
		connects: f.NewCounter(prometheus.CounterOpts{
			Name: "nlu_mqtt_connects_total",
			Help: "Successful broker (re)connections",
		}),
		graphIntents: f.NewGauge(prometheus.GaugeOpts{
			Name: "nlu_graph_intents",
			Help: "Intents in the live graph",
		}),
		graphSentences: f.NewGauge(prometheus.GaugeOpts{
			Name: "nlu_graph_sentences",
			Help: "Sentences in the live graph",
		}),
		trainQueueLength: f.NewGauge(prometheus.GaugeOpts{
			Name: "nlu_train_queue_length",
			Help: "Train requests waiting behind the running one",
		}),
	}
}

func (m *Metrics) observeQuery(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(result).Inc()
	m.queryDuration.Observe(d.Seconds())
	m.stats.queries.Add(1)
	if result == ResultRecognized {
		m.stats.recognized.Add(1)
	} else {
		m.stats.notRecognized.Add(1)
	}
}

func (m *Metrics) observeTrain(ok bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "error"
		m.stats.trainErrors.Add(1)
	}
	m.trains.WithLabelValues(result).Inc()
	m.trainDuration.Observe(d.Seconds())
	m.stats.trains.Add(1)
}

func (m *Metrics) drop(reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(reason).Inc()
	m.stats.dropped.Add(1)
}

func (m *Metrics) publishFailed() {
	if m == nil {
		return
	}
	m.publishErrors.Inc()
}

func (m *Metrics) setConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.connected.Set(1)
		m.connects.Inc()
		return
	}
	m.connected.Set(0)
}

func (m *Metrics) setGraph(info *GraphInfo) {
	if m == nil || info == nil {
		return
	}
	m.graphIntents.Set(float64(info.Intents))
	m.graphSentences.Set(float64(info.Sentences))
}

func (m *Metrics) setQueueLength(n int) {
	if m == nil {
		return
	}
	m.trainQueueLength.Set(float64(n))
}

// Snapshot returns the counters mirrored into health messages.
func (m *Metrics) Snapshot() Statistics {
	if m == nil {
		return Statistics{}
	}
	return Statistics{
		Queries:       m.stats.queries.Load(),
		Recognized:    m.stats.recognized.Load(),
		NotRecognized: m.stats.notRecognized.Load(),
		Trains:        m.stats.trains.Load(),
		TrainErrors:   m.stats.trainErrors.Load(),
		Dropped:       m.stats.dropped.Load(),
	}
}
