package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tycoon/internal/game"
)

const namespace = "tycoon"

// Recorder exports session events as prometheus series. It satisfies
// session.Observer.
type Recorder struct {
	registry     *prometheus.Registry
	balance      prometheus.Gauge
	income       prometheus.Gauge
	fortune      prometheus.Gauge
	transactions *prometheus.CounterVec
	persistFails prometheus.Counter
	persistTime  prometheus.Histogram
	taps         prometheus.Counter
	rateLimited  prometheus.Counter
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		balance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "balance",
			Help:      "Cash balance of the current snapshot.",
		}),
		income: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "income_per_second",
			Help:      "Passive income per second of the current snapshot.",
		}),
		fortune: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "total_fortune",
			Help:      "Cash plus the value of every holding.",
		}),
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Transactions applied to the session, by kind and result.",
		}, []string{"kind", "result"}),
		persistFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "persist_failures_total",
			Help:      "Saves the store rejected. Gameplay continues regardless.",
		}),
		persistTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "persist_duration_seconds",
			Help:      "Time spent handing a snapshot to the store.",
			Buckets:   prometheus.DefBuckets,
		}),
		taps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "taps_total",
			Help:      "Manual taps credited.",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "rate_limited_total",
			Help:      "Requests refused by the tap limiter.",
		}),
	}
	r.registry.MustRegister(
		r.balance,
		r.income,
		r.fortune,
		r.transactions,
		r.persistFails,
		r.persistTime,
		r.taps,
		r.rateLimited,
		collectors.NewGoCollector(),
	)
	return r
}

func (r *Recorder) Applied(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "rejected"
	}
	r.transactions.WithLabelValues(kind, result).Inc()
}

func (r *Recorder) Published(s *game.GameState) {
	r.balance.Set(s.Balance)
	r.income.Set(s.AutoIncomePerSecond)
	r.fortune.Set(game.TotalFortune(s))
}

func (r *Recorder) Persisted(err error, took time.Duration) {
	r.persistTime.Observe(took.Seconds())
	if err != nil {
		r.persistFails.Inc()
	}
}

func (r *Recorder) Tapped() {
	r.taps.Inc()
}

func (r *Recorder) RateLimited() {
	r.rateLimited.Inc()
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
