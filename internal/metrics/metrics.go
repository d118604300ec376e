package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the farmer's collectors on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	reg *prometheus.Registry

	taps         prometheus.Counter
	clicks       prometheus.Counter
	gold         prometheus.Counter
	callFailures *prometheus.CounterVec
	exhausted    *prometheus.CounterVec
	accounts     *prometheus.CounterVec
	tasks        *prometheus.CounterVec
	passes       prometheus.Counter
	passSeconds  prometheus.Histogram
	barAvailable *prometheus.GaugeVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		taps: f.NewCounter(prometheus.CounterOpts{
			Name: "tapfarm_taps_total",
			Help: "Tap requests that succeeded.",
		}),
		clicks: f.NewCounter(prometheus.CounterOpts{
			Name: "tapfarm_clicks_total",
			Help: "Clicks sent with successful taps.",
		}),
		gold: f.NewCounter(prometheus.CounterOpts{
			Name: "tapfarm_gold_total",
			Help: "Gold reported by tap results.",
		}),
		callFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tapfarm_call_failures_total",
			Help: "Failed remote call attempts, before retry.",
		}, []string{"op"}),
		exhausted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tapfarm_retry_exhausted_total",
			Help: "Remote calls that failed every attempt.",
		}, []string{"op"}),
		accounts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tapfarm_account_runs_total",
			Help: "Account workflows by terminal status.",
		}, []string{"status"}),
		tasks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tapfarm_task_finish_total",
			Help: "Task finish attempts by result.",
		}, []string{"result"}),
		passes: f.NewCounter(prometheus.CounterOpts{
			Name: "tapfarm_passes_total",
			Help: "Completed scheduling passes.",
		}),
		passSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "tapfarm_pass_duration_seconds",
			Help:    "Wall time of one pass over all accounts.",
			Buckets: prometheus.ExponentialBuckets(30, 2, 10),
		}),
		barAvailable: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tapfarm_bar_available",
			Help: "Last observed available bar amount per account.",
		}, []string{"account"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) ObserveTap(accountID string, clicks, gold, barAvailable int64) {
	if m == nil {
		return
	}
	m.taps.Inc()
	m.clicks.Add(float64(clicks))
	if gold > 0 {
		m.gold.Add(float64(gold))
	}
	m.barAvailable.WithLabelValues(accountID).Set(float64(barAvailable))
}

func (m *Metrics) CallFailed(op string) {
	if m == nil {
		return
	}
	m.callFailures.WithLabelValues(op).Inc()
}

func (m *Metrics) RetryExhausted(op string) {
	if m == nil {
		return
	}
	m.exhausted.WithLabelValues(op).Inc()
}

func (m *Metrics) TaskFinished(ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failed"
	}
	m.tasks.WithLabelValues(result).Inc()
}

func (m *Metrics) AccountDone(status string) {
	if m == nil {
		return
	}
	m.accounts.WithLabelValues(status).Inc()
}

func (m *Metrics) PassDone(seconds float64) {
	if m == nil {
		return
	}
	m.passes.Inc()
	m.passSeconds.Observe(seconds)
}
