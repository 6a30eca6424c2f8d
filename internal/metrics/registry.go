// Package metrics exposes Prometheus instrumentation for screening and
// backtest runs. A Registry owns its own prometheus.Registry so repeated
// construction in tests never trips duplicate-registration panics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	io_prometheus_client "github.com/prometheus/client_model/go"

	"github.com/swingdesk/swingrun/internal/backtest"
	"github.com/swingdesk/swingrun/internal/pipeline"
)

// Registry holds the collectors for one process. Screen and backtest runs
// feed it whole Result values after the fact rather than instrumenting the
// hot path per symbol.
type Registry struct {
	registry *prometheus.Registry

	// Run-level metrics
	RunDuration     *prometheus.HistogramVec
	SymbolsScreened prometheus.Counter
	SignalsEmitted  prometheus.Counter
	SymbolErrors    *prometheus.CounterVec

	// Gate metrics
	GatePasses     prometheus.Counter
	GateRejections prometheus.Counter
	GateFailures   *prometheus.CounterVec
	GatePassRate   prometheus.Gauge

	// Quality and safety metrics
	Grades           *prometheus.CounterVec
	SafetyRejections *prometheus.CounterVec

	// Backtest metrics
	BacktestTrades   prometheus.Counter
	BacktestOutcomes *prometheus.CounterVec
	BacktestWinRate  prometheus.Gauge
}

// NewRegistry creates a Registry with all collectors registered.
func NewRegistry() *Registry {
	registry := prometheus.NewRegistry()

	r := &Registry{
		registry: registry,

		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "swingrun_run_duration_seconds",
			Help:    "End-to-end duration of screen and backtest runs",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"command"}),

		SymbolsScreened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swingrun_symbols_screened_total",
			Help: "Symbols that completed evaluation",
		}),

		SignalsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swingrun_signals_total",
			Help: "Fully approved swing signals emitted",
		}),

		SymbolErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swingrun_symbol_errors_total",
			Help: "Symbols skipped due to data or evaluation errors",
		}, []string{"kind"}),

		GatePasses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swingrun_gate_passes_total",
			Help: "Evaluations that cleared all mandatory gates",
		}),

		GateRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swingrun_gate_rejections_total",
			Help: "Evaluations rejected by the mandatory gates",
		}),

		GateFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swingrun_gate_failures_total",
			Help: "Individual gate check failures by check name",
		}, []string{"check"}),

		GatePassRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swingrun_gate_pass_rate",
			Help: "Fraction of gated evaluations that passed all mandatory gates",
		}),

		Grades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swingrun_grades_total",
			Help: "Quality grades assigned to gate-passing evaluations",
		}, []string{"grade"}),

		SafetyRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swingrun_safety_rejections_total",
			Help: "Graded candidates rejected by safety rules, by rule",
		}, []string{"rule"}),

		BacktestTrades: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swingrun_backtest_trades_total",
			Help: "Trades simulated across backtest runs",
		}),

		BacktestOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swingrun_backtest_outcomes_total",
			Help: "Closed backtest trades by exit reason",
		}, []string{"reason"}),

		BacktestWinRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swingrun_backtest_win_rate",
			Help: "Win rate over closed trades in the most recent backtest",
		}),
	}

	registry.MustRegister(
		r.RunDuration,
		r.SymbolsScreened,
		r.SignalsEmitted,
		r.SymbolErrors,
		r.GatePasses,
		r.GateRejections,
		r.GateFailures,
		r.GatePassRate,
		r.Grades,
		r.SafetyRejections,
		r.BacktestTrades,
		r.BacktestOutcomes,
		r.BacktestWinRate,
	)

	return r
}

// ObserveScreen records one completed screening run.
func (r *Registry) ObserveScreen(res *pipeline.Result) {
	if res == nil {
		return
	}

	if d, err := time.ParseDuration(res.Duration); err == nil {
		r.RunDuration.WithLabelValues("screen").Observe(d.Seconds())
	}

	r.SymbolsScreened.Add(float64(res.Totals.Evaluated))
	r.SignalsEmitted.Add(float64(res.Totals.Signals))

	for _, eval := range res.Evaluations {
		if eval == nil {
			continue
		}
		if eval.Mandatory != nil {
			if eval.Mandatory.Passed {
				r.GatePasses.Inc()
			} else {
				r.GateRejections.Inc()
				for name, check := range eval.Mandatory.Checks {
					if check != nil && !check.Passed {
						r.GateFailures.WithLabelValues(name).Inc()
					}
				}
			}
		}
		if eval.Quality != nil {
			r.Grades.WithLabelValues(string(eval.Quality.Grade)).Inc()
		}
		if eval.Status == pipeline.StatusSafetyReject && eval.Safety.Rule != "" {
			r.SafetyRejections.WithLabelValues(eval.Safety.Rule).Inc()
		}
	}

	for _, se := range res.Errors {
		r.SymbolErrors.WithLabelValues(se.Kind).Inc()
	}

	r.updateGatePassRate()
}

// ObserveBacktest records one completed backtest run.
func (r *Registry) ObserveBacktest(res *backtest.Result) {
	if res == nil {
		return
	}

	if d, err := time.ParseDuration(res.Duration); err == nil {
		r.RunDuration.WithLabelValues("backtest").Observe(d.Seconds())
	}

	if res.Summary == nil {
		return
	}

	r.BacktestTrades.Add(float64(res.Summary.Trades))
	for reason, count := range res.Summary.ByReason {
		r.BacktestOutcomes.WithLabelValues(reason).Add(float64(count))
	}
	if res.Summary.Closed > 0 {
		r.BacktestWinRate.Set(res.Summary.WinRate / 100)
	}
}

// WatchCache registers gauges that read live hit and miss totals from the
// provider cache. Call at most once per Registry.
func (r *Registry) WatchCache(stats func() (hits, misses int64)) {
	r.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "swingrun_cache_hits",
			Help: "Daily history lookups served from cache",
		}, func() float64 {
			hits, _ := stats()
			return float64(hits)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "swingrun_cache_misses",
			Help: "Daily history lookups that went to the provider",
		}, func() float64 {
			_, misses := stats()
			return float64(misses)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "swingrun_cache_hit_ratio",
			Help: "Fraction of daily history lookups served from cache",
		}, func() float64 {
			hits, misses := stats()
			total := hits + misses
			if total == 0 {
				return 0
			}
			return float64(hits) / float64(total)
		}),
	)
}

// Handler serves this Registry's collectors in the Prometheus exposition
// format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Gather exposes the underlying gatherer for tests and status endpoints.
func (r *Registry) Gather() ([]*io_prometheus_client.MetricFamily, error) {
	return r.registry.Gather()
}

func (r *Registry) updateGatePassRate() {
	var pass, reject io_prometheus_client.Metric
	if err := r.GatePasses.Write(&pass); err != nil {
		return
	}
	if err := r.GateRejections.Write(&reject); err != nil {
		return
	}

	passed := pass.GetCounter().GetValue()
	total := passed + reject.GetCounter().GetValue()
	if total > 0 {
		r.GatePassRate.Set(passed / total)
	}
}
