package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/jonathan/resume-optimizer/internal/stage"
	"github.com/jonathan/resume-optimizer/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "resume_optimizer"

// Metrics records pipeline measurements on its own registry. It satisfies
// pipeline.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	stageDuration *prometheus.HistogramVec
	stageErrors   *prometheus.CounterVec
	stageTokens   *prometheus.CounterVec
	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
	atsScore      prometheus.Histogram
	rewrites      prometheus.Histogram
}

// NewMetrics creates the collectors and registers them, together with the Go
// runtime and process collectors, on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent in one stage invocation.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		stageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "stage_errors_total",
			Help:      "Stage invocations that failed.",
		}, []string{"stage", "recoverable"}),
		stageTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "stage_tokens_total",
			Help:      "Tokens spent per stage across all invocations.",
		}, []string{"stage"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "run_duration_seconds",
			Help:      "End to end pipeline run time.",
			Buckets:   []float64{1, 5, 10, 20, 30, 60, 120, 300},
		}),
		atsScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "ats_score",
			Help:      "Final ATS score of successful runs.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		rewrites: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "rewrite_attempts",
			Help:      "Rewrite attempts used by successful runs.",
			Buckets:   []float64{1, 2, 3, 4, 5},
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.stageDuration, m.stageErrors, m.stageTokens,
		m.runs, m.runDuration, m.atsScore, m.rewrites,
	)
	return m
}

// ObserveStage records one stage invocation.
func (m *Metrics) ObserveStage(name types.StageName, elapsed time.Duration, tokens int, err error) {
	m.stageDuration.WithLabelValues(name.String()).Observe(elapsed.Seconds())
	if tokens > 0 {
		m.stageTokens.WithLabelValues(name.String()).Add(float64(tokens))
	}
	if err != nil {
		m.stageErrors.WithLabelValues(name.String(), strconv.FormatBool(stage.IsRecoverable(err))).Inc()
	}
}

// ObserveRun records the outcome of one pipeline run.
func (m *Metrics) ObserveRun(result *types.FinalResult, elapsed time.Duration, err error) {
	m.runDuration.Observe(elapsed.Seconds())
	if err != nil {
		m.runs.WithLabelValues("failed").Inc()
		return
	}
	m.runs.WithLabelValues("completed").Inc()
	if result != nil {
		m.atsScore.Observe(result.ATSScore)
		m.rewrites.Observe(float64(result.RewriteAttempts))
	}
}

// Registry exposes the registry for tests and custom collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
