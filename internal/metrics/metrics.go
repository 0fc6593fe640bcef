package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "tubesum"

	// Labels
	statusLabel   = "status"
	stageLabel    = "stage"
	kindLabel     = "kind"
	providerLabel = "provider"
	modelLabel    = "model"
	serviceLabel  = "service"
	directionLbl  = "direction"
)

/**
* Metrics definition
**/
var jobsSubmittedMetric = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_submitted_total",
		Help:      "number of summarization jobs accepted",
	},
)

var jobsFinishedMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_finished_total",
		Help:      "number of jobs that reached a terminal status",
	},
	[]string{statusLabel},
)

var jobsInFlightMetric = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "jobs_in_flight",
		Help:      "number of jobs currently executing a pipeline stage",
	},
)

var stageDurationMetric = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "wall time spent in each pipeline stage",
		Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
	},
	[]string{stageLabel},
)

var stageFailuresMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stage_failures_total",
		Help:      "number of stage failures by error kind",
	},
	[]string{stageLabel, kindLabel},
)

var aiTokensMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ai_tokens_total",
		Help:      "tokens consumed by AI providers",
	},
	[]string{providerLabel, modelLabel, directionLbl},
)

var aiCostMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ai_cost_usd_total",
		Help:      "estimated spend on AI providers in USD",
	},
	[]string{providerLabel, serviceLabel},
)

func IncreaseJobsSubmitted() {
	jobsSubmittedMetric.Inc()
}

func IncreaseJobsFinished(status string) {
	jobsFinishedMetric.With(prometheus.Labels{statusLabel: status}).Inc()
}

// TrackInFlight increments the in-flight gauge and returns the matching decrement.
func TrackInFlight() func() {
	jobsInFlightMetric.Inc()
	return jobsInFlightMetric.Dec
}

func ObserveStageDuration(stage string, d time.Duration) {
	stageDurationMetric.With(prometheus.Labels{stageLabel: stage}).Observe(d.Seconds())
}

func IncreaseStageFailures(stage, kind string) {
	stageFailuresMetric.With(prometheus.Labels{stageLabel: stage, kindLabel: kind}).Inc()
}

func AddTokens(provider, model string, input, output int) {
	if input > 0 {
		aiTokensMetric.With(prometheus.Labels{providerLabel: provider, modelLabel: model, directionLbl: "input"}).Add(float64(input))
	}
	if output > 0 {
		aiTokensMetric.With(prometheus.Labels{providerLabel: provider, modelLabel: model, directionLbl: "output"}).Add(float64(output))
	}
}

func AddCost(provider, service string, usd float64) {
	if usd > 0 {
		aiCostMetric.With(prometheus.Labels{providerLabel: provider, serviceLabel: service}).Add(usd)
	}
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(jobsSubmittedMetric)
	prometheus.MustRegister(jobsFinishedMetric)
	prometheus.MustRegister(jobsInFlightMetric)
	prometheus.MustRegister(stageDurationMetric)
	prometheus.MustRegister(stageFailuresMetric)
	prometheus.MustRegister(aiTokensMetric)
	prometheus.MustRegister(aiCostMetric)
}
