package router

import "github.com/prometheus/client_golang/prometheus"

var (
	selectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "router",
			Name:      "selections_total",
			Help:      "Backend selections by task and chosen backend",
		},
		[]string{"task", "backend"},
	)

	benchmarkRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "router",
			Name:      "benchmark_runs_total",
			Help:      "Device benchmark invocations by outcome",
		},
		[]string{"outcome"},
	)

	fallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "router",
			Name:      "fallbacks_total",
			Help:      "Selections that fell back to the CPU backend after support validation failed",
		},
	)
)

func init() {
	prometheus.MustRegister(selectionsTotal, benchmarkRunsTotal, fallbacksTotal)
}
