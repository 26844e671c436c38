package session

import "github.com/prometheus/client_golang/prometheus"

var (
	tokensGeneratedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "session",
			Name:      "tokens_generated_total",
			Help:      "Tokens emitted across all generations",
		},
	)

	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "session",
			Name:      "generations_total",
			Help:      "Generations by terminal outcome",
		},
		[]string{"outcome"},
	)

	safetyBlocksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "session",
			Name:      "safety_blocks_total",
			Help:      "Safety filter denials by stage",
		},
		[]string{"stage"},
	)

	windowEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "session",
			Name:      "window_evictions_total",
			Help:      "Conversation exchanges evicted by the sliding window",
		},
	)
)

func init() {
	prometheus.MustRegister(tokensGeneratedTotal, generationsTotal, safetyBlocksTotal, windowEvictionsTotal)
}
