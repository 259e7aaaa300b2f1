package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobsFinishedTotal, signalsTotal) }

var (
	jobsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "editorial_jobs_finished_total",
			Help: "Generation jobs that reached a terminal status.",
		},
		[]string{"status"}, // 'completed', 'failed', 'cancelled'
	)

	signalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "editorial_stage_signals_total",
			Help: "Stage signals handled by the consumer, labeled by result.",
		},
		[]string{"result"}, // 'ack', 'nack', 'busy', 'error'
	)
)

func IncJob(status string) {
	jobsFinishedTotal.WithLabelValues(norm(status)).Inc()
}

func IncSignal(result string) {
	signalsTotal.WithLabelValues(norm(result)).Inc()
}
