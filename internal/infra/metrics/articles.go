package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(articleWrites, scheduleEvents) }

var (
	articleWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "editorial_article_writes_total",
			Help: "Versioned article writes by operation and result.",
		},
		[]string{"op", "result"}, // result: 'ok', 'conflict'
	)

	scheduleEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "editorial_schedule_events_total",
			Help: "Scheduled-publish intents armed, disarmed and fired.",
		},
		[]string{"event"},
	)
)

func IncArticleWrite(op, result string) {
	articleWrites.WithLabelValues(norm(op), norm(result)).Inc()
}

func IncSchedule(event string) {
	scheduleEvents.WithLabelValues(norm(event)).Inc()
}
