package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(admissionDecisions) }

var admissionDecisions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "editorial_admission_decisions_total",
		Help: "Rate limiter decisions by class and result.",
	},
	[]string{"class", "result"}, // result: 'allowed', 'denied'
)

func ObserveAdmission(class string, allowed bool) {
	result := "denied"
	if allowed {
		result = "allowed"
	}
	admissionDecisions.WithLabelValues(norm(class), result).Inc()
}
