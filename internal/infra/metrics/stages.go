package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(stageDuration, stageTokens, stageImages) }

var (
	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "editorial_stage_duration_seconds",
			Help:    "Wall time of a stage execution.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"stage", "result"},
	)

	stageTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "editorial_stage_tokens_total",
			Help: "LLM tokens consumed per stage and direction.",
		},
		[]string{"stage", "direction"}, // 'in', 'out'
	)

	stageImages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "editorial_stage_images_total",
			Help: "Images generated per stage.",
		},
		[]string{"stage"},
	)
)

func ObserveStage(stage, result string, seconds float64, tokensIn, tokensOut, images int) {
	stageDuration.WithLabelValues(norm(stage), norm(result)).Observe(seconds)
	if tokensIn > 0 {
		stageTokens.WithLabelValues(norm(stage), "in").Add(float64(tokensIn))
	}
	if tokensOut > 0 {
		stageTokens.WithLabelValues(norm(stage), "out").Add(float64(tokensOut))
	}
	if images > 0 {
		stageImages.WithLabelValues(norm(stage)).Add(float64(images))
	}
}
