package model

import "time"

type LimiterClass string

const (
	LimiterJobSubmission   LimiterClass = "job_submission"
	LimiterImageGeneration LimiterClass = "image_generation"
)

// LimitPolicy is the ceiling of requests allowed per window for one class.
type LimitPolicy struct {
	Ceiling int
	Window  time.Duration
}

// RateLimitRecord is the counter state of one (identity, class) window.
type RateLimitRecord struct {
	Key     string
	Count   int
	ResetAt time.Time
}

// AdmissionDecision is the outcome of one limiter check. Denial is a normal value.
type AdmissionDecision struct {
	Allowed    bool
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}
