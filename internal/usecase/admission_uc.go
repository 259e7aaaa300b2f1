package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"editorial-pipeline/internal/domain"
	"editorial-pipeline/internal/domain/model"
	"editorial-pipeline/internal/domain/ports/repository"
	"editorial-pipeline/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ AdmissionUseCase = (*AdmissionLimiter)(nil)

type AdmissionUseCase interface {
	// Allow counts one request for identity against the class quota. A denial is a normal decision.
	Allow(ctx context.Context, identity string, class model.LimiterClass) (model.AdmissionDecision, error)
}

// AdmissionLimiter applies fixed-window quotas stored in a shared counter store.
type AdmissionLimiter struct {
	store    repository.RateLimitStore
	policies map[model.LimiterClass]model.LimitPolicy
	now      func() time.Time
	log      *zerolog.Logger
}

func NewAdmissionLimiter(store repository.RateLimitStore, policies map[model.LimiterClass]model.LimitPolicy, logger *zerolog.Logger) *AdmissionLimiter {
	l := logger.With().Str("component", "admission").Logger()
	return &AdmissionLimiter{store: store, policies: policies, now: time.Now, log: &l}
}

// RateLimitKey is the counter key of one (class, identity) pair.
func RateLimitKey(class model.LimiterClass, identity string) string {
	return fmt.Sprintf("rate_limit:%s:%s", class, strings.ToLower(strings.TrimSpace(identity)))
}

func (a *AdmissionLimiter) Allow(ctx context.Context, identity string, class model.LimiterClass) (model.AdmissionDecision, error) {
	policy, ok := a.policies[class]
	if !ok || policy.Ceiling <= 0 || policy.Window <= 0 {
		return model.AdmissionDecision{}, fmt.Errorf("%w: no limit policy for %q", domain.ErrInvalidArgument, class)
	}
	if strings.TrimSpace(identity) == "" {
		identity = "anonymous"
	}

	rec, allowed, err := a.store.Hit(ctx, RateLimitKey(class, identity), policy.Ceiling, policy.Window)
	if err != nil {
		return model.AdmissionDecision{}, err
	}

	now := a.now()
	dec := model.AdmissionDecision{Allowed: allowed, ResetAt: rec.ResetAt}
	if rem := policy.Ceiling - rec.Count; rem > 0 {
		dec.Remaining = rem
	}
	if !allowed {
		dec.RetryAfter = rec.ResetAt.Sub(now)
		if dec.RetryAfter < time.Second {
			dec.RetryAfter = time.Second
		}
		a.log.Info().Str("class", string(class)).Str("identity", identity).
			Dur("retry_after", dec.RetryAfter).Msg("admission denied")
	}
	metrics.ObserveAdmission(string(class), allowed)
	return dec, nil
}

// Require converts a denial into a *domain.AdmissionError.
func Require(ctx context.Context, l AdmissionUseCase, identity string, class model.LimiterClass) error {
	dec, err := l.Allow(ctx, identity, class)
	if err != nil {
		return err
	}
	if !dec.Allowed {
		return &domain.AdmissionError{Class: string(class), RetryAfter: dec.RetryAfter}
	}
	return nil
}
