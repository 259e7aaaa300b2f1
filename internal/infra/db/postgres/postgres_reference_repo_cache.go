package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"editorial-pipeline/internal/domain/model"
	"editorial-pipeline/internal/domain/ports/repository"
	"editorial-pipeline/internal/infra/metrics"
	red "editorial-pipeline/internal/infra/redis"
)

var _ repository.ReferenceRepository = (*referenceRepoCacheDecorator)(nil)

// referenceRepoCacheDecorator caches single-entity lookups. Reference data is
// owned by the CMS, so entries simply expire after ttl.
type referenceRepoCacheDecorator struct {
	inner repository.ReferenceRepository
	cache red.RedisClient
	ttl   time.Duration
	log   zerolog.Logger
}

func NewReferenceRepoCacheDecorator(inner repository.ReferenceRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.ReferenceRepository {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &referenceRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   ttl,
		log:   logger.With().Str("component", "reference_cache").Logger(),
	}
}

func (d *referenceRepoCacheDecorator) Category(ctx context.Context, tx repository.Tx, id string) (*model.Category, error) {
	return cachedLookup(ctx, d, "category", id, func() (*model.Category, error) { return d.inner.Category(ctx, tx, id) })
}

func (d *referenceRepoCacheDecorator) Author(ctx context.Context, tx repository.Tx, id string) (*model.Author, error) {
	return cachedLookup(ctx, d, "author", id, func() (*model.Author, error) { return d.inner.Author(ctx, tx, id) })
}

func (d *referenceRepoCacheDecorator) Brand(ctx context.Context, tx repository.Tx, id string) (*model.Brand, error) {
	return cachedLookup(ctx, d, "brand", id, func() (*model.Brand, error) { return d.inner.Brand(ctx, tx, id) })
}

// KnowledgeSource bodies can be large and are read once per stage at most; not cached.
func (d *referenceRepoCacheDecorator) KnowledgeSource(ctx context.Context, tx repository.Tx, id string) (*model.KnowledgeSource, error) {
	return d.inner.KnowledgeSource(ctx, tx, id)
}

func (d *referenceRepoCacheDecorator) ConversionOffers(ctx context.Context, tx repository.Tx, ids []string) ([]model.ConversionOffer, error) {
	return d.inner.ConversionOffers(ctx, tx, ids)
}

func cachedLookup[T any](ctx context.Context, d *referenceRepoCacheDecorator, name, id string, load func() (*T, error)) (*T, error) {
	key := fmt.Sprintf("ref:%s:%s", name, id)
	val, err := d.cache.Get(ctx, key)
	switch {
	case err == nil:
		var v T
		if json.Unmarshal([]byte(val), &v) == nil {
			metrics.IncCacheRequest(name, "hit")
			return &v, nil
		}
	case !errors.Is(err, red.ErrCacheMiss):
		metrics.IncCacheRequest(name, "error")
		d.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}

	metrics.IncCacheRequest(name, "miss")
	v, err := load()
	if err != nil {
		return nil, err
	}
	if b, merr := json.Marshal(v); merr == nil {
		if serr := d.cache.Set(ctx, key, b, d.ttl); serr != nil {
			d.log.Warn().Err(serr).Str("key", key).Msg("cache write failed")
		}
	}
	return v, nil
}
