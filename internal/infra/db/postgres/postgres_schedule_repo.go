package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"editorial-pipeline/internal/domain"
	"editorial-pipeline/internal/domain/model"
	"editorial-pipeline/internal/domain/ports/repository"
)

var _ repository.ScheduleRepository = (*scheduleRepo)(nil)

type scheduleRepo struct {
	pool *pgxpool.Pool
}

func NewScheduleRepo(pool *pgxpool.Pool) *scheduleRepo {
	return &scheduleRepo{pool: pool}
}

func (r *scheduleRepo) Upsert(ctx context.Context, tx repository.Tx, in *model.ScheduledPublishIntent) error {
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now()
	}
	const q = `
INSERT INTO scheduled_publish_intents (article_id, version, fire_at, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (article_id) DO UPDATE SET
  version = EXCLUDED.version,
  fire_at = EXCLUDED.fire_at,
  created_at = EXCLUDED.created_at;`
	_, err := execSQL(ctx, r.pool, tx, q, in.ArticleID, in.Version, in.FireAt, in.CreatedAt)
	return err
}

func (r *scheduleRepo) Delete(ctx context.Context, tx repository.Tx, articleID string) error {
	_, err := execSQL(ctx, r.pool, tx, `DELETE FROM scheduled_publish_intents WHERE article_id = $1`, articleID)
	return err
}

// Lock must run inside a transaction; the row stays claimed until it ends.
func (r *scheduleRepo) Lock(ctx context.Context, tx repository.Tx, articleID string) (*model.ScheduledPublishIntent, error) {
	if tx == nil {
		return nil, domain.ErrInvalidExecContext
	}
	const q = `
SELECT article_id, version, fire_at, created_at
FROM scheduled_publish_intents
WHERE article_id = $1
FOR UPDATE SKIP LOCKED;`
	row, err := pickRow(ctx, r.pool, tx, q, articleID)
	if err != nil {
		return nil, err
	}
	var in model.ScheduledPublishIntent
	if err := row.Scan(&in.ArticleID, &in.Version, &in.FireAt, &in.CreatedAt); err != nil {
		return nil, translateErr(err)
	}
	return &in, nil
}

func (r *scheduleRepo) ListDue(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.ScheduledPublishIntent, error) {
	const q = `
SELECT article_id, version, fire_at, created_at
FROM scheduled_publish_intents
WHERE fire_at <= $1
ORDER BY fire_at
LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.ScheduledPublishIntent
	for rows.Next() {
		var in model.ScheduledPublishIntent
		if err := rows.Scan(&in.ArticleID, &in.Version, &in.FireAt, &in.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, &in)
	}
	return out, rows.Err()
}

func (r *scheduleRepo) NextFireAt(ctx context.Context, tx repository.Tx) (time.Time, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT MIN(fire_at) FROM scheduled_publish_intents`)
	if err != nil {
		return time.Time{}, err
	}
	var at *time.Time
	if err := row.Scan(&at); err != nil {
		return time.Time{}, translateErr(err)
	}
	if at == nil {
		return time.Time{}, domain.ErrNotFound
	}
	return *at, nil
}
