package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"editorial-pipeline/internal/domain"
	"editorial-pipeline/internal/domain/model"
	"editorial-pipeline/internal/domain/ports/repository"
)

var _ repository.ArticleRepository = (*articleRepo)(nil)

type articleRepo struct {
	pool *pgxpool.Pool
}

func NewArticleRepo(pool *pgxpool.Pool) *articleRepo {
	return &articleRepo{pool: pool}
}

func (r *articleRepo) Create(ctx context.Context, tx repository.Tx, a *model.Article) (bool, error) {
	blocks, err := encodeBlocks(a.Blocks)
	if err != nil {
		return false, err
	}
	const q = `
INSERT INTO articles (id, job_id, category_id, author_id, brand_id, title, slug, excerpt,
  meta_title, meta_description, blocks, status, version, publish_at, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
ON CONFLICT (id) DO NOTHING;`
	tag, err := execSQL(ctx, r.pool, tx, q,
		a.ID, a.JobID, a.CategoryID, a.AuthorID, a.BrandID, a.Title, a.Slug, a.Excerpt,
		a.MetaTitle, a.MetaDescription, blocks, string(a.Status), a.Version, a.PublishAt,
		a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *articleRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Article, error) {
	const q = `
SELECT id, job_id, category_id, author_id, brand_id, title, slug, excerpt, meta_title, meta_description,
  blocks::text, status, version, publish_at, created_at, updated_at
FROM articles WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}

	var (
		a              model.Article
		blocks, status string
	)
	if err := row.Scan(&a.ID, &a.JobID, &a.CategoryID, &a.AuthorID, &a.BrandID, &a.Title, &a.Slug, &a.Excerpt,
		&a.MetaTitle, &a.MetaDescription, &blocks, &status, &a.Version, &a.PublishAt,
		&a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, translateErr(err)
	}
	if err := json.Unmarshal([]byte(blocks), &a.Blocks); err != nil {
		return nil, fmt.Errorf("decode blocks of article %s: %w", id, err)
	}
	a.Status = model.ArticleStatus(status)
	return &a, nil
}

// CompareAndSwap is a single conditional UPDATE; the version bump happens in SQL.
func (r *articleRepo) CompareAndSwap(ctx context.Context, tx repository.Tx, a *model.Article, expectedVersion int64) (int64, error) {
	blocks, err := encodeBlocks(a.Blocks)
	if err != nil {
		return 0, err
	}
	sql, args, err := sq.Update("articles").
		SetMap(map[string]interface{}{
			"title":            a.Title,
			"slug":             a.Slug,
			"excerpt":          a.Excerpt,
			"meta_title":       a.MetaTitle,
			"meta_description": a.MetaDescription,
			"blocks":           blocks,
			"status":           string(a.Status),
			"publish_at":       a.PublishAt,
			"updated_at":       a.UpdatedAt,
			"version":          sq.Expr("version + 1"),
		}).
		Where(sq.Eq{"id": a.ID, "version": expectedVersion}).
		Suffix("RETURNING version").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build article update: %w", err)
	}

	row, err := pickRow(ctx, r.pool, tx, sql, args...)
	if err != nil {
		return 0, err
	}
	var version int64
	if err := row.Scan(&version); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return 0, translateErr(err)
		}
		// Nothing matched: either the row is gone or the version moved on.
		if _, ferr := r.FindByID(ctx, tx, a.ID); ferr != nil {
			return 0, ferr
		}
		return 0, domain.ErrVersionConflict
	}
	return version, nil
}

func encodeBlocks(blocks []model.ContentBlock) (string, error) {
	if blocks == nil {
		blocks = []model.ContentBlock{}
	}
	b, err := json.Marshal(blocks)
	if err != nil {
		return "", fmt.Errorf("encode blocks: %w", err)
	}
	return string(b), nil
}
