package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"editorial-pipeline/internal/domain"
	"editorial-pipeline/internal/domain/model"
	"editorial-pipeline/internal/domain/ports/repository"
)

var _ repository.ReferenceRepository = (*referenceRepo)(nil)

type referenceRepo struct {
	pool *pgxpool.Pool
}

func NewReferenceRepo(pool *pgxpool.Pool) *referenceRepo {
	return &referenceRepo{pool: pool}
}

func (r *referenceRepo) Category(ctx context.Context, tx repository.Tx, id string) (*model.Category, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT id, name, slug FROM categories WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	var c model.Category
	if err := row.Scan(&c.ID, &c.Name, &c.Slug); err != nil {
		return nil, translateErr(err)
	}
	return &c, nil
}

func (r *referenceRepo) Author(ctx context.Context, tx repository.Tx, id string) (*model.Author, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT id, name, persona, tone FROM authors WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	var a model.Author
	if err := row.Scan(&a.ID, &a.Name, &a.Persona, &a.Tone); err != nil {
		return nil, translateErr(err)
	}
	return &a, nil
}

func (r *referenceRepo) Brand(ctx context.Context, tx repository.Tx, id string) (*model.Brand, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT id, name, voice, site FROM brands WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	var b model.Brand
	if err := row.Scan(&b.ID, &b.Name, &b.Voice, &b.Site); err != nil {
		return nil, translateErr(err)
	}
	return &b, nil
}

func (r *referenceRepo) KnowledgeSource(ctx context.Context, tx repository.Tx, id string) (*model.KnowledgeSource, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT id, title, body, url FROM knowledge_sources WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	var k model.KnowledgeSource
	if err := row.Scan(&k.ID, &k.Title, &k.Body, &k.URL); err != nil {
		return nil, translateErr(err)
	}
	return &k, nil
}

// ConversionOffers returns the offers that exist, in the order ids were given. Unknown ids are skipped.
func (r *referenceRepo) ConversionOffers(ctx context.Context, tx repository.Tx, ids []string) ([]model.ConversionOffer, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := queryRows(ctx, r.pool, tx,
		`SELECT id, title, url, cta FROM conversion_offers WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]model.ConversionOffer, len(ids))
	for rows.Next() {
		var o model.ConversionOffer
		if err := rows.Scan(&o.ID, &o.Title, &o.URL, &o.CTA); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		byID[o.ID] = o
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]model.ConversionOffer, 0, len(byID))
	for _, id := range ids {
		if o, ok := byID[id]; ok {
			out = append(out, o)
		}
	}
	return out, nil
}
