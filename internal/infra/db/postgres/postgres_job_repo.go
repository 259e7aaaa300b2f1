package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"editorial-pipeline/internal/domain"
	"editorial-pipeline/internal/domain/model"
	"editorial-pipeline/internal/domain/ports/repository"
)

var _ repository.GenerationJobRepository = (*jobRepo)(nil)

const jobColumns = `id, category_id, author_id, brand_id, submitted_by, knowledge_source_id, conversion_offer_ids,
image_style, strategy, publish_at, status, cancel_requested, attempts, last_error, article_id,
created_at, started_at, completed_at`

const stageColumns = `id, job_id, ordinal, name, status, tokens_in, tokens_out, images, attempts,
COALESCE(output::text, ''), error, started_at, completed_at`

type jobRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewJobRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *jobRepo {
	return &jobRepo{pool: pool, tm: tm}
}

func (r *jobRepo) Create(ctx context.Context, tx repository.Tx, job *model.GenerationJob) error {
	if tx == nil {
		return r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			return r.Create(ctx, tx, job)
		})
	}

	const q = `
INSERT INTO generation_jobs (id, category_id, author_id, brand_id, submitted_by, knowledge_source_id,
  conversion_offer_ids, image_style, strategy, publish_at, status, cancel_requested, attempts, last_error,
  article_id, created_at, started_at, completed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18);`

	offers := job.ConversionOfferIDs
	if offers == nil {
		offers = []string{}
	}
	if _, err := execSQL(ctx, r.pool, tx, q,
		job.ID, job.CategoryID, job.AuthorID, job.BrandID, job.SubmittedBy, job.KnowledgeSourceID,
		offers, string(job.ImageStyle), string(job.Strategy), job.PublishAt, string(job.Status),
		job.CancelRequested, job.Attempts, job.LastError, job.ArticleID,
		job.CreatedAt, job.StartedAt, job.CompletedAt,
	); err != nil {
		return fmt.Errorf("insert job %s: %w", job.ID, err)
	}

	const qs = `
INSERT INTO generation_stages (id, job_id, ordinal, name, status, tokens_in, tokens_out, images, attempts,
  output, error, started_at, completed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13);`
	for i := range job.Stages {
		st := &job.Stages[i]
		if _, err := execSQL(ctx, r.pool, tx, qs,
			st.ID, job.ID, st.Ordinal, string(st.Name), string(st.Status),
			st.Usage.TokensIn, st.Usage.TokensOut, st.Usage.Images, st.Attempts,
			jsonArg(st.Output), st.Error, st.StartedAt, st.CompletedAt,
		); err != nil {
			return fmt.Errorf("insert stage %d of job %s: %w", st.Ordinal, job.ID, err)
		}
	}
	return nil
}

func (r *jobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.GenerationJob, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+jobColumns+` FROM generation_jobs WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	job, err := scanJob(row)
	if err != nil {
		return nil, translateErr(err)
	}

	byJob, err := r.stagesFor(ctx, tx, []string{job.ID})
	if err != nil {
		return nil, err
	}
	job.Stages = byJob[job.ID]
	return job, nil
}

func (r *jobRepo) Save(ctx context.Context, tx repository.Tx, job *model.GenerationJob) error {
	const q = `
UPDATE generation_jobs SET
  image_style = $2, status = $3, attempts = $4, last_error = $5, article_id = $6,
  started_at = $7, completed_at = $8
WHERE id = $1;`
	tag, err := execSQL(ctx, r.pool, tx, q,
		job.ID, string(job.ImageStyle), string(job.Status), job.Attempts, job.LastError, job.ArticleID,
		job.StartedAt, job.CompletedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *jobRepo) SaveStage(ctx context.Context, tx repository.Tx, st *model.GenerationStage) error {
	const q = `
UPDATE generation_stages SET
  status = $2, tokens_in = $3, tokens_out = $4, images = $5, attempts = $6,
  output = $7, error = $8, started_at = $9, completed_at = $10
WHERE id = $1;`
	tag, err := execSQL(ctx, r.pool, tx, q,
		st.ID, string(st.Status), st.Usage.TokensIn, st.Usage.TokensOut, st.Usage.Images, st.Attempts,
		jsonArg(st.Output), st.Error, st.StartedAt, st.CompletedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *jobRepo) RequestCancel(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	const q = `
UPDATE generation_jobs SET cancel_requested = TRUE
WHERE id = $1 AND status NOT IN ('completed', 'failed', 'cancelled');`
	tag, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}
	if _, err := r.CancelRequested(ctx, tx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (r *jobRepo) CancelRequested(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT cancel_requested FROM generation_jobs WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	var requested bool
	if err := row.Scan(&requested); err != nil {
		return false, translateErr(err)
	}
	return requested, nil
}

func (r *jobRepo) ClearCancel(ctx context.Context, tx repository.Tx, id string) error {
	tag, err := execSQL(ctx, r.pool, tx, `UPDATE generation_jobs SET cancel_requested = FALSE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *jobRepo) LastCompletedStyle(ctx context.Context, tx repository.Tx) (model.ImageStyle, error) {
	const q = `
SELECT image_style FROM generation_jobs
WHERE status = 'completed' AND completed_at IS NOT NULL
ORDER BY completed_at DESC
LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q)
	if err != nil {
		return "", err
	}
	var style string
	if err := row.Scan(&style); err != nil {
		return "", translateErr(err)
	}
	return model.ImageStyle(style), nil
}

func (r *jobRepo) List(ctx context.Context, tx repository.Tx, f repository.JobFilter) ([]*model.GenerationJob, error) {
	qb := sq.Select(jobColumns).From("generation_jobs").
		OrderBy("created_at DESC").
		PlaceholderFormat(sq.Dollar)
	if f.Status != "" {
		qb = qb.Where(sq.Eq{"status": string(f.Status)})
	}
	if f.SubmittedBy != "" {
		qb = qb.Where(sq.Eq{"submitted_by": f.SubmittedBy})
	}
	if f.Since != nil {
		qb = qb.Where(sq.GtOrEq{"created_at": *f.Since})
	}
	if f.Limit > 0 {
		qb = qb.Limit(uint64(f.Limit))
	}
	sql, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build job list query: %w", err)
	}

	rows, err := queryRows(ctx, r.pool, tx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		jobs []*model.GenerationJob
		ids  []string
	)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		jobs = append(jobs, j)
		ids = append(ids, j.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	if len(jobs) == 0 {
		return jobs, nil
	}

	byJob, err := r.stagesFor(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	for _, j := range jobs {
		j.Stages = byJob[j.ID]
	}
	return jobs, nil
}

func (r *jobRepo) stagesFor(ctx context.Context, tx repository.Tx, jobIDs []string) (map[string][]model.GenerationStage, error) {
	rows, err := queryRows(ctx, r.pool, tx,
		`SELECT `+stageColumns+` FROM generation_stages WHERE job_id = ANY($1) ORDER BY job_id, ordinal`, jobIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]model.GenerationStage, len(jobIDs))
	for rows.Next() {
		var (
			st           model.GenerationStage
			name, status string
			output       string
		)
		if err := rows.Scan(&st.ID, &st.JobID, &st.Ordinal, &name, &status,
			&st.Usage.TokensIn, &st.Usage.TokensOut, &st.Usage.Images, &st.Attempts,
			&output, &st.Error, &st.StartedAt, &st.CompletedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		st.Name = model.StageName(name)
		st.Status = model.StageStatus(status)
		if output != "" {
			st.Output = json.RawMessage(output)
		}
		out[st.JobID] = append(out[st.JobID], st)
	}
	return out, rows.Err()
}

func scanJob(row pgx.Row) (*model.GenerationJob, error) {
	var (
		j                       model.GenerationJob
		style, strategy, status string
	)
	if err := row.Scan(&j.ID, &j.CategoryID, &j.AuthorID, &j.BrandID, &j.SubmittedBy, &j.KnowledgeSourceID,
		&j.ConversionOfferIDs, &style, &strategy, &j.PublishAt, &status, &j.CancelRequested, &j.Attempts,
		&j.LastError, &j.ArticleID, &j.CreatedAt, &j.StartedAt, &j.CompletedAt); err != nil {
		return nil, err
	}
	j.ImageStyle = model.ImageStyle(style)
	j.Strategy = model.PublishStrategy(strategy)
	j.Status = model.JobStatus(status)
	return &j, nil
}

// jsonArg hands JSON to pgx as text so an empty payload is stored as SQL NULL.
func jsonArg(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
