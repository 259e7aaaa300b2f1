//go:build !integration

package apiv1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	apiv1 "editorial-pipeline/internal/infra/api/apiv1"
	"editorial-pipeline/internal/infra/logging"
	"editorial-pipeline/internal/usecase"

	"editorial-pipeline/internal/domain"
	"editorial-pipeline/internal/domain/model"
	"editorial-pipeline/internal/domain/ports/repository"
)

//
// ---------------- use case fakes ----------------
//

type fakeJobs struct {
	submitted []usecase.SubmitRequest
	submitErr error
	jobs      map[string]*model.GenerationJob
	lastList  repository.JobFilter
	cancelErr error
}

func (f *fakeJobs) Submit(ctx context.Context, req usecase.SubmitRequest) ([]*model.GenerationJob, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.submitted = append(f.submitted, req)
	var out []*model.GenerationJob
	for _, ks := range req.KnowledgeSourceIDs {
		out = append(out, &model.GenerationJob{ID: "job-" + ks, KnowledgeSourceID: ks, Status: model.JobStatusPending, Strategy: req.Strategy, SubmittedBy: req.SubmittedBy})
	}
	return out, nil
}

func (f *fakeJobs) Get(ctx context.Context, id string) (*model.GenerationJob, error) {
	j, ok := f.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return j, nil
}

func (f *fakeJobs) List(ctx context.Context, flt repository.JobFilter) ([]*model.GenerationJob, error) {
	f.lastList = flt
	var out []*model.GenerationJob
	for _, j := range f.jobs {
		out = append(out, j)
	}
	return out, nil
}

func (f *fakeJobs) Resume(ctx context.Context, id string) (*model.GenerationJob, error) {
	j, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := j.Resume(); err != nil {
		return nil, err
	}
	return j, nil
}

func (f *fakeJobs) Salvage(ctx context.Context, id string) (*model.Article, error) {
	if _, err := f.Get(ctx, id); err != nil {
		return nil, err
	}
	return &model.Article{ID: "art-" + id, JobID: id, Status: model.ArticleStatusDraft, Version: 1}, nil
}

func (f *fakeJobs) Cancel(ctx context.Context, id string) (*model.GenerationJob, error) {
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	return f.Get(ctx, id)
}

type fakeArticles struct {
	byID map[string]*model.Article
	now  time.Time
}

func (f *fakeArticles) update(id string, expected int64, mutate func(a *model.Article) error) (*model.Article, error) {
	a, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if a.Version != expected {
		return nil, domain.ErrVersionConflict
	}
	next := a.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.Version++
	f.byID[id] = next
	return next, nil
}

func (f *fakeArticles) Get(ctx context.Context, id string) (*model.Article, error) {
	a, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return a, nil
}

func (f *fakeArticles) Edit(ctx context.Context, id string, v int64, e model.ArticleEdit) (*model.Article, error) {
	return f.update(id, v, func(a *model.Article) error { return a.ApplyEdit(e) })
}

func (f *fakeArticles) SubmitForReview(ctx context.Context, id string, v int64) (*model.Article, error) {
	return f.update(id, v, func(a *model.Article) error { return a.SubmitForReview() })
}

func (f *fakeArticles) Publish(ctx context.Context, id string, v int64) (*model.Article, error) {
	return f.update(id, v, func(a *model.Article) error { return a.Publish(f.now) })
}

func (f *fakeArticles) Unpublish(ctx context.Context, id string, v int64) (*model.Article, error) {
	return f.update(id, v, func(a *model.Article) error { return domain.ErrInvalidTransition })
}

func (f *fakeArticles) Delete(ctx context.Context, id string, v int64) (*model.Article, error) {
	return f.update(id, v, func(a *model.Article) error { a.Status = model.ArticleStatusDeleted; return nil })
}

type fakeSchedules struct {
	armed map[string]time.Time
	arts  *fakeArticles
}

func (f *fakeSchedules) Arm(ctx context.Context, id string, v int64, fireAt time.Time) (*model.Article, error) {
	if !fireAt.After(f.arts.now) {
		return nil, domain.ErrFireTimeNotFuture
	}
	a, err := f.arts.update(id, v, func(a *model.Article) error {
		a.Status = model.ArticleStatusScheduled
		a.PublishAt = &fireAt
		return nil
	})
	if err != nil {
		return nil, err
	}
	f.armed[id] = fireAt
	return a, nil
}

func (f *fakeSchedules) Disarm(ctx context.Context, id string, v int64) (*model.Article, error) {
	if _, ok := f.armed[id]; !ok {
		return nil, domain.ErrNotScheduled
	}
	delete(f.armed, id)
	return f.arts.update(id, v, func(a *model.Article) error {
		a.Status = model.ArticleStatusDraft
		a.PublishAt = nil
		return nil
	})
}

func (f *fakeSchedules) Fire(ctx context.Context, id string, v int64) (usecase.FireOutcome, error) {
	return usecase.FireSkipped, nil
}
func (f *fakeSchedules) FireDue(ctx context.Context, limit int) (int, error) { return 0, nil }
func (f *fakeSchedules) NextFireAt(ctx context.Context) (time.Time, error) {
	return time.Time{}, domain.ErrNotFound
}
func (f *fakeSchedules) Wake() <-chan struct{} { return nil }

//
// -------------------- test helpers --------------------
//

type fixture struct {
	jobs      *fakeJobs
	articles  *fakeArticles
	schedules *fakeSchedules
	router    *chi.Mux
}

func newFixture() *fixture {
	now := time.Now()
	jobs := &fakeJobs{jobs: map[string]*model.GenerationJob{}}
	arts := &fakeArticles{byID: map[string]*model.Article{
		"art-1": {ID: "art-1", Title: "Cold brew", Status: model.ArticleStatusDraft, Version: 3},
	}, now: now}
	scheds := &fakeSchedules{armed: map[string]time.Time{}, arts: arts}

	l := zerolog.Nop()
	srv := apiv1.NewServer(jobs, arts, scheds, &l)

	r := chi.NewRouter()
	// stands in for the guard
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(logging.WithUserID(req.Context(), "editor-7")))
		})
	})
	apiv1.RegisterAPIV1(r, srv)
	return &fixture{jobs: jobs, articles: arts, schedules: scheds, router: r}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Buffer
	if body != "" {
		rdr = bytes.NewBufferString(body)
	} else {
		rdr = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return v
}

//
// -------------------- tests --------------------
//

func TestJobs_Submit(t *testing.T) {
	t.Run("fans out one job per knowledge source", func(t *testing.T) {
		f := newFixture()
		body := `{"category_id":"cat-1","author_id":"author-1","brand_id":"brand-1","knowledge_source_ids":["ks-1","ks-2"],"strategy":"PUBLISH_NOW"}`
		rec := f.do(t, http.MethodPost, "/api/v1/jobs", body)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
		}
		out := decodeBody[apiv1.JobList](t, rec)
		if len(out.Items) != 2 {
			t.Fatalf("expected 2 jobs, got %d", len(out.Items))
		}
		if len(f.jobs.submitted) != 1 {
			t.Fatalf("expected one submit call, got %d", len(f.jobs.submitted))
		}
		got := f.jobs.submitted[0]
		if got.SubmittedBy != "editor-7" || got.Strategy != model.StrategyPublishNow {
			t.Errorf("unexpected submit request %+v", got)
		}
	})

	t.Run("validation failures are 400", func(t *testing.T) {
		f := newFixture()
		cases := map[string]string{
			"no sources":    `{"category_id":"c","author_id":"a","brand_id":"b","knowledge_source_ids":[]}`,
			"scheduled":     `{"category_id":"c","author_id":"a","brand_id":"b","knowledge_source_ids":["ks"],"strategy":"SCHEDULED"}`,
			"bad strategy":  `{"category_id":"c","author_id":"a","brand_id":"b","knowledge_source_ids":["ks"],"strategy":"LATER"}`,
			"unknown field": `{"category_id":"c","author_id":"a","brand_id":"b","knowledge_source_ids":["ks"],"color":"red"}`,
			"not json":      `{`,
		}
		for name, body := range cases {
			rec := f.do(t, http.MethodPost, "/api/v1/jobs", body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("%s: expected 400, got %d", name, rec.Code)
			}
		}
		if len(f.jobs.submitted) != 0 {
			t.Errorf("no request should reach the use case")
		}
	})

	t.Run("admission denial is 429 with Retry-After", func(t *testing.T) {
		f := newFixture()
		f.jobs.submitErr = &domain.AdmissionError{Class: "job_submission", RetryAfter: 1500 * time.Millisecond}
		body := `{"category_id":"c","author_id":"a","brand_id":"b","knowledge_source_ids":["ks"]}`
		rec := f.do(t, http.MethodPost, "/api/v1/jobs", body)
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", rec.Code)
		}
		if got := rec.Header().Get("Retry-After"); got != "2" {
			t.Errorf("expected Retry-After 2, got %q", got)
		}
	})

	t.Run("missing reference entity is 400 with field", func(t *testing.T) {
		f := newFixture()
		f.jobs.submitErr = domain.Invalid("brand_id", "not found")
		body := `{"category_id":"c","author_id":"a","brand_id":"b","knowledge_source_ids":["ks"]}`
		rec := f.do(t, http.MethodPost, "/api/v1/jobs", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if out := decodeBody[apiv1.ErrorBody](t, rec); out.Field != "brand_id" {
			t.Errorf("expected field brand_id, got %+v", out)
		}
	})
}

func TestJobs_GetListAndLifecycle(t *testing.T) {
	f := newFixture()
	job, err := model.NewGenerationJob(model.JobSpec{CategoryID: "c", AuthorID: "a", BrandID: "b", KnowledgeSourceID: "ks"}, time.Now())
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	job.Status = model.JobStatusFailed
	job.LastError = "stage drafting failed"
	f.jobs.jobs[job.ID] = job

	rec := f.do(t, http.MethodGet, "/api/v1/jobs/"+job.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rec.Code)
	}
	got := decodeBody[apiv1.Job](t, rec)
	if got.LastError != job.LastError || len(got.Stages) != model.StageCount {
		t.Errorf("unexpected job view %+v", got)
	}

	if rec := f.do(t, http.MethodGet, "/api/v1/jobs/missing", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing job: expected 404, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/jobs?status=failed&limit=5&since=2026-01-02T15:04:05Z", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rec.Code)
	}
	if f.jobs.lastList.Status != model.JobStatusFailed || f.jobs.lastList.Limit != 5 || f.jobs.lastList.Since == nil {
		t.Errorf("filter not forwarded: %+v", f.jobs.lastList)
	}
	if rec := f.do(t, http.MethodGet, "/api/v1/jobs?since=yesterday", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad since: expected 400, got %d", rec.Code)
	}

	if rec := f.do(t, http.MethodPost, "/api/v1/jobs/"+job.ID+"/salvage", ""); rec.Code != http.StatusCreated {
		t.Errorf("salvage: expected 201, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/jobs/"+job.ID+"/retry", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("retry: expected 202, got %d", rec.Code)
	}
	if got := decodeBody[apiv1.Job](t, rec); got.Status != string(model.JobStatusPending) {
		t.Errorf("expected pending after retry, got %s", got.Status)
	}
	if rec := f.do(t, http.MethodPost, "/api/v1/jobs/"+job.ID+"/retry", ""); rec.Code != http.StatusConflict {
		t.Errorf("second retry: expected 409, got %d", rec.Code)
	}

	f.jobs.cancelErr = domain.ErrJobTerminal
	if rec := f.do(t, http.MethodPost, "/api/v1/jobs/"+job.ID+"/cancel", ""); rec.Code != http.StatusConflict {
		t.Errorf("cancel terminal: expected 409, got %d", rec.Code)
	}
}

func TestArticles_VersionGuard(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodPatch, "/api/v1/articles/art-1", `{"expected_version":3,"title":"Hot brew"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("edit: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	a := decodeBody[apiv1.Article](t, rec)
	if a.Version != 4 || a.Title != "Hot brew" {
		t.Errorf("unexpected article %+v", a)
	}

	rec = f.do(t, http.MethodPatch, "/api/v1/articles/art-1", `{"expected_version":3,"title":"Stale"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("stale edit: expected 409, got %d", rec.Code)
	}
	if f.articles.byID["art-1"].Title != "Hot brew" {
		t.Errorf("rejected edit must not apply")
	}

	if rec := f.do(t, http.MethodPatch, "/api/v1/articles/art-1", `{"title":"No version"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("missing version: expected 400, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/v1/articles/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing article: expected 404, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/api/v1/articles/art-1/unpublish", `{"expected_version":4}`); rec.Code != http.StatusConflict {
		t.Errorf("invalid transition: expected 409, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/api/v1/articles/art-1/review", `{"expected_version":4}`); rec.Code != http.StatusOK {
		t.Errorf("review: expected 200, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodDelete, "/api/v1/articles/art-1", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("delete without version: expected 400, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodDelete, "/api/v1/articles/art-1?expected_version=5", ""); rec.Code != http.StatusOK {
		t.Errorf("delete: expected 200, got %d", rec.Code)
	}
}

func TestArticles_Schedule(t *testing.T) {
	f := newFixture()
	future := f.articles.now.Add(time.Hour).UTC().Format(time.RFC3339)
	past := f.articles.now.Add(-time.Hour).UTC().Format(time.RFC3339)

	rec := f.do(t, http.MethodPost, "/api/v1/articles/art-1/schedule", `{"expected_version":3,"publish_at":"`+past+`"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("past time: expected 400, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/articles/art-1/schedule", `{"expected_version":3,"publish_at":"`+future+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("arm: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	a := decodeBody[apiv1.Article](t, rec)
	if a.Status != string(model.ArticleStatusScheduled) || a.PublishAt == nil {
		t.Errorf("expected scheduled article, got %+v", a)
	}

	rec = f.do(t, http.MethodDelete, "/api/v1/articles/art-1/schedule?expected_version=4", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("disarm: expected 200, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodDelete, "/api/v1/articles/art-1/schedule?expected_version=5", ""); rec.Code != http.StatusConflict {
		t.Errorf("disarm unscheduled: expected 409, got %d", rec.Code)
	}
	if !strings.Contains(f.do(t, http.MethodGet, "/api/v1/articles/art-1", "").Body.String(), `"status":"DRAFT"`) {
		t.Errorf("expected article back in DRAFT")
	}
}
