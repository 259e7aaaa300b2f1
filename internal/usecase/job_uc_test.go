//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"editorial-pipeline/internal/domain"
	"editorial-pipeline/internal/domain/model"
	"editorial-pipeline/internal/usecase"
)

func TestJobUseCase_SubmitValidation(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)
	base := usecase.SubmitRequest{
		CategoryID: "cat-1", AuthorID: "author-1", BrandID: "brand-1", SubmittedBy: "editor",
		KnowledgeSourceIDs: []string{"ks-1"},
	}

	tests := []struct {
		name  string
		mut   func(r *usecase.SubmitRequest)
		field string
	}{
		{"no knowledge source", func(r *usecase.SubmitRequest) { r.KnowledgeSourceIDs = []string{" "} }, "knowledge_source_ids"},
		{"unknown category", func(r *usecase.SubmitRequest) { r.CategoryID = "nope" }, "category_id"},
		{"unknown knowledge source", func(r *usecase.SubmitRequest) { r.KnowledgeSourceIDs = []string{"ks-1", "ks-404"} }, "knowledge_source_ids"},
		{"unknown offer", func(r *usecase.SubmitRequest) { r.ConversionOfferIDs = []string{"offer-9"} }, "conversion_offer_ids"},
		{"scheduled without time", func(r *usecase.SubmitRequest) { r.Strategy = model.StrategyScheduled }, "publish_at"},
		{"scheduled in the past", func(r *usecase.SubmitRequest) { r.Strategy = model.StrategyScheduled; r.PublishAt = &past }, "publish_at"},
		{"bogus strategy", func(r *usecase.SubmitRequest) { r.Strategy = "LATER" }, "strategy"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newPipelineHarness(time.Second)
			req := base
			tc.mut(&req)
			_, err := h.jobUC.Submit(context.Background(), req)
			ve, ok := domain.AsValidation(err)
			if !ok {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tc.field {
				t.Errorf("expected field %q, got %q", tc.field, ve.Field)
			}
			if h.queue.pending() != 0 {
				t.Error("rejected submission must not signal any job")
			}
		})
	}

	t.Run("scheduled in the future is accepted", func(t *testing.T) {
		h := newPipelineHarness(time.Second)
		req := base
		req.Strategy = model.StrategyScheduled
		req.PublishAt = &future
		jobs, err := h.jobUC.Submit(context.Background(), req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if jobs[0].Strategy != model.StrategyScheduled || jobs[0].PublishAt == nil {
			t.Errorf("strategy not carried onto job: %+v", jobs[0])
		}
	})

	t.Run("duplicate knowledge sources collapse", func(t *testing.T) {
		h := newPipelineHarness(time.Second)
		req := base
		req.KnowledgeSourceIDs = []string{"ks-1", "ks-1", "ks-2"}
		jobs, err := h.jobUC.Submit(context.Background(), req)
		if err != nil || len(jobs) != 2 {
			t.Fatalf("expected 2 jobs, got %d err=%v", len(jobs), err)
		}
	})
}

func TestJobUseCase_SubmitAdmission(t *testing.T) {
	ctx := context.Background()
	jobs := NewMockJobRepo()
	queue := &MockQueue{}
	limiter := usecase.NewAdmissionLimiter(NewMockRateStore(), map[model.LimiterClass]model.LimitPolicy{
		model.LimiterJobSubmission: {Ceiling: 1, Window: time.Hour},
	}, newTestLogger())
	tm := NewMockTxManager()
	store := usecase.NewArticleUseCase(NewMockArticleRepo(), NewMockScheduleRepo(), tm, newTestLogger())
	uc := usecase.NewJobUseCase(jobs, NewMockRefRepo(), tm, queue, limiter, usecase.NewStyleSelector(jobs), store, newTestLogger())

	req := usecase.SubmitRequest{
		CategoryID: "cat-1", AuthorID: "author-1", BrandID: "brand-1", SubmittedBy: "editor",
		KnowledgeSourceIDs: []string{"ks-1", "ks-2", "ks-3"},
	}
	first, err := uc.Submit(ctx, req)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if len(first) != 3 {
		t.Errorf("one admission check covers the whole batch, got %d jobs", len(first))
	}

	_, err = uc.Submit(ctx, req)
	var ae *domain.AdmissionError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AdmissionError, got %v", err)
	}
	if ae.RetryAfter <= 0 {
		t.Errorf("retry-after should be positive, got %s", ae.RetryAfter)
	}
	if len(queue.published) != 3 {
		t.Errorf("denied submission must not create jobs, signals=%d", len(queue.published))
	}
}

func TestJobUseCase_SubmitStyleRotation(t *testing.T) {
	h := newPipelineHarness(time.Second)
	first := h.submit(t, "ks-1", "ks-2")
	if first[0].ImageStyle != model.DefaultImageStyle || first[1].ImageStyle != first[0].ImageStyle {
		t.Fatalf("one style per batch starting at the default, got %s/%s", first[0].ImageStyle, first[1].ImageStyle)
	}
	h.drain(t)

	second := h.submit(t, "ks-3")
	if want := model.NextImageStyle(model.DefaultImageStyle); second[0].ImageStyle != want {
		t.Errorf("expected rotation to %s, got %s", want, second[0].ImageStyle)
	}
}

func TestJobUseCase_SignalPublishFailureFailsJob(t *testing.T) {
	h := newPipelineHarness(time.Second)
	h.queue.PublishErr = errors.New("redis down")
	jobs := h.submit(t, "ks-1")

	j := h.job(t, jobs[0].ID)
	if j.Status != model.JobStatusFailed || j.LastError == "" {
		t.Fatalf("unsignalled job should be failed and resumable, got %s", j.Status)
	}
	h.queue.PublishErr = nil
	if _, err := h.jobUC.Resume(context.Background(), j.ID); err != nil {
		t.Fatalf("resume: %v", err)
	}
	h.drain(t)
	if got := h.job(t, j.ID).Status; got != model.JobStatusCompleted {
		t.Errorf("expected completed after resume, got %s", got)
	}
}
