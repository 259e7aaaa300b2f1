//go:build !integration

package model

import (
	"errors"
	"testing"
	"time"

	"editorial-pipeline/internal/domain"
)

func newTestJob(t *testing.T) *GenerationJob {
	t.Helper()
	j, err := NewGenerationJob(JobSpec{
		CategoryID:        "cat-1",
		AuthorID:          "auth-1",
		BrandID:           "brand-1",
		SubmittedBy:       "editor",
		KnowledgeSourceID: "ks-1",
	}, time.Now())
	if err != nil {
		t.Fatalf("NewGenerationJob failed: %v", err)
	}
	return j
}

func TestNewGenerationJob(t *testing.T) {
	j := newTestJob(t)

	if j.ID == "" {
		t.Error("expected job id to be set")
	}
	if j.Status != JobStatusPending {
		t.Errorf("expected pending job, got %s", j.Status)
	}
	if j.Strategy != "" && j.Strategy != StrategyDraft {
		t.Errorf("unexpected strategy %s", j.Strategy)
	}
	if j.ImageStyle != DefaultImageStyle {
		t.Errorf("expected default image style, got %s", j.ImageStyle)
	}
	if len(j.Stages) != StageCount {
		t.Fatalf("expected %d stages, got %d", StageCount, len(j.Stages))
	}
	for i, st := range j.Stages {
		if st.Ordinal != i || st.Name != StageSequence[i] {
			t.Errorf("stage %d: got ordinal %d name %s", i, st.Ordinal, st.Name)
		}
		if st.Status != StageStatusPending || st.JobID != j.ID {
			t.Errorf("stage %d: expected pending stage of job %s, got %s of %s", i, j.ID, st.Status, st.JobID)
		}
	}
}

func TestNewGenerationJob_Rejects(t *testing.T) {
	if _, err := NewGenerationJob(JobSpec{AuthorID: "a", BrandID: "b", KnowledgeSourceID: "k"}, time.Now()); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for missing category, got %v", err)
	}

	_, err := NewGenerationJob(JobSpec{
		CategoryID: "c", AuthorID: "a", BrandID: "b", KnowledgeSourceID: "k",
		Strategy: StrategyScheduled,
	}, time.Now())
	v, ok := domain.AsValidation(err)
	if !ok || v.Field != "publish_at" {
		t.Errorf("expected publish_at validation error, got %v", err)
	}
}

func TestGenerationJob_StagesRunInOrder(t *testing.T) {
	j := newTestJob(t)
	now := time.Now()

	if err := j.CanStart(1); !errors.Is(err, domain.ErrStageOutOfOrder) {
		t.Fatalf("expected stage 1 to wait for stage 0, got %v", err)
	}
	if err := j.StartStage(0, now); err != nil {
		t.Fatalf("StartStage(0) failed: %v", err)
	}
	if j.Status != JobStatusRunning || j.StartedAt == nil {
		t.Errorf("expected running job with start time, got %s", j.Status)
	}
	if err := j.StartStage(0, now); !errors.Is(err, domain.ErrStageOutOfOrder) {
		t.Errorf("expected a running stage to block a second start, got %v", err)
	}

	usage := StageUsage{TokensIn: 10, TokensOut: 4}
	if err := j.SucceedStage(0, []byte(`{}`), usage, now); err != nil {
		t.Fatalf("SucceedStage(0) failed: %v", err)
	}
	if got := j.NextOrdinal(); got != 1 {
		t.Errorf("expected next ordinal 1, got %d", got)
	}
	if err := j.SucceedStage(1, nil, StageUsage{}, now); !errors.Is(err, domain.ErrStageOutOfOrder) {
		t.Errorf("expected succeeding a pending stage to fail, got %v", err)
	}
}

func TestGenerationJob_CompletesAfterLastStage(t *testing.T) {
	j := newTestJob(t)
	now := time.Now()

	for i := 0; i < StageCount; i++ {
		if err := j.StartStage(i, now); err != nil {
			t.Fatalf("StartStage(%d) failed: %v", i, err)
		}
		if err := j.SucceedStage(i, []byte(`{}`), StageUsage{TokensIn: 2, TokensOut: 1, Images: i % 2}, now); err != nil {
			t.Fatalf("SucceedStage(%d) failed: %v", i, err)
		}
	}

	if j.Status != JobStatusCompleted || j.CompletedAt == nil {
		t.Fatalf("expected completed job, got %s", j.Status)
	}
	if got := j.NextOrdinal(); got != StageCount {
		t.Errorf("expected NextOrdinal %d, got %d", StageCount, got)
	}
	want := StageUsage{TokensIn: 2 * StageCount, TokensOut: StageCount, Images: StageCount / 2}
	if got := j.TotalUsage(); got != want {
		t.Errorf("expected usage %+v, got %+v", want, got)
	}
	if err := j.CanStart(0); !errors.Is(err, domain.ErrJobTerminal) {
		t.Errorf("expected terminal job to refuse stages, got %v", err)
	}
}

func TestGenerationJob_FailAndResume(t *testing.T) {
	j := newTestJob(t)
	now := time.Now()

	_ = j.StartStage(0, now)
	_ = j.SucceedStage(0, []byte(`{"voice":{}}`), StageUsage{TokensIn: 5}, now)
	_ = j.StartStage(1, now)
	if err := j.FailStage(1, errors.New("model timeout"), StageUsage{TokensIn: 3}, now); err != nil {
		t.Fatalf("FailStage failed: %v", err)
	}

	if j.Status != JobStatusFailed || j.LastError != "model timeout" {
		t.Fatalf("expected failed job with last error, got %s %q", j.Status, j.LastError)
	}
	if j.Stages[1].Status != StageStatusFailed {
		t.Errorf("expected stage 1 failed, got %s", j.Stages[1].Status)
	}
	if got := j.TotalUsage().TokensIn; got != 8 {
		t.Errorf("expected failed stage usage to be counted, got %d tokens in", got)
	}
	if err := j.Cancel(now); !errors.Is(err, domain.ErrJobTerminal) {
		t.Errorf("expected cancel of failed job to be rejected, got %v", err)
	}

	if err := j.Resume(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if j.Status != JobStatusPending || j.CompletedAt != nil || j.Attempts != 1 {
		t.Errorf("unexpected job after resume: status %s attempts %d", j.Status, j.Attempts)
	}
	if !j.Stages[0].Succeeded() {
		t.Error("expected succeeded stage to keep its result")
	}
	if j.Stages[1].Status != StageStatusPending || j.Stages[1].Error != "" {
		t.Errorf("expected failed stage reset to pending without error, got %s %q", j.Stages[1].Status, j.Stages[1].Error)
	}
	if j.LastError != "" {
		t.Errorf("expected resumed job to drop the previous error, got %q", j.LastError)
	}
	if got := j.NextOrdinal(); got != 1 {
		t.Errorf("expected resume from ordinal 1, got %d", got)
	}
	if err := j.Resume(); !errors.Is(err, domain.ErrJobNotResumable) {
		t.Errorf("expected pending job to be not resumable, got %v", err)
	}
}

func TestGenerationJob_Cancel(t *testing.T) {
	j := newTestJob(t)
	now := time.Now()
	_ = j.StartStage(0, now)

	if err := j.Cancel(now); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if j.Status != JobStatusCancelled || !j.Status.Terminal() {
		t.Errorf("expected cancelled terminal job, got %s", j.Status)
	}
	if err := j.Cancel(now); !errors.Is(err, domain.ErrJobTerminal) {
		t.Errorf("expected second cancel to fail, got %v", err)
	}
	if err := j.Resume(); err != nil {
		t.Errorf("expected cancelled job to be resumable, got %v", err)
	}
	if j.Stages[0].Status != StageStatusPending {
		t.Errorf("expected interrupted stage reset to pending, got %s", j.Stages[0].Status)
	}
}

func TestParsePublishStrategy(t *testing.T) {
	cases := []struct {
		in      string
		want    PublishStrategy
		wantErr bool
	}{
		{"", StrategyDraft, false},
		{"draft", StrategyDraft, false},
		{" publish_now ", StrategyPublishNow, false},
		{"SCHEDULED", StrategyScheduled, false},
		{"tomorrow", "", true},
	}
	for _, c := range cases {
		got, err := ParsePublishStrategy(c.in)
		if c.wantErr {
			if _, ok := domain.AsValidation(err); !ok {
				t.Errorf("%q: expected validation error, got %v", c.in, err)
			}
			continue
		}
		if err != nil || got != c.want {
			t.Errorf("%q: got %s, %v; want %s", c.in, got, err, c.want)
		}
	}
}

func TestArticle_Transitions(t *testing.T) {
	now := time.Now()
	a := &Article{ID: "a-1", Status: ArticleStatusDraft, Version: InitialArticleVersion}

	if err := a.Unpublish(); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("expected unpublish of draft to fail, got %v", err)
	}
	if err := a.SubmitForReview(); err != nil || a.Status != ArticleStatusReview {
		t.Fatalf("SubmitForReview: %v, status %s", err, a.Status)
	}
	if err := a.SubmitForReview(); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("expected second review submission to fail, got %v", err)
	}

	fireAt := now.Add(time.Hour)
	if err := a.Schedule(fireAt); err != nil || a.Status != ArticleStatusScheduled {
		t.Fatalf("Schedule: %v, status %s", err, a.Status)
	}
	if err := a.PublishScheduled(now); err != nil {
		t.Fatalf("PublishScheduled failed: %v", err)
	}
	if a.Status != ArticleStatusPublished || a.PublishAt == nil || !a.PublishAt.Equal(fireAt) {
		t.Errorf("expected publish time to be the scheduled time, got %v", a.PublishAt)
	}
	if err := a.PublishScheduled(now); !errors.Is(err, domain.ErrNotScheduled) {
		t.Errorf("expected ErrNotScheduled, got %v", err)
	}
	if err := a.Unschedule(); !errors.Is(err, domain.ErrNotScheduled) {
		t.Errorf("expected ErrNotScheduled on unschedule, got %v", err)
	}

	if err := a.Unpublish(); err != nil || a.Status != ArticleStatusDraft || a.PublishAt != nil {
		t.Fatalf("Unpublish: %v, status %s", err, a.Status)
	}
	if err := a.Delete(); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	title := "new"
	if err := a.ApplyEdit(ArticleEdit{Title: &title}); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("expected edit of deleted article to fail, got %v", err)
	}
	if err := a.Publish(now); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("expected publish of deleted article to fail, got %v", err)
	}
}

func TestArticle_ApplyEditAndClone(t *testing.T) {
	at := time.Now()
	a := &Article{
		Title:     "Old",
		Status:    ArticleStatusDraft,
		Blocks:    []ContentBlock{{Type: BlockList, Items: []string{"one", "two"}}},
		PublishAt: &at,
	}
	cp := a.Clone()
	cp.Blocks[0].Items[0] = "changed"
	*cp.PublishAt = at.Add(time.Hour)

	if a.Blocks[0].Items[0] != "one" {
		t.Error("clone shares block items with the original")
	}
	if !a.PublishAt.Equal(at) {
		t.Error("clone shares publish time with the original")
	}

	title, slug := "New Title", "Hello, World  2026!"
	if err := a.ApplyEdit(ArticleEdit{Title: &title, Slug: &slug}); err != nil {
		t.Fatalf("ApplyEdit failed: %v", err)
	}
	if a.Title != "New Title" || a.Slug != "hello-world-2026" {
		t.Errorf("unexpected edit result: title %q slug %q", a.Title, a.Slug)
	}
	if len(a.Blocks) != 1 {
		t.Errorf("expected nil blocks to leave content untouched, got %d blocks", len(a.Blocks))
	}
}

func TestArticleIDForJob(t *testing.T) {
	if ArticleIDForJob("job-1") != ArticleIDForJob("job-1") {
		t.Error("expected derived article id to be stable")
	}
	if ArticleIDForJob("job-1") == ArticleIDForJob("job-2") {
		t.Error("expected different jobs to get different article ids")
	}
}

func TestNextImageStyle(t *testing.T) {
	current := CurrentImageStyles()
	if len(current) != 5 || current[0] != DefaultImageStyle {
		t.Fatalf("unexpected rotation %v", current)
	}
	for i, s := range current {
		want := current[(i+1)%len(current)]
		if got := NextImageStyle(s); got != want {
			t.Errorf("NextImageStyle(%s) = %s, want %s", s, got, want)
		}
	}

	inRotation := map[ImageStyle]bool{}
	for _, s := range current {
		inRotation[s] = true
	}
	for _, old := range []ImageStyle{ImageStyleCartoon, ImageStyleLineArt, ImageStyleLowPoly3D} {
		if !inRotation[NextImageStyle(old)] {
			t.Errorf("deprecated style %s folds into %s, which is not current", old, NextImageStyle(old))
		}
	}
	if got := NextImageStyle("sepia"); got != DefaultImageStyle {
		t.Errorf("expected unknown style to restart rotation, got %s", got)
	}
}
