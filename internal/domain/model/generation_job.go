package model

import (
	"strings"
	"time"

	"editorial-pipeline/internal/domain"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

type PublishStrategy string

const (
	StrategyDraft      PublishStrategy = "DRAFT"
	StrategyPublishNow PublishStrategy = "PUBLISH_NOW"
	StrategyScheduled  PublishStrategy = "SCHEDULED"
)

func ParsePublishStrategy(s string) (PublishStrategy, error) {
	switch PublishStrategy(strings.ToUpper(strings.TrimSpace(s))) {
	case StrategyDraft, "":
		return StrategyDraft, nil
	case StrategyPublishNow:
		return StrategyPublishNow, nil
	case StrategyScheduled:
		return StrategyScheduled, nil
	}
	return "", domain.Invalid("strategy", "must be one of DRAFT, PUBLISH_NOW, SCHEDULED")
}

// GenerationJob is one pipeline run producing one article from one knowledge source.
type GenerationJob struct {
	ID                 string
	CategoryID         string
	AuthorID           string
	BrandID            string
	SubmittedBy        string
	KnowledgeSourceID  string
	ConversionOfferIDs []string
	ImageStyle         ImageStyle
	Strategy           PublishStrategy
	PublishAt          *time.Time
	Status             JobStatus
	CancelRequested    bool
	Attempts           int
	LastError          string
	ArticleID          *string
	CreatedAt          time.Time
	StartedAt          *time.Time
	CompletedAt        *time.Time

	Stages []GenerationStage
}

// JobSpec carries everything needed to create a job; one spec per knowledge source.
type JobSpec struct {
	CategoryID         string
	AuthorID           string
	BrandID            string
	SubmittedBy        string
	KnowledgeSourceID  string
	ConversionOfferIDs []string
	ImageStyle         ImageStyle
	Strategy           PublishStrategy
	PublishAt          *time.Time
}

// NewGenerationJob builds a PENDING job with its eight PENDING stages.
func NewGenerationJob(spec JobSpec, now time.Time) (*GenerationJob, error) {
	if spec.CategoryID == "" || spec.AuthorID == "" || spec.BrandID == "" || spec.KnowledgeSourceID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if spec.Strategy == StrategyScheduled && spec.PublishAt == nil {
		return nil, domain.Invalid("publish_at", "required for SCHEDULED strategy")
	}
	style := spec.ImageStyle
	if style == "" {
		style = DefaultImageStyle
	}
	j := &GenerationJob{
		ID:                 ulid.Make().String(),
		CategoryID:         spec.CategoryID,
		AuthorID:           spec.AuthorID,
		BrandID:            spec.BrandID,
		SubmittedBy:        spec.SubmittedBy,
		KnowledgeSourceID:  spec.KnowledgeSourceID,
		ConversionOfferIDs: append([]string(nil), spec.ConversionOfferIDs...),
		ImageStyle:         style,
		Strategy:           spec.Strategy,
		PublishAt:          spec.PublishAt,
		Status:             JobStatusPending,
		CreatedAt:          now,
	}
	j.Stages = make([]GenerationStage, 0, StageCount)
	for i, name := range StageSequence {
		j.Stages = append(j.Stages, GenerationStage{
			ID:      uuid.NewString(),
			JobID:   j.ID,
			Ordinal: i,
			Name:    name,
			Status:  StageStatusPending,
		})
	}
	return j, nil
}

// NextOrdinal returns the lowest ordinal not yet SUCCEEDED, or StageCount when all succeeded.
func (j *GenerationJob) NextOrdinal() int {
	for i := range j.Stages {
		if !j.Stages[i].Succeeded() {
			return i
		}
	}
	return len(j.Stages)
}

// Stage returns the stage at the given ordinal.
func (j *GenerationJob) Stage(ordinal int) (*GenerationStage, bool) {
	if ordinal < 0 || ordinal >= len(j.Stages) {
		return nil, false
	}
	return &j.Stages[ordinal], true
}

// CanStart reports whether the stage at ordinal may move to RUNNING.
func (j *GenerationJob) CanStart(ordinal int) error {
	if j.Status.Terminal() {
		return domain.ErrJobTerminal
	}
	if ordinal != j.NextOrdinal() {
		return domain.ErrStageOutOfOrder
	}
	for i := range j.Stages {
		if i != ordinal && j.Stages[i].Status == StageStatusRunning {
			return domain.ErrStageOutOfOrder
		}
	}
	return nil
}

// StartStage moves the stage to RUNNING and the job to RUNNING if it was PENDING.
func (j *GenerationJob) StartStage(ordinal int, now time.Time) error {
	if err := j.CanStart(ordinal); err != nil {
		return err
	}
	st := &j.Stages[ordinal]
	st.Status = StageStatusRunning
	st.Attempts++
	st.Error = ""
	st.StartedAt = &now
	st.CompletedAt = nil
	if j.Status == JobStatusPending {
		j.Status = JobStatusRunning
		if j.StartedAt == nil {
			j.StartedAt = &now
		}
	}
	return nil
}

// SucceedStage records the stage output. It completes the job when the last stage succeeded.
func (j *GenerationJob) SucceedStage(ordinal int, output []byte, usage StageUsage, now time.Time) error {
	st, ok := j.Stage(ordinal)
	if !ok || st.Status != StageStatusRunning {
		return domain.ErrStageOutOfOrder
	}
	st.Status = StageStatusSucceeded
	st.Output = output
	st.Usage = usage
	st.CompletedAt = &now
	if j.NextOrdinal() == len(j.Stages) {
		j.Status = JobStatusCompleted
		j.CompletedAt = &now
	}
	return nil
}

// FailStage records the error on the stage and fails the job. No further stage may run.
func (j *GenerationJob) FailStage(ordinal int, stageErr error, usage StageUsage, now time.Time) error {
	st, ok := j.Stage(ordinal)
	if !ok || st.Status != StageStatusRunning {
		return domain.ErrStageOutOfOrder
	}
	st.Status = StageStatusFailed
	st.Error = stageErr.Error()
	st.Usage = usage
	st.CompletedAt = &now
	j.Status = JobStatusFailed
	j.LastError = st.Error
	j.CompletedAt = &now
	return nil
}

// Cancel marks the job cancelled. Succeeded stages keep their output.
func (j *GenerationJob) Cancel(now time.Time) error {
	if j.Status.Terminal() {
		return domain.ErrJobTerminal
	}
	j.Status = JobStatusCancelled
	j.CompletedAt = &now
	return nil
}

// Resume puts a failed or cancelled job back to PENDING, resetting every non-succeeded stage
// and the previous attempt's error.
func (j *GenerationJob) Resume() error {
	if j.Status != JobStatusFailed && j.Status != JobStatusCancelled {
		return domain.ErrJobNotResumable
	}
	for i := range j.Stages {
		st := &j.Stages[i]
		if st.Succeeded() {
			continue
		}
		st.Status = StageStatusPending
		st.Error = ""
		st.StartedAt = nil
		st.CompletedAt = nil
	}
	j.Status = JobStatusPending
	j.CancelRequested = false
	j.LastError = ""
	j.CompletedAt = nil
	j.Attempts++
	return nil
}

// TotalUsage sums usage counters across stages.
func (j *GenerationJob) TotalUsage() StageUsage {
	var u StageUsage
	for _, s := range j.Stages {
		u = u.Add(s.Usage)
	}
	return u
}

// StageSignal asks the orchestrator to run one stage of one job.
type StageSignal struct {
	JobID      string `json:"job_id"`
	Ordinal    int    `json:"ordinal"`
	DeliveryID string `json:"delivery_id"`
}

func NewStageSignal(jobID string, ordinal int) StageSignal {
	return StageSignal{JobID: jobID, Ordinal: ordinal, DeliveryID: ulid.Make().String()}
}
