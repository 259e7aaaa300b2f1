package apiv1

import (
	"time"

	"editorial-pipeline/internal/domain/model"
)

type Usage struct {
	TokensIn  int `json:"tokens_in"`
	TokensOut int `json:"tokens_out"`
	Images    int `json:"images"`
}

type Stage struct {
	Ordinal     int        `json:"ordinal"`
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	Attempts    int        `json:"attempts"`
	Error       string     `json:"error,omitempty"`
	Usage       Usage      `json:"usage"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type Job struct {
	ID                 string     `json:"id"`
	Status             string     `json:"status"`
	Strategy           string     `json:"strategy"`
	ImageStyle         string     `json:"image_style"`
	SubmittedBy        string     `json:"submitted_by"`
	CategoryID         string     `json:"category_id"`
	AuthorID           string     `json:"author_id"`
	BrandID            string     `json:"brand_id"`
	KnowledgeSourceID  string     `json:"knowledge_source_id"`
	ConversionOfferIDs []string   `json:"conversion_offer_ids,omitempty"`
	PublishAt          *time.Time `json:"publish_at,omitempty"`
	CancelRequested    bool       `json:"cancel_requested"`
	Attempts           int        `json:"attempts"`
	LastError          string     `json:"last_error,omitempty"`
	ArticleID          *string    `json:"article_id,omitempty"`
	Usage              Usage      `json:"usage"`
	CreatedAt          time.Time  `json:"created_at"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	Stages             []Stage    `json:"stages,omitempty"`
}

type Article struct {
	ID              string               `json:"id"`
	JobID           string               `json:"job_id"`
	Title           string               `json:"title"`
	Slug            string               `json:"slug"`
	Excerpt         string               `json:"excerpt"`
	MetaTitle       string               `json:"meta_title"`
	MetaDescription string               `json:"meta_description"`
	Blocks          []model.ContentBlock `json:"blocks"`
	Status          string               `json:"status"`
	Version         int64                `json:"version"`
	PublishAt       *time.Time           `json:"publish_at,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

type JobList struct {
	Items []Job `json:"items"`
}

type ErrorBody struct {
	Error  string   `json:"error"`
	Field  string   `json:"field,omitempty"`
	Errors []string `json:"errors,omitempty"`
}

func usageView(u model.StageUsage) Usage {
	return Usage{TokensIn: u.TokensIn, TokensOut: u.TokensOut, Images: u.Images}
}

func jobView(j *model.GenerationJob, withStages bool) Job {
	v := Job{
		ID:                 j.ID,
		Status:             string(j.Status),
		Strategy:           string(j.Strategy),
		ImageStyle:         string(j.ImageStyle),
		SubmittedBy:        j.SubmittedBy,
		CategoryID:         j.CategoryID,
		AuthorID:           j.AuthorID,
		BrandID:            j.BrandID,
		KnowledgeSourceID:  j.KnowledgeSourceID,
		ConversionOfferIDs: j.ConversionOfferIDs,
		PublishAt:          j.PublishAt,
		CancelRequested:    j.CancelRequested,
		Attempts:           j.Attempts,
		LastError:          j.LastError,
		ArticleID:          j.ArticleID,
		Usage:              usageView(j.TotalUsage()),
		CreatedAt:          j.CreatedAt,
		StartedAt:          j.StartedAt,
		CompletedAt:        j.CompletedAt,
	}
	if withStages {
		v.Stages = make([]Stage, 0, len(j.Stages))
		for _, s := range j.Stages {
			v.Stages = append(v.Stages, Stage{
				Ordinal:     s.Ordinal,
				Name:        string(s.Name),
				Status:      string(s.Status),
				Attempts:    s.Attempts,
				Error:       s.Error,
				Usage:       usageView(s.Usage),
				StartedAt:   s.StartedAt,
				CompletedAt: s.CompletedAt,
			})
		}
	}
	return v
}

func articleView(a *model.Article) Article {
	blocks := a.Blocks
	if blocks == nil {
		blocks = []model.ContentBlock{}
	}
	return Article{
		ID:              a.ID,
		JobID:           a.JobID,
		Title:           a.Title,
		Slug:            a.Slug,
		Excerpt:         a.Excerpt,
		MetaTitle:       a.MetaTitle,
		MetaDescription: a.MetaDescription,
		Blocks:          blocks,
		Status:          string(a.Status),
		Version:         a.Version,
		PublishAt:       a.PublishAt,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}
