package model

import (
	"time"

	"editorial-pipeline/internal/domain"

	"github.com/google/uuid"
)

type ArticleStatus string

const (
	ArticleStatusDraft     ArticleStatus = "DRAFT"
	ArticleStatusReview    ArticleStatus = "REVIEW"
	ArticleStatusScheduled ArticleStatus = "SCHEDULED"
	ArticleStatusPublished ArticleStatus = "PUBLISHED"
	ArticleStatusDeleted   ArticleStatus = "DELETED"
)

type BlockType string

const (
	BlockHeading   BlockType = "heading"
	BlockParagraph BlockType = "paragraph"
	BlockImage     BlockType = "image"
	BlockCallout   BlockType = "callout"
	BlockCTA       BlockType = "cta"
	BlockList      BlockType = "list"
)

type ContentBlock struct {
	Type    BlockType `json:"type"`
	Text    string    `json:"text,omitempty"`
	Level   int       `json:"level,omitempty"`
	URL     string    `json:"url,omitempty"`
	Alt     string    `json:"alt,omitempty"`
	Caption string    `json:"caption,omitempty"`
	Items   []string  `json:"items,omitempty"`
}

// Article is the shared mutable artifact guarded by Version.
type Article struct {
	ID              string
	JobID           string
	CategoryID      string
	AuthorID        string
	BrandID         string
	Title           string
	Slug            string
	Excerpt         string
	MetaTitle       string
	MetaDescription string
	Blocks          []ContentBlock
	Status          ArticleStatus
	Version         int64
	// PublishAt is "when published" once PUBLISHED and "when to publish" while SCHEDULED.
	PublishAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// InitialArticleVersion is the version of a freshly created article.
const InitialArticleVersion int64 = 1

var articleNamespace = uuid.MustParse("5b0c3f8e-8f4e-4c63-9a53-3d2e4f1a7c10")

// ArticleIDForJob derives a stable article id so a re-run persistence stage finds its own article.
func ArticleIDForJob(jobID string) string {
	return uuid.NewSHA1(articleNamespace, []byte(jobID)).String()
}

// Clone returns a deep copy, used so a rejected mutation never leaks into stored state.
func (a *Article) Clone() *Article {
	cp := *a
	cp.Blocks = make([]ContentBlock, len(a.Blocks))
	for i, b := range a.Blocks {
		b.Items = append([]string(nil), b.Items...)
		cp.Blocks[i] = b
	}
	if a.PublishAt != nil {
		t := *a.PublishAt
		cp.PublishAt = &t
	}
	return &cp
}

// ArticleEdit is a manual content change. Nil fields are left untouched.
type ArticleEdit struct {
	Title           *string
	Excerpt         *string
	MetaTitle       *string
	MetaDescription *string
	Slug            *string
	Blocks          []ContentBlock
}

func (a *Article) ApplyEdit(e ArticleEdit) error {
	if a.Status == ArticleStatusDeleted {
		return domain.ErrInvalidTransition
	}
	if e.Title != nil {
		a.Title = *e.Title
	}
	if e.Excerpt != nil {
		a.Excerpt = *e.Excerpt
	}
	if e.MetaTitle != nil {
		a.MetaTitle = *e.MetaTitle
	}
	if e.MetaDescription != nil {
		a.MetaDescription = *e.MetaDescription
	}
	if e.Slug != nil {
		a.Slug = Slugify(*e.Slug)
	}
	if e.Blocks != nil {
		a.Blocks = e.Blocks
	}
	return nil
}

func (a *Article) SubmitForReview() error {
	if a.Status != ArticleStatusDraft {
		return domain.ErrInvalidTransition
	}
	a.Status = ArticleStatusReview
	return nil
}

func (a *Article) Publish(now time.Time) error {
	switch a.Status {
	case ArticleStatusDraft, ArticleStatusReview, ArticleStatusScheduled:
	default:
		return domain.ErrInvalidTransition
	}
	a.Status = ArticleStatusPublished
	a.PublishAt = &now
	return nil
}

// PublishScheduled is the transition performed by a fired schedule: the target time becomes the publish time.
func (a *Article) PublishScheduled(now time.Time) error {
	if a.Status != ArticleStatusScheduled {
		return domain.ErrNotScheduled
	}
	at := now
	if a.PublishAt != nil {
		at = *a.PublishAt
	}
	a.Status = ArticleStatusPublished
	a.PublishAt = &at
	return nil
}

func (a *Article) Unpublish() error {
	if a.Status != ArticleStatusPublished {
		return domain.ErrInvalidTransition
	}
	a.Status = ArticleStatusDraft
	a.PublishAt = nil
	return nil
}

func (a *Article) Schedule(fireAt time.Time) error {
	switch a.Status {
	case ArticleStatusDraft, ArticleStatusReview, ArticleStatusScheduled:
	default:
		return domain.ErrInvalidTransition
	}
	a.Status = ArticleStatusScheduled
	a.PublishAt = &fireAt
	return nil
}

func (a *Article) Unschedule() error {
	if a.Status != ArticleStatusScheduled {
		return domain.ErrNotScheduled
	}
	a.Status = ArticleStatusDraft
	a.PublishAt = nil
	return nil
}

func (a *Article) Delete() error {
	if a.Status == ArticleStatusDeleted {
		return domain.ErrInvalidTransition
	}
	a.Status = ArticleStatusDeleted
	return nil
}

// ScheduledPublishIntent is the durable trigger for one scheduled publish.
type ScheduledPublishIntent struct {
	ArticleID string
	// Version is the article version the arming write produced.
	Version   int64
	FireAt    time.Time
	CreatedAt time.Time
}
