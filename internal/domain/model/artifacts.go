package model

import (
	"encoding/json"
	"fmt"
)

type VoiceBrief struct {
	AuthorName    string `json:"author_name"`
	Persona       string `json:"persona"`
	Tone          string `json:"tone"`
	BrandVoice    string `json:"brand_voice"`
	SourceTitle   string `json:"source_title"`
	SourceExcerpt string `json:"source_excerpt"`
	SourceTokens  int    `json:"source_tokens"`
}

type ThemeAnalysis struct {
	Themes   []string `json:"themes"`
	Angle    string   `json:"angle"`
	Audience string   `json:"audience"`
}

type KeywordSet struct {
	Primary   string   `json:"primary"`
	Secondary []string `json:"secondary"`
}

type Fact struct {
	SourceURL string `json:"source_url"`
	Title     string `json:"title"`
	Text      string `json:"text"`
}

type Enrichment struct {
	Facts []Fact `json:"facts"`
}

type DraftSection struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

type Draft struct {
	Title    string         `json:"title"`
	Excerpt  string         `json:"excerpt"`
	Sections []DraftSection `json:"sections"`
}

type ImageAsset struct {
	// SectionIndex is -1 for the hero image.
	SectionIndex int        `json:"section_index"`
	URL          string     `json:"url"`
	Prompt       string     `json:"prompt"`
	Alt          string     `json:"alt"`
	Style        ImageStyle `json:"style"`
}

type ImageSet struct {
	Images []ImageAsset `json:"images"`
}

type Optimization struct {
	MetaTitle       string `json:"meta_title"`
	MetaDescription string `json:"meta_description"`
	Slug            string `json:"slug"`
}

type PersistResult struct {
	ArticleID string        `json:"article_id"`
	Version   int64         `json:"version"`
	Status    ArticleStatus `json:"status"`
}

// Artifacts is the ordered accumulator of stage outputs. Each stage fills exactly one field.
type Artifacts struct {
	Voice        *VoiceBrief    `json:"voice,omitempty"`
	Themes       *ThemeAnalysis `json:"themes,omitempty"`
	Keywords     *KeywordSet    `json:"keywords,omitempty"`
	Enrichment   *Enrichment    `json:"enrichment,omitempty"`
	Draft        *Draft         `json:"draft,omitempty"`
	Images       *ImageSet      `json:"images,omitempty"`
	Optimization *Optimization  `json:"optimization,omitempty"`
	Persisted    *PersistResult `json:"persisted,omitempty"`
}

// ArtifactDelta is what one stage contributes, plus the usage it consumed.
type ArtifactDelta struct {
	Artifacts
	Usage StageUsage `json:"usage"`
}

// Merge applies the non-nil fields of d onto a.
func (a *Artifacts) Merge(d Artifacts) {
	if d.Voice != nil {
		a.Voice = d.Voice
	}
	if d.Themes != nil {
		a.Themes = d.Themes
	}
	if d.Keywords != nil {
		a.Keywords = d.Keywords
	}
	if d.Enrichment != nil {
		a.Enrichment = d.Enrichment
	}
	if d.Draft != nil {
		a.Draft = d.Draft
	}
	if d.Images != nil {
		a.Images = d.Images
	}
	if d.Optimization != nil {
		a.Optimization = d.Optimization
	}
	if d.Persisted != nil {
		a.Persisted = d.Persisted
	}
}

func (a Artifacts) Empty() bool {
	return a.Voice == nil && a.Themes == nil && a.Keywords == nil && a.Enrichment == nil &&
		a.Draft == nil && a.Images == nil && a.Optimization == nil && a.Persisted == nil
}

func EncodeDelta(d ArtifactDelta) ([]byte, error) {
	return json.Marshal(d)
}

func DecodeDelta(b []byte) (ArtifactDelta, error) {
	var d ArtifactDelta
	if len(b) == 0 {
		return d, nil
	}
	if err := json.Unmarshal(b, &d); err != nil {
		return d, fmt.Errorf("decode stage output: %w", err)
	}
	return d, nil
}

// AccumulatedArtifacts rebuilds the context from succeeded stages, in ordinal order.
func (j *GenerationJob) AccumulatedArtifacts() (Artifacts, error) {
	var acc Artifacts
	for _, st := range j.Stages {
		if !st.Succeeded() {
			continue
		}
		d, err := DecodeDelta(st.Output)
		if err != nil {
			return acc, fmt.Errorf("stage %s: %w", st.Name, err)
		}
		acc.Merge(d.Artifacts)
	}
	return acc, nil
}
