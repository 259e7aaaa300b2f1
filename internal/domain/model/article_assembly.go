package model

import (
	"strings"
	"unicode"

	"editorial-pipeline/internal/domain"
)

const maxSlugLen = 80

// Slugify lowercases s and keeps letters and digits joined by single dashes.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimRight(b.String(), "-")
	if len(out) > maxSlugLen {
		out = strings.TrimRight(out[:maxSlugLen], "-")
	}
	return out
}

// AssembleArticle turns whatever artifacts exist into article content.
// It needs at least a draft, or themes plus a voice brief for a skeleton.
func AssembleArticle(job *GenerationJob, cfg JobConfig, acc Artifacts) (*Article, error) {
	a := &Article{
		ID:         ArticleIDForJob(job.ID),
		JobID:      job.ID,
		CategoryID: job.CategoryID,
		AuthorID:   job.AuthorID,
		BrandID:    job.BrandID,
		Status:     ArticleStatusDraft,
	}

	switch {
	case acc.Draft != nil && len(acc.Draft.Sections) > 0:
		a.Title = acc.Draft.Title
		a.Excerpt = acc.Draft.Excerpt
		a.Blocks = draftBlocks(acc.Draft, acc.Images)
	case acc.Themes != nil && acc.Voice != nil:
		a.Title = acc.Voice.SourceTitle
		a.Blocks = skeletonBlocks(acc)
	default:
		return nil, domain.ErrNothingToSalvage
	}

	for _, o := range cfg.Offers {
		a.Blocks = append(a.Blocks, ContentBlock{Type: BlockCTA, Text: firstNonEmpty(o.CTA, o.Title), URL: o.URL})
	}

	if acc.Optimization != nil {
		a.MetaTitle = acc.Optimization.MetaTitle
		a.MetaDescription = acc.Optimization.MetaDescription
		a.Slug = Slugify(acc.Optimization.Slug)
	}
	if a.Title == "" {
		a.Title = cfg.KnowledgeSource.Title
	}
	if a.Slug == "" {
		a.Slug = Slugify(a.Title)
	}
	if a.MetaTitle == "" {
		a.MetaTitle = a.Title
	}
	if a.MetaDescription == "" {
		a.MetaDescription = a.Excerpt
	}
	return a, nil
}

func draftBlocks(d *Draft, images *ImageSet) []ContentBlock {
	bySection := map[int][]ImageAsset{}
	if images != nil {
		for _, img := range images.Images {
			bySection[img.SectionIndex] = append(bySection[img.SectionIndex], img)
		}
	}
	blocks := make([]ContentBlock, 0, len(d.Sections)*3+1)
	for _, img := range bySection[-1] {
		blocks = append(blocks, imageBlock(img))
	}
	for i, s := range d.Sections {
		if s.Heading != "" {
			blocks = append(blocks, ContentBlock{Type: BlockHeading, Level: 2, Text: s.Heading})
		}
		for _, p := range splitParagraphs(s.Body) {
			blocks = append(blocks, ContentBlock{Type: BlockParagraph, Text: p})
		}
		for _, img := range bySection[i] {
			blocks = append(blocks, imageBlock(img))
		}
	}
	return blocks
}

func skeletonBlocks(acc Artifacts) []ContentBlock {
	blocks := []ContentBlock{}
	if acc.Themes.Angle != "" {
		blocks = append(blocks, ContentBlock{Type: BlockCallout, Text: acc.Themes.Angle})
	}
	if len(acc.Themes.Themes) > 0 {
		blocks = append(blocks, ContentBlock{Type: BlockList, Items: append([]string(nil), acc.Themes.Themes...)})
	}
	if acc.Voice.SourceExcerpt != "" {
		blocks = append(blocks, ContentBlock{Type: BlockParagraph, Text: acc.Voice.SourceExcerpt})
	}
	if acc.Enrichment != nil {
		for _, f := range acc.Enrichment.Facts {
			blocks = append(blocks, ContentBlock{Type: BlockParagraph, Text: f.Text})
		}
	}
	return blocks
}

func imageBlock(img ImageAsset) ContentBlock {
	return ContentBlock{Type: BlockImage, URL: img.URL, Alt: img.Alt, Caption: img.Prompt}
}

func splitParagraphs(body string) []string {
	var out []string
	for _, p := range strings.Split(body, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
