package model

// Category, Author, Brand, KnowledgeSource and ConversionOffer are read-only
// reference data owned by the editorial CMS.

type Category struct {
	ID   string
	Name string
	Slug string
}

type Author struct {
	ID      string
	Name    string
	Persona string
	Tone    string
}

type Brand struct {
	ID    string
	Name  string
	Voice string
	Site  string
}

type KnowledgeSource struct {
	ID    string
	Title string
	Body  string
	URL   string
}

type ConversionOffer struct {
	ID    string
	Title string
	URL   string
	CTA   string
}

// JobConfig is the job-level configuration every stage may read.
type JobConfig struct {
	Category        Category
	Author          Author
	Brand           Brand
	KnowledgeSource KnowledgeSource
	Offers          []ConversionOffer
}

// JobContext is the read-only view handed to a stage executor.
type JobContext struct {
	Job       GenerationJob
	Config    JobConfig
	Artifacts Artifacts
}
