package model

import (
	"encoding/json"
	"time"
)

type StageName string

const (
	StageSelectVoiceSource StageName = "select_voice_source"
	StageThemeAnalysis     StageName = "theme_analysis"
	StageKeywordSelection  StageName = "keyword_selection"
	StageWebEnrichment     StageName = "web_enrichment"
	StageDrafting          StageName = "drafting"
	StageImageGeneration   StageName = "image_generation"
	StageOptimizationPass  StageName = "optimization_pass"
	StagePersistence       StageName = "persistence"
)

// StageSequence is the fixed pipeline topology. Index == ordinal.
var StageSequence = [...]StageName{
	StageSelectVoiceSource,
	StageThemeAnalysis,
	StageKeywordSelection,
	StageWebEnrichment,
	StageDrafting,
	StageImageGeneration,
	StageOptimizationPass,
	StagePersistence,
}

// StageCount is the number of stages every job carries.
const StageCount = len(StageSequence)

func (n StageName) Valid() bool {
	for _, s := range StageSequence {
		if s == n {
			return true
		}
	}
	return false
}

type StageStatus string

const (
	StageStatusPending   StageStatus = "pending"
	StageStatusRunning   StageStatus = "running"
	StageStatusSucceeded StageStatus = "succeeded"
	StageStatusFailed    StageStatus = "failed"
)

// StageUsage holds the resource counters a stage reports.
type StageUsage struct {
	TokensIn  int `json:"tokens_in"`
	TokensOut int `json:"tokens_out"`
	Images    int `json:"images"`
}

func (u StageUsage) Add(o StageUsage) StageUsage {
	return StageUsage{
		TokensIn:  u.TokensIn + o.TokensIn,
		TokensOut: u.TokensOut + o.TokensOut,
		Images:    u.Images + o.Images,
	}
}

type GenerationStage struct {
	ID          string
	JobID       string
	Ordinal     int
	Name        StageName
	Status      StageStatus
	Usage       StageUsage
	Attempts    int
	Output      json.RawMessage // encoded ArtifactDelta, set on success
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
}

func (s *GenerationStage) Succeeded() bool { return s.Status == StageStatusSucceeded }
