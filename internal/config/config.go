// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port      int    `yaml:"port"`
	JWTSecret string `yaml:"jwt_secret"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AIConfig struct {
	OpenAIKey       string            `yaml:"openai_key"`
	OpenAIBaseURL   string            `yaml:"openai_base_url"`
	GeminiKey       string            `yaml:"gemini_key"`
	GeminiURL       string            `yaml:"gemini_url"`
	DefaultProvider string            `yaml:"default_provider"` // openai | gemini
	TextModel       string            `yaml:"text_model"`
	ImageModel      string            `yaml:"image_model"`
	ImageSize       string            `yaml:"image_size"`
	MaxOutputTokens int               `yaml:"max_output_tokens"`
	ConcurrentLimit int               `yaml:"concurrent_limit"` // max concurrent AI calls per process
	ModelProviders  map[string]string `yaml:"model_providers"`  // model -> provider
}

type PipelineConfig struct {
	Workers             int                      `yaml:"workers"`
	ConsumerID          string                   `yaml:"consumer_id"`
	LockTTL             time.Duration            `yaml:"lock_ttl"`
	StageTimeout        time.Duration            `yaml:"stage_timeout"`
	StageTimeouts       map[string]time.Duration `yaml:"stage_timeouts"` // per stage name override
	ReceiveWait         time.Duration            `yaml:"receive_wait"`
	ImageEveryNSections int                      `yaml:"image_every_n_sections"`
	MaxImages           int                      `yaml:"max_images"`
	SourceTokenBudget   int                      `yaml:"source_token_budget"`
}

type LimitConfig struct {
	Ceiling int           `yaml:"ceiling"`
	Window  time.Duration `yaml:"window"`
}

type LimitsConfig struct {
	JobSubmission   LimitConfig `yaml:"job_submission"`
	ImageGeneration LimitConfig `yaml:"image_generation"`
}

type SchedulerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	BatchSize    int           `yaml:"batch_size"`
}

type EnrichmentConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	MaxFacts  int           `yaml:"max_facts"`
	UserAgent string        `yaml:"user_agent"`
}

type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

type Config struct {
	Log        LogConfig        `yaml:"log"`
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	AI         AIConfig         `yaml:"ai"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Limits     LimitsConfig     `yaml:"limits"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Telegram   TelegramConfig   `yaml:"telegram"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, applies defaults and validates required fields.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

// Parse decodes raw YAML into a validated Config.
func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	cfg.Runtime.Dev = dev
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 10
	}
	if c.AI.TextModel == "" {
		c.AI.TextModel = "gpt-4o-mini"
	}
	if c.AI.ImageModel == "" {
		c.AI.ImageModel = "dall-e-3"
	}
	if c.AI.ImageSize == "" {
		c.AI.ImageSize = "1792x1024"
	}
	if c.AI.MaxOutputTokens <= 0 {
		c.AI.MaxOutputTokens = 4096
	}
	if c.AI.ConcurrentLimit <= 0 {
		c.AI.ConcurrentLimit = 16
	}
	if c.AI.DefaultProvider == "" {
		c.AI.DefaultProvider = "openai"
	}

	if c.Pipeline.Workers <= 0 {
		c.Pipeline.Workers = 4
	}
	if c.Pipeline.ConsumerID == "" {
		host, _ := os.Hostname()
		c.Pipeline.ConsumerID = host
	}
	if c.Pipeline.StageTimeout <= 0 {
		c.Pipeline.StageTimeout = 5 * time.Minute
	}
	if c.Pipeline.LockTTL <= 0 {
		c.Pipeline.LockTTL = c.maxStageTimeout() + time.Minute
	}
	if c.Pipeline.ReceiveWait <= 0 {
		c.Pipeline.ReceiveWait = 5 * time.Second
	}
	if c.Pipeline.ImageEveryNSections <= 0 {
		c.Pipeline.ImageEveryNSections = 3
	}
	if c.Pipeline.MaxImages <= 0 {
		c.Pipeline.MaxImages = 4
	}
	if c.Pipeline.SourceTokenBudget <= 0 {
		c.Pipeline.SourceTokenBudget = 6000
	}

	c.Limits.JobSubmission = normalizeLimit(c.Limits.JobSubmission, 10, time.Hour)
	c.Limits.ImageGeneration = normalizeLimit(c.Limits.ImageGeneration, 20, 10*time.Minute)

	if c.Scheduler.PollInterval <= 0 {
		c.Scheduler.PollInterval = 30 * time.Second
	}
	if c.Scheduler.BatchSize <= 0 {
		c.Scheduler.BatchSize = 50
	}

	if c.Enrichment.Timeout <= 0 {
		c.Enrichment.Timeout = 15 * time.Second
	}
	if c.Enrichment.MaxFacts <= 0 {
		c.Enrichment.MaxFacts = 12
	}
	if c.Enrichment.UserAgent == "" {
		c.Enrichment.UserAgent = "editorial-pipeline/1.0"
	}
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Redis.URL == "" {
		return errors.New("redis.url is required")
	}
	if c.AI.OpenAIKey == "" && c.AI.GeminiKey == "" && !c.Runtime.Dev {
		return errors.New("ai.openai_key or ai.gemini_key is required outside dev mode")
	}
	if max := c.maxStageTimeout(); c.Pipeline.LockTTL <= max {
		return fmt.Errorf("pipeline.lock_ttl (%s) must exceed the longest stage timeout (%s)", c.Pipeline.LockTTL, max)
	}
	if c.Limits.ImageGeneration.Window > c.Limits.JobSubmission.Window {
		return errors.New("limits.image_generation.window must not exceed limits.job_submission.window")
	}
	return nil
}

// TimeoutFor returns the maximum duration of the named stage.
func (c PipelineConfig) TimeoutFor(stage string) time.Duration {
	if d, ok := c.StageTimeouts[stage]; ok && d > 0 {
		return d
	}
	return c.StageTimeout
}

func (c *Config) maxStageTimeout() time.Duration {
	max := c.Pipeline.StageTimeout
	for _, d := range c.Pipeline.StageTimeouts {
		if d > max {
			max = d
		}
	}
	return max
}

func normalizeLimit(l LimitConfig, ceiling int, window time.Duration) LimitConfig {
	if l.Ceiling <= 0 {
		l.Ceiling = ceiling
	}
	if l.Window <= 0 {
		l.Window = window
	}
	return l
}
