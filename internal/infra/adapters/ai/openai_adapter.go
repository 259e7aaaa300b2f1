package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"editorial-pipeline/internal/domain/ports/adapter"
	"editorial-pipeline/internal/infra/metrics"
)

var (
	_ adapter.AIServiceAdapter = (*OpenAIAdapter)(nil)
	_ adapter.ImageGenerator   = (*OpenAIAdapter)(nil)
)

// OpenAIAdapter serves chat completions and image generation through the official SDK.
type OpenAIAdapter struct {
	client     openai.Client
	model      string
	imageModel string
	maxOut     int
	tok        *Tokenizer
}

func NewOpenAIAdapter(apiKey, baseURL, model, imageModel string, maxOut int) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if imageModel == "" {
		imageModel = "dall-e-3"
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(2)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"))
	}
	return &OpenAIAdapter{
		client:     openai.NewClient(opts...),
		model:      model,
		imageModel: imageModel,
		maxOut:     maxOut,
		tok:        NewTokenizer(model),
	}, nil
}

func (o *OpenAIAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	return o.tok.CountMessages(messages), nil
}

func (o *OpenAIAdapter) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	model = modelOrDefault(model, o.model)
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: toOpenAIMessages(messages),
	}
	if o.maxOut > 0 {
		params.MaxCompletionTokens = openai.Int(int64(o.maxOut))
	}

	start := time.Now()
	resp, err := o.client.Chat.Completions.New(ctx, params)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		metrics.ObserveChatUsage("openai", model, 0, 0, latency, false)
		return "", adapter.Usage{}, fmt.Errorf("openai chat: %w", err)
	}

	u := adapter.Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	metrics.ObserveChatUsage("openai", model, u.PromptTokens, u.CompletionTokens, latency, true)
	for _, c := range resp.Choices {
		if c.Message.Content != "" {
			return c.Message.Content, u, nil
		}
	}
	return "", u, errors.New("openai: no choice content")
}

func (o *OpenAIAdapter) GenerateImage(ctx context.Context, req adapter.ImageRequest) (adapter.GeneratedImage, error) {
	prompt := req.Prompt
	if req.Style != "" {
		prompt += "\nStyle: " + req.Style
	}
	params := openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          openai.ImageModel(o.imageModel),
		N:              openai.Int(1),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatURL,
	}
	if req.Size != "" {
		params.Size = openai.ImageGenerateParamsSize(req.Size)
	}

	start := time.Now()
	resp, err := o.client.Images.Generate(ctx, params)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		metrics.ObserveImage("openai", o.imageModel, latency, false)
		return adapter.GeneratedImage{}, fmt.Errorf("openai image: %w", err)
	}
	metrics.ObserveImage("openai", o.imageModel, latency, true)
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return adapter.GeneratedImage{}, errors.New("openai image: empty response")
	}
	return adapter.GeneratedImage{URL: resp.Data[0].URL, RevisedPrompt: resp.Data[0].RevisedPrompt}, nil
}

func toOpenAIMessages(msgs []adapter.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch strings.ToLower(m.Role) {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
