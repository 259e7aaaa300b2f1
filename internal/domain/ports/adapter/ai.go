package adapter

import "context"

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Usage for a single completion call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// AIServiceAdapter is the port for LLM text generation.
type AIServiceAdapter interface {
	// CountTokens returns prompt tokens for the messages (best-effort where the provider has no exact count).
	CountTokens(ctx context.Context, model string, messages []Message) (int, error)

	// ChatWithUsage returns assistant text + usage as reported by the provider.
	ChatWithUsage(ctx context.Context, model string, messages []Message) (string, Usage, error)
}

// ImageRequest describes one generated illustration.
type ImageRequest struct {
	Prompt string
	Style  string
	Size   string
}

type GeneratedImage struct {
	URL           string
	RevisedPrompt string
}

// ImageGenerator is the port for image generation.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req ImageRequest) (GeneratedImage, error)
}
