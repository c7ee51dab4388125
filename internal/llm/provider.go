package llm

import (
	"context"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// Client is the chat-completion surface the extraction fallback needs. Any
// OpenAI-compatible server, or a test double, can satisfy it.
type Client interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIProvider adapts *openai.Client to Client.
type OpenAIProvider struct {
	Inner *openai.Client
}

// NewOpenAI builds a provider for an OpenAI-compatible endpoint. An empty
// baseURL keeps the library default.
func NewOpenAI(baseURL, apiKey string, httpClient *http.Client) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &OpenAIProvider{Inner: openai.NewClientWithConfig(cfg)}
}

func (p *OpenAIProvider) CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return p.Inner.CreateChatCompletion(ctx, request)
}

// FirstContent returns the first choice's message text, or "" when the
// reply has no choices.
func FirstContent(resp openai.ChatCompletionResponse) string {
	if len(resp.Choices) == 0 {
		return ""
	}
	return resp.Choices[0].Message.Content
}
