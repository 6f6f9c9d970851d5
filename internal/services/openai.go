package services

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ReplySystemPrompt keeps replies short and free of markup that speaks badly.
const ReplySystemPrompt = `You are a helpful AI assistant. Follow these rules strictly:

1. NEVER use asterisks (*) in your responses - not for emphasis, lists, or formatting.
2. Instead of asterisks for emphasis, use quotes, ALL CAPS, or dashes.
3. For lists, use numbers or hyphens (-) instead of bullet points.
4. Keep ALL responses under 240 characters. Be concise and direct.
5. If you cannot answer within 240 characters, prioritize the most important information.

Respond with short, clear answers without asterisks.`

const (
	defaultOpenAIModel      = openai.GPT4oMini
	defaultReplyMaxTokens   = 60
	defaultReplyTemperature = 0.7
)

// OpenAIConfig configures the direct reply backend.
type OpenAIConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// OpenAIReplier generates replies with the chat completions API instead of the gateway.
type OpenAIReplier struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewOpenAIReplier builds a replier. The API key is required.
func NewOpenAIReplier(cfg OpenAIConfig) (*OpenAIReplier, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai api key cannot be empty")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultReplyMaxTokens
	}
	return &OpenAIReplier{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

// Reply ignores the gateway key; the replier carries its own credential.
func (r *OpenAIReplier) Reply(ctx context.Context, message string, history []Turn, _ string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: ReplySystemPrompt})
	for _, turn := range history {
		messages = append(messages, openai.ChatCompletionMessage{Role: convertRole(turn.Role), Content: turn.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: message})

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       r.model,
		Messages:    messages,
		MaxTokens:   r.maxTokens,
		Temperature: defaultReplyTemperature,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", &ServiceError{Endpoint: "openai", StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
		}
		return "", &ServiceError{Endpoint: "openai", Err: err}
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", &ServiceError{Endpoint: "openai", Err: ErrEmptyResponse}
	}
	return resp.Choices[0].Message.Content, nil
}

func convertRole(role string) string {
	if role == "assistant" {
		return openai.ChatMessageRoleAssistant
	}
	return openai.ChatMessageRoleUser
}
