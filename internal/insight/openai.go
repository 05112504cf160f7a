package insight

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

// Compile-time interface check
var _ Provider = (*OpenAI)(nil)

// ChatCompletionsService defines the interface for making chat completion calls.
// This abstraction enables testing without calling the real OpenAI API.
type ChatCompletionsService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAI implements Provider using OpenAI's chat completions API
type OpenAI struct {
	completions ChatCompletionsService
	model       openai.ChatModel
}

// NewOpenAI creates a new OpenAI insight provider
func NewOpenAI(apiKey, model string) *OpenAI {
	if model == "" {
		model = DefaultModel
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAI{
		completions: client.Chat.Completions,
		model:       openai.ChatModel(model),
	}
}

// Generate sends the prompt as a single user message and returns the first choice.
func (o *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := o.completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		}),
		Model: openai.F(o.model),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion failed: no choices returned")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("chat completion failed: empty content")
	}
	return text, nil
}

// Name returns the provider name including the model.
func (o *OpenAI) Name() string {
	return "openai:" + string(o.model)
}

// ModelName returns the chat model name
func (o *OpenAI) ModelName() string {
	return string(o.model)
}
