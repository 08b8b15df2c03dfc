package aiengine

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIEngine implements Engine via the official OpenAI SDK. Grounded on
// NeboLoop-nebo's OpenAIProvider (openai.NewClient + option.WithAPIKey),
// trimmed from streaming chat to a single synchronous completion.
type OpenAIEngine struct {
	client openai.Client
	model  string
}

func NewOpenAIEngine(apiKey, model string) *OpenAIEngine {
	return &OpenAIEngine{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (e *OpenAIEngine) complete(ctx context.Context, system, prompt string) (string, error) {
	resp, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: e.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("aiengine: openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("aiengine: openai: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

func (e *OpenAIEngine) GenerateInstructions(ctx context.Context, tc TaskContext) (string, error) {
	text, err := e.complete(ctx, instructionSystemPrompt, instructionPrompt(tc))
	if err != nil {
		return BaseInstructions(tc), err
	}
	return text, nil
}

func (e *OpenAIEngine) SuggestForBlocker(ctx context.Context, tc TaskContext, description, severity string) (string, error) {
	text, err := e.complete(ctx, blockerSystemPrompt, blockerPrompt(tc, description, severity))
	if err != nil {
		return fallbackBlockerSuggestion(description), err
	}
	return text, nil
}

var _ Engine = (*OpenAIEngine)(nil)
