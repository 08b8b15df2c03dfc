package aiengine

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultMaxTokens = 1024

// AnthropicEngine implements Engine via the official Anthropic SDK.
// Grounded on NeboLoop-nebo's AnthropicProvider (anthropic.NewClient +
// option.WithAPIKey), trimmed from a streaming chat session to a single
// synchronous completion since the engine only needs one-shot text.
type AnthropicEngine struct {
	client anthropic.Client
	model  string
}

func NewAnthropicEngine(apiKey, model string) *AnthropicEngine {
	return &AnthropicEngine{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (e *AnthropicEngine) complete(ctx context.Context, system, prompt string) (string, error) {
	msg, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(e.model),
		MaxTokens: defaultMaxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("aiengine: anthropic: %w", err)
	}
	var out string
	for _, block := range msg.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			out += text.Text
		}
	}
	return out, nil
}

func (e *AnthropicEngine) GenerateInstructions(ctx context.Context, tc TaskContext) (string, error) {
	text, err := e.complete(ctx, instructionSystemPrompt, instructionPrompt(tc))
	if err != nil {
		return BaseInstructions(tc), err
	}
	return text, nil
}

func (e *AnthropicEngine) SuggestForBlocker(ctx context.Context, tc TaskContext, description, severity string) (string, error) {
	text, err := e.complete(ctx, blockerSystemPrompt, blockerPrompt(tc, description, severity))
	if err != nil {
		return fallbackBlockerSuggestion(description), err
	}
	return text, nil
}

var _ Engine = (*AnthropicEngine)(nil)
