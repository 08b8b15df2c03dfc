package aiengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPEngine talks to any OpenAI-chat-compatible HTTP endpoint — Moonshot
// (api.moonshot.cn/v1) being the case the teacher shipped a provider stub
// for. Reconstructed fresh: the pack's moonshot_provider.go wraps an
// HTTPProvider type that was not itself in the retrieved files, so this
// type fills that gap with two constructors: the generic NewHTTPEngine
// and the Moonshot-specific NewMoonshotEngine.
type HTTPEngine struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

func NewHTTPEngine(apiKey, baseURL, model string) *HTTPEngine {
	return &HTTPEngine{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// NewMoonshotEngine is the Moonshot-specific convenience constructor the
// teacher's moonshot_provider.go exposed over a generic HTTP provider.
func NewMoonshotEngine(apiKey, model string) *HTTPEngine {
	return NewHTTPEngine(apiKey, "https://api.moonshot.cn/v1", model)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (e *HTTPEngine) complete(ctx context.Context, system, prompt string) (string, error) {
	reqBody, err := json.Marshal(chatRequest{
		Model: e.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("aiengine: http: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("aiengine: http: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("aiengine: http: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("aiengine: http: status %d: %s", resp.StatusCode, string(b))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("aiengine: http: decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("aiengine: http: empty response")
	}
	return out.Choices[0].Message.Content, nil
}

func (e *HTTPEngine) GenerateInstructions(ctx context.Context, tc TaskContext) (string, error) {
	text, err := e.complete(ctx, instructionSystemPrompt, instructionPrompt(tc))
	if err != nil {
		return BaseInstructions(tc), err
	}
	return text, nil
}

func (e *HTTPEngine) SuggestForBlocker(ctx context.Context, tc TaskContext, description, severity string) (string, error) {
	text, err := e.complete(ctx, blockerSystemPrompt, blockerPrompt(tc, description, severity))
	if err != nil {
		return fallbackBlockerSuggestion(description), err
	}
	return text, nil
}

var _ Engine = (*HTTPEngine)(nil)
