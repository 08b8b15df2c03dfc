package aiengine

import "github.com/marcus-ai/marcus/pkg/config"

// New selects and constructs the configured AI-instruction backend. An
// unrecognized or unconfigured provider falls back to a bare HTTPEngine
// against whatever base URL/key is set (possibly none — individual calls
// then fail and the engine falls back to BaseInstructions, per spec.md §7's
// graceful-degradation rule).
func New(cfg config.AIConfig) Engine {
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicEngine(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	case "openai":
		return NewOpenAIEngine(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	default:
		baseURL := cfg.HTTPBaseURL
		if baseURL == "" {
			baseURL = "https://api.moonshot.cn/v1"
		}
		return NewHTTPEngine(cfg.HTTPAPIKey, baseURL, cfg.HTTPModel)
	}
}
