package llm

import (
	"context"
	"fmt"
	"time"

	"switchboard/internal/config"
)

// NewClientFromConfig creates the configured client implementation.
func NewClientFromConfig(ctx context.Context, cfg config.LLMConfig, timeoutCfg *config.Config) (Client, error) {
	switch cfg.Engine {
	case "", "gemini":
		gc := DefaultGeminiConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			gc.BaseURL = cfg.BaseURL
		}
		if len(cfg.Models) > 0 {
			gc.Model = cfg.Models[0]
		}
		if timeoutCfg != nil {
			gc.Timeout = timeoutCfg.GetLLMTimeout()
		}
		return NewGeminiClientWithConfig(gc), nil
	case "genai":
		model := ""
		if len(cfg.Models) > 0 {
			model = cfg.Models[0]
		}
		return NewGenAIClient(ctx, cfg.APIKey, model)
	default:
		return nil, fmt.Errorf("unknown llm engine: %q", cfg.Engine)
	}
}

// NewChainFromConfig creates a fallback chain wired to the configured
// client and model list.
func NewChainFromConfig(ctx context.Context, full *config.Config) (*FallbackChain, error) {
	client, err := NewClientFromConfig(ctx, full.LLM, full)
	if err != nil {
		return nil, err
	}
	baseDelay := time.Duration(full.LLM.RetryBaseDelay) * time.Second
	return NewFallbackChain(client, full.LLM.Models, full.LLM.MaxRetries, baseDelay), nil
}
