package llm

import (
	"context"
	"fmt"
	"time"

	"switchboard/internal/logging"
)

// FallbackChain walks an ordered list of model identifiers, retrying
// rate-limited calls per model before advancing to the next one. Models
// draw on quota pools that reset independently, so hopping models
// recovers availability faster than waiting on a single one.
type FallbackChain struct {
	client     Client
	models     []string
	maxRetries int
	baseDelay  time.Duration

	// sleep is injectable for tests; defaults to a context-aware wait.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewFallbackChain builds a chain over the given client and model list.
func NewFallbackChain(client Client, models []string, maxRetries int, baseDelay time.Duration) *FallbackChain {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if baseDelay <= 0 {
		baseDelay = 5 * time.Second
	}
	return &FallbackChain{
		client:     client,
		models:     models,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Models returns the configured fallback order.
func (fc *FallbackChain) Models() []string {
	return fc.models
}

// Complete runs the prompt through the chain.
func (fc *FallbackChain) Complete(ctx context.Context, prompt string) (string, error) {
	return fc.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem runs the prompt through the chain. Per model: up to
// maxRetries attempts, waiting baseDelay*attempt between rate-limited
// attempts. A non-rate-limit failure aborts the whole chain immediately.
// An exhausted chain fails with ErrChainExhausted.
func (fc *FallbackChain) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if len(fc.models) == 0 {
		return "", fmt.Errorf("%w: no models configured", ErrChainExhausted)
	}

	var lastErr error
	for _, model := range fc.models {
		fc.client.SetModel(model)

		for attempt := 1; attempt <= fc.maxRetries; attempt++ {
			result, err := fc.client.CompleteWithSystem(ctx, systemPrompt, userPrompt)
			if err == nil {
				if attempt > 1 {
					logging.API("[Chain] model %s succeeded on attempt %d", model, attempt)
				}
				return result, nil
			}

			if !IsRateLimit(err) {
				logging.APIError("[Chain] model %s failed (non-retryable): %v", model, err)
				return "", err
			}

			lastErr = err
			logging.APIWarn("[Chain] model %s rate limited (attempt %d/%d)", model, attempt, fc.maxRetries)

			if attempt < fc.maxRetries {
				delay := fc.baseDelay * time.Duration(attempt)
				logging.APIDebug("[Chain] backing off %v before retrying %s", delay, model)
				if err := fc.sleep(ctx, delay); err != nil {
					return "", err
				}
			}
		}
		logging.APIWarn("[Chain] model %s exhausted, advancing to next model", model)
	}

	logging.APIError("[Chain] all %d models exhausted: %v", len(fc.models), lastErr)
	return "", fmt.Errorf("%w: last error: %v", ErrChainExhausted, lastErr)
}
