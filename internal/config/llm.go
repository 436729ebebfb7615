package config

// LLMConfig configures the generative-text client and its model
// fallback chain.
type LLMConfig struct {
	// Engine selects the client implementation: "gemini" (raw HTTP,
	// default) or "genai" (official SDK).
	Engine string `yaml:"engine"`

	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`

	// Models is the ordered fallback chain. The first entry is the
	// preferred model; later entries are tried only after the earlier
	// ones exhaust their rate-limit retries. Different models draw on
	// quota pools that reset independently, so hopping models recovers
	// availability faster than waiting on one.
	Models []string `yaml:"models"`

	// MaxRetries is the per-model retry ceiling for rate-limit failures.
	MaxRetries int `yaml:"max_retries"`

	// RetryBaseDelay is the base backoff in seconds; attempt N waits
	// base*N before retrying the same model.
	RetryBaseDelay int `yaml:"retry_base_delay"`
}

// DefaultLLMConfig returns sensible defaults for the fallback chain.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Engine:  "gemini",
		BaseURL: "https://generativelanguage.googleapis.com/v1beta",
		Timeout: "120s",
		Models: []string{
			"gemini-2.0-flash",
			"gemini-1.5-flash",
			"gemini-1.5-flash-8b",
		},
		MaxRetries:     3,
		RetryBaseDelay: 5,
	}
}
