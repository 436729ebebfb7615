package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "switchboard", cfg.Name)
	assert.Equal(t, "gemini", cfg.LLM.Engine)
	assert.NotEmpty(t, cfg.LLM.Models)
	assert.Equal(t, 3, cfg.LLM.MaxRetries)
	assert.Equal(t, 5, cfg.LLM.RetryBaseDelay)
	assert.Equal(t, "https://api.github.com", cfg.GitHub.APIBaseURL)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.LLM.Models = []string{"gemini-2.0-flash"}
	cfg.Market.APIKey = "test-key"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"gemini-2.0-flash"}, loaded.LLM.Models)
	assert.Equal(t, "test-key", loaded.Market.APIKey)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-gemini")
	t.Setenv("CMC_API_KEY", "env-cmc")
	t.Setenv("GITHUB_CLIENT_ID", "env-client")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "env-gemini", cfg.LLM.APIKey)
	assert.Equal(t, "env-cmc", cfg.Market.APIKey)
	assert.Equal(t, "env-client", cfg.GitHub.ClientID)
}

func TestEnvWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.LLM.APIKey = "file-key"
	require.NoError(t, cfg.Save(path))

	t.Setenv("GEMINI_API_KEY", "env-key")
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-key", loaded.LLM.APIKey)
}

func TestGetLLMTimeout(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "120s", cfg.LLM.Timeout)
	assert.Equal(t, float64(120), cfg.GetLLMTimeout().Seconds())

	cfg.LLM.Timeout = "garbage"
	assert.Equal(t, float64(120), cfg.GetLLMTimeout().Seconds())
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [not a mapping"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}
