package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "data/intent_cache.json", cfg.Cache.Path)
	assert.Equal(t, 1000, cfg.Cache.MaxEntries)
	assert.InDelta(t, 0.7, cfg.Cache.Threshold, 1e-9)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "http://localhost:11434/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "llama3:8b", cfg.LLM.Model)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 2000, cfg.LLM.MaxTokens)

	assert.Equal(t, "data/conversation.db", cfg.Conversation.DBPath)
	assert.Equal(t, 20, cfg.Conversation.MaxHistory)
	assert.Equal(t, "config/tools.yaml", cfg.Tools.RegistryPath)
	assert.Equal(t, "重庆市永川区", cfg.Ambient.Location)
	assert.Equal(t, "时代天街", cfg.Ambient.Venue)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("CONCIERGE_CACHE_MAX_ENTRIES", "50")
	t.Setenv("CONCIERGE_CACHE_THRESHOLD", "0.85")
	t.Setenv("CONCIERGE_LLM_MODEL", "qwen2:7b")
	t.Setenv("CONCIERGE_LLM_TIMEOUT_SECONDS", "5")
	t.Setenv("CONCIERGE_VENUE", "观音桥")

	cfg := Load()
	assert.Equal(t, 50, cfg.Cache.MaxEntries)
	assert.InDelta(t, 0.85, cfg.Cache.Threshold, 1e-9)
	assert.Equal(t, "qwen2:7b", cfg.LLM.Model)
	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "观音桥", cfg.Ambient.Venue)
}

func TestOllamaProviderChangesDefaultBaseURL(t *testing.T) {
	t.Setenv("CONCIERGE_LLM_PROVIDER", "ollama")

	cfg := Load()
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "http://localhost:11434", cfg.LLM.BaseURL)
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("CONCIERGE_CACHE_MAX_ENTRIES", "many")
	t.Setenv("CONCIERGE_CACHE_THRESHOLD", "high")

	cfg := Load()
	assert.Equal(t, 1000, cfg.Cache.MaxEntries)
	assert.InDelta(t, 0.7, cfg.Cache.Threshold, 1e-9)
}
