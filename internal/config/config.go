// Package config loads runtime configuration from the environment. Every
// setting has a working default so a bare `concierge-agent` starts against
// a local Ollama with on-disk state under data/.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all runtime settings.
type Config struct {
	Cache        CacheConfig
	LLM          LLMConfig
	Conversation ConversationConfig
	Tools        ToolsConfig
	Ambient      AmbientConfig
}

// CacheConfig configures the intent cache.
type CacheConfig struct {
	Path       string
	MaxEntries int
	Threshold  float64
}

// LLMConfig configures the chat model endpoint.
type LLMConfig struct {
	Provider    string
	BaseURL     string
	Model       string
	APIKey      string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
	RatePerSec  float64
}

// ConversationConfig configures dialogue history.
type ConversationConfig struct {
	DBPath     string
	MaxHistory int
}

// ToolsConfig configures the tool registry.
type ToolsConfig struct {
	RegistryPath string
}

// AmbientConfig seeds the ambient context.
type AmbientConfig struct {
	Location string
	Venue    string
}

// Load reads configuration from CONCIERGE_* environment variables, falling
// back to defaults for anything unset.
func Load() *Config {
	provider := getEnv("CONCIERGE_LLM_PROVIDER", "openai")
	defaultBaseURL := "http://localhost:11434/v1"
	if provider == "ollama" {
		// The native API lives at the server root, not under /v1.
		defaultBaseURL = "http://localhost:11434"
	}

	return &Config{
		Cache: CacheConfig{
			Path:       getEnv("CONCIERGE_CACHE_PATH", "data/intent_cache.json"),
			MaxEntries: getEnvInt("CONCIERGE_CACHE_MAX_ENTRIES", 1000),
			Threshold:  getEnvFloat("CONCIERGE_CACHE_THRESHOLD", 0.7),
		},
		LLM: LLMConfig{
			Provider:    provider,
			BaseURL:     getEnv("CONCIERGE_LLM_BASE_URL", defaultBaseURL),
			Model:       getEnv("CONCIERGE_LLM_MODEL", "llama3:8b"),
			APIKey:      getEnv("CONCIERGE_LLM_API_KEY", "ollama"),
			Timeout:     time.Duration(getEnvInt("CONCIERGE_LLM_TIMEOUT_SECONDS", 60)) * time.Second,
			Temperature: getEnvFloat("CONCIERGE_LLM_TEMPERATURE", 0.7),
			MaxTokens:   getEnvInt("CONCIERGE_LLM_MAX_TOKENS", 2000),
			RatePerSec:  getEnvFloat("CONCIERGE_LLM_RATE_PER_SEC", 2),
		},
		Conversation: ConversationConfig{
			DBPath:     getEnv("CONCIERGE_CONVERSATION_DB", "data/conversation.db"),
			MaxHistory: getEnvInt("CONCIERGE_MAX_HISTORY", 20),
		},
		Tools: ToolsConfig{
			RegistryPath: getEnv("CONCIERGE_TOOLS_REGISTRY", "config/tools.yaml"),
		},
		Ambient: AmbientConfig{
			Location: getEnv("CONCIERGE_LOCATION", "重庆市永川区"),
			Venue:    getEnv("CONCIERGE_VENUE", "时代天街"),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
