package llm

import (
	"fmt"
	"time"
)

// CompleterConfig selects and configures a chat backend.
type CompleterConfig struct {
	// Provider is "openai" for any OpenAI-compatible endpoint (including
	// Ollama's compatibility layer) or "ollama" for the native Ollama API.
	// Empty defaults to "openai".
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

// NewChatCompleter creates the ChatCompleter for the configured provider.
func NewChatCompleter(cfg CompleterConfig) (ChatCompleter, error) {
	switch cfg.Provider {
	case "openai", "":
		return NewOpenAIClient(OpenAIConfig{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			Timeout:     cfg.Timeout,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		}), nil
	case "ollama":
		return NewOllamaClient(OllamaConfig{
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Timeout:     cfg.Timeout,
			Temperature: cfg.Temperature,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported model provider: %q", cfg.Provider)
	}
}
