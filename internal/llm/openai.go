package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OpenAIConfig holds configuration for the chat-completion client. The
// defaults target a local Ollama instance through its OpenAI-compatible
// endpoint; pointing BaseURL at api.openai.com works unchanged.
type OpenAIConfig struct {
	APIKey      string
	Model       string        // default: llama3:8b
	BaseURL     string        // default: http://localhost:11434/v1
	Timeout     time.Duration // default: 60s
	Temperature float64       // default: 0.7
	MaxTokens   int           // default: 2000
}

// OpenAIClient implements ChatCompleter against any OpenAI-compatible
// chat completions endpoint. The transport owns the only deadline applied
// to model calls; callers do not stack additional timeouts.
type OpenAIClient struct {
	cfg            OpenAIConfig
	client         *http.Client
	circuitBreaker *CircuitBreaker
}

// NewOpenAIClient creates a chat client with the given configuration.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.APIKey == "" {
		cfg.APIKey = "ollama" // local endpoints accept any key
	}
	if cfg.Model == "" {
		cfg.Model = "llama3:8b"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434/v1"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2000
	}
	return &OpenAIClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		circuitBreaker: NewCircuitBreaker(),
	}
}

// chatRequest is the request body for POST /chat/completions.
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

// chatResponse is the response body from POST /chat/completions.
type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

// Complete sends the message sequence to the model and returns its reply.
func (c *OpenAIClient) Complete(ctx context.Context, messages []Message) (*ChatResponse, error) {
	result, err := c.circuitBreaker.Execute(ctx, func() (interface{}, error) {
		return c.complete(ctx, messages)
	})
	if err != nil {
		if errors.Is(err, ErrCircuitOpen) {
			return nil, fmt.Errorf("model circuit breaker open: %w", err)
		}
		return nil, err
	}
	return result.(*ChatResponse), nil
}

func (c *OpenAIClient) complete(ctx context.Context, messages []Message) (*ChatResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	reqBody := chatRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("model endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var respData chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(respData.Choices) == 0 {
		return nil, fmt.Errorf("model returned no choices")
	}

	return &ChatResponse{
		Content:      respData.Choices[0].Message.Content,
		FinishReason: respData.Choices[0].FinishReason,
		Model:        respData.Model,
		Usage:        respData.Usage,
	}, nil
}

// GetModel returns the configured model name.
func (c *OpenAIClient) GetModel() string {
	return c.cfg.Model
}

// Compile-time assertion.
var _ ChatCompleter = (*OpenAIClient)(nil)
