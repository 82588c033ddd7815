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

// OllamaConfig holds configuration for the native Ollama chat client.
type OllamaConfig struct {
	BaseURL     string        // default: http://localhost:11434
	Model       string        // default: llama3:8b
	Timeout     time.Duration // default: 60s
	Temperature float64       // default: 0.7
}

// OllamaClient implements ChatCompleter against Ollama's native /api/chat
// endpoint. Useful where the OpenAI compatibility layer is disabled or an
// older Ollama is deployed; behaviour otherwise mirrors OpenAIClient,
// including circuit breaker protection.
type OllamaClient struct {
	cfg            OllamaConfig
	client         *http.Client
	circuitBreaker *CircuitBreaker
}

// NewOllamaClient creates a native Ollama chat client.
func NewOllamaClient(cfg OllamaConfig) *OllamaClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "llama3:8b"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	return &OllamaClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		circuitBreaker: NewCircuitBreaker(),
	}
}

// ollamaChatRequest is the request body for POST /api/chat.
type ollamaChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
	Options  struct {
		Temperature float64 `json:"temperature"`
	} `json:"options"`
}

// ollamaChatResponse is the non-streaming response body from POST /api/chat.
type ollamaChatResponse struct {
	Model   string `json:"model"`
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	DoneReason      string `json:"done_reason"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

// Complete sends the message sequence to the model and returns its reply.
func (c *OllamaClient) Complete(ctx context.Context, messages []Message) (*ChatResponse, error) {
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

func (c *OllamaClient) complete(ctx context.Context, messages []Message) (*ChatResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	reqBody := ollamaChatRequest{
		Model:    c.cfg.Model,
		Messages: messages,
		Stream:   false,
	}
	reqBody.Options.Temperature = c.cfg.Temperature

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/api/chat", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(body))
	}

	var respData ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &ChatResponse{
		Content:      respData.Message.Content,
		FinishReason: respData.DoneReason,
		Model:        respData.Model,
		Usage: Usage{
			PromptTokens:     respData.PromptEvalCount,
			CompletionTokens: respData.EvalCount,
			TotalTokens:      respData.PromptEvalCount + respData.EvalCount,
		},
	}, nil
}

// HealthCheck verifies that Ollama is reachable via /api/version. It bypasses
// the circuit breaker since it is itself the probe.
func (c *OllamaClient) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", c.cfg.BaseURL+"/api/version", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("health check returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// GetModel returns the configured model name.
func (c *OllamaClient) GetModel() string {
	return c.cfg.Model
}

var _ ChatCompleter = (*OllamaClient)(nil)
