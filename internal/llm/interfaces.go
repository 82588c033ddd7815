// Package llm talks to the chat-completion backend. The intent analyzer is
// the only consumer; everything here is transport plumbing.
package llm

import "context"

// Message is one turn of a chat-completion request.
type Message struct {
	Role    string `json:"role"` // system, user or assistant
	Content string `json:"content"`
}

// Usage reports token accounting for one completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is the collaborator's reply to a completion request.
type ChatResponse struct {
	Content      string
	FinishReason string
	Model        string
	Usage        Usage
}

// ChatCompleter is the interface for multi-turn chat completion.
type ChatCompleter interface {
	Complete(ctx context.Context, messages []Message) (*ChatResponse, error)
	GetModel() string
}
