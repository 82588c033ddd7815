package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaCompleteSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.False(t, req.Stream)
		require.NotEmpty(t, req.Messages)

		_, _ = w.Write([]byte(`{
			"model": "test-model",
			"message": {"role": "assistant", "content": "回答"},
			"done_reason": "stop",
			"prompt_eval_count": 10,
			"eval_count": 4
		}`))
	}))
	defer srv.Close()

	client := NewOllamaClient(OllamaConfig{BaseURL: srv.URL, Model: "test-model"})
	resp, err := client.Complete(context.Background(), []Message{{Role: "user", Content: "你好"}})
	require.NoError(t, err)
	assert.Equal(t, "回答", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 14, resp.Usage.TotalTokens)
}

func TestOllamaCompleteServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewOllamaClient(OllamaConfig{BaseURL: srv.URL})
	_, err := client.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestOllamaHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/version" {
			_, _ = w.Write([]byte(`{"version": "0.5.0"}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := NewOllamaClient(OllamaConfig{BaseURL: srv.URL})
	assert.NoError(t, client.HealthCheck(context.Background()))

	client = NewOllamaClient(OllamaConfig{BaseURL: "http://127.0.0.1:1"})
	assert.Error(t, client.HealthCheck(context.Background()))
}
