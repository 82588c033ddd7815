package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChatCompleterProviders(t *testing.T) {
	c, err := NewChatCompleter(CompleterConfig{Provider: "openai", Model: "m"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)

	c, err = NewChatCompleter(CompleterConfig{Model: "m"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c, "empty provider defaults to openai")

	c, err = NewChatCompleter(CompleterConfig{Provider: "ollama", Model: "m"})
	require.NoError(t, err)
	assert.IsType(t, &OllamaClient{}, c)
}

func TestNewChatCompleterUnknownProvider(t *testing.T) {
	_, err := NewChatCompleter(CompleterConfig{Provider: "carrier-pigeon"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier-pigeon")
}
