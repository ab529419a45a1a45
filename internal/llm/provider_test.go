package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferProviderName(t *testing.T) {
	assert.Equal(t, "openai", InferProviderName("gpt-4o-mini"))
	assert.Equal(t, "openai", InferProviderName("GPT-4o"))
	assert.Equal(t, "openai", InferProviderName("o1-preview"))
	assert.Equal(t, "ollama", InferProviderName("llama3"))
	assert.Equal(t, "ollama", InferProviderName("mistral:7b"))
}

func TestForModel(t *testing.T) {
	p, err := ForModel("gpt-4o-mini", "key", "", "")
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	p, err = ForModel("llama3", "", "", "http://localhost:11434")
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name())

	_, err = ForModel("gpt-4o-mini", "", "", "")
	require.Error(t, err, "OpenAI models need a key")
}
