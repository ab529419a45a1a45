// Package llm abstracts the chat-completion backends the agent executor can
// run against: OpenAI-compatible APIs and local Ollama models.
package llm

import (
	"context"
	"errors"
	"strings"
	"time"
)

// TimeoutLLMCall bounds a single model call; the executor loop makes several.
const TimeoutLLMCall = 60 * time.Second

var ErrProviderNotAvailable = errors.New("provider not available")

// Provider is the interface all chat-completion backends implement.
type Provider interface {
	// Name returns the provider identifier (e.g. "openai", "ollama").
	Name() string
	// Generate sends a completion request and returns the response.
	Generate(ctx context.Context, req *Request) (*Response, error)
	// EstimateCost estimates the cost in EUR for the given model and token counts.
	EstimateCost(model string, inputTokens, outputTokens int) float64
}

// Request represents a generation request.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
	Tools       []Tool
}

// Message is one entry in the conversation transcript. Role is one of
// "system", "user", "assistant", "tool". Assistant messages may carry tool
// calls instead of (or alongside) text; tool messages carry the result of
// one call, identified by ToolCallID.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
}

// Tool describes a callable capability advertised to the model.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// Response represents a generation response.
type Response struct {
	Content      string
	FinishReason string
	InputTokens  int
	OutputTokens int
	Model        string
	ToolCalls    []ToolCall
}

// ToolCall is a request from the model to invoke a tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]interface{}
}

// InferProviderName picks a backend from a model identifier: OpenAI model
// families go to the API, anything else (llama3, mistral, qwen tags) is
// treated as a local Ollama model.
func InferProviderName(model string) string {
	m := strings.ToLower(model)
	switch {
	case strings.HasPrefix(m, "gpt-"),
		strings.HasPrefix(m, "o1"),
		strings.HasPrefix(m, "o3"),
		strings.HasPrefix(m, "chatgpt"):
		return "openai"
	default:
		return "ollama"
	}
}

// ForModel constructs the provider matching the model identifier.
// llmBaseURL, when non-empty, overrides the OpenAI endpoint (any
// OpenAI-compatible server).
func ForModel(model, openaiAPIKey, llmBaseURL, ollamaBaseURL string) (Provider, error) {
	switch InferProviderName(model) {
	case "openai":
		if openaiAPIKey == "" {
			return nil, errors.New("model requires an OpenAI API key: set CITYBRIEF_OPENAI_API_KEY")
		}
		if llmBaseURL != "" {
			return NewOpenAIProviderWithBaseURL(openaiAPIKey, llmBaseURL), nil
		}
		return NewOpenAIProvider(openaiAPIKey), nil
	default:
		return NewOllamaProvider(ollamaBaseURL), nil
	}
}
