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

func TestOllamaGenerate_PlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3", req.Model)
		assert.False(t, req.Stream)
		require.Len(t, req.Tools, 1)
		assert.Equal(t, "news", req.Tools[0].Function.Name)

		w.Write([]byte(`{"message":{"role":"assistant","content":"Quiet day in town."}}`))
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL)
	resp, err := p.Generate(context.Background(), &Request{
		Model:    "llama3",
		Messages: []Message{{Role: "user", Content: "any news?"}},
		Tools:    []Tool{{Name: "news", Description: "headlines", Parameters: map[string]interface{}{"type": "object"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Quiet day in town.", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Greater(t, resp.OutputTokens, 0)
}

func TestOllamaGenerate_ToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"weather","arguments":{"place":"Oslo"}}}]}}`))
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL)
	resp, err := p.Generate(context.Background(), &Request{
		Model:    "llama3",
		Messages: []Message{{Role: "user", Content: "weather?"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "tool_calls", resp.FinishReason)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "call_0", resp.ToolCalls[0].ID)
	assert.Equal(t, "weather", resp.ToolCalls[0].Name)
	assert.Equal(t, "Oslo", resp.ToolCalls[0].Arguments["place"])
}

func TestOllamaGenerate_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"model 'llama9' not found"}`))
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL)
	_, err := p.Generate(context.Background(), &Request{
		Model:    "llama9",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "model 'llama9' not found")
}

func TestOllamaGenerate_NonJSONErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`upstream unavailable`))
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL)
	_, err := p.Generate(context.Background(), &Request{
		Model:    "llama3",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestOllamaDefaultBaseURL(t *testing.T) {
	p := NewOllamaProvider("")
	assert.Equal(t, "http://localhost:11434", p.baseURL)
}

func TestOllamaEstimateCost(t *testing.T) {
	p := NewOllamaProvider("")
	assert.Zero(t, p.EstimateCost("llama3", 1000, 1000))
}
