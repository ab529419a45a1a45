package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citybrief/citybrief/internal/intent"
	"github.com/citybrief/citybrief/internal/llm"
	"github.com/citybrief/citybrief/internal/session"
	"github.com/citybrief/citybrief/internal/store"
)

func newTestOrchestrator(t *testing.T, p llm.Provider) (*Orchestrator, *session.Policy) {
	t.Helper()
	s, err := store.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	policy := session.NewPolicy(s, time.Hour, 24*time.Hour)
	o := NewOrchestrator(OrchestratorConfig{
		Classifier:  intent.NewKeywordClassifier(),
		Policy:      policy,
		Provider:    p,
		Model:       "test-model",
		WeatherTool: &stubTool{name: "weather", out: "Berlin: Clear sky, 20°C"},
		NewsTool:    &stubTool{name: "news", out: "- headline"},
		RiskTool:    &stubTool{name: "city_risk", out: "Risk level: LOW. No notable risk factors."},
	})
	return o, policy
}

func plainAnswer(text string) *scriptedProvider {
	return &scriptedProvider{responses: []*llm.Response{
		{Content: text, FinishReason: "stop"},
	}}
}

func TestChat_FullCapabilityOnAmbiguousQuestion(t *testing.T) {
	p := plainAnswer("Here's your briefing.")
	o, _ := newTestOrchestrator(t, p)

	resp, err := o.Chat(context.Background(), ChatRequest{
		SessionID: "s1", Place: "Berlin", Question: "How should I plan my day?",
	})
	require.NoError(t, err)
	assert.Equal(t, "Here's your briefing.", resp.Final)

	require.Len(t, p.requests, 1)
	names := toolNames(p.requests[0].Tools)
	assert.ElementsMatch(t, []string{"city_risk", "weather", "news"}, names)
}

func TestChat_EmptyQuestionGetsDefaultPrompt(t *testing.T) {
	p := plainAnswer("ok")
	o, _ := newTestOrchestrator(t, p)

	_, err := o.Chat(context.Background(), ChatRequest{SessionID: "s1", Place: "Oslo"})
	require.NoError(t, err)

	prompt := p.requests[0].Messages[1].Content
	assert.Contains(t, prompt, "briefing for Oslo")
}

func TestChat_IntentNarrowsToolSet(t *testing.T) {
	p := plainAnswer("ok")
	o, _ := newTestOrchestrator(t, p)

	_, err := o.Chat(context.Background(), ChatRequest{
		SessionID: "s1", Place: "Berlin", Question: "Will it rain tomorrow?",
	})
	require.NoError(t, err)

	names := toolNames(p.requests[0].Tools)
	assert.ElementsMatch(t, []string{"city_risk", "weather"}, names)
}

func TestChat_SuppressionRemovesToolAndAddsPolicyLine(t *testing.T) {
	// Turn 1: model calls the weather tool, so weather gets marked sent.
	p := &scriptedProvider{responses: []*llm.Response{
		{FinishReason: "tool_calls", ToolCalls: []llm.ToolCall{{
			ID: "c1", Name: "weather", Arguments: map[string]interface{}{"place": "Berlin"},
		}}},
		{Content: "Clear skies.", FinishReason: "stop"},
		// Turn 2.
		{Content: "As noted before, plan freely.", FinishReason: "stop"},
	}}
	o, _ := newTestOrchestrator(t, p)
	ctx := context.Background()

	resp, err := o.Chat(ctx, ChatRequest{SessionID: "s1", Place: "Berlin", Question: "Will it rain?"})
	require.NoError(t, err)
	assert.Equal(t, []string{"weather"}, resp.ToolsCalled)

	// Turn 2, same session, weather-flavored but not forced: the weather
	// tool is withheld and the policy block says so.
	_, err = o.Chat(ctx, ChatRequest{SessionID: "s1", Place: "Berlin", Question: "Will it rain again?"})
	require.NoError(t, err)

	turn2 := p.requests[2]
	assert.NotContains(t, toolNames(turn2.Tools), "weather")
	prompt := turn2.Messages[1].Content
	assert.Contains(t, prompt, "do not include weather information")
	assert.Contains(t, prompt, "Previous exchange:")
	assert.Contains(t, prompt, "Will it rain?")
}

func TestChat_ForceWeatherOverridesSuppression(t *testing.T) {
	p := &scriptedProvider{responses: []*llm.Response{
		{FinishReason: "tool_calls", ToolCalls: []llm.ToolCall{{
			ID: "c1", Name: "weather", Arguments: map[string]interface{}{"place": "Berlin"},
		}}},
		{Content: "Clear.", FinishReason: "stop"},
		{Content: "Still clear.", FinishReason: "stop"},
	}}
	o, _ := newTestOrchestrator(t, p)
	ctx := context.Background()

	_, err := o.Chat(ctx, ChatRequest{SessionID: "s1", Place: "Berlin", Question: "Will it rain?"})
	require.NoError(t, err)

	// The literal word "weather" forces the capability back in.
	_, err = o.Chat(ctx, ChatRequest{SessionID: "s1", Place: "Berlin", Question: "weather please"})
	require.NoError(t, err)

	assert.Contains(t, toolNames(p.requests[2].Tools), "weather")
}

func TestChat_MarkSentTracksActualUsageNotEligibility(t *testing.T) {
	// All tools offered, none invoked.
	p := plainAnswer("General advice only.")
	o, policy := newTestOrchestrator(t, p)
	ctx := context.Background()

	_, err := o.Chat(ctx, ChatRequest{SessionID: "s1", Place: "Berlin", Question: "How should I plan my day?"})
	require.NoError(t, err)

	// Nothing was actually sent, so nothing is suppressed.
	w, n := policy.ShouldInclude(ctx, "s1", false, false)
	assert.True(t, w)
	assert.True(t, n)

	// The exchange is still recorded.
	u, r := policy.GetLastExchange(ctx, "s1")
	assert.Equal(t, "How should I plan my day?", u)
	assert.Equal(t, "General advice only.", r)
}

func TestChat_DebugTraceOnlyWhenRequested(t *testing.T) {
	script := func() *scriptedProvider {
		return &scriptedProvider{responses: []*llm.Response{
			{FinishReason: "tool_calls", ToolCalls: []llm.ToolCall{{
				ID: "c1", Name: "city_risk", Arguments: map[string]interface{}{"place": "Berlin"},
			}}},
			{Content: "Low risk.", FinishReason: "stop"},
		}}
	}

	o, _ := newTestOrchestrator(t, script())
	resp, err := o.Chat(context.Background(), ChatRequest{SessionID: "s1", Place: "Berlin", Question: "risky?"})
	require.NoError(t, err)
	assert.Nil(t, resp.Trace)

	o2, _ := newTestOrchestrator(t, script())
	resp, err = o2.Chat(context.Background(), ChatRequest{SessionID: "s1", Place: "Berlin", Question: "risky?", Debug: true})
	require.NoError(t, err)
	require.Len(t, resp.Trace, 1)
	assert.Equal(t, "city_risk", resp.Trace[0].Tool)
}

func TestRegistryFor_BindingCacheReused(t *testing.T) {
	o, _ := newTestOrchestrator(t, plainAnswer("ok"))

	r1 := o.registryFor(true, false)
	r2 := o.registryFor(true, false)
	assert.Same(t, r1, r2)

	r3 := o.registryFor(false, false)
	assert.NotSame(t, r1, r3)
	assert.Equal(t, []string{"city_risk"}, r3.Names(), "risk capability is always present")
}

func toolNames(ts []llm.Tool) []string {
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = t.Name
	}
	return names
}
