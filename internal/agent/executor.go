// Package agent implements the chat orchestration pipeline: intent
// detection → session policy gating → gated tool-set selection → prompt
// augmentation → tool-calling execution → transcript extraction → session
// update.
package agent

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/citybrief/citybrief/internal/agent/tools"
	"github.com/citybrief/citybrief/internal/llm"
	cbotel "github.com/citybrief/citybrief/internal/otel"
)

var tracer = cbotel.Tracer("github.com/citybrief/citybrief/internal/agent")

// MaxSteps bounds the generate→tools→observe loop. A run that still wants
// tools after this many model calls is cut off with whatever text exists.
const MaxSteps = 6

// Step is one tool invocation in the debug trace.
type Step struct {
	Tool        string                 `json:"tool"`
	ToolInput   map[string]interface{} `json:"tool_input"`
	Observation string                 `json:"observation"`
}

// Result is the outcome of one executor run.
type Result struct {
	Final       string
	ToolsCalled []string
	Trace       []Step
	CostEUR     float64
}

// Executor drives the tool-calling loop against one provider/model pair.
type Executor struct {
	provider llm.Provider
	model    string
	maxSteps int
}

// NewExecutor creates an executor.
func NewExecutor(provider llm.Provider, model string) *Executor {
	return &Executor{provider: provider, model: model, maxSteps: MaxSteps}
}

// Run executes the loop: generate, execute any requested tools, append the
// observations, repeat until the model emits a plain-text answer. The final
// answer is the last assistant message carrying non-empty text; the
// ToolsCalled set collects every capability actually invoked.
func (e *Executor) Run(ctx context.Context, messages []llm.Message, registry *tools.Registry) (*Result, error) {
	ctx, span := tracer.Start(ctx, "agent.execute",
		trace.WithAttributes(
			attribute.String("model", e.model),
			attribute.Int("message_count", len(messages)),
		))
	defer span.End()

	res := &Result{}
	descriptors := registry.Descriptors()
	transcript := append([]llm.Message(nil), messages...)
	seen := make(map[string]bool)

	for step := 0; step < e.maxSteps; step++ {
		resp, err := e.provider.Generate(ctx, &llm.Request{
			Model:    e.model,
			Messages: transcript,
			Tools:    descriptors,
		})
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("agent generate: %w", err)
		}
		res.CostEUR += e.provider.EstimateCost(e.model, resp.InputTokens, resp.OutputTokens)

		if resp.Content != "" {
			res.Final = resp.Content
		}

		if len(resp.ToolCalls) == 0 {
			span.SetAttributes(
				attribute.Int("agent.steps", step+1),
				attribute.StringSlice("agent.tools_called", res.ToolsCalled),
			)
			return res, nil
		}

		transcript = append(transcript, llm.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, call := range resp.ToolCalls {
			observation := e.executeCall(ctx, registry, call)
			if !seen[call.Name] {
				seen[call.Name] = true
				res.ToolsCalled = append(res.ToolsCalled, call.Name)
			}
			res.Trace = append(res.Trace, Step{
				Tool:        call.Name,
				ToolInput:   call.Arguments,
				Observation: observation,
			})
			transcript = append(transcript, llm.Message{
				Role:       "tool",
				Content:    observation,
				ToolCallID: call.ID,
				Name:       call.Name,
			})
		}
	}

	span.SetAttributes(attribute.Int("agent.steps", e.maxSteps))
	if res.Final == "" {
		return nil, fmt.Errorf("agent did not produce a final answer within %d steps", e.maxSteps)
	}
	log.Warn().Int("max_steps", e.maxSteps).Msg("agent_step_budget_exhausted")
	return res, nil
}

func (e *Executor) executeCall(ctx context.Context, registry *tools.Registry, call llm.ToolCall) string {
	ctx, span := tracer.Start(ctx, "agent.tool_call",
		trace.WithAttributes(attribute.String("tool.name", call.Name)))
	defer span.End()

	tool, ok := registry.Get(call.Name)
	if !ok {
		return "ERROR: unknown tool " + call.Name
	}
	return tool.Execute(ctx, call.Arguments)
}
