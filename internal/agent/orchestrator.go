package agent

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/citybrief/citybrief/internal/agent/tools"
	"github.com/citybrief/citybrief/internal/intent"
	"github.com/citybrief/citybrief/internal/llm"
	"github.com/citybrief/citybrief/internal/session"
)

// Orchestrator runs the per-request gating state machine around the
// executor: which capabilities the model may use this turn, what context is
// prepended to the question, and how the session record advances afterwards.
type Orchestrator struct {
	classifier intent.Classifier
	policy     *session.Policy
	executor   *Executor

	weatherTool tools.Tool
	newsTool    tools.Tool
	riskTool    tools.Tool

	// bindings caches one registry per (weather, news) capability pair so
	// repeated turns reuse the same tool-set construction.
	mu       sync.Mutex
	bindings map[bindingKey]*tools.Registry
}

type bindingKey struct {
	weather bool
	news    bool
}

// OrchestratorConfig holds the dependencies for constructing an Orchestrator.
type OrchestratorConfig struct {
	Classifier  intent.Classifier
	Policy      *session.Policy
	Provider    llm.Provider
	Model       string
	WeatherTool tools.Tool
	NewsTool    tools.Tool
	RiskTool    tools.Tool
}

// NewOrchestrator creates an orchestrator with the given dependencies.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	return &Orchestrator{
		classifier:  cfg.Classifier,
		policy:      cfg.Policy,
		executor:    NewExecutor(cfg.Provider, cfg.Model),
		weatherTool: cfg.WeatherTool,
		newsTool:    cfg.NewsTool,
		riskTool:    cfg.RiskTool,
		bindings:    make(map[bindingKey]*tools.Registry),
	}
}

// ChatRequest is one inbound chat turn.
type ChatRequest struct {
	SessionID string
	Place     string
	Question  string
	Debug     bool
}

// ChatResponse is the outcome of one chat turn.
type ChatResponse struct {
	Final       string   `json:"final"`
	ToolsCalled []string `json:"tools_called,omitempty"`
	Trace       []Step   `json:"trace,omitempty"`
	CostEUR     float64  `json:"-"`
}

// Chat runs one turn: single pass, no orchestrator-level retries (retries
// live inside the individual signal fetchers).
func (o *Orchestrator) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	ctx, span := tracer.Start(ctx, "agent.chat",
		trace.WithAttributes(
			attribute.String("session_id", req.SessionID),
			attribute.String("place", req.Place),
		))
	defer span.End()

	question := strings.TrimSpace(req.Question)
	if question == "" {
		question = defaultQuestion(req.Place)
	}

	it := o.classifier.Classify(question)
	allowedWeather, allowedNews := o.policy.ShouldInclude(ctx, req.SessionID, it.ForceWeather, it.ForceNews)

	// A capability is available only when the question suggests it AND
	// policy allows it this turn.
	includeWeather := it.WantsWeather && allowedWeather
	includeNews := it.WantsNews && allowedNews
	span.SetAttributes(
		attribute.Bool("include_weather", includeWeather),
		attribute.Bool("include_news", includeNews),
	)

	registry := o.registryFor(includeWeather, includeNews)

	lastUser, lastReply := o.policy.GetLastExchange(ctx, req.SessionID)
	prompt := buildPrompt(req.Place, includeWeather, includeNews, lastUser, lastReply, question)

	messages := []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: prompt},
	}

	result, err := o.executor.Run(ctx, messages, registry)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	// Suppression tracks real tool usage, not eligibility.
	weatherSent := invoked(result.ToolsCalled, "weather")
	newsSent := invoked(result.ToolsCalled, "news")
	o.policy.MarkSent(ctx, req.SessionID, weatherSent, newsSent, question, result.Final)

	log.Info().
		Str("session_id", req.SessionID).
		Str("place", req.Place).
		Strs("tools_called", result.ToolsCalled).
		Float64("cost_eur", result.CostEUR).
		Msg("chat_turn_complete")

	resp := &ChatResponse{
		Final:       result.Final,
		ToolsCalled: result.ToolsCalled,
		CostEUR:     result.CostEUR,
	}
	if req.Debug {
		resp.Trace = result.Trace
	}
	return resp, nil
}

// registryFor returns the cached tool binding for a capability pair. The
// risk capability is always present; weather and news join per the gate.
func (o *Orchestrator) registryFor(includeWeather, includeNews bool) *tools.Registry {
	key := bindingKey{weather: includeWeather, news: includeNews}

	o.mu.Lock()
	defer o.mu.Unlock()
	if reg, ok := o.bindings[key]; ok {
		return reg
	}

	reg := tools.NewRegistry()
	reg.Register(o.riskTool)
	if includeWeather {
		reg.Register(o.weatherTool)
	}
	if includeNews {
		reg.Register(o.newsTool)
	}
	o.bindings[key] = reg
	return reg
}

func invoked(toolsCalled []string, name string) bool {
	for _, t := range toolsCalled {
		if t == name {
			return true
		}
	}
	return false
}

// buildPrompt assembles the augmented user message: the policy block, the
// prior one-turn exchange when present, then the literal question.
func buildPrompt(place string, includeWeather, includeNews bool, lastUser, lastReply, question string) string {
	var b strings.Builder

	b.WriteString("Policy: the selected place is ")
	b.WriteString(place)
	b.WriteString(".\n")
	if !includeWeather {
		b.WriteString("- Weather was already covered recently: do not include weather information in your reply.\n")
	}
	if !includeNews {
		b.WriteString("- News was already covered recently: do not include news headlines in your reply.\n")
	}

	if lastUser != "" || lastReply != "" {
		b.WriteString("\nPrevious exchange:\n")
		if lastUser != "" {
			b.WriteString("User: ")
			b.WriteString(lastUser)
			b.WriteByte('\n')
		}
		if lastReply != "" {
			b.WriteString("Assistant: ")
			b.WriteString(lastReply)
			b.WriteByte('\n')
		}
	}

	b.WriteString("\n")
	b.WriteString(question)
	return b.String()
}
