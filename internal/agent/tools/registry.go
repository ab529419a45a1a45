// Package tools provides the capability registry exposed to the agent
// executor. Tools are named, schema-described, synchronous callables that
// return plain text; failures are embedded in the text as "ERROR: ..." so
// the model can react to them mid-reasoning instead of aborting the run.
package tools

import (
	"context"
	"strings"
	"sync"

	"github.com/citybrief/citybrief/internal/llm"
)

// Tool is the interface all agent capabilities implement. Execute never
// returns a Go error: upstream failures exhaust their retries inside the
// tool and surface as an "ERROR: ..." observation string.
type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) string
}

// Registry manages the tool set for one agent binding.
// Thread-safe for concurrent access.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name()]; !exists {
		r.order = append(r.order, tool.Name())
	}
	r.tools[tool.Name()] = tool
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, exists := r.tools[name]
	return tool, exists
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Descriptors returns the tool set in the shape advertised to the model.
func (r *Registry) Descriptors() []llm.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]llm.Tool, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		out = append(out, llm.Tool{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.InputSchema(),
		})
	}
	return out
}

// stringArg extracts a string argument, trimmed; ok is false when absent or
// not a string.
func stringArg(args map[string]interface{}, key string) (string, bool) {
	v, present := args[key]
	if !present {
		return "", false
	}
	s, isString := v.(string)
	if !isString {
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	return s, true
}
