// Package tools provides the capability framework and built-in capabilities.
package tools

import (
	"context"
	"fmt"
	"sort"
)

// Tool is the interface all capabilities implement.
type Tool interface {
	// Name returns the capability identifier used in function calls.
	Name() string
	// Description returns a human-readable description for the LLM.
	Description() string
	// Parameters returns the JSON Schema for the capability's parameters.
	Parameters() map[string]any
	// Execute runs the capability. Operational failures are returned as
	// user-friendly result strings with a nil error; a non-nil error means
	// the capability itself is broken.
	Execute(ctx context.Context, params map[string]any) (string, error)
}

// PathDeclarer is an optional interface for capabilities whose arguments
// include filesystem paths. The declared keys are checked against the
// workspace boundary before execution.
type PathDeclarer interface {
	Tool
	PathParams() []string
}

// PathParamsOf returns the declared path argument keys for a tool, or nil.
func PathParamsOf(t Tool) []string {
	if pd, ok := t.(PathDeclarer); ok {
		return pd.PathParams()
	}
	return nil
}

// Invocation carries per-call routing and scoping information. The agent
// loop attaches it to the context before executing a capability.
type Invocation struct {
	SessionKey string
	Namespace  string // memory namespace, e.g. user:<chat-id> or job:<job-id>
	Channel    string
	ChatID     string
}

type invocationKey struct{}

// WithInvocation returns a context carrying inv.
func WithInvocation(ctx context.Context, inv Invocation) context.Context {
	return context.WithValue(ctx, invocationKey{}, inv)
}

// InvocationFrom extracts the invocation from ctx. The zero value is
// returned when none is attached; capabilities fall back to the global
// namespace in that case.
func InvocationFrom(ctx context.Context) Invocation {
	if inv, ok := ctx.Value(invocationKey{}).(Invocation); ok {
		return inv
	}
	return Invocation{}
}

// Registry manages capability registration and execution.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a capability to the registry.
func (r *Registry) Register(tool Tool) {
	r.tools[tool.Name()] = tool
}

// Get returns a capability by name.
func (r *Registry) Get(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns all registered capabilities.
func (r *Registry) List() []Tool {
	result := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		result = append(result, tool)
	}
	return result
}

// Names returns all capability names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Subset returns a new registry sharing the same tools minus the excluded
// names. Delegated workers get a subset without spawn_subagent so delegation
// cannot recurse.
func (r *Registry) Subset(exclude ...string) *Registry {
	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		skip[name] = true
	}
	sub := NewRegistry()
	for name, tool := range r.tools {
		if !skip[name] {
			sub.tools[name] = tool
		}
	}
	return sub
}

// Definitions returns capability definitions in OpenAI function format.
func (r *Registry) Definitions() []map[string]any {
	result := make([]map[string]any, 0, len(r.tools))
	for _, name := range r.Names() {
		tool := r.tools[name]
		result = append(result, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        tool.Name(),
				"description": tool.Description(),
				"parameters":  tool.Parameters(),
			},
		})
	}
	return result
}

// Execute runs a capability by name with the given parameters.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any) (string, error) {
	tool, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("tools: unknown capability: %s", name)
	}
	return tool.Execute(ctx, params)
}

// GetString extracts a string parameter with a default value.
func GetString(params map[string]any, key string, defaultVal string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return defaultVal
}

// GetInt extracts an int parameter with a default value.
func GetInt(params map[string]any, key string, defaultVal int) int {
	if v, ok := params[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		}
	}
	return defaultVal
}

// GetBool extracts a bool parameter with a default value.
func GetBool(params map[string]any, key string, defaultVal bool) bool {
	if v, ok := params[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}
