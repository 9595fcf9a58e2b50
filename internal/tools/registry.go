// Package tools provides the registry of callable tools available to todo
// agent workers.
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"aiassist/internal/llm"
)

// DefaultToolTimeout bounds a single tool invocation
const DefaultToolTimeout = 30 * time.Second

// ExecuteFunc is the function signature for tool execution
type ExecuteFunc func(ctx context.Context, args map[string]any) (string, error)

// Tool represents a callable tool with its metadata and execution function
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	Execute     ExecuteFunc
	Category    string // computation, time, network
}

// Registry manages all available tools
type Registry struct {
	tools   map[string]*Tool
	timeout time.Duration
	mutex   sync.RWMutex
}

// NewRegistry creates a registry with the built-in tools registered
func NewRegistry() *Registry {
	r := &Registry{
		tools:   make(map[string]*Tool),
		timeout: DefaultToolTimeout,
	}
	for _, tool := range []*Tool{NewTimeTool(), NewCalculatorTool(), NewHTTPRequestTool()} {
		if err := r.Register(tool); err != nil {
			panic(fmt.Sprintf("built-in tool registration failed: %v", err))
		}
	}
	return r
}

// Register adds a new tool to the registry
func (r *Registry) Register(tool *Tool) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if tool.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if tool.Execute == nil {
		return fmt.Errorf("tool %s must have an Execute function", tool.Name)
	}
	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("tool %s is already registered", tool.Name)
	}

	r.tools[tool.Name] = tool
	return nil
}

// Get retrieves a tool by name
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	tool, exists := r.tools[name]
	return tool, exists
}

// Definitions returns all tools in provider format, sorted by name so the
// model sees a stable ordering across calls.
func (r *Registry) Definitions() []llm.ToolDefinition {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	defs := make([]llm.ToolDefinition, 0, len(r.tools))
	for _, tool := range r.tools {
		defs = append(defs, llm.ToolDefinition{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  tool.Parameters,
		})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Execute runs a tool by name with the given arguments under the per-call
// timeout.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	tool, exists := r.Get(name)
	if !exists {
		return "", fmt.Errorf("tool %s not found", name)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return tool.Execute(ctx, args)
}

// Count returns the number of registered tools
func (r *Registry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.tools)
}
