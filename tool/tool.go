package tool

import (
	"context"
	"fmt"
	"sync"
)

const (
	SCRIPT_TOOL  = "script"
	WEBHOOK_TOOL = "webhook"
)

type Tool interface {
	Call(ctx context.Context, args map[string]any) (map[string]any, error)
}

// ToolFunc adapts a function to the Tool interface.
type ToolFunc func(ctx context.Context, args map[string]any) (map[string]any, error)

func (f ToolFunc) Call(ctx context.Context, args map[string]any) (map[string]any, error) {
	return f(ctx, args)
}

type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// NewDefaultRegistry registers the script and webhook tools.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(SCRIPT_TOOL, NewScriptTool())
	r.Register(WEBHOOK_TOOL, NewWebhookTool(nil))
	return r
}

func (r *Registry) Register(id string, tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[id] = tool
}

func (r *Registry) Get(id string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[id]
	if !ok {
		return nil, fmt.Errorf("tool %s not registered", id)
	}
	return tool, nil
}
