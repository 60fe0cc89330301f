// Package tools holds the capability registry: the lookup table mapping
// tool names requested by the model to executable external capabilities.
// Each capability is responsible for its own network calls and formats its
// own failures as readable reply text.
package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"asha-agent/internal/domain"
)

var (
	// ErrToolNotFound is returned when the model requests a tool that is
	// not registered.
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolAlreadyRegistered is returned when registering a duplicate name.
	ErrToolAlreadyRegistered = errors.New("tool already registered")
)

// RunFunc executes a capability with the model-supplied arguments and
// returns the reply text.
type RunFunc func(ctx context.Context, args map[string]any) (string, error)

// Tool pairs a capability's model-facing declaration with its executor.
type Tool struct {
	Spec domain.ToolSpec
	Run  RunFunc
}

// Registry is a thread-safe name-to-capability lookup table.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds a tool. Registering a nil tool, an unnamed tool, a tool
// without an executor, or a duplicate name is an error.
func (r *Registry) Register(t *Tool) error {
	if t == nil {
		return errors.New("tools: tool must not be nil")
	}
	if strings.TrimSpace(t.Spec.Name) == "" {
		return errors.New("tools: tool name must not be empty")
	}
	if t.Run == nil {
		return fmt.Errorf("tools: tool %q has no run function", t.Spec.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Spec.Name]; exists {
		return fmt.Errorf("%w: %s", ErrToolAlreadyRegistered, t.Spec.Name)
	}
	r.tools[t.Spec.Name] = t
	return nil
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Specs returns the declarations of every registered tool, sorted by name
// for a deterministic model-facing order.
func (r *Registry) Specs() []domain.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]domain.ToolSpec, 0, len(r.tools))
	for _, t := range r.tools {
		specs = append(specs, t.Spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// Invoke looks up name and runs the capability with args. An unregistered
// name yields ErrToolNotFound.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	t, ok := r.Get(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return t.Run(ctx, args)
}

// stringArg reads a string argument, falling back to def when absent or of
// the wrong type. Model-supplied args arrive as decoded JSON.
func stringArg(args map[string]any, key, def string) string {
	if v, ok := args[key].(string); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

// intArg reads a numeric argument; JSON numbers decode as float64.
func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

func boolArg(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}
