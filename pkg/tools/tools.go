// Package tools implements the tool registry and execution contract
// (spec.md §4.5, §6.5).
//
// Grounded on original_source/.../tools/base.py (BaseTool: get_info,
// execute) rewritten as a Go interface rather than an ABC.
package tools

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Parameter describes one tool argument.
type Parameter struct {
	Name        string
	Type        string // semantic type tag: "string", "number", "boolean"
	Description string
	Required    bool
	Default     interface{}
}

// Info is the human/LLM-facing description of a tool.
type Info struct {
	Name        string
	Description string
	Parameters  []Parameter
}

// Tool is the capability every registered tool implements: describe +
// execute. Execute receives the raw JSON-encoded argument object and
// returns a structured result (stringified for the LLM by the caller).
type Tool interface {
	Describe() Info
	Execute(ctx context.Context, argsJSON string) (interface{}, error)
}

// ErrUnknownTool describes an unregistered tool name together with the
// available tool names; Execute puts its text in ExecutionResult.Error.
type ErrUnknownTool struct {
	Name      string
	Available []string
}

func (e *ErrUnknownTool) Error() string {
	return fmt.Sprintf("unknown tool %q; available: %v", e.Name, e.Available)
}

// Registry dispatches tool invocations by name and produces the manifest
// consumed by the LLM provider.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Describe().Name] = t
}

func (r *Registry) names() []string {
	out := make([]string, 0, len(r.tools))
	for n := range r.tools {
		out = append(out, n)
	}
	return out
}

// ExecutionResult is the structured value returned for every tool
// invocation, whether it succeeded or failed (spec.md §4.5: "On unknown
// name, return a structured error with the list of available names. ...
// On tool exception, return {error, tool_name, parameters}.").
type ExecutionResult struct {
	ToolName   string      `json:"tool_name"`
	Parameters string      `json:"parameters,omitempty"`
	Result     interface{} `json:"result,omitempty"`
	Error      string      `json:"error,omitempty"`
	Available  []string    `json:"available,omitempty"`
}

// Execute dispatches a named tool invocation against the registry. Never
// returns a Go error for a tool-level failure — failures come back as
// ExecutionResult.Error so the brain can always stringify a tool-role
// message (spec.md §4.5, §7 "Tool failure").
func (r *Registry) Execute(ctx context.Context, name string, argsJSON string) ExecutionResult {
	r.mu.RLock()
	t, ok := r.tools[name]
	available := r.names()
	r.mu.RUnlock()

	if !ok {
		return ExecutionResult{ToolName: name, Parameters: argsJSON, Error: (&ErrUnknownTool{Name: name, Available: available}).Error(), Available: available}
	}

	// The LLM streams tool-call arguments as an accumulating JSON fragment
	// (spec.md §4.4); gjson.Valid lets us reject a still-truncated or
	// malformed payload cheaply, without paying for a full unmarshal into
	// an intermediate map the way a plain encoding/json probe would.
	if argsJSON != "" && !gjson.Valid(argsJSON) {
		return ExecutionResult{ToolName: name, Parameters: argsJSON, Error: "argument parse failure: invalid JSON"}
	}

	// Stamp a receipt time onto a copy of the argument object, returned in
	// ExecutionResult.Parameters; the tool itself receives the unstamped
	// arguments.
	stamped := argsJSON
	if argsJSON != "" {
		if withStamp, err := sjson.Set(argsJSON, "_received_at", time.Now().UTC().Format(time.RFC3339)); err == nil {
			stamped = withStamp
		}
	}

	result, err := t.Execute(ctx, argsJSON)
	if err != nil {
		return ExecutionResult{ToolName: name, Parameters: stamped, Error: err.Error()}
	}
	return ExecutionResult{ToolName: name, Parameters: stamped, Result: result}
}

// Manifest is the wire-level tool descriptor (spec.md §6.5): JSON-schema-
// like function descriptors consumed by the LLM provider.
type Manifest struct {
	Type     string       `json:"type"`
	Function ManifestFunc `json:"function"`
}

type ManifestFunc struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  ManifestParamSchema `json:"parameters"`
}

type ManifestParamSchema struct {
	Type       string                        `json:"type"`
	Properties map[string]ManifestPropSchema `json:"properties"`
	Required   []string                      `json:"required"`
}

type ManifestPropSchema struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Manifests produces the full tool manifest for every registered tool, in
// the shape §6.5 specifies.
func (r *Registry) Manifests() []Manifest {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Manifest, 0, len(r.tools))
	for _, t := range r.tools {
		info := t.Describe()
		props := make(map[string]ManifestPropSchema, len(info.Parameters))
		var required []string
		for _, p := range info.Parameters {
			props[p.Name] = ManifestPropSchema{Type: p.Type, Description: p.Description}
			if p.Required {
				required = append(required, p.Name)
			}
		}
		out = append(out, Manifest{
			Type: "function",
			Function: ManifestFunc{
				Name:        info.Name,
				Description: info.Description,
				Parameters: ManifestParamSchema{
					Type:       "object",
					Properties: props,
					Required:   required,
				},
			},
		})
	}
	return out
}
