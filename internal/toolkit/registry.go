// registry.go — Tool registry (C5). Discovers tool descriptors at
// construction time and exposes a case-sensitive, kebab-case lookup that
// never mutates after bootstrap (spec §3, §4.5).
package toolkit

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/brennhill/editor-bridge/internal/security"
)

// Handler is a tool's implementation. params is a pointer to a value of
// the tool's ParamsType, already bound and defaulted by the dispatcher.
type Handler func(ctx context.Context, params any) (any, error)

// Descriptor is a tool's full self-description (spec §3's "Tool descriptor").
type Descriptor struct {
	Name                string
	Description         string
	ParamsType          reflect.Type
	Schema              map[string]any
	compiled            *jsonschema.Schema
	SecurityRequirement security.Capability // empty = none
	EditorThreadOnly    bool
	DevelopmentOnly     bool
	Handler             Handler
}

// CompiledSchema returns the jsonschema.Schema compiled from Schema at
// registration time, used by the dispatcher to validate params before
// struct binding.
func (d Descriptor) CompiledSchema() *jsonschema.Schema { return d.compiled }

// Spec is the declaration form a tool package supplies to New;
// Registry fills in the derived Schema and compiled validator.
type Spec struct {
	Name                string
	Description         string
	Params              any // zero value of the params struct, e.g. PingParams{}
	SecurityRequirement security.Capability
	EditorThreadOnly    bool
	DevelopmentOnly     bool
	Handler             Handler
}

// Registry is the immutable, construction-time-only name→descriptor map.
// Re-enumeration after a host reset constructs a fresh Registry rather than
// mutating an existing one, per spec §4.5.
type Registry struct {
	byName map[string]Descriptor
	order  []string
}

// New builds a Registry from a list of tool specs. Returns an error if any
// name collides or any schema fails to compile — both are construction-time
// failures, never dispatch-time ones.
func New(specs []Spec) (*Registry, error) {
	r := &Registry{byName: make(map[string]Descriptor, len(specs))}
	for _, s := range specs {
		if _, exists := r.byName[s.Name]; exists {
			return nil, fmt.Errorf("toolkit: duplicate tool name %q", s.Name)
		}
		t := reflect.TypeOf(s.Params)
		schema, err := GenerateSchema(t)
		if err != nil {
			return nil, fmt.Errorf("toolkit: tool %q: %w", s.Name, err)
		}
		compiled, err := compileSchema(s.Name, schema)
		if err != nil {
			return nil, fmt.Errorf("toolkit: tool %q: %w", s.Name, err)
		}
		r.byName[s.Name] = Descriptor{
			Name:                s.Name,
			Description:         s.Description,
			ParamsType:          t,
			Schema:              schema,
			compiled:            compiled,
			SecurityRequirement: s.SecurityRequirement,
			EditorThreadOnly:    s.EditorThreadOnly,
			DevelopmentOnly:     s.DevelopmentOnly,
			Handler:             s.Handler,
		}
		r.order = append(r.order, s.Name)
	}
	sort.Strings(r.order)
	return r, nil
}

// Lookup returns the descriptor for name, or ok=false if it is not
// registered. Lookup is case-sensitive kebab-case, per spec §4.5.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// All returns every descriptor, sorted by name for deterministic output.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}
