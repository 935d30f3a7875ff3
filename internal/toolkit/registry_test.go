package toolkit

import (
	"context"
	"testing"

	"github.com/brennhill/editor-bridge/internal/security"
)

type pingParams struct {
	Message string `json:"Message" schema:"type=string;description=message"`
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := New([]Spec{
		{
			Name:        "ping",
			Description: "echoes a message",
			Params:      pingParams{},
			Handler: func(ctx context.Context, params any) (any, error) {
				return params, nil
			},
		},
		{
			Name:                "run-tests",
			Description:         "runs the project's test suite",
			Params:              pingParams{},
			SecurityRequirement: security.CapabilityAllowTestExecution,
			Handler: func(ctx context.Context, params any) (any, error) {
				return nil, nil
			},
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r
}

func TestRegistryLookup(t *testing.T) {
	r := newTestRegistry(t)
	d, ok := r.Lookup("ping")
	if !ok {
		t.Fatal("expected ping to be registered")
	}
	if d.CompiledSchema() == nil {
		t.Error("expected compiled schema")
	}

	if _, ok := r.Lookup("Ping"); ok {
		t.Error("lookup must be case-sensitive")
	}
	if _, ok := r.Lookup("does-not-exist"); ok {
		t.Error("expected unknown tool to miss")
	}
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	_, err := New([]Spec{
		{Name: "ping", Params: pingParams{}},
		{Name: "ping", Params: pingParams{}},
	})
	if err == nil {
		t.Error("expected duplicate name error")
	}
}

func TestRegistryAllIsSortedAndStable(t *testing.T) {
	r := newTestRegistry(t)
	all := r.All()
	if len(all) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(all))
	}
	if all[0].Name != "ping" || all[1].Name != "run-tests" {
		t.Errorf("expected sorted order, got %v, %v", all[0].Name, all[1].Name)
	}
}

func TestUnknownToolLookupIsIdempotent(t *testing.T) {
	r := newTestRegistry(t)
	for i := 0; i < 3; i++ {
		if _, ok := r.Lookup("nope"); ok {
			t.Fatal("expected consistent miss")
		}
	}
	if len(r.All()) != 2 {
		t.Error("lookups on unknown tools must not mutate the registry")
	}
}
