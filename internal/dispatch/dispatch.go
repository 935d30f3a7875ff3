// Package dispatch implements the dispatcher and security gate (C6): tool
// lookup, capability check, schema validation, parameter binding, and
// optional marshalling onto the host's main thread, producing either a
// result or a closed-taxonomy rpc.DispatchError (spec §4.6).
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/brennhill/editor-bridge/internal/rpc"
	"github.com/brennhill/editor-bridge/internal/security"
	"github.com/brennhill/editor-bridge/internal/toolkit"
)

// BusyChecker reports whether the host environment is mid-compile,
// mid-domain-reload, or mid-server-startup (the three Temp/*.lock presence
// flags, spec §6). A nil BusyChecker is treated as never busy.
type BusyChecker func() bool

// Dispatcher routes an incoming method name to its registered tool. The
// registry pointer is swappable via Reload so a post-reset restore can hand
// the dispatcher a freshly built Registry value without reconstructing the
// dispatcher or its wired processor (spec §4.5: a fresh Registry, not a
// mutated one, on every re-enumeration).
type Dispatcher struct {
	registry  atomic.Pointer[toolkit.Registry]
	gate      *security.Gate
	mainQueue *MainQueue
	busy      BusyChecker
}

// New builds a Dispatcher. mainQueue may be nil if no registered tool is
// EditorThreadOnly (tests commonly omit it).
func New(registry *toolkit.Registry, gate *security.Gate, mainQueue *MainQueue) *Dispatcher {
	d := &Dispatcher{gate: gate, mainQueue: mainQueue}
	d.registry.Store(registry)
	return d
}

// Reload atomically replaces the dispatcher's registry.
func (d *Dispatcher) Reload(registry *toolkit.Registry) {
	d.registry.Store(registry)
}

// WithBusyChecker attaches the environment-busy signal; dispatch rejects
// every tool call with EnvironmentBusy while it reports true.
func (d *Dispatcher) WithBusyChecker(busy BusyChecker) *Dispatcher {
	d.busy = busy
	return d
}

// Dispatch runs the full pipeline spec §4.6 describes for one request:
// lookup, capability gate, schema validation, binding, and invocation.
func (d *Dispatcher) Dispatch(ctx context.Context, method string, params json.RawMessage) (any, *rpc.DispatchError) {
	desc, ok := d.registry.Load().Lookup(method)
	if !ok {
		return nil, rpc.New(rpc.KindUnknownTool, fmt.Sprintf("unknown tool %q", method))
	}

	if d.busy != nil && d.busy() {
		return nil, rpc.New(rpc.KindEnvironmentBusy, "host environment is busy with compile, domain reload, or server startup")
	}

	if desc.SecurityRequirement != "" {
		allowed := d.gate.Allowed(desc.SecurityRequirement)
		security.LogAuditEvent(security.AuditEvent{
			Command: method,
			Allowed: allowed,
			Reason:  string(desc.SecurityRequirement),
		})
		if !allowed {
			return nil, rpc.SecurityBlocked(method, "capability "+string(desc.SecurityRequirement)+" is not enabled")
		}
	}

	if err := validateParams(desc, params); err != nil {
		return nil, rpc.New(rpc.KindInvalidParams, err.Error())
	}

	bound, err := bindParams(desc.ParamsType, params, desc.Schema)
	if err != nil {
		return nil, rpc.New(rpc.KindInvalidParams, err.Error())
	}

	invoke := func() (res any, err error) {
		defer func() {
			if r := recover(); r != nil {
				res, err = nil, fmt.Errorf("handler panic: %v", r)
			}
		}()
		return desc.Handler(ctx, bound.Interface())
	}

	var result any
	var callErr error
	if desc.EditorThreadOnly && d.mainQueue != nil {
		result, callErr = d.mainQueue.Submit(ctx, invoke)
	} else {
		result, callErr = invoke()
	}

	if callErr != nil {
		if de, ok := callErr.(*rpc.DispatchError); ok {
			return nil, de
		}
		return nil, rpc.Wrap(callErr, "tool handler failed")
	}
	return result, nil
}

func validateParams(desc toolkit.Descriptor, params json.RawMessage) error {
	schema := desc.CompiledSchema()
	if schema == nil {
		return nil
	}
	var instance any = map[string]any{}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &instance); err != nil {
			return fmt.Errorf("invalid params encoding: %w", err)
		}
	}
	return schema.Validate(instance)
}
