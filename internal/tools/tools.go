// Package tools declares the mandatory client-facing tool table (spec §6):
// each tool's parameter struct, its toolkit.Spec, and a handler that
// delegates to the host editor via hostapi.Host. None of the domain logic
// lives here — this package only wires descriptors to their delegate.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/brennhill/editor-bridge/internal/hostapi"
	"github.com/brennhill/editor-bridge/internal/netsrv"
	"github.com/brennhill/editor-bridge/internal/rpc"
	"github.com/brennhill/editor-bridge/internal/sandbox"
	"github.com/brennhill/editor-bridge/internal/security"
	"github.com/brennhill/editor-bridge/internal/session"
	"github.com/brennhill/editor-bridge/internal/state"
	"github.com/brennhill/editor-bridge/internal/toolkit"
)

// RegistryHolder lets get-tool-details reference the registry that is
// still under construction when its own Spec is declared; BuildSpecs'
// caller assigns Reg once toolkit.New returns.
type RegistryHolder struct {
	Reg *toolkit.Registry
}

// Deps bundles every collaborator the tool handlers delegate to.
type Deps struct {
	Host         hostapi.Host
	Sessions     *session.Manager
	Clients      *session.ClientRegistry
	Paths        state.ProjectPaths
	Registry     *RegistryHolder
	SandboxLevel func() sandbox.Level
}

// BuildSpecs returns the eleven mandatory tool specs, ready to pass to
// toolkit.New.
func BuildSpecs(deps Deps) []toolkit.Spec {
	return []toolkit.Spec{
		pingSpec(),
		getToolDetailsSpec(deps),
		setClientNameSpec(deps),
		compileSpec(deps),
		getLogsSpec(deps),
		clearConsoleSpec(deps),
		findGameObjectsSpec(deps),
		getHierarchySpec(deps),
		runTestsSpec(deps),
		executeMenuItemSpec(deps),
		executeDynamicCodeSpec(deps),
	}
}

// --- ping ---

type PingParams struct {
	Message string `json:"Message" schema:"type=string;description=text to echo back"`
}

type PingResult struct {
	Message         string `json:"message"`
	ExecutionTimeMs int64  `json:"executionTimeMs"`
}

func pingSpec() toolkit.Spec {
	return toolkit.Spec{
		Name:        "ping",
		Description: "Echoes a message back, reporting handler execution time.",
		Params:      PingParams{},
		Handler: func(ctx context.Context, params any) (any, error) {
			start := time.Now()
			p := params.(*PingParams)
			return PingResult{
				Message:         "Unity MCP Bridge received: " + p.Message,
				ExecutionTimeMs: time.Since(start).Milliseconds(),
			}, nil
		},
	}
}

// --- get-tool-details ---

type GetToolDetailsParams struct {
	IncludeDevelopmentOnly bool `json:"IncludeDevelopmentOnly" schema:"type=boolean;description=include development-only tools;default=false"`
}

// ToolDetail is the wire-facing projection of a toolkit.Descriptor; it
// omits the reflect.Type and compiled validator, neither of which is
// meaningful to a client.
type ToolDetail struct {
	Name                string         `json:"name"`
	Description         string         `json:"description"`
	Schema              map[string]any `json:"schema"`
	SecurityRequirement string         `json:"securityRequirement,omitempty"`
	EditorThreadOnly    bool           `json:"editorThreadOnly"`
	DevelopmentOnly     bool           `json:"developmentOnly"`
}

func getToolDetailsSpec(deps Deps) toolkit.Spec {
	return toolkit.Spec{
		Name:        "get-tool-details",
		Description: "Lists every registered tool with its generated parameter schema.",
		Params:      GetToolDetailsParams{},
		Handler: func(ctx context.Context, params any) (any, error) {
			p := params.(*GetToolDetailsParams)
			if deps.Registry == nil || deps.Registry.Reg == nil {
				return nil, rpc.Wrap(fmt.Errorf("registry not yet built"), "get-tool-details")
			}
			var out []ToolDetail
			for _, d := range deps.Registry.Reg.All() {
				if d.DevelopmentOnly && !p.IncludeDevelopmentOnly {
					continue
				}
				out = append(out, ToolDetail{
					Name:                d.Name,
					Description:         d.Description,
					Schema:              d.Schema,
					SecurityRequirement: string(d.SecurityRequirement),
					EditorThreadOnly:    d.EditorThreadOnly,
					DevelopmentOnly:     d.DevelopmentOnly,
				})
			}
			return map[string]any{"tools": out}, nil
		},
	}
}

// --- set-client-name ---

type SetClientNameParams struct {
	Name string `json:"Name" schema:"type=string;description=human-readable client identifier"`
}

func setClientNameSpec(deps Deps) toolkit.Spec {
	return toolkit.Spec{
		Name:        "set-client-name",
		Description: "Records the connecting client's display name in the session record.",
		Params:      SetClientNameParams{},
		Handler: func(ctx context.Context, params any) (any, error) {
			p := params.(*SetClientNameParams)
			if deps.Clients != nil {
				endpoint := ""
				if conn, ok := netsrv.ConnFromContext(ctx); ok {
					endpoint = conn.RemoteAddr().String()
				}
				deps.Clients.Register(p.Name, endpoint)
			}
			if deps.Sessions != nil {
				if err := deps.Sessions.Set(func(r *session.Record) {
					r.ClientName = p.Name
					if deps.Clients != nil {
						r.ClientEndpoints = clientEndpoints(deps.Clients)
					}
				}); err != nil {
					return nil, rpc.Wrap(err, "persist client name")
				}
			}
			return map[string]any{"acknowledged": true}, nil
		},
	}
}

// clientEndpoints projects the live ClientRegistry onto the session
// record's persisted client_endpoints list (spec §3).
func clientEndpoints(reg *session.ClientRegistry) []session.Endpoint {
	states := reg.List()
	out := make([]session.Endpoint, 0, len(states))
	for _, cs := range states {
		out = append(out, session.Endpoint{
			ClientName:     cs.Name,
			ClientEndpoint: cs.Endpoint,
			PushEndpoint:   cs.PushEndpoint,
		})
	}
	return out
}

// --- compile ---

type CompileParams struct {
	ForceRecompile bool   `json:"ForceRecompile" schema:"type=boolean;description=force a full recompile;default=false"`
	WaitForReset   bool   `json:"WaitForReset" schema:"type=boolean;description=poll Temp/compile-result-<id>.json after an environment reset;default=false"`
	RequestId      string `json:"RequestId,omitempty" schema:"type=string;description=correlation id for the compile-result file;default="`
}

func compileSpec(deps Deps) toolkit.Spec {
	return toolkit.Spec{
		Name:        "compile",
		Description: "Triggers a host compilation, optionally correlating the result across an environment reset.",
		Params:      CompileParams{},
		Handler: func(ctx context.Context, params any) (any, error) {
			p := params.(*CompileParams)
			if deps.Host == nil {
				return nil, rpc.Wrap(fmt.Errorf("no host attached"), "compile")
			}
			result, err := deps.Host.Compile(ctx, p.ForceRecompile)
			if err != nil {
				return nil, rpc.Wrap(err, "host compile failed")
			}

			if p.WaitForReset && p.RequestId != "" {
				if err := writeCompileResultOnce(deps.Paths, p.RequestId, result); err != nil {
					return nil, rpc.Wrap(err, "persist compile result")
				}
			}
			return result, nil
		},
	}
}

// writeCompileResultOnce is the at-most-once post-condition spec §4.6
// requires: re-execution with the same request id must not overwrite an
// already-written result.
func writeCompileResultOnce(paths state.ProjectPaths, requestID string, result hostapi.CompileResult) error {
	path := paths.CompileResultFile(requestID)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	if _, err := paths.TempDir(); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// --- get-logs ---

type GetLogsParams struct {
	Types []string `json:"Types,omitempty" schema:"type=array;description=log levels to include;default="`
	Since string   `json:"Since,omitempty" schema:"type=string;description=ISO-8601 lower bound;default="`
	Limit int      `json:"Limit,omitempty" schema:"type=integer;description=maximum records to return;default=0"`
}

func getLogsSpec(deps Deps) toolkit.Spec {
	return toolkit.Spec{
		Name:        "get-logs",
		Description: "Returns console log records matching a filter.",
		Params:      GetLogsParams{},
		Handler: func(ctx context.Context, params any) (any, error) {
			p := params.(*GetLogsParams)
			if deps.Host == nil {
				return nil, rpc.Wrap(fmt.Errorf("no host attached"), "get-logs")
			}
			records, err := deps.Host.Logs(ctx, hostapi.LogFilter{Types: p.Types, Since: p.Since, Limit: p.Limit})
			if err != nil {
				return nil, rpc.Wrap(err, "host get-logs failed")
			}
			return map[string]any{"logs": records}, nil
		},
	}
}

// --- clear-console ---

type ClearConsoleParams struct{}

func clearConsoleSpec(deps Deps) toolkit.Spec {
	return toolkit.Spec{
		Name:        "clear-console",
		Description: "Clears the host editor's console log.",
		Params:      ClearConsoleParams{},
		Handler: func(ctx context.Context, params any) (any, error) {
			if deps.Host == nil {
				return nil, rpc.Wrap(fmt.Errorf("no host attached"), "clear-console")
			}
			if err := deps.Host.ClearConsole(ctx); err != nil {
				return nil, rpc.Wrap(err, "host clear-console failed")
			}
			return map[string]any{"acknowledged": true}, nil
		},
	}
}

// --- find-game-objects ---

type FindGameObjectsParams struct {
	NamePattern string `json:"NamePattern,omitempty" schema:"type=string;description=glob or substring match;default="`
	Tag         string `json:"Tag,omitempty" schema:"type=string;description=exact tag match;default="`
	Layer       string `json:"Layer,omitempty" schema:"type=string;description=exact layer match;default="`
}

func findGameObjectsSpec(deps Deps) toolkit.Spec {
	return toolkit.Spec{
		Name:        "find-game-objects",
		Description: "Searches the open scene for matching entities.",
		Params:      FindGameObjectsParams{},
		Handler: func(ctx context.Context, params any) (any, error) {
			p := params.(*FindGameObjectsParams)
			if deps.Host == nil {
				return nil, rpc.Wrap(fmt.Errorf("no host attached"), "find-game-objects")
			}
			matches, err := deps.Host.FindGameObjects(ctx, hostapi.SearchCriteria{
				NamePattern: p.NamePattern, Tag: p.Tag, Layer: p.Layer,
			})
			if err != nil {
				return nil, rpc.Wrap(err, "host find-game-objects failed")
			}
			return map[string]any{"matches": matches}, nil
		},
	}
}

// --- get-hierarchy ---

type GetHierarchyParams struct {
	RootPath string `json:"RootPath,omitempty" schema:"type=string;description=subtree root, empty for scene root;default="`
	MaxDepth int    `json:"MaxDepth,omitempty" schema:"type=integer;description=0 for unlimited depth;default=0"`
}

func getHierarchySpec(deps Deps) toolkit.Spec {
	return toolkit.Spec{
		Name:        "get-hierarchy",
		Description: "Returns the nested scene tree below a root path.",
		Params:      GetHierarchyParams{},
		Handler: func(ctx context.Context, params any) (any, error) {
			p := params.(*GetHierarchyParams)
			if deps.Host == nil {
				return nil, rpc.Wrap(fmt.Errorf("no host attached"), "get-hierarchy")
			}
			tree, err := deps.Host.Hierarchy(ctx, hostapi.HierarchyOptions{RootPath: p.RootPath, MaxDepth: p.MaxDepth})
			if err != nil {
				return nil, rpc.Wrap(err, "host get-hierarchy failed")
			}
			return tree, nil
		},
	}
}

// --- run-tests ---

type RunTestsParams struct {
	Assembly string `json:"Assembly,omitempty" schema:"type=string;description=restrict to one test assembly;default="`
	TestName string `json:"TestName,omitempty" schema:"type=string;description=restrict to one named test;default="`
}

func runTestsSpec(deps Deps) toolkit.Spec {
	return toolkit.Spec{
		Name:                "run-tests",
		Description:         "Runs host editor tests matching a filter.",
		Params:              RunTestsParams{},
		SecurityRequirement: security.CapabilityAllowTestExecution,
		Handler: func(ctx context.Context, params any) (any, error) {
			p := params.(*RunTestsParams)
			if deps.Host == nil {
				return nil, rpc.Wrap(fmt.Errorf("no host attached"), "run-tests")
			}
			summary, err := deps.Host.RunTests(ctx, hostapi.TestFilter{Assembly: p.Assembly, TestName: p.TestName})
			if err != nil {
				return nil, rpc.Wrap(err, "host run-tests failed")
			}
			return summary, nil
		},
	}
}

// --- execute-menu-item ---

type ExecuteMenuItemParams struct {
	Path string `json:"Path" schema:"type=string;description=menu item path to invoke"`
}

func executeMenuItemSpec(deps Deps) toolkit.Spec {
	return toolkit.Spec{
		Name:                "execute-menu-item",
		Description:         "Invokes a host editor menu item by path.",
		Params:              ExecuteMenuItemParams{},
		SecurityRequirement: security.CapabilityAllowMenuExecution,
		EditorThreadOnly:    true,
		Handler: func(ctx context.Context, params any) (any, error) {
			p := params.(*ExecuteMenuItemParams)
			if deps.Host == nil {
				return nil, rpc.Wrap(fmt.Errorf("no host attached"), "execute-menu-item")
			}
			if err := deps.Host.ExecuteMenuItem(ctx, p.Path); err != nil {
				return nil, rpc.Wrap(err, "host execute-menu-item failed")
			}
			return map[string]any{"acknowledged": true}, nil
		},
	}
}

// --- execute-dynamic-code ---

type ExecuteDynamicCodeParams struct {
	Code string `json:"Code" schema:"type=string;description=Go source submitted for the AST policy check"`
}

func executeDynamicCodeSpec(deps Deps) toolkit.Spec {
	return toolkit.Spec{
		Name:        "execute-dynamic-code",
		Description: "Checks submitted source against the sandbox's current level. It does not compile or run the source.",
		Params:      ExecuteDynamicCodeParams{},
		Handler: func(ctx context.Context, params any) (any, error) {
			p := params.(*ExecuteDynamicCodeParams)
			level := sandbox.Disabled
			if deps.SandboxLevel != nil {
				level = deps.SandboxLevel()
			}

			result, err := sandbox.Check(p.Code, level)
			if err != nil {
				return nil, rpc.New(rpc.KindInvalidParams, "submitted code failed to parse: "+err.Error())
			}
			if !result.Valid() {
				return nil, rpc.SecurityBlocked("execute-dynamic-code", "source violates the Restricted policy").WithData(
					map[string]any{"type": "security_blocked", "violations": result.Violations},
				)
			}
			if level == sandbox.Disabled {
				return nil, rpc.SecurityBlocked("execute-dynamic-code", "dynamic code execution is disabled")
			}

			// Execution itself is delegated to the host editor's scripting
			// runtime, which is out of this module's scope (hostapi.Host).
			return map[string]any{"compiled": true, "level": level.String()}, nil
		},
	}
}
