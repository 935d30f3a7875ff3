// Package lifecycle implements the server lifecycle controller (C8): the
// state machine governing startup port search, graceful pre-reset
// shutdown, and post-reset restore (spec §4.8).
package lifecycle

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/looplab/fsm"

	"github.com/brennhill/editor-bridge/internal/netsrv"
	"github.com/brennhill/editor-bridge/internal/session"
)

const (
	StateStopped         = "stopped"
	StateStarting        = "starting"
	StateRunning         = "running"
	StateShuttingDown    = "shutting_down"
	StateAwaitingRestore = "awaiting_restore"
)

const (
	evStart     = "start"
	evBound     = "bound"
	evConflict  = "conflict"
	evStop      = "stop"
	evPreReset  = "pre_reset"
	evClosed    = "closed"
	evPostReset = "post_reset"
)

// MinPort and MaxPort bound the default search window spec §6 fixes.
const (
	MinPort = 8700
	MaxPort = 9100
)

var (
	// ErrNoPortAvailable is returned when every port in the search window
	// is already bound.
	ErrNoPortAvailable = errors.New("lifecycle: no available port in range")
	// ErrPortOutOfRange reports a requested port outside the permitted
	// user-port range.
	ErrPortOutOfRange = errors.New("lifecycle: requested port out of range")
)

// ConfirmPort is the external UI collaborator callback invoked when the
// bound port differs from the one requested (spec §4.8 step 3). It returns
// whether the operator accepted the alternate port.
type ConfirmPort func(requested, actual int) bool

// RegistryBuilder re-enumerates the tool registry and is invoked fresh on
// every startup (including post-reset restore), since spec §4.5 requires a
// new Registry value rather than a mutated one.
type RegistryBuilder func() error

// Listen is swappable for tests; production code passes net.Listen.
type Listen func(network, address string) (net.Listener, error)

// Controller owns the single live Server instance and the state machine
// guarding its transitions. All transitions are serialized on fsm's
// internal mutex, matching spec's "single controller thread" invariant.
type Controller struct {
	mu sync.Mutex

	machine  *fsm.FSM
	listen   Listen
	confirm  ConfirmPort
	rebuild  RegistryBuilder
	sessions *session.Manager

	handler  netsrv.Handler
	server   *netsrv.Server
	listener net.Listener
	cancel   context.CancelFunc

	port int
}

// Config bundles a Controller's external collaborators.
type Config struct {
	Listen          Listen
	ConfirmPort     ConfirmPort
	RebuildRegistry RegistryBuilder
	Sessions        *session.Manager
	Handler         netsrv.Handler
}

// New builds a Controller in the Stopped state.
func New(cfg Config) *Controller {
	listen := cfg.Listen
	if listen == nil {
		listen = net.Listen
	}
	c := &Controller{
		listen:   listen,
		confirm:  cfg.ConfirmPort,
		rebuild:  cfg.RebuildRegistry,
		sessions: cfg.Sessions,
		handler:  cfg.Handler,
	}
	c.machine = fsm.NewFSM(
		StateStopped,
		fsm.Events{
			{Name: evStart, Src: []string{StateStopped}, Dst: StateStarting},
			{Name: evBound, Src: []string{StateStarting}, Dst: StateRunning},
			{Name: evConflict, Src: []string{StateStarting}, Dst: StateStopped},
			{Name: evStop, Src: []string{StateRunning}, Dst: StateStopped},
			{Name: evPreReset, Src: []string{StateRunning}, Dst: StateShuttingDown},
			{Name: evClosed, Src: []string{StateShuttingDown}, Dst: StateAwaitingRestore},
			{Name: evPostReset, Src: []string{StateAwaitingRestore}, Dst: StateStarting},
		},
		fsm.Callbacks{},
	)
	return c
}

// Current returns the controller's current state name.
func (c *Controller) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.Current()
}

// Port returns the currently bound port, or 0 if not running.
func (c *Controller) Port() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.port
}

func validatePort(port int) error {
	if port < 1024 || port > 65535 {
		return ErrPortOutOfRange
	}
	return nil
}

// Start runs the startup sequence of spec §4.8: validate, search for an
// available port from requestedPort upward to MaxPort (or to 65535 when
// requestedPort lies above MaxPort), confirm with the operator on
// mismatch, bind, and persist session state.
// On any failure the state machine returns to Stopped, never left
// observable in Starting (spec §8 property 8).
func (c *Controller) Start(ctx context.Context, requestedPort int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := validatePort(requestedPort); err != nil {
		return 0, err
	}
	if err := c.machine.Event(ctx, evStart); err != nil {
		return 0, errors.Wrap(err, "start transition")
	}

	return c.bindAndRun(ctx, requestedPort)
}

// bindAndRun performs steps 2-7 of the startup sequence (port search
// through session persistence) and fires the bound/conflict transition.
// The caller is responsible for the preceding transition into Starting
// (evStart for a fresh start, evPostReset for a post-reset restore) and
// must hold c.mu.
func (c *Controller) bindAndRun(ctx context.Context, requestedPort int) (int, error) {
	port, ln, err := c.findAndBind(requestedPort)
	if err != nil {
		_ = c.machine.Event(ctx, evConflict)
		return 0, err
	}

	if port != requestedPort && c.confirm != nil {
		if !c.confirm(requestedPort, port) {
			_ = ln.Close()
			_ = c.machine.Event(ctx, evConflict)
			return 0, fmt.Errorf("lifecycle: operator declined alternate port %d", port)
		}
	}

	if c.rebuild != nil {
		if err := c.rebuild(); err != nil {
			_ = ln.Close()
			_ = c.machine.Event(ctx, evConflict)
			return 0, errors.Wrap(err, "rebuild registry")
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.listener = ln
	c.cancel = cancel
	c.port = port
	c.server = netsrv.New(c.handler, nil)

	go func() { _ = c.server.Serve(runCtx, ln) }()

	if c.sessions != nil {
		if err := c.sessions.Set(func(r *session.Record) {
			r.ServerRunning = true
			r.ServerPort = port
		}); err != nil {
			cancel()
			_ = ln.Close()
			_ = c.machine.Event(ctx, evConflict)
			return 0, errors.Wrap(err, "persist session state")
		}
	}

	if err := c.machine.Event(ctx, evBound); err != nil {
		cancel()
		_ = ln.Close()
		return 0, errors.Wrap(err, "bound transition")
	}
	return port, nil
}

func (c *Controller) findAndBind(requestedPort int) (int, net.Listener, error) {
	limit := MaxPort
	if requestedPort > limit {
		limit = 65535
	}
	for port := requestedPort; port <= limit; port++ {
		ln, err := c.listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err == nil {
			return port, ln, nil
		}
	}
	return 0, nil, ErrNoPortAvailable
}

// Stop tears down a Running server via an explicit stop request, clearing
// persisted session state (spec §4.7's "clear() on explicit server stop").
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.machine.Event(ctx, evStop); err != nil {
		return errors.Wrap(err, "stop transition")
	}
	c.teardown()
	if c.sessions != nil {
		return c.sessions.Clear()
	}
	return nil
}

// PreReset runs the five-step graceful shutdown sequence spec §4.8
// requires, in order, completing before the host's reset proceeds.
func (c *Controller) PreReset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.machine.Event(ctx, evPreReset); err != nil {
		return errors.Wrap(err, "pre_reset transition")
	}

	port := c.port
	if c.sessions != nil {
		if err := c.sessions.Set(func(r *session.Record) {
			r.IsResetInProgress = true
		}); err != nil {
			return shutdownErrorf(err, "step 1: mark reset in progress")
		}
		if err := c.sessions.Set(func(r *session.Record) {
			r.ServerPort = port
		}); err != nil {
			return shutdownErrorf(err, "step 2: record current port")
		}
		if err := c.sessions.Set(func(r *session.Record) {
			r.IsAfterReset = true
			r.IsReconnecting = true
		}); err != nil {
			return shutdownErrorf(err, "step 3: persist post-reset intent")
		}
	}

	c.teardown()

	if err := c.machine.Event(ctx, evClosed); err != nil {
		return shutdownErrorf(err, "step 5: closed transition")
	}
	return nil
}

func shutdownErrorf(cause error, step string) error {
	return errors.Wrap(cause, "shutdown_error: "+step)
}

// teardown disposes the listener and server; must be called with c.mu held.
func (c *Controller) teardown() {
	if c.cancel != nil {
		c.cancel()
	}
	if c.listener != nil {
		_ = c.listener.Close()
	}
	c.server = nil
	c.listener = nil
	c.cancel = nil
	c.port = 0
}

// Restore runs the post-reset sequence: rebind on the saved port, then
// broadcast tools/list_changed followed by environment_reload_recovered
// (spec §4.8, scenario S6).
func (c *Controller) Restore(ctx context.Context, savedPort int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.machine.Event(ctx, evPostReset); err != nil {
		return errors.Wrap(err, "post_reset transition")
	}

	port, err := c.bindAndRun(ctx, savedPort)
	if err != nil {
		return err
	}

	if c.server != nil {
		c.server.BroadcastNotification("tools/list_changed", []byte(`{"jsonrpc":"2.0","method":"notifications/tools/list_changed"}`))
		c.server.BroadcastNotification("environment_reload_recovered", []byte(`{"jsonrpc":"2.0","method":"notifications/environment_reload_recovered"}`))
	}
	if c.sessions != nil {
		return c.sessions.Set(func(r *session.Record) {
			r.ServerPort = port
			r.IsAfterReset = false
			r.IsReconnecting = false
		})
	}
	return nil
}
