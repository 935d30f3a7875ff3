package lifecycle

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"testing"

	"github.com/brennhill/editor-bridge/internal/netsrv"
	"github.com/brennhill/editor-bridge/internal/session"
)

func noopHandler(ctx context.Context, conn *netsrv.Conn, payload []byte) {}

func newSessionManager(t *testing.T) *session.Manager {
	t.Helper()
	return session.NewManager(filepath.Join(t.TempDir(), "UnityMcpSettings.json"))
}

func TestStartBindsRequestedPortWhenFree(t *testing.T) {
	c := New(Config{Listen: net.Listen, Sessions: newSessionManager(t), Handler: noopHandler})
	port, err := c.Start(context.Background(), MinPort)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if port != MinPort {
		t.Errorf("port = %d, want %d", port, MinPort)
	}
	if c.Current() != StateRunning {
		t.Errorf("Current() = %q, want %q", c.Current(), StateRunning)
	}
}

func TestStartSearchesForwardOnConflict(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	defer occupied.Close()
	occupiedPort := occupied.Addr().(*net.TCPAddr).Port

	fakeListen := func(network, address string) (net.Listener, error) {
		if address == fakeAddr(occupiedPort) {
			return nil, errors.New("address already in use")
		}
		return net.Listen(network, address)
	}

	confirmed := false
	c := New(Config{
		Listen: fakeListen,
		ConfirmPort: func(requested, actual int) bool {
			confirmed = true
			return true
		},
		Sessions: newSessionManager(t),
		Handler:  noopHandler,
	})

	port, err := c.Start(context.Background(), occupiedPort)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if port == occupiedPort {
		t.Error("expected controller to skip the occupied port")
	}
	if !confirmed {
		t.Error("expected ConfirmPort to be called for the alternate port")
	}
}

func fakeAddr(port int) string {
	return (&net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: port}).String()
}

func TestStartRejectsOutOfRangePort(t *testing.T) {
	c := New(Config{Listen: net.Listen, Handler: noopHandler})
	if _, err := c.Start(context.Background(), 80); !errors.Is(err, ErrPortOutOfRange) {
		t.Fatalf("Start() error = %v, want ErrPortOutOfRange", err)
	}
	if c.Current() != StateStopped {
		t.Errorf("Current() = %q, want %q after rejected start", c.Current(), StateStopped)
	}
}

func TestStopClearsSessionAndReturnsStopped(t *testing.T) {
	mgr := newSessionManager(t)
	c := New(Config{Listen: net.Listen, Sessions: mgr, Handler: noopHandler})
	if _, err := c.Start(context.Background(), MinPort+1); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if c.Current() != StateStopped {
		t.Errorf("Current() = %q, want %q", c.Current(), StateStopped)
	}
	if got := mgr.Get(); got.ServerRunning {
		t.Errorf("expected cleared session record, got %+v", got)
	}
}

func TestPreResetPersistsRecordAndReachesAwaitingRestore(t *testing.T) {
	mgr := newSessionManager(t)
	c := New(Config{Listen: net.Listen, Sessions: mgr, Handler: noopHandler})
	port, err := c.Start(context.Background(), MinPort+2)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := c.PreReset(context.Background()); err != nil {
		t.Fatalf("PreReset() error = %v", err)
	}
	if c.Current() != StateAwaitingRestore {
		t.Errorf("Current() = %q, want %q", c.Current(), StateAwaitingRestore)
	}
	got := mgr.Get()
	if !got.IsAfterReset || !got.IsReconnecting || got.ServerPort != port {
		t.Errorf("unexpected record after pre-reset: %+v", got)
	}
}

func TestRestoreRebindsAndBroadcasts(t *testing.T) {
	mgr := newSessionManager(t)
	c := New(Config{Listen: net.Listen, Sessions: mgr, Handler: noopHandler})
	port, err := c.Start(context.Background(), MinPort+3)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := c.PreReset(context.Background()); err != nil {
		t.Fatalf("PreReset() error = %v", err)
	}

	if err := c.Restore(context.Background(), port); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if c.Current() != StateRunning {
		t.Errorf("Current() = %q, want %q", c.Current(), StateRunning)
	}
	got := mgr.Get()
	if got.IsAfterReset || got.IsReconnecting {
		t.Errorf("expected reset flags cleared after restore, got %+v", got)
	}
}
