package session

import (
	"path/filepath"
	"testing"
)

func TestManagerJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "UnityMcpSettings.json")
	m := NewManager(path)

	if err := m.Set(func(r *Record) {
		r.ServerRunning = true
		r.ServerPort = 8700
		r.IsAfterReset = true
		r.IsReconnecting = true
	}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	m2 := NewManager(path)
	if err := m2.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	got := m2.Get()
	if !got.ServerRunning || got.ServerPort != 8700 || !got.IsAfterReset || !got.IsReconnecting {
		t.Errorf("unexpected record after reload: %+v", got)
	}
}

func TestManagerYAMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "UnityMcpSettings.yaml")
	m := NewManager(path)
	if err := m.Set(func(r *Record) { r.ServerPort = 9000 }); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	m2 := NewManager(path)
	if err := m2.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := m2.Get().ServerPort; got != 9000 {
		t.Errorf("ServerPort = %d, want 9000", got)
	}
}

func TestManagerLoadMissingFileYieldsZeroRecord(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "missing.json"))
	if err := m.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := m.Get(); got.ServerRunning {
		t.Errorf("expected zero record, got %+v", got)
	}
}

func TestManagerClearResetsRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "UnityMcpSettings.json")
	m := NewManager(path)
	_ = m.Set(func(r *Record) { r.ServerRunning = true; r.ServerPort = 8700 })
	if err := m.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if got := m.Get(); got.ServerRunning || got.ServerPort != 0 {
		t.Errorf("expected cleared record, got %+v", got)
	}
}

func TestPushEndpointsFiltersEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "UnityMcpSettings.json")
	m := NewManager(path)
	_ = m.Set(func(r *Record) {
		r.ClientEndpoints = []Endpoint{
			{ClientName: "a", PushEndpoint: "http://127.0.0.1:9001"},
			{ClientName: "b"},
		}
	})
	got := m.PushEndpoints()
	if len(got) != 1 || got[0] != "http://127.0.0.1:9001" {
		t.Errorf("PushEndpoints() = %v", got)
	}
}
