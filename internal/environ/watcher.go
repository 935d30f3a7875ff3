// Package environ watches the three Temp/*.lock presence flags (spec §6)
// signaling that the host environment is mid-compile, mid-domain-reload,
// or mid-server-startup. Dispatch consults it to surface EnvironmentBusy
// instead of letting a tool call race a reset.
package environ

import (
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/brennhill/editor-bridge/internal/state"
)

// Watcher tracks whether any of the three lock files currently exist.
// Contents are never read — only presence is meaningful.
type Watcher struct {
	w  *fsnotify.Watcher
	mu sync.RWMutex

	paths map[string]bool
	done  chan struct{}
}

// New builds a Watcher over paths.CompilingLock, DomainReloadLock, and
// ServerStartingLock, seeding its initial state from the filesystem before
// watching for subsequent create/remove events.
func New(paths state.ProjectPaths) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir, err := paths.TempDir()
	if err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, err
	}

	locks := []string{paths.CompilingLock(), paths.DomainReloadLock(), paths.ServerStartingLock()}
	v := &Watcher{
		w:     w,
		paths: make(map[string]bool, len(locks)),
		done:  make(chan struct{}),
	}
	for _, p := range locks {
		_, statErr := os.Stat(p)
		v.paths[p] = statErr == nil
	}

	go v.loop()
	return v, nil
}

func (v *Watcher) loop() {
	for {
		select {
		case ev, ok := <-v.w.Events:
			if !ok {
				return
			}
			v.mu.Lock()
			if _, tracked := v.paths[ev.Name]; tracked {
				switch {
				case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
					v.paths[ev.Name] = true
				case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
					v.paths[ev.Name] = false
				}
			}
			v.mu.Unlock()
		case _, ok := <-v.w.Errors:
			if !ok {
				return
			}
		case <-v.done:
			return
		}
	}
}

// Busy reports whether any lock file is currently present.
func (v *Watcher) Busy() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, present := range v.paths {
		if present {
			return true
		}
	}
	return false
}

// Close stops the underlying fsnotify watcher.
func (v *Watcher) Close() error {
	close(v.done)
	return v.w.Close()
}
