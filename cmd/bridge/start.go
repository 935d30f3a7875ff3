// start.go — daemon wiring: builds every component (C1-C9) and blocks
// serving until a termination signal arrives, in the spirit of the
// teacher's runMCPMode (cmd/dev-console/main_connection_mcp.go) trimmed to
// this bridge's raw-TCP transport and lifecycle controller.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/brennhill/editor-bridge/internal/dispatch"
	"github.com/brennhill/editor-bridge/internal/environ"
	"github.com/brennhill/editor-bridge/internal/hostapi"
	"github.com/brennhill/editor-bridge/internal/lifecycle"
	"github.com/brennhill/editor-bridge/internal/sandbox"
	"github.com/brennhill/editor-bridge/internal/security"
	"github.com/brennhill/editor-bridge/internal/session"
	"github.com/brennhill/editor-bridge/internal/state"
	"github.com/brennhill/editor-bridge/internal/toolkit"
	"github.com/brennhill/editor-bridge/internal/tools"
)

func runStart(f cliFlags) int {
	logger, err := buildLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start: cannot build logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	paths, err := state.NewProjectPaths(f.project)
	if err != nil {
		logger.Error("invalid project root", zap.Error(err))
		return 1
	}

	level := sandbox.ParseLevel(f.sandboxLevel)

	sessions := session.NewManager(paths.SettingsFileJSON())
	if err := sessions.Load(); err != nil {
		logger.Warn("failed to load existing session record, starting fresh", zap.Error(err))
	}

	secCfg, err := security.LoadConfig(paths.SecurityConfigFile())
	if err != nil {
		logger.Error("failed to load security config", zap.Error(err))
		return 1
	}
	gate := security.NewGate(secCfg)

	watcher, err := environ.New(paths)
	if err != nil {
		logger.Error("failed to start environment watcher", zap.Error(err))
		return 1
	}
	defer watcher.Close()

	clients := session.NewClientRegistry()

	holder := &tools.RegistryHolder{}
	toolDeps := tools.Deps{
		Host:         &hostapi.Fake{},
		Sessions:     sessions,
		Clients:      clients,
		Paths:        paths,
		Registry:     holder,
		SandboxLevel: func() sandbox.Level { return level },
	}
	registry, err := toolkit.New(tools.BuildSpecs(toolDeps))
	if err != nil {
		logger.Error("failed to build tool registry", zap.Error(err))
		return 1
	}
	holder.Reg = registry

	mainQueue := dispatch.NewMainQueue(32)
	d := dispatch.New(registry, gate, mainQueue).WithBusyChecker(watcher.Busy)
	handler := dispatch.NewHandler(d, logger)

	rebuild := func() error {
		newHolder := &tools.RegistryHolder{}
		newDeps := toolDeps
		newDeps.Registry = newHolder
		newReg, err := toolkit.New(tools.BuildSpecs(newDeps))
		if err != nil {
			return err
		}
		newHolder.Reg = newReg
		d.Reload(newReg)
		return nil
	}

	ctrl := lifecycle.New(lifecycle.Config{
		ConfirmPort:     func(requested, actual int) bool { return true },
		RebuildRegistry: rebuild,
		Sessions:        sessions,
		Handler:         handler,
	})

	bound, err := ctrl.Start(context.Background(), f.port)
	if err != nil {
		logger.Error("failed to start server", zap.Error(err))
		return 1
	}
	if err := writePIDFile(bound); err != nil {
		logger.Warn("failed to write PID file", zap.Error(err))
	}
	defer removePIDFile(bound)

	logger.Info("bridge listening", zap.Int("port", bound), zap.String("project", f.project), zap.String("sandbox_level", level.String()))

	runMainQueueLoop(ctrl, mainQueue)

	awaitShutdown(logger, ctrl)
	return 0
}

// runMainQueueLoop drains EditorThreadOnly jobs on a background goroutine.
// A real host integration would instead call mainQueue.TryRun() from its own
// main-thread tick; this loop stands in since no such host is wired here.
func runMainQueueLoop(ctrl *lifecycle.Controller, mq *dispatch.MainQueue) {
	go func() {
		for {
			mq.Run()
		}
	}()
}

func awaitShutdown(logger *zap.Logger, ctrl *lifecycle.Controller) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	s := <-sigCh
	logger.Info("received shutdown signal", zap.String("signal", s.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ctrl.Stop(ctx); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}
}

func buildLogger() (*zap.Logger, error) {
	logPath, err := state.DefaultLogFile()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dirOf(logPath), 0o755); err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{logPath, "stderr"}
	return cfg.Build()
}
