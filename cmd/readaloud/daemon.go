package main

import (
	"context"
	"errors"

	"github.com/dooshek/readaloud/internal/bus"
	"github.com/dooshek/readaloud/internal/dbus"
	"github.com/dooshek/readaloud/internal/fileops"
	"github.com/dooshek/readaloud/internal/keyboard"
	"github.com/dooshek/readaloud/internal/logger"
	"github.com/dooshek/readaloud/internal/notification"
	"github.com/dooshek/readaloud/internal/reader"
	"github.com/dooshek/readaloud/internal/stats"
	"github.com/dooshek/readaloud/internal/types"
)

func runDaemon(ctx context.Context, cfg *types.Config) int {
	fileOps, err := fileops.NewDefaultFileOps()
	if err != nil {
		logger.Error("Failed to initialize file operations", err)
		return 1
	}
	if err := fileOps.EnsureDirectories(); err != nil {
		logger.Error("Failed to create necessary directories", err)
		return 1
	}

	// Check if another instance is running
	if err := fileOps.CheckPID(); err != nil {
		if errors.Is(err, fileops.ErrProcessAlreadyRunning) {
			logger.Error("Another instance of readaloud is already running", err)
			return 1
		}
		logger.Warnf("Ignoring unreadable PID file: %v", err)
	}
	if err := fileOps.SavePID(); err != nil {
		logger.Error("Failed to save PID file", err)
		return 1
	}
	defer fileOps.HandleExit()

	sm := stats.NewStatsManager(fileOps)
	r, err := reader.NewFromConfig(cfg, sm)
	if err != nil {
		logger.Error("Failed to initialize reader", err)
		return 1
	}
	defer r.Close()

	if cfg.GetDBusEnabled() {
		server := dbus.NewServer(r, sm)
		if err := server.Start(); err != nil {
			logger.Error("Failed to start D-Bus service", err)
			return 1
		}
		defer server.Close()
	}

	if natsCfg := cfg.GetNATSConfig(); natsCfg.Enabled {
		conn, err := bus.Connect(natsCfg)
		if err != nil {
			logger.Error("Failed to connect to NATS", err)
			return 1
		}
		defer conn.Close()
		bridge := bus.NewBridge(conn, natsCfg.SubjectPrefix, r)
		if err := bridge.Start(); err != nil {
			logger.Error("Failed to start NATS bridge", err)
			return 1
		}
		defer bridge.Close()
	}

	shortcuts := cfg.GetShortcutsConfig()
	monitor, err := keyboard.CreateMonitor(shortcuts, func(a keyboard.Action) {
		handleShortcut(ctx, r, a)
	})
	if err != nil {
		logger.Error("Failed to create keyboard monitor", err)
		return 1
	}

	startMessage := keyboard.FormatBinding(shortcuts.Read)
	if cfg.GetNotificationsEnabled() {
		if err := notification.New().Notify("🔊 readaloud started", startMessage); err != nil {
			logger.Warn("Could not send notification")
		}
	}
	logger.Infof("Press %s to read the selection, %s to pause or resume, %s to stop",
		startMessage, keyboard.FormatBinding(shortcuts.Pause), keyboard.FormatBinding(shortcuts.Stop))
	logger.Infof("Speaking with %s", r.BackendName())

	monitorErr := make(chan error, 1)
	go func() { monitorErr <- monitor.Start(ctx) }()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down...")
		monitor.Stop()
	case err := <-monitorErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Keyboard monitor stopped", err)
			// D-Bus and NATS keep working without shortcuts
			<-ctx.Done()
		}
	}
	return 0
}

func handleShortcut(ctx context.Context, r *reader.Reader, a keyboard.Action) {
	var err error
	switch a {
	case keyboard.ActionRead:
		_, err = r.ReadSelection(ctx)
	case keyboard.ActionTogglePause:
		err = r.TogglePause()
	case keyboard.ActionStop:
		err = r.Stop(0)
	}
	if err != nil {
		logger.Warnf("Shortcut %s: %v", a, err)
	}
}
