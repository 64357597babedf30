package daemonrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"swinglab/internal/analysis"
	"swinglab/internal/config"
	"swinglab/internal/connectivity"
	"swinglab/internal/daemon"
	"swinglab/internal/ipc"
	"swinglab/internal/logging"
	"swinglab/internal/notifications"
	"swinglab/internal/processor"
	"swinglab/internal/queue"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the swinglab daemon runtime loop and blocks until the process
// receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logPath := filepath.Join(cfg.Paths.LogDir, "swinglab.log")
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	pidPath := filepath.Join(cfg.Paths.LogDir, "swinglabd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}
	defer store.Close()

	client, err := analysis.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("configure analysis client: %w", err)
	}
	monitor, err := connectivity.NewMonitor(cfg, logger)
	if err != nil {
		return fmt.Errorf("configure connectivity monitor: %w", err)
	}

	notifier := notifications.NewService(cfg)
	proc := processor.New(cfg, store, logger, client, notifier, monitor)

	d, err := daemon.New(cfg, store, logger, proc, monitor, notifier)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "another swinglabd may already hold the lock"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("swinglab daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
