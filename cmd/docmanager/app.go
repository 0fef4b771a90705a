package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docmanager/internal/auth"
	"github.com/fyrsmithlabs/docmanager/internal/commands"
	"github.com/fyrsmithlabs/docmanager/internal/config"
	"github.com/fyrsmithlabs/docmanager/internal/documents"
	"github.com/fyrsmithlabs/docmanager/internal/hooks"
	"github.com/fyrsmithlabs/docmanager/internal/logging"
	"github.com/fyrsmithlabs/docmanager/internal/notify"
	"github.com/fyrsmithlabs/docmanager/internal/pointstore"
	"github.com/fyrsmithlabs/docmanager/internal/settings"
	"github.com/fyrsmithlabs/docmanager/internal/telemetry"
)

// app holds the initialized dependencies of one process.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	store     pointstore.Store
	docs      *documents.Service
	settings  settings.Store
	notifier  notify.Notifier
	commands  *commands.Handler
	hooks     *hooks.HookManager

	closers []func() error
}

// logTarget decides where a command's logs go.
type logTarget int

const (
	logStdout logTarget = iota
	// logStderr keeps stdout free for command output or a protocol stream.
	logStderr
)

// loadConfig reads the config and applies flag overrides.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		lvl, err := logging.LevelFromString(opts.logLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid --log-level: %w", err)
		}
		cfg.Logging.Level = lvl
	}
	return cfg, nil
}

// bootstrap loads configuration and wires every component. Callers must
// Close the returned app.
func bootstrap(ctx context.Context, opts *rootOptions, target logTarget) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	if target == logStderr {
		cfg.Logging.Output.Stdout = true
		cfg.Logging.Output.Stderr = true
	}

	logger, err := logging.NewLogger(&cfg.Logging, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	a := &app{cfg: cfg, logger: logger}
	a.closers = append(a.closers, logger.Sync)
	zl := logger.Underlying()

	if err := a.init(ctx, zl); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context, zl *zap.Logger) error {
	cfg := a.cfg

	tel, err := telemetry.New(ctx, &cfg.Telemetry, zl)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	a.telemetry = tel
	a.closers = append(a.closers, func() error { return tel.Shutdown(context.Background()) })

	store, err := pointstore.New(ctx, cfg.Store, zl.Named("store"))
	if err != nil {
		return fmt.Errorf("failed to open point store: %w", err)
	}
	a.store = store
	a.closers = append(a.closers, func() error { return pointstore.Close(store) })

	if a.docs, err = documents.NewService(store, zl); err != nil {
		return err
	}

	switch cfg.Settings.Backend {
	case "memory":
		a.settings = settings.NewMemoryStore()
	default:
		st, err := settings.NewSQLiteStore(cfg.Settings.DataDir)
		if err != nil {
			return fmt.Errorf("failed to open settings store: %w", err)
		}
		a.settings = st
		a.closers = append(a.closers, st.Close)
	}

	a.notifier = notify.NewLogNotifier(zl)
	if cfg.Notify.URL != "" {
		nn, err := notify.Connect(cfg.Notify, zl)
		if err != nil {
			zl.Warn("NATS unavailable, notifications are logged only",
				zap.String("url", cfg.Notify.URL), zap.Error(err))
		} else {
			a.notifier = notify.Multi{a.notifier, nn}
			a.closers = append(a.closers, nn.Close)
		}
	}

	if a.commands, err = commands.New(a.docs, a.settings, a.notifier, zl); err != nil {
		return err
	}

	dh, err := hooks.NewDocumentHooks(a.commands, store, a.settings, zl)
	if err != nil {
		return err
	}
	a.hooks = hooks.NewHookManager(&cfg.Hooks)
	dh.Register(a.hooks)

	zl.Debug("dependencies initialized",
		zap.String("store", store.Name()),
		zap.String("settings", cfg.Settings.Backend),
		zap.Bool("nats", cfg.Notify.URL != ""),
		zap.Bool("telemetry", cfg.Telemetry.Enabled))
	return nil
}

// announce runs the after_bootstrap hooks of long-running commands.
func (a *app) announce(ctx context.Context) error {
	return a.hooks.Execute(ctx, hooks.HookAfterBootstrap, map[string]interface{}{})
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// operatorCaller runs local commands with memory admin permissions.
func operatorCaller() commands.Caller {
	return commands.Caller{
		UserID: "cli",
		Identity: &auth.Identity{
			Subject:     "cli",
			Permissions: map[string][]string{"MEMORY": {"EDIT", "DELETE"}},
		},
	}
}
