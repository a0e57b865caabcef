// Package internal provides the App struct that wires all components of
// mdboard together and initializes the CLI layer.
package internal

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/valter-silva-au/mdboard/internal/cli"
	"github.com/valter-silva-au/mdboard/internal/core"
	"github.com/valter-silva-au/mdboard/internal/notify"
	"github.com/valter-silva-au/mdboard/internal/observability"
	"github.com/valter-silva-au/mdboard/internal/storage"
	"github.com/valter-silva-au/mdboard/pkg/models"
)

const eventLogFileName = "events.jsonl"

// App holds all service dependencies for mdboard.
type App struct {
	ConfigDir string
	Config    *models.GlobalConfig
	Logger    *slog.Logger

	// Configuration
	ConfigMgr core.ConfigurationManager

	// Storage layer
	Projects core.ProjectRegistry
	Store    storage.TaskStore
	Files    storage.ProjectFiles

	// Change notifications
	Hub     *notify.Hub
	Watcher *notify.Watcher

	// Core services
	Board core.Board

	// Observability
	EventLog     observability.EventLog
	ActivityCalc observability.ActivityCalculator
}

// NewApp creates and wires all components. configDir holds config.yaml, the
// project registry and the event log.
func NewApp(configDir string) (*App, error) {
	app := &App{ConfigDir: configDir}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(configDir)
	cfg, err := app.ConfigMgr.LoadGlobalConfig()
	if err != nil {
		cfg = core.DefaultGlobalConfig()
	}
	app.Config = cfg

	app.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: core.LogLevel(cfg.LogLevel),
	}))
	if err != nil {
		app.Logger.Warn("using default configuration", "error", err)
	}

	// --- Storage layer ---
	app.Projects = core.NewProjectRegistry(configDir)
	tasksDir, err := resolveTasksDir(cfg)
	if err != nil {
		return nil, err
	}
	if _, err := app.Projects.EnsureDefault(tasksDir); err != nil {
		return nil, fmt.Errorf("registering default project: %w", err)
	}

	app.Store = storage.NewTaskStore(app.Projects, nil, nil, app.Logger)
	if err := app.Store.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("preparing task directories: %w", err)
	}
	app.Files = storage.NewProjectFiles(app.Projects)

	// --- Change notifications ---
	app.Hub = notify.NewHub(app.Logger)
	debounce := time.Duration(cfg.DebounceMS) * time.Millisecond
	app.Watcher = notify.NewWatcher(app.Hub, debounce, app.Logger)

	// --- Observability ---
	app.EventLog, err = observability.NewJSONLEventLog(filepath.Join(configDir, eventLogFileName))
	if err != nil {
		// Non-fatal: mutations are not recorded without an event log.
		app.Logger.Warn("event log disabled", "error", err)
		app.EventLog = nil
	}
	var evtAdapter core.EventLogger
	if app.EventLog != nil {
		evtAdapter = &eventLogAdapter{log: app.EventLog}
		app.ActivityCalc = observability.NewActivityCalculator(app.EventLog)
	}

	// --- Core services ---
	app.Board = core.NewBoard(core.BoardDeps{
		Store:    app.Store,
		Files:    app.Files,
		Projects: app.Projects,
		Watcher:  app.Watcher,
		Hub:      app.Hub,
		Events:   evtAdapter,
		Logger:   app.Logger,
	})

	// --- Wire CLI package-level variables ---
	cli.Board = app.Board
	cli.Projects = app.Projects
	cli.Hub = app.Hub
	cli.Watcher = app.Watcher
	cli.Config = app.Config
	cli.EventLog = app.EventLog
	cli.ActivityCalc = app.ActivityCalc
	cli.Logger = app.Logger

	return app, nil
}

// Close stops the watcher and releases the event log file handle. It is safe
// to call Close on an App whose EventLog is nil.
func (a *App) Close() error {
	if a.Watcher != nil {
		if err := a.Watcher.Close(); err != nil {
			return err
		}
	}
	if a.Hub != nil {
		a.Hub.Close()
	}
	if a.EventLog != nil {
		return a.EventLog.Close()
	}
	return nil
}

// ResolveConfigDir determines the mdboard config directory. See
// core.ResolveConfigDir.
func ResolveConfigDir() string {
	return core.ResolveConfigDir()
}

// resolveTasksDir returns the configured tasks directory, or ./tasks when
// none is set.
func resolveTasksDir(cfg *models.GlobalConfig) (string, error) {
	if cfg.TasksDir != "" {
		return cfg.TasksDir, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolving working directory: %w", err)
	}
	return filepath.Join(cwd, "tasks"), nil
}

// --- Adapters ---

// eventLogAdapter adapts observability.EventLog to core.EventLogger.
type eventLogAdapter struct {
	log observability.EventLog
}

func (a *eventLogAdapter) LogEvent(eventType string, data map[string]any) error {
	return a.log.Write(observability.Event{
		Time:    time.Now().UTC(),
		Level:   "INFO",
		Type:    eventType,
		Message: eventType,
		Data:    data,
	})
}
