package cli

import (
	"log/slog"

	"github.com/valter-silva-au/mdboard/internal/core"
	"github.com/valter-silva-au/mdboard/internal/notify"
	"github.com/valter-silva-au/mdboard/internal/observability"
	"github.com/valter-silva-au/mdboard/pkg/models"
)

// Service instances, set during app initialization in app.go.
var (
	Board    core.Board
	Projects core.ProjectRegistry
	Hub      *notify.Hub
	Watcher  *notify.Watcher
	Config   *models.GlobalConfig

	EventLog     observability.EventLog
	ActivityCalc observability.ActivityCalculator

	Logger *slog.Logger
)

func logger() *slog.Logger {
	if Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return Logger
}

func requireBoard() error {
	if Board == nil {
		return errNotInitialized("board")
	}
	return nil
}

func requireProjects() error {
	if Projects == nil {
		return errNotInitialized("project registry")
	}
	return nil
}
