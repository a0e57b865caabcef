package core

import (
	"fmt"
	"log/slog"
	"strings"

	"dario.cat/mergo"

	"github.com/valter-silva-au/mdboard/internal/storage"
	"github.com/valter-silva-au/mdboard/pkg/models"
)

// Broadcaster delivers board-level events to connected clients.
type Broadcaster interface {
	ProjectSwitched(projectID string)
}

// RootWatcher follows the task root of the active project.
type RootWatcher interface {
	Restart(root string) error
}

// Board is the API every outer surface (HTTP, MCP, CLI) calls. It validates
// input, keeps status changes and file locations consistent, and records
// mutations in the event log.
type Board interface {
	ListTasks() ([]models.Task, error)
	GetTask(status models.Status, filename string) (*models.Task, error)
	CreateTask(draft models.TaskDraft) (*models.Task, error)
	UpdateTask(status models.Status, filename string, patch models.TaskPatch) (*models.Task, error)
	MoveTask(from models.Status, filename string, to models.Status, position *int) (*models.Task, error)
	ReorderTasks(status models.Status, ids []string) ([]models.Task, error)
	DeleteTask(status models.Status, filename string) error
	Migrate() (bool, error)

	GetConfig() (storage.ProjectConfig, error)
	UpdateConfig(updates storage.ProjectConfig) (storage.ProjectConfig, error)
	GetNotes() (string, error)
	UpdateNotes(text string) error

	SwitchProject(id string) (*models.Project, error)
}

type board struct {
	store    storage.TaskStore
	files    storage.ProjectFiles
	projects ProjectRegistry
	watcher  RootWatcher
	hub      Broadcaster
	events   EventLogger
	logger   *slog.Logger
}

// BoardDeps groups the collaborators of a Board. Watcher, Hub and Events may
// be nil.
type BoardDeps struct {
	Store    storage.TaskStore
	Files    storage.ProjectFiles
	Projects ProjectRegistry
	Watcher  RootWatcher
	Hub      Broadcaster
	Events   EventLogger
	Logger   *slog.Logger
}

// NewBoard creates a Board from its dependencies.
func NewBoard(deps BoardDeps) Board {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &board{
		store:    deps.Store,
		files:    deps.Files,
		projects: deps.Projects,
		watcher:  deps.Watcher,
		hub:      deps.Hub,
		events:   deps.Events,
		logger:   logger,
	}
}

func (b *board) ListTasks() ([]models.Task, error) {
	return b.store.ListAll()
}

func (b *board) GetTask(status models.Status, filename string) (*models.Task, error) {
	return b.store.GetTask(status, filename)
}

// draftDefaults fills the fields a caller left empty on create.
var draftDefaults = models.TaskDraft{Status: models.StatusBacklog}

func (b *board) CreateTask(draft models.TaskDraft) (*models.Task, error) {
	if err := mergo.Merge(&draft, draftDefaults); err != nil {
		return nil, fmt.Errorf("applying task defaults: %w", err)
	}
	if err := validateTags(draft.Tags); err != nil {
		return nil, err
	}
	if err := validateSingleLine("title", draft.Title); err != nil {
		return nil, err
	}
	if err := validateSingleLine("epic", draft.Epic); err != nil {
		return nil, err
	}
	task, err := b.store.CreateTask(draft)
	if err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}
	b.logEvent("task.created", map[string]any{
		"id":       task.ID,
		"status":   string(task.Status),
		"filename": task.Filename,
		"title":    task.Title,
	})
	return task, nil
}

// UpdateTask applies patch to the task. A status change relocates the file
// first, appending it to the destination column, and then applies the
// remaining fields at the new location.
func (b *board) UpdateTask(status models.Status, filename string, patch models.TaskPatch) (*models.Task, error) {
	if patch.Tags != nil {
		if err := validateTags(*patch.Tags); err != nil {
			return nil, err
		}
	}
	if patch.Title != nil {
		if strings.TrimSpace(*patch.Title) == "" {
			return nil, fmt.Errorf("%w: title must not be empty", storage.ErrValidation)
		}
		if err := validateSingleLine("title", *patch.Title); err != nil {
			return nil, err
		}
	}
	if patch.Epic != nil {
		if err := validateSingleLine("epic", *patch.Epic); err != nil {
			return nil, err
		}
	}

	current := status
	if patch.Status != nil && *patch.Status != status {
		to := *patch.Status
		if _, err := b.store.MoveTask(status, filename, to, nil); err != nil {
			return nil, fmt.Errorf("moving task for status change: %w", err)
		}
		b.logEvent("task.moved", map[string]any{
			"filename": filename,
			"from":     string(status),
			"to":       string(to),
		})
		current = to
		patch.Status = nil
	}

	task, err := b.store.UpdateTask(current, filename, patch)
	if err != nil {
		return nil, fmt.Errorf("updating task: %w", err)
	}
	b.logEvent("task.updated", map[string]any{
		"id":       task.ID,
		"status":   string(task.Status),
		"filename": task.Filename,
	})
	return task, nil
}

func (b *board) MoveTask(from models.Status, filename string, to models.Status, position *int) (*models.Task, error) {
	task, err := b.store.MoveTask(from, filename, to, position)
	if err != nil {
		return nil, fmt.Errorf("moving task: %w", err)
	}
	data := map[string]any{
		"id":       task.ID,
		"filename": filename,
		"from":     string(from),
		"to":       string(to),
	}
	if position != nil {
		data["position"] = *position
	}
	b.logEvent("task.moved", data)
	return task, nil
}

func (b *board) ReorderTasks(status models.Status, ids []string) ([]models.Task, error) {
	tasks, err := b.store.ReorderTasks(status, ids)
	if err != nil {
		return nil, fmt.Errorf("reordering tasks: %w", err)
	}
	b.logEvent("task.reordered", map[string]any{
		"status": string(status),
		"count":  len(ids),
	})
	return tasks, nil
}

func (b *board) DeleteTask(status models.Status, filename string) error {
	if err := b.store.DeleteTask(status, filename); err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	b.logEvent("task.deleted", map[string]any{
		"status":   string(status),
		"filename": filename,
	})
	return nil
}

func (b *board) Migrate() (bool, error) {
	migrated, err := b.store.MigrateIfNeeded()
	if err != nil {
		return false, fmt.Errorf("migrating board: %w", err)
	}
	if migrated {
		b.logEvent("board.migrated", nil)
	}
	return migrated, nil
}

func (b *board) GetConfig() (storage.ProjectConfig, error) {
	return b.files.GetConfig()
}

func (b *board) UpdateConfig(updates storage.ProjectConfig) (storage.ProjectConfig, error) {
	return b.files.UpdateConfig(updates)
}

func (b *board) GetNotes() (string, error) {
	return b.files.GetNotes()
}

func (b *board) UpdateNotes(text string) error {
	return b.files.UpdateNotes(text)
}

// SwitchProject makes id current, prepares its task tree, points the watcher
// at it and tells connected clients to reload.
func (b *board) SwitchProject(id string) (*models.Project, error) {
	project, err := b.projects.Switch(id)
	if err != nil {
		return nil, fmt.Errorf("switching project: %w", err)
	}
	if err := b.store.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("preparing project directories: %w", err)
	}

	root := project.TasksRoot()
	if b.watcher != nil {
		if err := b.watcher.Restart(root); err != nil {
			b.logger.Warn("restarting watcher", "root", root, "error", err)
		}
	}
	if b.hub != nil {
		b.hub.ProjectSwitched(project.ID)
	}
	b.logEvent("project.switched", map[string]any{
		"id":   project.ID,
		"path": project.Path,
	})
	return project, nil
}

// logEvent records a mutation. Event log failures never fail the operation.
func (b *board) logEvent(eventType string, data map[string]any) {
	if b.events == nil {
		return
	}
	if err := b.events.LogEvent(eventType, data); err != nil {
		b.logger.Warn("writing event log", "event", eventType, "error", err)
	}
}

func validateTags(tags []models.Tag) error {
	for _, tag := range tags {
		if !tag.Valid() {
			return fmt.Errorf("%w: unknown tag %q", storage.ErrValidation, tag)
		}
	}
	return nil
}

// validateSingleLine rejects values that the markdown format stores on a
// single line.
func validateSingleLine(field, value string) error {
	if strings.ContainsAny(value, "\r\n") {
		return fmt.Errorf("%w: %s must be a single line", storage.ErrValidation, field)
	}
	return nil
}
