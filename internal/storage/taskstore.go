// Package storage persists kanban tasks as markdown files in status-named
// directories, with a per-directory order index recording display order.
package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	"github.com/valter-silva-au/mdboard/pkg/models"
)

// RootProvider resolves the task root of the active project.
type RootProvider interface {
	TasksDir() (string, error)
}

// StaticRoot is a RootProvider that always returns the same directory.
type StaticRoot string

// TasksDir implements RootProvider.
func (r StaticRoot) TasksDir() (string, error) {
	return string(r), nil
}

// TaskStore is the read/write API over a whole task tree.
type TaskStore interface {
	EnsureDirectories() error
	ListAll() ([]models.Task, error)
	ListStatus(status models.Status) ([]models.Task, error)
	GetTask(status models.Status, filename string) (*models.Task, error)
	CreateTask(draft models.TaskDraft) (*models.Task, error)
	UpdateTask(status models.Status, filename string, patch models.TaskPatch) (*models.Task, error)
	MoveTask(from models.Status, filename string, to models.Status, position *int) (*models.Task, error)
	ReorderTasks(status models.Status, ids []string) ([]models.Task, error)
	DeleteTask(status models.Status, filename string) error
	MigrateIfNeeded() (bool, error)
}

type fileTaskStore struct {
	root   RootProvider
	ids    IDGenerator
	order  OrderIndex
	logger *slog.Logger
	now    func() time.Time
}

// NewTaskStore creates a TaskStore over the tree returned by root. ids and
// order may be nil to use the defaults; logger may be nil to discard logs.
func NewTaskStore(root RootProvider, ids IDGenerator, order OrderIndex, logger *slog.Logger) TaskStore {
	if ids == nil {
		ids = NewIDGenerator()
	}
	if order == nil {
		order = NewOrderIndex()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &fileTaskStore{
		root:   root,
		ids:    ids,
		order:  order,
		logger: logger,
		now:    time.Now,
	}
}

func (s *fileTaskStore) tasksDir() (string, error) {
	dir, err := s.root.TasksDir()
	if err != nil {
		return "", fmt.Errorf("resolving tasks directory: %w", err)
	}
	return dir, nil
}

func (s *fileTaskStore) statusDir(status models.Status) (string, error) {
	root, err := s.tasksDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, string(status)), nil
}

// EnsureDirectories creates every status directory under the task root.
func (s *fileTaskStore) EnsureDirectories() error {
	root, err := s.tasksDir()
	if err != nil {
		return err
	}
	for _, status := range models.Statuses {
		dir := filepath.Join(root, string(status))
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return &IOError{Op: "creating status directory", Path: dir, Err: err}
		}
	}
	return nil
}

// ListAll migrates the tree if needed, then returns every task grouped by
// status in board column order.
func (s *fileTaskStore) ListAll() ([]models.Task, error) {
	if _, err := s.MigrateIfNeeded(); err != nil {
		return nil, err
	}

	all := []models.Task{}
	for _, status := range models.Statuses {
		tasks, err := s.listStatus(status)
		if err != nil {
			return nil, err
		}
		all = append(all, tasks...)
	}
	return all, nil
}

// ListStatus returns the ordered tasks of a single status.
func (s *fileTaskStore) ListStatus(status models.Status) ([]models.Task, error) {
	if err := validateStatus(status); err != nil {
		return nil, err
	}
	if _, err := s.MigrateIfNeeded(); err != nil {
		return nil, err
	}
	return s.listStatus(status)
}

// listStatus emits indexed tasks in index order, skipping index entries with
// no backing file, followed by unindexed tasks in directory order.
func (s *fileTaskStore) listStatus(status models.Status) ([]models.Task, error) {
	dir, err := s.statusDir(status)
	if err != nil {
		return nil, err
	}

	names, err := taskFileNames(dir)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return []models.Task{}, nil
		}
		return nil, err
	}

	parsed := make([]models.Task, 0, len(names))
	for _, name := range names {
		task, err := s.readTask(dir, status, name)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue // removed between readdir and read
			}
			return nil, err
		}
		parsed = append(parsed, *task)
	}

	order, err := s.order.Read(dir)
	if err != nil {
		return nil, err
	}

	byID := make(map[string][]int, len(parsed))
	for i, t := range parsed {
		byID[t.ID] = append(byID[t.ID], i)
	}

	emitted := make([]bool, len(parsed))
	result := make([]models.Task, 0, len(parsed))
	for _, id := range order {
		for _, i := range byID[id] {
			if emitted[i] {
				continue
			}
			emitted[i] = true
			result = append(result, parsed[i])
		}
	}
	for i, t := range parsed {
		if !emitted[i] {
			result = append(result, t)
		}
	}
	return result, nil
}

// GetTask reads and parses a single task file.
func (s *fileTaskStore) GetTask(status models.Status, filename string) (*models.Task, error) {
	if err := validateLocation(status, filename); err != nil {
		return nil, err
	}
	dir, err := s.statusDir(status)
	if err != nil {
		return nil, err
	}
	return s.readTask(dir, status, filename)
}

// CreateTask mints an ID, derives a unique filename from the title, writes
// the file and appends the ID to the status's order index.
func (s *fileTaskStore) CreateTask(draft models.TaskDraft) (*models.Task, error) {
	if err := validateStatus(draft.Status); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(draft.Title)
	if title == "" {
		return nil, validationErrorf("title is required")
	}
	if _, err := s.MigrateIfNeeded(); err != nil {
		return nil, err
	}

	dir, err := s.statusDir(draft.Status)
	if err != nil {
		return nil, err
	}

	task := models.Task{
		ID:                 s.ids.NewID(),
		Filename:           uniqueFilename(Slugify(title), existsIn(dir)),
		Status:             draft.Status,
		Title:              title,
		Epic:               strings.TrimSpace(draft.Epic),
		Tags:               nonNilTags(draft.Tags),
		Description:        draft.Description,
		AcceptanceCriteria: nonNilCriteria(draft.AcceptanceCriteria),
		Notes:              draft.Notes,
		Completed:          draft.Completed,
	}
	if task.Status == models.StatusDone && task.Completed == nil {
		task.Completed = s.stamp()
	}

	if err := writeTaskFile(dir, task); err != nil {
		return nil, err
	}

	order, err := s.order.Read(dir)
	if err != nil {
		return nil, err
	}
	if err := s.order.Write(dir, append(order, task.ID)); err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTask merges patch over the stored task and rewrites the file in
// place. The file is never relocated, even if the patch changes the status.
func (s *fileTaskStore) UpdateTask(status models.Status, filename string, patch models.TaskPatch) (*models.Task, error) {
	if err := validateLocation(status, filename); err != nil {
		return nil, err
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, validationErrorf("title must not be empty")
	}
	if _, err := s.MigrateIfNeeded(); err != nil {
		return nil, err
	}

	dir, err := s.statusDir(status)
	if err != nil {
		return nil, err
	}
	task, err := s.readTask(dir, status, filename)
	if err != nil {
		return nil, err
	}

	wasDone := task.Status == models.StatusDone
	patch.Apply(task)
	if task.Status == models.StatusDone && !wasDone && !patch.Completed.Set {
		task.Completed = s.stamp()
	}

	if err := writeTaskFile(dir, *task); err != nil {
		return nil, err
	}
	return task, nil
}

// MoveTask relocates a task to another status under the same filename and
// updates both order indices. position is clamped; nil appends.
func (s *fileTaskStore) MoveTask(from models.Status, filename string, to models.Status, position *int) (*models.Task, error) {
	if err := validateLocation(from, filename); err != nil {
		return nil, err
	}
	if err := validateStatus(to); err != nil {
		return nil, err
	}
	if _, err := s.MigrateIfNeeded(); err != nil {
		return nil, err
	}

	fromDir, err := s.statusDir(from)
	if err != nil {
		return nil, err
	}
	toDir, err := s.statusDir(to)
	if err != nil {
		return nil, err
	}

	task, err := s.readTask(fromDir, from, filename)
	if err != nil {
		return nil, err
	}
	oldID := task.ID

	task.Status = to
	if to == models.StatusDone && from != models.StatusDone {
		task.Completed = s.stamp()
	}
	if task.Legacy {
		task.ID = legacyID(to, filename)
	}

	if from == to {
		if err := writeTaskFile(toDir, *task); err != nil {
			return nil, err
		}
	} else {
		if existsIn(toDir)(filename) {
			return nil, validationErrorf("%s already contains %s", to, filename)
		}
		if err := writeTaskFile(toDir, *task); err != nil {
			return nil, err
		}
		src := filepath.Join(fromDir, filename)
		if err := os.Remove(src); err != nil {
			return nil, wrapFSError("removing moved task", src, err)
		}
	}

	fromOrder, err := s.order.Read(fromDir)
	if err != nil {
		return nil, err
	}
	fromOrder = removeID(fromOrder, oldID)

	if from == to {
		return task, s.order.Write(toDir, insertID(fromOrder, task.ID, position))
	}

	if err := s.order.Write(fromDir, fromOrder); err != nil {
		return nil, err
	}
	toOrder, err := s.order.Read(toDir)
	if err != nil {
		return nil, err
	}
	toOrder = removeID(toOrder, task.ID)
	if err := s.order.Write(toDir, insertID(toOrder, task.ID, position)); err != nil {
		return nil, err
	}
	return task, nil
}

// ReorderTasks replaces the status's order index verbatim and returns the
// recomputed full task list. The IDs are not checked against the directory.
func (s *fileTaskStore) ReorderTasks(status models.Status, ids []string) ([]models.Task, error) {
	if err := validateStatus(status); err != nil {
		return nil, err
	}
	if _, err := s.MigrateIfNeeded(); err != nil {
		return nil, err
	}
	dir, err := s.statusDir(status)
	if err != nil {
		return nil, err
	}
	if err := s.order.Write(dir, ids); err != nil {
		return nil, err
	}
	return s.ListAll()
}

// DeleteTask removes the task file and purges its ID from the order index.
// The file must be readable first; a missing file is ErrNotFound.
func (s *fileTaskStore) DeleteTask(status models.Status, filename string) error {
	if err := validateLocation(status, filename); err != nil {
		return err
	}
	if _, err := s.MigrateIfNeeded(); err != nil {
		return err
	}
	dir, err := s.statusDir(status)
	if err != nil {
		return err
	}
	task, err := s.readTask(dir, status, filename)
	if err != nil {
		return err
	}

	path := filepath.Join(dir, filename)
	if err := os.Remove(path); err != nil {
		return wrapFSError("deleting task", path, err)
	}

	order, err := s.order.Read(dir)
	if err != nil {
		return err
	}
	return s.order.Write(dir, removeID(order, task.ID))
}

func (s *fileTaskStore) readTask(dir string, status models.Status, filename string) (*models.Task, error) {
	path := filepath.Join(dir, filename)
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is inside the managed tasks tree
	if err != nil {
		return nil, wrapFSError("reading task", path, err)
	}
	task := ParseTask(string(data), status, filename)
	return &task, nil
}

func (s *fileTaskStore) stamp() *time.Time {
	ts := s.now().UTC().Truncate(time.Millisecond)
	return &ts
}

func writeTaskFile(dir string, task models.Task) error {
	path := filepath.Join(dir, task.Filename)
	if err := atomic.WriteFile(path, strings.NewReader(SerializeTask(task))); err != nil {
		return wrapFSError("writing task", path, err)
	}
	return nil
}

// taskFileNames lists the task files in dir sorted by name.
func taskFileNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, wrapFSError("listing tasks", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !isTaskFile(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

func validateStatus(status models.Status) error {
	if !status.Valid() {
		return validationErrorf("invalid status %q", status)
	}
	return nil
}

func validateLocation(status models.Status, filename string) error {
	if err := validateStatus(status); err != nil {
		return err
	}
	if filename == "" || filename != filepath.Base(filename) || strings.ContainsAny(filename, `/\`) || !isTaskFile(filename) {
		return validationErrorf("invalid task filename %q", filename)
	}
	return nil
}

func nonNilTags(tags []models.Tag) []models.Tag {
	if tags == nil {
		return []models.Tag{}
	}
	return append([]models.Tag(nil), tags...)
}

func nonNilCriteria(criteria []models.AcceptanceCriterion) []models.AcceptanceCriterion {
	if criteria == nil {
		return []models.AcceptanceCriterion{}
	}
	return append([]models.AcceptanceCriterion(nil), criteria...)
}
