package core

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"
	"github.com/valter-silva-au/mdboard/internal/storage"
	"github.com/valter-silva-au/mdboard/pkg/models"
	"gopkg.in/yaml.v3"
)

const (
	registryFileName = "projects.yaml"
	registryVersion  = "1"

	defaultProjectID   = "default-project"
	defaultProjectName = "Default Project"
)

// ProjectRegistry tracks the boards the user has registered and which one is
// current. It also acts as the storage.RootProvider for the current board.
type ProjectRegistry interface {
	List() ([]models.Project, error)
	Get(id string) (*models.Project, error)
	Current() (*models.Project, error)
	Add(name, path string) (*models.Project, error)
	Update(id, name string) (*models.Project, error)
	Remove(id string) (*models.Project, error)
	Switch(id string) (*models.Project, error)
	ValidatePath(path string, create bool) (models.PathValidation, error)
	EnsureDefault(tasksDir string) (*models.Project, error)
	TasksDir() (string, error)
}

// fileProjectRegistry persists the registry as YAML. Every read-modify-write
// cycle holds an exclusive lock on a sibling lock file.
type fileProjectRegistry struct {
	path     string
	lockPath string
	now      func() time.Time
}

// NewProjectRegistry creates a ProjectRegistry stored in configDir.
func NewProjectRegistry(configDir string) ProjectRegistry {
	path := filepath.Join(configDir, registryFileName)
	return &fileProjectRegistry{
		path:     path,
		lockPath: path + ".lock",
		now:      time.Now,
	}
}

func (r *fileProjectRegistry) load() (*models.ProjectRegistryFile, error) {
	data, err := os.ReadFile(r.path) //nolint:gosec // G304: path is the registry file in the config dir
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &models.ProjectRegistryFile{Version: registryVersion}, nil
		}
		return nil, fmt.Errorf("reading project registry: %w", err)
	}

	var reg models.ProjectRegistryFile
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parsing project registry: %w", err)
	}
	if reg.Version == "" {
		reg.Version = registryVersion
	}
	return &reg, nil
}

func (r *fileProjectRegistry) save(reg *models.ProjectRegistryFile) error {
	data, err := yaml.Marshal(reg)
	if err != nil {
		return fmt.Errorf("marshalling project registry: %w", err)
	}
	if err := atomic.WriteFile(r.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing project registry: %w", err)
	}
	return nil
}

// mutate runs fn against the locked registry and saves the result if fn
// succeeds.
func (r *fileProjectRegistry) mutate(fn func(reg *models.ProjectRegistryFile) error) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	unlock, err := lockFile(r.lockPath)
	if err != nil {
		return err
	}
	defer func() { _ = unlock() }()

	reg, err := r.load()
	if err != nil {
		return err
	}
	if err := fn(reg); err != nil {
		return err
	}
	return r.save(reg)
}

// List returns every registered project with its board name filled in from
// the project's config file.
func (r *fileProjectRegistry) List() ([]models.Project, error) {
	reg, err := r.load()
	if err != nil {
		return nil, err
	}
	projects := make([]models.Project, len(reg.Projects))
	for i, p := range reg.Projects {
		p.BoardName = storage.ReadProjectConfig(p.TasksRoot()).BoardName()
		projects[i] = p
	}
	return projects, nil
}

func (r *fileProjectRegistry) Get(id string) (*models.Project, error) {
	reg, err := r.load()
	if err != nil {
		return nil, err
	}
	p := findProject(reg, id)
	if p == nil {
		return nil, projectNotFound(id)
	}
	found := *p
	found.BoardName = storage.ReadProjectConfig(found.TasksRoot()).BoardName()
	return &found, nil
}

// Current returns the current project.
func (r *fileProjectRegistry) Current() (*models.Project, error) {
	reg, err := r.load()
	if err != nil {
		return nil, err
	}
	if reg.CurrentProject == "" {
		return nil, fmt.Errorf("no current project: %w", storage.ErrNotFound)
	}
	return r.Get(reg.CurrentProject)
}

// TasksDir implements storage.RootProvider for the current project.
func (r *fileProjectRegistry) TasksDir() (string, error) {
	p, err := r.Current()
	if err != nil {
		return "", err
	}
	return p.TasksRoot(), nil
}

// Add registers a new project. The path must be an existing directory not
// already registered; the ID is derived from the name and de-duplicated.
func (r *fileProjectRegistry) Add(name, path string) (*models.Project, error) {
	if name == "" || path == "" {
		return nil, fmt.Errorf("%w: name and path are required", storage.ErrValidation)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving project path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: path does not exist", storage.ErrValidation)
		}
		return nil, fmt.Errorf("checking project path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: path is not a directory", storage.ErrValidation)
	}

	var added models.Project
	err = r.mutate(func(reg *models.ProjectRegistryFile) error {
		for _, p := range reg.Projects {
			if p.Path == abs {
				return fmt.Errorf("%w: a project with this path already exists", storage.ErrValidation)
			}
		}
		added = models.Project{
			ID:           uniqueProjectID(reg, name),
			Name:         name,
			Path:         abs,
			LastAccessed: r.now().UTC(),
		}
		reg.Projects = append(reg.Projects, added)
		if reg.CurrentProject == "" {
			reg.CurrentProject = added.ID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &added, nil
}

// Update renames a project and mirrors the name into its board config.
func (r *fileProjectRegistry) Update(id, name string) (*models.Project, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", storage.ErrValidation)
	}

	var updated models.Project
	err := r.mutate(func(reg *models.ProjectRegistryFile) error {
		p := findProject(reg, id)
		if p == nil {
			return projectNotFound(id)
		}
		p.Name = name
		updated = *p
		return nil
	})
	if err != nil {
		return nil, err
	}

	root := updated.TasksRoot()
	if info, statErr := os.Stat(root); statErr == nil && info.IsDir() {
		if _, err := storage.MergeProjectConfig(root, storage.ProjectConfig{"boardName": name}); err != nil {
			return nil, fmt.Errorf("updating board name: %w", err)
		}
	}
	updated.BoardName = storage.ReadProjectConfig(root).BoardName()
	return &updated, nil
}

// Remove unregisters a project. Removing the current project makes the
// first remaining project current.
func (r *fileProjectRegistry) Remove(id string) (*models.Project, error) {
	var removed models.Project
	err := r.mutate(func(reg *models.ProjectRegistryFile) error {
		for i, p := range reg.Projects {
			if p.ID != id {
				continue
			}
			removed = p
			reg.Projects = append(reg.Projects[:i], reg.Projects[i+1:]...)
			if reg.CurrentProject == id {
				reg.CurrentProject = ""
				if len(reg.Projects) > 0 {
					reg.CurrentProject = reg.Projects[0].ID
				}
			}
			return nil
		}
		return projectNotFound(id)
	})
	if err != nil {
		return nil, err
	}
	return &removed, nil
}

// Switch makes id the current project and records the access time.
func (r *fileProjectRegistry) Switch(id string) (*models.Project, error) {
	var switched models.Project
	err := r.mutate(func(reg *models.ProjectRegistryFile) error {
		p := findProject(reg, id)
		if p == nil {
			return projectNotFound(id)
		}
		p.LastAccessed = r.now().UTC()
		reg.CurrentProject = p.ID
		switched = *p
		return nil
	})
	if err != nil {
		return nil, err
	}
	switched.BoardName = storage.ReadProjectConfig(switched.TasksRoot()).BoardName()
	return &switched, nil
}

// ValidatePath reports whether path has a tasks directory. When create is
// set, a missing tasks directory is created along with every status
// directory.
func (r *fileProjectRegistry) ValidatePath(path string, create bool) (models.PathValidation, error) {
	if path == "" {
		return models.PathValidation{}, fmt.Errorf("%w: path is required", storage.ErrValidation)
	}
	tasksDir := models.Project{Path: path}.TasksRoot()

	info, err := os.Stat(tasksDir)
	switch {
	case err == nil && !info.IsDir():
		return models.PathValidation{Valid: false, Error: "tasks path exists but is not a directory"}, nil
	case err == nil:
		return models.PathValidation{Valid: true, TasksDir: tasksDir}, nil
	case !errors.Is(err, os.ErrNotExist):
		return models.PathValidation{}, fmt.Errorf("checking tasks directory: %w", err)
	}

	if !create {
		return models.PathValidation{Valid: false, Error: "tasks directory does not exist", CanCreate: true}, nil
	}
	if err := storage.NewTaskStore(storage.StaticRoot(tasksDir), nil, nil, nil).EnsureDirectories(); err != nil {
		return models.PathValidation{}, err
	}
	return models.PathValidation{Valid: true, TasksDir: tasksDir, Created: true}, nil
}

// EnsureDefault registers a default project rooted at tasksDir when the
// registry is empty. It returns the current project.
func (r *fileProjectRegistry) EnsureDefault(tasksDir string) (*models.Project, error) {
	abs, err := filepath.Abs(tasksDir)
	if err != nil {
		return nil, fmt.Errorf("resolving tasks directory: %w", err)
	}

	err = r.mutate(func(reg *models.ProjectRegistryFile) error {
		if len(reg.Projects) > 0 {
			if findProject(reg, reg.CurrentProject) == nil {
				reg.CurrentProject = reg.Projects[0].ID
			}
			return nil
		}
		p := models.Project{
			ID:           defaultProjectID,
			Name:         defaultProjectName,
			Path:         filepath.Dir(abs),
			LastAccessed: r.now().UTC(),
		}
		if filepath.Base(abs) != "tasks" {
			p.TasksPath = abs
		}
		reg.Projects = []models.Project{p}
		reg.CurrentProject = p.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.Current()
}

func findProject(reg *models.ProjectRegistryFile, id string) *models.Project {
	for i := range reg.Projects {
		if reg.Projects[i].ID == id {
			return &reg.Projects[i]
		}
	}
	return nil
}

func projectNotFound(id string) error {
	return fmt.Errorf("project %q: %w", id, storage.ErrNotFound)
}

// uniqueProjectID slugifies name and appends -1, -2, ... until unused.
func uniqueProjectID(reg *models.ProjectRegistryFile, name string) string {
	base := storage.Slugify(name)
	id := base
	for n := 1; findProject(reg, id) != nil; n++ {
		id = fmt.Sprintf("%s-%d", base, n)
	}
	return id
}
