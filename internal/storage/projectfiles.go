package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
)

const (
	projectConfigFileName = "project.json"
	notesFileName         = "notes.md"

	// DefaultBoardName is reported when a project has no readable config.
	DefaultBoardName = "Task Manager"
)

// ProjectConfig is the free-form project.json document kept at the task root.
type ProjectConfig map[string]any

// BoardName returns the configured board name or DefaultBoardName.
func (c ProjectConfig) BoardName() string {
	if name, ok := c["boardName"].(string); ok && name != "" {
		return name
	}
	return DefaultBoardName
}

// ProjectFiles reads and writes the per-project config and notes files.
type ProjectFiles interface {
	GetConfig() (ProjectConfig, error)
	UpdateConfig(updates ProjectConfig) (ProjectConfig, error)
	GetNotes() (string, error)
	UpdateNotes(text string) error
}

type fileProjectFiles struct {
	root RootProvider
}

// NewProjectFiles returns ProjectFiles rooted at the active task root.
func NewProjectFiles(root RootProvider) ProjectFiles {
	return &fileProjectFiles{root: root}
}

func (p *fileProjectFiles) GetConfig() (ProjectConfig, error) {
	dir, err := p.root.TasksDir()
	if err != nil {
		return nil, fmt.Errorf("resolving tasks directory: %w", err)
	}
	return ReadProjectConfig(dir), nil
}

func (p *fileProjectFiles) UpdateConfig(updates ProjectConfig) (ProjectConfig, error) {
	dir, err := p.root.TasksDir()
	if err != nil {
		return nil, fmt.Errorf("resolving tasks directory: %w", err)
	}
	return MergeProjectConfig(dir, updates)
}

func (p *fileProjectFiles) GetNotes() (string, error) {
	dir, err := p.root.TasksDir()
	if err != nil {
		return "", fmt.Errorf("resolving tasks directory: %w", err)
	}
	path := filepath.Join(dir, notesFileName)
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is inside the managed tasks tree
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", &IOError{Op: "reading notes", Path: path, Err: err}
	}
	return string(data), nil
}

func (p *fileProjectFiles) UpdateNotes(text string) error {
	dir, err := p.root.TasksDir()
	if err != nil {
		return fmt.Errorf("resolving tasks directory: %w", err)
	}
	path := filepath.Join(dir, notesFileName)
	if err := atomic.WriteFile(path, strings.NewReader(text)); err != nil {
		return wrapFSError("writing notes", path, err)
	}
	return nil
}

// ReadProjectConfig loads project.json from tasksDir. A missing or malformed
// file yields the default config rather than an error.
func ReadProjectConfig(tasksDir string) ProjectConfig {
	path := filepath.Join(tasksDir, projectConfigFileName)
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is inside the managed tasks tree
	if err != nil {
		return ProjectConfig{"boardName": DefaultBoardName}
	}
	cfg := ProjectConfig{}
	if err := json.Unmarshal(data, &cfg); err != nil || cfg == nil {
		return ProjectConfig{"boardName": DefaultBoardName}
	}
	return cfg
}

// MergeProjectConfig copies the top-level keys of updates over the stored
// config and writes the result back as indented JSON. A nested value in
// updates replaces the stored value whole.
func MergeProjectConfig(tasksDir string, updates ProjectConfig) (ProjectConfig, error) {
	cfg := ReadProjectConfig(tasksDir)
	maps.Copy(cfg, updates)

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding project config: %w", err)
	}

	path := filepath.Join(tasksDir, projectConfigFileName)
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return nil, wrapFSError("writing project config", path, err)
	}
	return cfg, nil
}
