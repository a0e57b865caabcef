package models

import (
	"path/filepath"
	"time"
)

// Project is a registered board: a directory containing a tasks/ folder.
type Project struct {
	ID           string    `yaml:"id" json:"id"`
	Name         string    `yaml:"name" json:"name"`
	Path         string    `yaml:"path" json:"path"`
	LastAccessed time.Time `yaml:"last_accessed" json:"lastAccessed"`
	// TasksPath overrides the default <path>/tasks task root.
	TasksPath string `yaml:"tasks_dir,omitempty" json:"tasksDir,omitempty"`
	BoardName string `yaml:"-" json:"boardName,omitempty"`
}

// TasksRoot returns the directory holding the project's status directories.
func (p Project) TasksRoot() string {
	if p.TasksPath != "" {
		return p.TasksPath
	}
	return filepath.Join(p.Path, "tasks")
}

// ProjectRegistryFile is the on-disk layout of projects.yaml.
type ProjectRegistryFile struct {
	Version        string    `yaml:"version"`
	CurrentProject string    `yaml:"current_project"`
	Projects       []Project `yaml:"projects"`
}

// PathValidation describes whether a project path holds a usable tasks
// directory.
type PathValidation struct {
	Valid     bool   `json:"valid"`
	Error     string `json:"error,omitempty"`
	CanCreate bool   `json:"canCreate,omitempty"`
	TasksDir  string `json:"tasksDir,omitempty"`
	Created   bool   `json:"created,omitempty"`
}
