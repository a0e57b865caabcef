package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/valter-silva-au/mdboard/pkg/models"
)

// MigrateIfNeeded upgrades a tree that predates order indices. A tree counts
// as migrated once any status directory has an order file, so the check is
// cheap and a second call is a no-op. It reports whether a migration ran.
//
// Each status directory is processed in filename order, which preserves the
// order implied by legacy "NN-" filename prefixes: files without an Id
// section get one synthesised from their modification time, prefixed files
// are renamed to their bare slug, and the resulting IDs become the
// directory's order index.
func (s *fileTaskStore) MigrateIfNeeded() (bool, error) {
	root, err := s.tasksDir()
	if err != nil {
		return false, err
	}

	for _, status := range models.Statuses {
		ok, err := s.order.Exists(filepath.Join(root, string(status)))
		if err != nil {
			return false, err
		}
		if ok {
			return false, nil
		}
	}

	used, err := collectIDs(root)
	if err != nil {
		return false, err
	}

	s.logger.Info("migrating task tree", "root", root)
	for _, status := range models.Statuses {
		if err := s.migrateDir(filepath.Join(root, string(status)), used); err != nil {
			return false, fmt.Errorf("migrating %s: %w", status, err)
		}
	}
	return true, nil
}

func (s *fileTaskStore) migrateDir(dir string, used map[string]bool) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return &IOError{Op: "creating status directory", Path: dir, Err: err}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return wrapFSError("listing tasks", dir, err)
	}
	siblings := make(map[string]bool, len(entries))
	for _, entry := range entries {
		siblings[entry.Name()] = true
	}

	order := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !isTaskFile(name) {
			continue
		}

		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path) //nolint:gosec // G304: path is inside the managed tasks tree
		if err != nil {
			return wrapFSError("reading task", path, err)
		}
		content := string(data)

		id := extractID(content)
		if id != "" {
			order = append(order, id)
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return wrapFSError("reading task metadata", path, err)
		}
		id = idFromTime(info.ModTime(), used)
		content = injectID(content, id)

		target := uniqueFilename(stripPriorityPrefix(name), func(candidate string) bool {
			return candidate != name && siblings[candidate]
		})
		targetPath := filepath.Join(dir, target)
		if err := atomic.WriteFile(targetPath, strings.NewReader(content)); err != nil {
			return wrapFSError("writing migrated task", targetPath, err)
		}
		if target != name {
			if err := os.Remove(path); err != nil {
				return wrapFSError("removing legacy task file", path, err)
			}
			delete(siblings, name)
			siblings[target] = true
			s.logger.Debug("renamed legacy task", "from", name, "to", target, "id", id)
		}
		order = append(order, id)
	}

	return s.order.Write(dir, order)
}

// collectIDs gathers every ID already present in the tree so synthesised IDs
// never collide with them. Missing status directories are skipped.
func collectIDs(root string) (map[string]bool, error) {
	used := make(map[string]bool)
	for _, status := range models.Statuses {
		dir := filepath.Join(root, string(status))
		names, err := taskFileNames(dir)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		for _, name := range names {
			path := filepath.Join(dir, name)
			data, err := os.ReadFile(path) //nolint:gosec // G304: path is inside the managed tasks tree
			if err != nil {
				return nil, wrapFSError("reading task", path, err)
			}
			if id := extractID(string(data)); id != "" {
				used[id] = true
			}
		}
	}
	return used, nil
}
