package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// orderFileName is the reserved name of the per-status order index.
const orderFileName = "_order.json"

// orderFile is the on-disk layout of the order index.
type orderFile struct {
	Order []string `json:"order"`
}

// OrderIndex persists the display order of task IDs for one status directory.
type OrderIndex interface {
	Read(dir string) ([]string, error)
	Write(dir string, ids []string) error
	Exists(dir string) (bool, error)
}

type fileOrderIndex struct{}

// NewOrderIndex returns an OrderIndex that stores the order as JSON in a
// reserved file inside each status directory.
func NewOrderIndex() OrderIndex {
	return fileOrderIndex{}
}

func orderPath(dir string) string {
	return filepath.Join(dir, orderFileName)
}

// Read returns the stored order. A missing order file is not an error and
// yields an empty sequence.
func (fileOrderIndex) Read(dir string) ([]string, error) {
	path := orderPath(dir)
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is inside the managed tasks tree
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, &IOError{Op: "reading order index", Path: path, Err: err}
	}

	var of orderFile
	if err := json.Unmarshal(data, &of); err != nil {
		return nil, &IOError{Op: "parsing order index", Path: path, Err: err}
	}
	if of.Order == nil {
		return []string{}, nil
	}
	return of.Order, nil
}

// Write replaces the order file atomically: the content goes to a temporary
// file in the same directory which is then renamed over the target.
func (fileOrderIndex) Write(dir string, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.MarshalIndent(orderFile{Order: ids}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding order index: %w", err)
	}
	data = append(data, '\n')

	path := orderPath(dir)
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return &IOError{Op: "writing order index", Path: path, Err: err}
	}
	return nil
}

// Exists reports whether dir already has an order file.
func (fileOrderIndex) Exists(dir string) (bool, error) {
	path := orderPath(dir)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, &IOError{Op: "checking order index", Path: path, Err: err}
	}
	return true, nil
}

// removeID returns ids without any occurrence of id.
func removeID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}

// insertID places id at position, clamped to [0, len(ids)]. A nil position
// appends.
func insertID(ids []string, id string, position *int) []string {
	at := len(ids)
	if position != nil {
		at = *position
		if at < 0 {
			at = 0
		}
		if at > len(ids) {
			at = len(ids)
		}
	}
	out := make([]string, 0, len(ids)+1)
	out = append(out, ids[:at]...)
	out = append(out, id)
	out = append(out, ids[at:]...)
	return out
}
