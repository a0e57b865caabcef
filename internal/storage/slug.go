package storage

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

const (
	taskExt       = ".md"
	maxSlugLength = 60
	fallbackSlug  = "task"
)

var (
	nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)
	priorityPrefix  = regexp.MustCompile(`^\d+-`)
)

// Slugify lowercases title, collapses runs of non-alphanumeric characters
// into a single hyphen, trims hyphens at both ends and truncates the result.
func Slugify(title string) string {
	slug := nonAlphanumeric.ReplaceAllString(strings.ToLower(title), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	if slug == "" {
		return fallbackSlug
	}
	return slug
}

// stripPriorityPrefix removes a legacy "NN-" ordering prefix and the .md
// extension from a filename, leaving the bare slug.
func stripPriorityPrefix(filename string) string {
	stem := strings.TrimSuffix(filename, taskExt)
	bare := priorityPrefix.ReplaceAllString(stem, "")
	if bare == "" {
		return stem
	}
	return bare
}

// uniqueFilename returns slug.md, or slug-2.md, slug-3.md, ... whichever is
// the first name not taken. taken reports whether a name is in use.
func uniqueFilename(slug string, taken func(name string) bool) string {
	candidate := slug + taskExt
	for n := 2; taken(candidate); n++ {
		candidate = slug + "-" + strconv.Itoa(n) + taskExt
	}
	return candidate
}

// existsIn returns a predicate reporting whether a name exists inside dir.
func existsIn(dir string) func(string) bool {
	return func(name string) bool {
		_, err := os.Lstat(filepath.Join(dir, name))
		return err == nil
	}
}

// isTaskFile reports whether a directory entry name is a task file. The order
// index and any underscore-prefixed bookkeeping file are excluded, as are
// hidden files.
func isTaskFile(name string) bool {
	if !strings.HasSuffix(name, taskExt) {
		return false
	}
	if name == orderFileName || strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") {
		return false
	}
	return true
}
