package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/valter-silva-au/mdboard/pkg/models"
)

// Section names, lower-cased as they are matched on parse.
const (
	sectionID          = "id"
	sectionStatus      = "status"
	sectionEpic        = "epic"
	sectionTags        = "tags"
	sectionDescription = "description"
	sectionCriteria    = "acceptance criteria"
	sectionNotes       = "notes"
	sectionCompleted   = "completed"
)

// completedLayout renders timestamps the way browsers emit ISO-8601.
const completedLayout = "2006-01-02T15:04:05.000Z07:00"

var completedParseLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTask decodes the markdown representation of a task. It never fails:
// missing sections yield empty values and unknown sections are ignored. The
// status always comes from the directory the file was found in. A file
// without an Id section is a legacy task whose ID falls back to
// "status/filename".
func ParseTask(content string, status models.Status, filename string) models.Task {
	task := models.Task{
		Status:             status,
		Filename:           filename,
		Tags:               []models.Tag{},
		AcceptanceCriteria: []models.AcceptanceCriterion{},
	}

	var (
		section     string
		description []string
		notes       []string
		id          string
		completed   string
	)

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSuffix(line, "\r")

		if strings.HasPrefix(line, "# ") {
			task.Title = strings.TrimSpace(line[2:])
			continue
		}
		if strings.HasPrefix(line, "## ") {
			section = strings.ToLower(strings.TrimSpace(line[3:]))
			continue
		}

		switch section {
		case sectionID:
			captureFirst(&id, line)
		case sectionEpic:
			captureFirst(&task.Epic, line)
		case sectionCompleted:
			captureFirst(&completed, line)
		case sectionTags:
			if strings.HasPrefix(line, "- ") {
				if tag := strings.TrimSpace(line[2:]); tag != "" {
					task.Tags = append(task.Tags, models.Tag(tag))
				}
			}
		case sectionCriteria:
			if criterion, ok := parseCriterion(line); ok {
				task.AcceptanceCriteria = append(task.AcceptanceCriteria, criterion)
			}
		case sectionDescription:
			description = append(description, line)
		case sectionNotes:
			notes = append(notes, line)
		}
	}

	task.Description = strings.TrimSpace(strings.Join(description, "\n"))
	task.Notes = strings.TrimSpace(strings.Join(notes, "\n"))
	task.Completed = parseCompleted(completed)

	if id == "" {
		task.ID = legacyID(status, filename)
		task.Legacy = true
	} else {
		task.ID = id
	}
	return task
}

// SerializeTask encodes a task as markdown. Title, Status, Tags, Description,
// Acceptance Criteria and Notes headers are always written; Id, Epic and
// Completed only when they carry a value.
func SerializeTask(task models.Task) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", task.Title)
	if task.ID != "" && !task.Legacy {
		fmt.Fprintf(&b, "## Id\n%s\n\n", task.ID)
	}
	fmt.Fprintf(&b, "## Status\n%s\n\n", task.Status)
	if task.Epic != "" {
		fmt.Fprintf(&b, "## Epic\n%s\n\n", task.Epic)
	}

	b.WriteString("## Tags\n")
	for _, tag := range task.Tags {
		fmt.Fprintf(&b, "- %s\n", tag)
	}

	fmt.Fprintf(&b, "\n## Description\n%s\n\n", task.Description)

	b.WriteString("## Acceptance Criteria\n")
	for _, c := range task.AcceptanceCriteria {
		box := "[ ]"
		if c.Checked {
			box = "[x]"
		}
		fmt.Fprintf(&b, "- %s %s\n", box, c.Text)
	}

	fmt.Fprintf(&b, "\n## Notes\n%s\n", task.Notes)

	if task.Completed != nil {
		fmt.Fprintf(&b, "\n## Completed\n%s\n", formatCompleted(*task.Completed))
	}
	return b.String()
}

// extractID returns the value of the Id section, or "" if there is none.
func extractID(content string) string {
	var section, id string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.HasPrefix(line, "## ") {
			section = strings.ToLower(strings.TrimSpace(line[3:]))
			continue
		}
		if section == sectionID {
			captureFirst(&id, line)
		}
	}
	return id
}

// injectID inserts an Id section directly below the title line, or at the
// top of the document when there is no title.
func injectID(content, id string) string {
	block := []string{"## Id", id, ""}
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if !strings.HasPrefix(line, "# ") {
			continue
		}
		rest := lines[i+1:]
		out := make([]string, 0, len(lines)+len(block)+1)
		out = append(out, lines[:i+1]...)
		out = append(out, "")
		out = append(out, block...)
		if len(rest) > 0 && strings.TrimSpace(rest[0]) == "" {
			rest = rest[1:]
		}
		out = append(out, rest...)
		return strings.Join(out, "\n")
	}
	return strings.Join(block, "\n") + "\n" + content
}

func legacyID(status models.Status, filename string) string {
	return string(status) + "/" + filename
}

func captureFirst(dst *string, line string) {
	if *dst != "" {
		return
	}
	*dst = strings.TrimSpace(line)
}

// parseCriterion recognises "- [ ]", "- [x]" and "- [X]" lines. Anything else
// is not a criterion.
func parseCriterion(line string) (models.AcceptanceCriterion, bool) {
	if len(line) < 5 || !strings.HasPrefix(line, "- [") || line[4] != ']' {
		return models.AcceptanceCriterion{}, false
	}
	mark := line[3]
	if mark != ' ' && mark != 'x' && mark != 'X' {
		return models.AcceptanceCriterion{}, false
	}
	return models.AcceptanceCriterion{
		Text:    strings.TrimSpace(line[5:]),
		Checked: mark != ' ',
	}, true
}

func parseCompleted(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	for _, layout := range completedParseLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return &ts
		}
	}
	return nil
}

func formatCompleted(ts time.Time) string {
	return ts.UTC().Format(completedLayout)
}
