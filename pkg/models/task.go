package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// Status is one stage in the fixed lifecycle a task passes through. The
// status also names the directory a task file lives in.
type Status string

const (
	StatusIdeation     Status = "ideation"
	StatusBacklog      Status = "backlog"
	StatusPlanning     Status = "planning"
	StatusImplementing Status = "implementing"
	StatusUAT          Status = "uat"
	StatusDone         Status = "done"
)

// Statuses lists every status in board column order.
var Statuses = []Status{
	StatusIdeation,
	StatusBacklog,
	StatusPlanning,
	StatusImplementing,
	StatusUAT,
	StatusDone,
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Tag classifies a task. Tags are drawn from a fixed vocabulary.
type Tag string

const (
	TagNewFunctionality   Tag = "new-functionality"
	TagFeatureEnhancement Tag = "feature-enhancement"
	TagBug                Tag = "bug"
	TagRefactor           Tag = "refactor"
	TagDevOps             Tag = "devops"
)

// Tags lists the tag vocabulary in display order.
var Tags = []Tag{
	TagNewFunctionality,
	TagFeatureEnhancement,
	TagBug,
	TagRefactor,
	TagDevOps,
}

// Valid reports whether t belongs to the tag vocabulary.
func (t Tag) Valid() bool {
	for _, known := range Tags {
		if t == known {
			return true
		}
	}
	return false
}

// AcceptanceCriterion is a single checklist item on a task.
type AcceptanceCriterion struct {
	Text    string `json:"text"`
	Checked bool   `json:"checked"`
}

// Task is a unit of work persisted as one markdown file inside the directory
// named after its status.
type Task struct {
	ID                 string                `json:"id"`
	Filename           string                `json:"filename"`
	Status             Status                `json:"status"`
	Title              string                `json:"title"`
	Epic               string                `json:"epic,omitempty"`
	Tags               []Tag                 `json:"tags"`
	Description        string                `json:"description"`
	AcceptanceCriteria []AcceptanceCriterion `json:"acceptanceCriteria"`
	Notes              string                `json:"notes"`
	Completed          *time.Time            `json:"completed,omitempty"`

	// Legacy is set when the file carries no stable ID and ID holds the
	// status/filename fallback instead.
	Legacy bool `json:"-"`
}

// TaskDraft carries the caller-supplied fields of a task being created.
type TaskDraft struct {
	Title              string                `json:"title"`
	Status             Status                `json:"status"`
	Epic               string                `json:"epic,omitempty"`
	Tags               []Tag                 `json:"tags"`
	Description        string                `json:"description"`
	AcceptanceCriteria []AcceptanceCriterion `json:"acceptanceCriteria"`
	Notes              string                `json:"notes"`
	Completed          *time.Time            `json:"completed,omitempty"`
}

// TaskPatch is a partial update. Nil fields are left untouched.
type TaskPatch struct {
	Title              *string                `json:"title,omitempty"`
	Status             *Status                `json:"status,omitempty"`
	Epic               *string                `json:"epic,omitempty"`
	Tags               *[]Tag                 `json:"tags,omitempty"`
	Description        *string                `json:"description,omitempty"`
	AcceptanceCriteria *[]AcceptanceCriterion `json:"acceptanceCriteria,omitempty"`
	Notes              *string                `json:"notes,omitempty"`
	Completed          OptionalTime           `json:"completed"`
}

// Apply merges the set fields of p over t.
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Epic != nil {
		t.Epic = *p.Epic
	}
	if p.Tags != nil {
		t.Tags = append([]Tag(nil), (*p.Tags)...)
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.AcceptanceCriteria != nil {
		t.AcceptanceCriteria = append([]AcceptanceCriterion(nil), (*p.AcceptanceCriteria)...)
	}
	if p.Notes != nil {
		t.Notes = *p.Notes
	}
	if p.Completed.Set {
		t.Completed = p.Completed.Value
	}
}

// OptionalTime distinguishes an absent JSON key from an explicit null.
// Set is true whenever the key was present; Value is nil for null.
type OptionalTime struct {
	Set   bool
	Value *time.Time
}

// SetTime returns an OptionalTime holding ts.
func SetTime(ts time.Time) OptionalTime {
	return OptionalTime{Set: true, Value: &ts}
}

// ClearTime returns an OptionalTime that clears the field.
func ClearTime() OptionalTime {
	return OptionalTime{Set: true}
}

// UnmarshalJSON implements json.Unmarshaler. It is only invoked when the key
// is present, which is what marks the value as set.
func (o *OptionalTime) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var ts time.Time
	if err := json.Unmarshal(data, &ts); err != nil {
		return err
	}
	o.Value = &ts
	return nil
}

// MarshalJSON implements json.Marshaler.
func (o OptionalTime) MarshalJSON() ([]byte, error) {
	if !o.Set || o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}
