// Package mcp provides an MCP (Model Context Protocol) server that exposes
// the board as MCP tools for AI coding assistants.
package mcp

import (
	"context"
	"fmt"
	"strconv"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/valter-silva-au/mdboard/internal/core"
	"github.com/valter-silva-au/mdboard/internal/observability"
	"github.com/valter-silva-au/mdboard/pkg/models"
)

// Server wraps the board and exposes it as MCP tools.
type Server struct {
	server   *gomcp.Server
	board    core.Board
	activity observability.ActivityCalculator
}

// NewServer creates a new MCP server backed by board. activity may be nil if
// the event log is unavailable.
func NewServer(board core.Board, activity observability.ActivityCalculator, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		board:    board,
		activity: activity,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "mdboard", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run starts the MCP server on stdio, blocking until the client disconnects
// or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type criterionIO struct {
	Text    string `json:"text"`
	Checked bool   `json:"checked"`
}

type taskOutput struct {
	ID                 string        `json:"id"`
	Filename           string        `json:"filename"`
	Status             string        `json:"status"`
	Title              string        `json:"title"`
	Epic               string        `json:"epic,omitempty"`
	Tags               []string      `json:"tags"`
	Description        string        `json:"description,omitempty"`
	AcceptanceCriteria []criterionIO `json:"acceptance_criteria"`
	Notes              string        `json:"notes,omitempty"`
	Completed          string        `json:"completed,omitempty"`
}

type taskRef struct {
	Status   string `json:"status" jsonschema:"the column the task is in (ideation, backlog, planning, implementing, uat, done)"`
	Filename string `json:"filename" jsonschema:"the task file name, e.g. write-docs.md"`
}

type listTasksInput struct {
	Status string `json:"status,omitempty" jsonschema:"only return tasks in this column"`
}

type listTasksOutput struct {
	Tasks []taskOutput `json:"tasks"`
	Count int          `json:"count"`
}

type createTaskInput struct {
	Title              string        `json:"title" jsonschema:"the task title"`
	Status             string        `json:"status,omitempty" jsonschema:"the column to create the task in. Defaults to backlog."`
	Epic               string        `json:"epic,omitempty"`
	Tags               []string      `json:"tags,omitempty" jsonschema:"any of new-functionality, feature-enhancement, bug, refactor, devops"`
	Description        string        `json:"description,omitempty"`
	AcceptanceCriteria []criterionIO `json:"acceptance_criteria,omitempty"`
	Notes              string        `json:"notes,omitempty"`
}

type updateTaskInput struct {
	Status             string         `json:"status" jsonschema:"the column the task is in now"`
	Filename           string         `json:"filename" jsonschema:"the task file name"`
	NewStatus          *string        `json:"new_status,omitempty" jsonschema:"move the task to this column before applying the other fields"`
	Title              *string        `json:"title,omitempty"`
	Epic               *string        `json:"epic,omitempty"`
	Tags               *[]string      `json:"tags,omitempty"`
	Description        *string        `json:"description,omitempty"`
	AcceptanceCriteria *[]criterionIO `json:"acceptance_criteria,omitempty"`
	Notes              *string        `json:"notes,omitempty"`
}

type moveTaskInput struct {
	FromStatus string `json:"from_status"`
	Filename   string `json:"filename"`
	ToStatus   string `json:"to_status"`
	Position   *int   `json:"position,omitempty" jsonschema:"zero-based index in the destination column. Appends when omitted."`
}

type reorderTasksInput struct {
	Status     string   `json:"status"`
	OrderedIDs []string `json:"ordered_ids" jsonschema:"task IDs in the desired display order"`
}

type messageOutput struct {
	Message string `json:"message"`
}

type notesInput struct {
	Content string `json:"content"`
}

type notesOutput struct {
	Content string `json:"content"`
}

type emptyInput struct{}

type getActivityInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window (e.g. 7d, 30d, 24h). Defaults to 7d."`
}

type activityOutput struct {
	TasksCreated   int            `json:"tasks_created"`
	TasksUpdated   int            `json:"tasks_updated"`
	TasksMoved     int            `json:"tasks_moved"`
	TasksCompleted int            `json:"tasks_completed"`
	TasksDeleted   int            `json:"tasks_deleted"`
	Reorders       int            `json:"reorders"`
	MovesInto      map[string]int `json:"moves_into"`
	EventCount     int            `json:"event_count"`
	OldestEvent    string         `json:"oldest_event,omitempty"`
	NewestEvent    string         `json:"newest_event,omitempty"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_tasks",
		Description: "List tasks in board order, optionally restricted to one column.",
	}, s.handleListTasks)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_task",
		Description: "Get a task by its column and file name.",
	}, s.handleGetTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "create_task",
		Description: "Create a task. It is appended to the end of its column.",
	}, s.handleCreateTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "update_task",
		Description: "Update task fields. Setting new_status moves the task to the end of that column first.",
	}, s.handleUpdateTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "move_task",
		Description: "Move a task to another column, or to a new position within its column.",
	}, s.handleMoveTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "reorder_tasks",
		Description: "Set the display order of a column from a list of task IDs.",
	}, s.handleReorderTasks)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "delete_task",
		Description: "Delete a task file.",
	}, s.handleDeleteTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_notes",
		Description: "Read the free-form project notes.",
	}, s.handleGetNotes)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "update_notes",
		Description: "Replace the free-form project notes.",
	}, s.handleUpdateNotes)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_activity",
		Description: "Summarise recent board activity from the event log: tasks created, moved, completed and deleted.",
	}, s.handleGetActivity)
}

// --- Tool handlers ---

func (s *Server) handleListTasks(_ context.Context, _ *gomcp.CallToolRequest, input listTasksInput) (*gomcp.CallToolResult, listTasksOutput, error) {
	if input.Status != "" && !models.Status(input.Status).Valid() {
		return errorResult(fmt.Sprintf("invalid status %q", input.Status)), listTasksOutput{}, nil
	}

	tasks, err := s.board.ListTasks()
	if err != nil {
		return errorResult(fmt.Sprintf("listing tasks: %s", err)), listTasksOutput{}, nil
	}

	out := listTasksOutput{Tasks: []taskOutput{}}
	for i := range tasks {
		if input.Status != "" && string(tasks[i].Status) != input.Status {
			continue
		}
		out.Tasks = append(out.Tasks, taskToOutput(&tasks[i]))
	}
	out.Count = len(out.Tasks)
	return nil, out, nil
}

func (s *Server) handleGetTask(_ context.Context, _ *gomcp.CallToolRequest, input taskRef) (*gomcp.CallToolResult, taskOutput, error) {
	if input.Status == "" || input.Filename == "" {
		return errorResult("status and filename are required"), taskOutput{}, nil
	}

	task, err := s.board.GetTask(models.Status(input.Status), input.Filename)
	if err != nil {
		return errorResult(fmt.Sprintf("getting task %s/%s: %s", input.Status, input.Filename, err)), taskOutput{}, nil
	}
	return nil, taskToOutput(task), nil
}

func (s *Server) handleCreateTask(_ context.Context, _ *gomcp.CallToolRequest, input createTaskInput) (*gomcp.CallToolResult, taskOutput, error) {
	status := models.StatusBacklog
	if input.Status != "" {
		status = models.Status(input.Status)
	}

	task, err := s.board.CreateTask(models.TaskDraft{
		Title:              input.Title,
		Status:             status,
		Epic:               input.Epic,
		Tags:               toTags(input.Tags),
		Description:        input.Description,
		AcceptanceCriteria: toCriteria(input.AcceptanceCriteria),
		Notes:              input.Notes,
	})
	if err != nil {
		return errorResult(fmt.Sprintf("creating task: %s", err)), taskOutput{}, nil
	}
	return nil, taskToOutput(task), nil
}

func (s *Server) handleUpdateTask(_ context.Context, _ *gomcp.CallToolRequest, input updateTaskInput) (*gomcp.CallToolResult, taskOutput, error) {
	if input.Status == "" || input.Filename == "" {
		return errorResult("status and filename are required"), taskOutput{}, nil
	}

	patch := models.TaskPatch{
		Title:       input.Title,
		Epic:        input.Epic,
		Description: input.Description,
		Notes:       input.Notes,
	}
	if input.NewStatus != nil {
		to := models.Status(*input.NewStatus)
		patch.Status = &to
	}
	if input.Tags != nil {
		tags := toTags(*input.Tags)
		patch.Tags = &tags
	}
	if input.AcceptanceCriteria != nil {
		criteria := toCriteria(*input.AcceptanceCriteria)
		patch.AcceptanceCriteria = &criteria
	}

	task, err := s.board.UpdateTask(models.Status(input.Status), input.Filename, patch)
	if err != nil {
		return errorResult(fmt.Sprintf("updating task %s/%s: %s", input.Status, input.Filename, err)), taskOutput{}, nil
	}
	return nil, taskToOutput(task), nil
}

func (s *Server) handleMoveTask(_ context.Context, _ *gomcp.CallToolRequest, input moveTaskInput) (*gomcp.CallToolResult, taskOutput, error) {
	if input.FromStatus == "" || input.Filename == "" || input.ToStatus == "" {
		return errorResult("from_status, filename and to_status are required"), taskOutput{}, nil
	}

	task, err := s.board.MoveTask(models.Status(input.FromStatus), input.Filename, models.Status(input.ToStatus), input.Position)
	if err != nil {
		return errorResult(fmt.Sprintf("moving task %s/%s: %s", input.FromStatus, input.Filename, err)), taskOutput{}, nil
	}
	return nil, taskToOutput(task), nil
}

func (s *Server) handleReorderTasks(_ context.Context, _ *gomcp.CallToolRequest, input reorderTasksInput) (*gomcp.CallToolResult, listTasksOutput, error) {
	if input.Status == "" {
		return errorResult("status is required"), listTasksOutput{}, nil
	}

	tasks, err := s.board.ReorderTasks(models.Status(input.Status), input.OrderedIDs)
	if err != nil {
		return errorResult(fmt.Sprintf("reordering %s: %s", input.Status, err)), listTasksOutput{}, nil
	}

	out := listTasksOutput{Tasks: make([]taskOutput, len(tasks)), Count: len(tasks)}
	for i := range tasks {
		out.Tasks[i] = taskToOutput(&tasks[i])
	}
	return nil, out, nil
}

func (s *Server) handleDeleteTask(_ context.Context, _ *gomcp.CallToolRequest, input taskRef) (*gomcp.CallToolResult, messageOutput, error) {
	if input.Status == "" || input.Filename == "" {
		return errorResult("status and filename are required"), messageOutput{}, nil
	}

	if err := s.board.DeleteTask(models.Status(input.Status), input.Filename); err != nil {
		return errorResult(fmt.Sprintf("deleting task %s/%s: %s", input.Status, input.Filename, err)), messageOutput{}, nil
	}
	return nil, messageOutput{Message: fmt.Sprintf("deleted %s/%s", input.Status, input.Filename)}, nil
}

func (s *Server) handleGetNotes(_ context.Context, _ *gomcp.CallToolRequest, _ emptyInput) (*gomcp.CallToolResult, notesOutput, error) {
	notes, err := s.board.GetNotes()
	if err != nil {
		return errorResult(fmt.Sprintf("reading notes: %s", err)), notesOutput{}, nil
	}
	return nil, notesOutput{Content: notes}, nil
}

func (s *Server) handleUpdateNotes(_ context.Context, _ *gomcp.CallToolRequest, input notesInput) (*gomcp.CallToolResult, notesOutput, error) {
	if err := s.board.UpdateNotes(input.Content); err != nil {
		return errorResult(fmt.Sprintf("writing notes: %s", err)), notesOutput{}, nil
	}
	return nil, notesOutput(input), nil
}

func (s *Server) handleGetActivity(_ context.Context, _ *gomcp.CallToolRequest, input getActivityInput) (*gomcp.CallToolResult, activityOutput, error) {
	if s.activity == nil {
		return errorResult("activity is not available (event log may be disabled)"), emptyActivityOutput(), nil
	}

	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "7d"
	}

	sinceTime, err := parseSince(sinceStr)
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), emptyActivityOutput(), nil
	}

	activity, err := s.activity.Calculate(sinceTime)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating activity: %s", err)), emptyActivityOutput(), nil
	}

	out := activityOutput{
		TasksCreated:   activity.TasksCreated,
		TasksUpdated:   activity.TasksUpdated,
		TasksMoved:     activity.TasksMoved,
		TasksCompleted: activity.TasksCompleted,
		TasksDeleted:   activity.TasksDeleted,
		Reorders:       activity.Reorders,
		MovesInto:      activity.MovesInto,
		EventCount:     activity.EventCount,
	}
	if out.MovesInto == nil {
		out.MovesInto = make(map[string]int)
	}
	if activity.OldestEvent != nil {
		out.OldestEvent = activity.OldestEvent.Format(time.RFC3339)
	}
	if activity.NewestEvent != nil {
		out.NewestEvent = activity.NewestEvent.Format(time.RFC3339)
	}
	return nil, out, nil
}

// --- Helpers ---

func taskToOutput(t *models.Task) taskOutput {
	out := taskOutput{
		ID:                 t.ID,
		Filename:           t.Filename,
		Status:             string(t.Status),
		Title:              t.Title,
		Epic:               t.Epic,
		Tags:               make([]string, len(t.Tags)),
		Description:        t.Description,
		AcceptanceCriteria: make([]criterionIO, len(t.AcceptanceCriteria)),
		Notes:              t.Notes,
	}
	for i, tag := range t.Tags {
		out.Tags[i] = string(tag)
	}
	for i, c := range t.AcceptanceCriteria {
		out.AcceptanceCriteria[i] = criterionIO{Text: c.Text, Checked: c.Checked}
	}
	if t.Completed != nil {
		out.Completed = t.Completed.UTC().Format(time.RFC3339)
	}
	return out
}

func toTags(raw []string) []models.Tag {
	tags := make([]models.Tag, len(raw))
	for i, tag := range raw {
		tags[i] = models.Tag(tag)
	}
	return tags
}

func toCriteria(raw []criterionIO) []models.AcceptanceCriterion {
	criteria := make([]models.AcceptanceCriterion, len(raw))
	for i, c := range raw {
		criteria[i] = models.AcceptanceCriterion{Text: c.Text, Checked: c.Checked}
	}
	return criteria
}

func emptyActivityOutput() activityOutput {
	return activityOutput{MovesInto: make(map[string]int)}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// parseSince parses a human-friendly duration string like "7d", "30d", or "24h"
// into the corresponding time in the past.
func parseSince(s string) (time.Time, error) {
	now := time.Now().UTC()

	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}

	suffix := s[len(s)-1]
	num, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || num < 0 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}

	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -num), nil
	case 'h':
		return now.Add(-time.Duration(num) * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration suffix %q (use d or h)", string(suffix))
	}
}
