package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/mdboard/internal/storage"
	"github.com/valter-silva-au/mdboard/pkg/models"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks (list, show, create, update, move, reorder, delete)",
	Long: `Task commands operate on the current project's board.

Tasks are addressed by column and file name, for example:
  mdboard task move backlog write-docs.md planning`,
}

var (
	taskListStatus string
	taskListJSON   bool
)

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks in board order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireBoard(); err != nil {
			return err
		}
		if taskListStatus != "" && !models.Status(taskListStatus).Valid() {
			return fmt.Errorf("invalid --status %q: must be one of %s", taskListStatus, statusNames())
		}

		tasks, err := Board.ListTasks()
		if err != nil {
			return fmt.Errorf("listing tasks: %w", err)
		}
		if taskListStatus != "" {
			filtered := tasks[:0]
			for _, t := range tasks {
				if string(t.Status) == taskListStatus {
					filtered = append(filtered, t)
				}
			}
			tasks = filtered
		}

		if taskListJSON {
			data, err := json.MarshalIndent(tasks, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting tasks as JSON: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		if len(tasks) == 0 {
			fmt.Println("No tasks found.")
			return nil
		}
		printTaskColumns(tasks)
		return nil
	},
}

// printTaskColumns prints tasks grouped under a heading per column, in
// column order.
func printTaskColumns(tasks []models.Task) {
	byStatus := make(map[models.Status][]models.Task)
	for _, t := range tasks {
		byStatus[t.Status] = append(byStatus[t.Status], t)
	}
	for _, status := range models.Statuses {
		column := byStatus[status]
		if len(column) == 0 {
			continue
		}
		fmt.Printf("%s (%d)\n", strings.ToUpper(string(status)), len(column))
		for _, t := range column {
			line := fmt.Sprintf("  %-32s %s", t.Filename, t.Title)
			if len(t.Tags) > 0 {
				line += fmt.Sprintf("  [%s]", joinTags(t.Tags))
			}
			fmt.Println(line)
		}
		fmt.Println()
	}
}

var taskShowCmd = &cobra.Command{
	Use:   "show <status> <filename>",
	Short: "Print a task as markdown",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireBoard(); err != nil {
			return err
		}
		task, err := Board.GetTask(models.Status(args[0]), args[1])
		if err != nil {
			return fmt.Errorf("getting task %s/%s: %w", args[0], args[1], err)
		}
		fmt.Print(storage.SerializeTask(*task))
		return nil
	},
}

var (
	taskCreateStatus    string
	taskUpdateStatus    string
	taskEpicFlag        string
	taskTagsFlag        []string
	taskDescriptionFlag string
	taskCriteriaFlag    []string
	taskNotesFlag       string
)

var taskCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a task at the end of a column",
	Long: `Create a task. The file name is derived from the title and made unique
within the column. Use --status to pick the column (default: backlog).

Acceptance criteria may be given with --criterion; prefix the text with
"[x] " to mark it as already met.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireBoard(); err != nil {
			return err
		}

		task, err := Board.CreateTask(models.TaskDraft{
			Title:              args[0],
			Status:             models.Status(taskCreateStatus),
			Epic:               taskEpicFlag,
			Tags:               toTags(taskTagsFlag),
			Description:        taskDescriptionFlag,
			AcceptanceCriteria: parseCriteria(taskCriteriaFlag),
			Notes:              taskNotesFlag,
		})
		if err != nil {
			return fmt.Errorf("creating task: %w", err)
		}

		fmt.Printf("Created task %s\n", task.ID)
		fmt.Printf("  Title:  %s\n", task.Title)
		fmt.Printf("  File:   %s/%s\n", task.Status, task.Filename)
		return nil
	},
}

var (
	taskUpdateTitle     string
	taskUpdateCompleted string
)

var taskUpdateCmd = &cobra.Command{
	Use:   "update <status> <filename>",
	Short: "Update task fields",
	Long: `Update the fields given by flags, leaving the rest untouched.

--status moves the task to the end of another column before the other fields
are applied. --completed takes an RFC 3339 timestamp, or "clear" to remove it.
--tag and --criterion replace the whole list.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireBoard(); err != nil {
			return err
		}

		patch, err := buildTaskPatch(cmd)
		if err != nil {
			return err
		}

		task, err := Board.UpdateTask(models.Status(args[0]), args[1], patch)
		if err != nil {
			return fmt.Errorf("updating task %s/%s: %w", args[0], args[1], err)
		}
		fmt.Printf("Updated task %s (%s/%s)\n", task.ID, task.Status, task.Filename)
		return nil
	},
}

// buildTaskPatch turns the flags that were explicitly set into a patch.
func buildTaskPatch(cmd *cobra.Command) (models.TaskPatch, error) {
	var patch models.TaskPatch
	flags := cmd.Flags()

	if flags.Changed("title") {
		patch.Title = &taskUpdateTitle
	}
	if flags.Changed("status") {
		status := models.Status(taskUpdateStatus)
		patch.Status = &status
	}
	if flags.Changed("epic") {
		patch.Epic = &taskEpicFlag
	}
	if flags.Changed("tag") {
		tags := toTags(taskTagsFlag)
		patch.Tags = &tags
	}
	if flags.Changed("description") {
		patch.Description = &taskDescriptionFlag
	}
	if flags.Changed("criterion") {
		criteria := parseCriteria(taskCriteriaFlag)
		patch.AcceptanceCriteria = &criteria
	}
	if flags.Changed("notes") {
		patch.Notes = &taskNotesFlag
	}
	if flags.Changed("completed") {
		if taskUpdateCompleted == "clear" {
			patch.Completed = models.ClearTime()
		} else {
			ts, err := time.Parse(time.RFC3339, taskUpdateCompleted)
			if err != nil {
				return models.TaskPatch{}, fmt.Errorf("invalid --completed %q: use RFC 3339 or \"clear\"", taskUpdateCompleted)
			}
			patch.Completed = models.SetTime(ts)
		}
	}
	return patch, nil
}

var taskMovePosition int

var taskMoveCmd = &cobra.Command{
	Use:   "move <from-status> <filename> <to-status>",
	Short: "Move a task to another column or position",
	Long: `Move a task. Without --position the task is appended to the destination
column; --position is a zero-based index. Moving within the same column only
changes the task's position.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireBoard(); err != nil {
			return err
		}

		var position *int
		if cmd.Flags().Changed("position") {
			position = &taskMovePosition
		}

		task, err := Board.MoveTask(models.Status(args[0]), args[1], models.Status(args[2]), position)
		if err != nil {
			return fmt.Errorf("moving task %s/%s: %w", args[0], args[1], err)
		}
		fmt.Printf("Moved task %s to %s\n", task.ID, task.Status)
		return nil
	},
}

var taskReorderCmd = &cobra.Command{
	Use:   "reorder <status> <task-id>...",
	Short: "Set the order of a column",
	Long: `Set the display order of a column to the given task IDs. Tasks in the
column that are not listed keep appearing after the listed ones.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireBoard(); err != nil {
			return err
		}

		status := models.Status(args[0])
		tasks, err := Board.ReorderTasks(status, args[1:])
		if err != nil {
			return fmt.Errorf("reordering %s: %w", status, err)
		}

		i := 0
		for _, t := range tasks {
			if t.Status != status {
				continue
			}
			i++
			fmt.Printf("  %d. %s (%s)\n", i, t.Title, t.ID)
		}
		return nil
	},
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete <status> <filename>",
	Short: "Delete a task file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireBoard(); err != nil {
			return err
		}
		if err := Board.DeleteTask(models.Status(args[0]), args[1]); err != nil {
			return fmt.Errorf("deleting task %s/%s: %w", args[0], args[1], err)
		}
		fmt.Printf("Deleted %s/%s\n", args[0], args[1])
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Convert a legacy board to stable IDs and order indexes",
	Long: `Migrate a board whose columns have no order index yet. Every task gets a
stable ID, numeric priority prefixes are stripped from file names, and the
old prefix order is recorded in each column's order index.

A board that already has an order index in any column is left untouched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireBoard(); err != nil {
			return err
		}
		migrated, err := Board.Migrate()
		if err != nil {
			return err
		}
		if migrated {
			fmt.Println("Board migrated.")
		} else {
			fmt.Println("Board already up to date.")
		}
		return nil
	},
}

func toTags(raw []string) []models.Tag {
	tags := make([]models.Tag, 0, len(raw))
	for _, tag := range raw {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, models.Tag(tag))
		}
	}
	return tags
}

func joinTags(tags []models.Tag) string {
	parts := make([]string, len(tags))
	for i, tag := range tags {
		parts[i] = string(tag)
	}
	return strings.Join(parts, ", ")
}

// parseCriteria reads criteria flags. A leading "[x] " marks a criterion as
// checked.
func parseCriteria(raw []string) []models.AcceptanceCriterion {
	criteria := make([]models.AcceptanceCriterion, 0, len(raw))
	for _, text := range raw {
		checked := false
		lower := strings.ToLower(text)
		if strings.HasPrefix(lower, "[x] ") {
			checked = true
			text = text[4:]
		} else if strings.HasPrefix(text, "[ ] ") {
			text = text[4:]
		}
		criteria = append(criteria, models.AcceptanceCriterion{Text: strings.TrimSpace(text), Checked: checked})
	}
	return criteria
}

func statusNames() string {
	names := make([]string, len(models.Statuses))
	for i, s := range models.Statuses {
		names[i] = strconv.Quote(string(s))
	}
	return strings.Join(names, ", ")
}

func init() {
	taskListCmd.Flags().StringVar(&taskListStatus, "status", "", "Only list tasks in this column")
	taskListCmd.Flags().BoolVar(&taskListJSON, "json", false, "Output tasks as JSON")

	for _, c := range []*cobra.Command{taskCreateCmd, taskUpdateCmd} {
		c.Flags().StringVar(&taskEpicFlag, "epic", "", "Epic the task belongs to")
		c.Flags().StringSliceVar(&taskTagsFlag, "tag", nil, "Tag (new-functionality, feature-enhancement, bug, refactor, devops); repeatable")
		c.Flags().StringVar(&taskDescriptionFlag, "description", "", "Task description")
		c.Flags().StringArrayVar(&taskCriteriaFlag, "criterion", nil, "Acceptance criterion; repeatable")
		c.Flags().StringVar(&taskNotesFlag, "notes", "", "Task notes")
	}
	taskCreateCmd.Flags().StringVar(&taskCreateStatus, "status", string(models.StatusBacklog), "Column to create the task in")
	taskUpdateCmd.Flags().StringVar(&taskUpdateStatus, "status", "", "Move the task to this column first")
	taskUpdateCmd.Flags().StringVar(&taskUpdateTitle, "title", "", "New title")
	taskUpdateCmd.Flags().StringVar(&taskUpdateCompleted, "completed", "", `Completion time (RFC 3339) or "clear"`)

	taskMoveCmd.Flags().IntVar(&taskMovePosition, "position", 0, "Zero-based position in the destination column")

	taskCmd.AddCommand(taskListCmd, taskShowCmd, taskCreateCmd, taskUpdateCmd, taskMoveCmd, taskReorderCmd, taskDeleteCmd)
	rootCmd.AddCommand(taskCmd, migrateCmd)
}
