package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/valter-silva-au/mdboard/pkg/models"
)

func listTasks(t *testing.T) []models.Task {
	t.Helper()
	var tasks []models.Task
	out := mustRun(t, "task", "list", "--json")
	if err := json.Unmarshal([]byte(out), &tasks); err != nil {
		t.Fatalf("parsing task list: %v\n%s", err, out)
	}
	return tasks
}

func TestTaskCmd_Subcommands(t *testing.T) {
	expected := []string{"list", "show", "create", "update", "move", "reorder", "delete"}
	subs := make(map[string]bool)
	for _, cmd := range taskCmd.Commands() {
		subs[cmd.Name()] = true
	}
	for _, name := range expected {
		if !subs[name] {
			t.Errorf("expected subcommand %q on 'task', but it was not registered", name)
		}
	}
}

func TestTaskCreate(t *testing.T) {
	f := newCLIFixture(t)

	out := mustRun(t, "task", "create", "Write the docs",
		"--tag", "devops", "--epic", "Launch",
		"--criterion", "[x] outline agreed", "--criterion", "examples compile")
	if !strings.Contains(out, "backlog/write-the-docs.md") {
		t.Errorf("unexpected output: %q", out)
	}

	data, err := os.ReadFile(filepath.Join(f.root, "backlog", "write-the-docs.md"))
	if err != nil {
		t.Fatalf("task file not written: %v", err)
	}
	content := string(data)
	for _, want := range []string{"# Write the docs", "## Epic\nLaunch", "- devops", "- [x] outline agreed", "- [ ] examples compile"} {
		if !strings.Contains(content, want) {
			t.Errorf("task file missing %q:\n%s", want, content)
		}
	}
}

func TestTaskCreate_InvalidTag(t *testing.T) {
	newCLIFixture(t)
	if _, err := run(t, "task", "create", "x", "--tag", "urgent"); err == nil {
		t.Fatal("expected error for unknown tag")
	}
}

func TestTaskList(t *testing.T) {
	newCLIFixture(t)
	mustRun(t, "task", "create", "First")
	mustRun(t, "task", "create", "Second", "--status", "done")

	out := mustRun(t, "task", "list")
	if !strings.Contains(out, "BACKLOG (1)") || !strings.Contains(out, "DONE (1)") {
		t.Errorf("unexpected listing:\n%s", out)
	}
	if strings.Index(out, "BACKLOG") > strings.Index(out, "DONE") {
		t.Errorf("columns out of order:\n%s", out)
	}

	out = mustRun(t, "task", "list", "--status", "done")
	if strings.Contains(out, "First") || !strings.Contains(out, "Second") {
		t.Errorf("status filter not applied:\n%s", out)
	}

	if _, err := run(t, "task", "list", "--status", "someday"); err == nil {
		t.Fatal("expected error for invalid status filter")
	}
}

func TestTaskList_Empty(t *testing.T) {
	newCLIFixture(t)
	if out := mustRun(t, "task", "list"); !strings.Contains(out, "No tasks found.") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestTaskShow(t *testing.T) {
	newCLIFixture(t)
	mustRun(t, "task", "create", "Show me", "--description", "details here")

	out := mustRun(t, "task", "show", "backlog", "show-me.md")
	if !strings.HasPrefix(out, "# Show me\n") || !strings.Contains(out, "details here") {
		t.Errorf("unexpected markdown:\n%s", out)
	}

	if _, err := run(t, "task", "show", "backlog", "missing.md"); err == nil {
		t.Fatal("expected error for missing task")
	}
}

func TestTaskUpdate_StatusChangeAndCompleted(t *testing.T) {
	f := newCLIFixture(t)
	mustRun(t, "task", "create", "Ship it", "--status", "uat")

	mustRun(t, "task", "update", "uat", "ship-it.md", "--status", "done", "--notes", "released")
	if _, err := os.Stat(filepath.Join(f.root, "done", "ship-it.md")); err != nil {
		t.Fatalf("task not moved to done: %v", err)
	}

	tasks := listTasks(t)
	if len(tasks) != 1 || tasks[0].Notes != "released" || tasks[0].Completed == nil {
		t.Fatalf("unexpected task after update: %+v", tasks)
	}

	mustRun(t, "task", "update", "done", "ship-it.md", "--completed", "clear")
	if tasks := listTasks(t); tasks[0].Completed != nil {
		t.Errorf("expected completed cleared, got %v", tasks[0].Completed)
	}

	if _, err := run(t, "task", "update", "done", "ship-it.md", "--completed", "yesterday"); err == nil {
		t.Fatal("expected error for invalid --completed")
	}
}

func TestTaskUpdate_OnlyChangedFields(t *testing.T) {
	newCLIFixture(t)
	mustRun(t, "task", "create", "Keep me", "--description", "original", "--tag", "bug")

	mustRun(t, "task", "update", "backlog", "keep-me.md", "--title", "Kept")
	tasks := listTasks(t)
	if tasks[0].Title != "Kept" || tasks[0].Description != "original" || len(tasks[0].Tags) != 1 {
		t.Errorf("unexpected task after partial update: %+v", tasks[0])
	}
	if tasks[0].Filename != "keep-me.md" {
		t.Errorf("filename must not change on retitle, got %s", tasks[0].Filename)
	}
}

func TestTaskMoveAndReorder(t *testing.T) {
	newCLIFixture(t)
	mustRun(t, "task", "create", "A", "--status", "planning")
	mustRun(t, "task", "create", "B")

	mustRun(t, "task", "move", "backlog", "b.md", "planning", "--position", "0")
	tasks := listTasks(t)
	if len(tasks) != 2 || tasks[0].Title != "B" || tasks[1].Title != "A" {
		t.Fatalf("unexpected order after move: %+v", tasks)
	}

	out := mustRun(t, "task", "reorder", "planning", tasks[1].ID, tasks[0].ID)
	if !strings.Contains(out, "1. A") || !strings.Contains(out, "2. B") {
		t.Errorf("unexpected reorder output:\n%s", out)
	}
	tasks = listTasks(t)
	if tasks[0].Title != "A" || tasks[1].Title != "B" {
		t.Fatalf("unexpected order after reorder: %+v", tasks)
	}
}

func TestTaskDelete(t *testing.T) {
	f := newCLIFixture(t)
	mustRun(t, "task", "create", "Gone soon", "--status", "ideation")

	mustRun(t, "task", "delete", "ideation", "gone-soon.md")
	if _, err := os.Stat(filepath.Join(f.root, "ideation", "gone-soon.md")); !os.IsNotExist(err) {
		t.Fatalf("expected file removed, stat err = %v", err)
	}
	if _, err := run(t, "task", "delete", "ideation", "gone-soon.md"); err == nil {
		t.Fatal("expected error deleting a missing task")
	}
}

func TestMigrate(t *testing.T) {
	f := newCLIFixture(t)
	if err := os.WriteFile(filepath.Join(f.root, "backlog", "02-second.md"), []byte("# Second\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(f.root, "backlog", "01-first.md"), []byte("# First\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if out := mustRun(t, "migrate"); !strings.Contains(out, "Board migrated.") {
		t.Errorf("unexpected output: %q", out)
	}
	tasks := listTasks(t)
	if len(tasks) != 2 || tasks[0].Filename != "first.md" || tasks[1].Filename != "second.md" {
		t.Fatalf("unexpected tasks after migration: %+v", tasks)
	}

	if out := mustRun(t, "migrate"); !strings.Contains(out, "already up to date") {
		t.Errorf("unexpected output on second run: %q", out)
	}
}

func TestParseCriteria(t *testing.T) {
	got := parseCriteria([]string{"[x] done", "[X] also done", "[ ] open", "plain"})
	want := []models.AcceptanceCriterion{
		{Text: "done", Checked: true},
		{Text: "also done", Checked: true},
		{Text: "open"},
		{Text: "plain"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d criteria, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("criterion %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}
