package cli

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/valter-silva-au/mdboard/internal/core"
	"github.com/valter-silva-au/mdboard/internal/storage"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("creating pipe: %v", err)
	}
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = origStdout

	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("reading pipe: %v", err)
	}
	return string(out)
}

// cliFixture points the package-level services at a fresh board.
type cliFixture struct {
	root       string
	projectDir string
	configDir  string
}

func newCLIFixture(t *testing.T) *cliFixture {
	t.Helper()
	f := &cliFixture{projectDir: t.TempDir(), configDir: t.TempDir()}
	f.root = filepath.Join(f.projectDir, "tasks")

	registry := core.NewProjectRegistry(f.configDir)
	if _, err := registry.EnsureDefault(f.root); err != nil {
		t.Fatalf("registering default project: %v", err)
	}
	store := storage.NewTaskStore(registry, nil, nil, nil)
	if err := store.EnsureDirectories(); err != nil {
		t.Fatalf("ensuring directories: %v", err)
	}

	origBoard, origProjects, origActivity := Board, Projects, ActivityCalc
	t.Cleanup(func() {
		Board, Projects, ActivityCalc = origBoard, origProjects, origActivity
	})

	Projects = registry
	Board = core.NewBoard(core.BoardDeps{
		Store:    store,
		Files:    storage.NewProjectFiles(registry),
		Projects: registry,
	})
	ActivityCalc = nil
	return f
}

// run executes the root command with args and returns what it printed.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)

	var err error
	out := captureStdout(t, func() {
		err = Execute()
	})
	return out, err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	if err != nil {
		t.Fatalf("mdboard %v: %v\noutput: %s", args, err, out)
	}
	return out
}

// resetFlags restores every flag in the command tree to its default so that
// one test's flags do not leak into the next.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
