package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage registered projects (list, add, switch, rename, remove)",
	Long: `Each project is a directory with a tasks/ folder holding its board. One
project is current at a time; every task command operates on it.`,
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireProjects(); err != nil {
			return err
		}
		projects, err := Projects.List()
		if err != nil {
			return fmt.Errorf("listing projects: %w", err)
		}
		if len(projects) == 0 {
			fmt.Println("No projects registered.")
			return nil
		}

		currentID := ""
		if current, err := Projects.Current(); err == nil {
			currentID = current.ID
		}
		for _, p := range projects {
			marker := " "
			if p.ID == currentID {
				marker = "*"
			}
			fmt.Printf("%s %-24s %-24s %s\n", marker, p.ID, p.Name, p.Path)
		}
		return nil
	},
}

var projectCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the current project",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireProjects(); err != nil {
			return err
		}
		p, err := Projects.Current()
		if err != nil {
			return fmt.Errorf("getting current project: %w", err)
		}
		fmt.Printf("%s (%s)\n", p.Name, p.ID)
		fmt.Printf("  Board: %s\n", p.BoardName)
		fmt.Printf("  Path:  %s\n", p.Path)
		fmt.Printf("  Tasks: %s\n", p.TasksRoot())
		return nil
	},
}

var projectAddCreate bool

var projectAddCmd = &cobra.Command{
	Use:   "add <name> <path>",
	Short: "Register a project directory",
	Long: `Register a project. The path must be an existing directory with a tasks/
folder; pass --create to create tasks/ and its column directories.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireProjects(); err != nil {
			return err
		}
		name, path := args[0], args[1]

		validation, err := Projects.ValidatePath(path, projectAddCreate)
		if err != nil {
			return fmt.Errorf("validating %s: %w", path, err)
		}
		if !validation.Valid {
			if validation.CanCreate {
				return fmt.Errorf("%s (use --create to create it)", validation.Error)
			}
			return fmt.Errorf("%s", validation.Error)
		}

		p, err := Projects.Add(name, path)
		if err != nil {
			return fmt.Errorf("adding project: %w", err)
		}
		fmt.Printf("Added project %s\n", p.ID)
		if validation.Created {
			fmt.Printf("  Created %s\n", validation.TasksDir)
		}
		return nil
	},
}

var projectSwitchCmd = &cobra.Command{
	Use:   "switch <project-id>",
	Short: "Make a project current",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireBoard(); err != nil {
			return err
		}
		p, err := Board.SwitchProject(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Switched to %s (%s)\n", p.Name, p.TasksRoot())
		return nil
	},
}

var projectRenameCmd = &cobra.Command{
	Use:   "rename <project-id> <name>",
	Short: "Rename a project and its board",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireProjects(); err != nil {
			return err
		}
		p, err := Projects.Update(args[0], args[1])
		if err != nil {
			return fmt.Errorf("renaming project: %w", err)
		}
		fmt.Printf("Renamed %s to %q\n", p.ID, p.Name)
		return nil
	},
}

var projectRemoveCmd = &cobra.Command{
	Use:   "remove <project-id>",
	Short: "Unregister a project (its files are kept)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireProjects(); err != nil {
			return err
		}
		removed, err := Projects.Remove(args[0])
		if err != nil {
			return fmt.Errorf("removing project: %w", err)
		}
		fmt.Printf("Removed project %s\n", removed.ID)
		if current, err := Projects.Current(); err == nil {
			fmt.Printf("Current project: %s\n", current.ID)
		}
		return nil
	},
}

func init() {
	projectAddCmd.Flags().BoolVar(&projectAddCreate, "create", false, "Create the tasks directory if it is missing")
	projectCmd.AddCommand(projectListCmd, projectCurrentCmd, projectAddCmd, projectSwitchCmd, projectRenameCmd, projectRemoveCmd)
	rootCmd.AddCommand(projectCmd)
}
