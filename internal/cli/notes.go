package cli

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"github.com/spf13/cobra"
)

var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "Show or replace the project notes",
	Long: `Without a subcommand, print the current project's notes.md.

Use "notes set <text>" to replace it, or "notes set -" to read from stdin.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireBoard(); err != nil {
			return err
		}
		notes, err := Board.GetNotes()
		if err != nil {
			return fmt.Errorf("reading notes: %w", err)
		}
		if notes == "" {
			fmt.Println("No notes.")
			return nil
		}
		fmt.Println(notes)
		return nil
	},
}

var notesSetCmd = &cobra.Command{
	Use:   "set <text|->",
	Short: "Replace the project notes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireBoard(); err != nil {
			return err
		}
		text := args[0]
		if text == "-" {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("reading stdin: %w", err)
			}
			text = string(data)
		}
		if err := Board.UpdateNotes(text); err != nil {
			return fmt.Errorf("writing notes: %w", err)
		}
		fmt.Println("Notes saved.")
		return nil
	},
}

var boardConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update the board configuration (project.json)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireBoard(); err != nil {
			return err
		}
		cfg, err := Board.GetConfig()
		if err != nil {
			return fmt.Errorf("reading board config: %w", err)
		}
		for _, key := range slices.Sorted(maps.Keys(cfg)) {
			fmt.Printf("%s: %v\n", key, cfg[key])
		}
		return nil
	},
}

var boardConfigSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a board configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireBoard(); err != nil {
			return err
		}
		cfg, err := Board.UpdateConfig(map[string]any{args[0]: args[1]})
		if err != nil {
			return fmt.Errorf("updating board config: %w", err)
		}
		fmt.Printf("%s: %v\n", args[0], cfg[args[0]])
		return nil
	},
}

func init() {
	notesCmd.AddCommand(notesSetCmd)
	boardConfigCmd.AddCommand(boardConfigSetCmd)
	rootCmd.AddCommand(notesCmd, boardConfigCmd)
}
