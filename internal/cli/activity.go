package cli

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	activityJSON  bool
	activitySince string
)

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Summarise recent board activity",
	Long: `Display counts of board mutations derived from the event log: tasks
created, updated, moved, completed and deleted, and moves into each column.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if ActivityCalc == nil {
			return fmt.Errorf("activity calculator not initialized (event log may be unavailable)")
		}

		sinceTime, err := parseSinceDuration(activitySince)
		if err != nil {
			return fmt.Errorf("parsing --since: %w", err)
		}

		activity, err := ActivityCalc.Calculate(sinceTime)
		if err != nil {
			return fmt.Errorf("calculating activity: %w", err)
		}

		if activityJSON {
			data, err := json.MarshalIndent(activity, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting activity as JSON: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		fmt.Printf("Activity (since %s)\n\n", sinceTime.Format("2006-01-02"))
		fmt.Printf("  %-20s %d\n", "Events recorded:", activity.EventCount)
		fmt.Printf("  %-20s %d\n", "Tasks created:", activity.TasksCreated)
		fmt.Printf("  %-20s %d\n", "Tasks updated:", activity.TasksUpdated)
		fmt.Printf("  %-20s %d\n", "Tasks moved:", activity.TasksMoved)
		fmt.Printf("  %-20s %d\n", "Tasks completed:", activity.TasksCompleted)
		fmt.Printf("  %-20s %d\n", "Tasks deleted:", activity.TasksDeleted)
		fmt.Printf("  %-20s %d\n", "Reorders:", activity.Reorders)

		if len(activity.MovesInto) > 0 {
			fmt.Println("\n  Moves into:")
			keys := make([]string, 0, len(activity.MovesInto))
			for k := range activity.MovesInto {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			for _, status := range keys {
				fmt.Printf("    %-18s %d\n", status+":", activity.MovesInto[status])
			}
		}

		if activity.OldestEvent != nil {
			fmt.Printf("\n  %-20s %s\n", "Oldest event:", activity.OldestEvent.Format(time.RFC3339))
		}
		if activity.NewestEvent != nil {
			fmt.Printf("  %-20s %s\n", "Newest event:", activity.NewestEvent.Format(time.RFC3339))
		}

		return nil
	},
}

// parseSinceDuration parses a human-friendly duration string like "7d", "30d",
// or "24h" and returns the corresponding time in the past.
func parseSinceDuration(s string) (time.Time, error) {
	now := time.Now().UTC()
	s = strings.TrimSpace(s)
	if s == "" {
		return now.AddDate(0, 0, -7), nil
	}

	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid day duration %q", s)
		}
		return now.AddDate(0, 0, -days), nil
	}

	if strings.HasSuffix(s, "h") {
		hours, err := strconv.Atoi(strings.TrimSuffix(s, "h"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid hour duration %q", s)
		}
		return now.Add(-time.Duration(hours) * time.Hour), nil
	}

	return time.Time{}, fmt.Errorf("unsupported duration format %q (use e.g. 7d, 30d, 24h)", s)
}

func init() {
	activityCmd.Flags().BoolVar(&activityJSON, "json", false, "Output activity as JSON")
	activityCmd.Flags().StringVar(&activitySince, "since", "7d", "Time window (e.g. 7d, 30d, 24h)")
	rootCmd.AddCommand(activityCmd)
}
