package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the command tree.
func NewRootCmd(version string) *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "tasktimer",
		Short: "tasktimer - tasks with deadlines, notes and work timers",
		Long: `tasktimer keeps a list of tasks with deadlines, notes, an important flag
and an accumulated work timer. Completed tasks move to a history.

Every invocation opens its own view of the shared storage, so a running
"tasktimer serve" picks up changes made from the command line.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	opener := func() string { return configPath }
	rootCmd.AddCommand(serveCmd(opener))
	rootCmd.AddCommand(addCmd(opener))
	rootCmd.AddCommand(editCmd(opener))
	rootCmd.AddCommand(listCmd(opener))
	rootCmd.AddCommand(historyCmd(opener))
	rootCmd.AddCommand(timerCmd(opener, "start", "Start the timer of a task"))
	rootCmd.AddCommand(timerCmd(opener, "stop", "Stop the timer of a task"))
	rootCmd.AddCommand(doneCmd(opener))
	rootCmd.AddCommand(importantCmd(opener))
	rootCmd.AddCommand(deleteCmd(opener))
	rootCmd.AddCommand(clearHistoryCmd(opener))

	return rootCmd
}

// Execute runs the root command
func Execute(version string) error {
	if err := NewRootCmd(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
