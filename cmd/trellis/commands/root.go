// Package commands implements the trellis CLI commands using cobra.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is set at build time
	Version = "0.1.0"
)

var rootCmd = &cobra.Command{
	Use:   "trellis",
	Short: "Task query and dependency engine",
	Long: `Trellis stores lists, tasks and typed custom fields in a local SQLite
database and answers nested boolean filter queries over them.

Task dependencies are checked for cycles before every insert.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, newStyles().Error.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/trellis/config.yaml)")
	rootCmd.PersistentFlags().String("db", "", "Database path (overrides database.path)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug output, including compiled queries")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
}
