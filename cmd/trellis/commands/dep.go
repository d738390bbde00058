package commands

import (
	"github.com/spf13/cobra"

	"github.com/marcus/trellis/internal/deps"
)

var depCmd = &cobra.Command{
	Use:   "dep",
	Short: "Manage task dependencies",
	Long: `Link tasks with blocked_by or blocks edges.

A new edge is rejected when it would make a task depend on itself,
directly or through other tasks.`,
}

var depAddCmd = &cobra.Command{
	Use:   "add <task-id> <depends-on-task-id>",
	Short: "Add a dependency edge",
	Long: `Add a dependency edge. With the default --type blocked_by the first
task waits on the second; with --type blocks the first task blocks the second.`,
	Args: cobra.ExactArgs(2),
	RunE: withSession(func(cmd *cobra.Command, args []string, s *session) error {
		typeName, _ := cmd.Flags().GetString("type")
		t, err := deps.ParseType(typeName)
		if err != nil {
			return err
		}
		e, err := s.svc.CreateDependency(cmd.Context(), args[0], args[1], t)
		if err != nil {
			return err
		}
		return s.out.edge(e)
	}),
}

var depRmCmd = &cobra.Command{
	Use:   "rm <edge-id>",
	Short: "Remove a dependency edge",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(func(cmd *cobra.Command, args []string, s *session) error {
		if err := s.svc.RemoveDependency(cmd.Context(), args[0]); err != nil {
			return err
		}
		return s.out.done("removed edge %s", args[0])
	}),
}

var depShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show what a task is blocked by and what it blocks",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(func(cmd *cobra.Command, args []string, s *session) error {
		v, err := s.svc.Dependencies(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return s.out.view(v)
	}),
}

func init() {
	depAddCmd.Flags().StringP("type", "t", string(deps.BlockedBy), "Edge type (blocked_by, blocks)")

	depCmd.AddCommand(depAddCmd)
	depCmd.AddCommand(depRmCmd)
	depCmd.AddCommand(depShowCmd)
	rootCmd.AddCommand(depCmd)
}
