package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcus/trellis/internal/service"
	"github.com/marcus/trellis/internal/tasks"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
	Long:  `Create tasks, archive them and change their assignees and tags.`,
}

var taskAddCmd = &cobra.Command{
	Use:   "add <title> --list <list-id>",
	Short: "Create a task",
	Long: `Create a task in a list. Without --position the task goes to the end
of the list.`,
	Args: cobra.ExactArgs(1),
	RunE: withSession(runTaskAdd),
}

var taskShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show a task and its custom field values",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(func(cmd *cobra.Command, args []string, s *session) error {
		t, err := s.svc.GetTask(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		values, err := s.svc.TaskValues(cmd.Context(), t.ID)
		if err != nil {
			return err
		}
		return s.out.task(t, values)
	}),
}

var taskArchiveCmd = &cobra.Command{
	Use:   "archive <task-id>",
	Short: "Archive a task",
	Long:  `Archive a task so queries skip it unless --include-archived is given. Use --undo to restore it.`,
	Args:  cobra.ExactArgs(1),
	RunE: withSession(func(cmd *cobra.Command, args []string, s *session) error {
		undo, _ := cmd.Flags().GetBool("undo")
		if err := s.svc.ArchiveTask(cmd.Context(), args[0], !undo); err != nil {
			return err
		}
		if undo {
			return s.out.done("restored %s", args[0])
		}
		return s.out.done("archived %s", args[0])
	}),
}

var taskAssignCmd = &cobra.Command{
	Use:   "assign <task-id> <user-id>",
	Short: "Assign a user to a task",
	Args:  cobra.ExactArgs(2),
	RunE: withSession(func(cmd *cobra.Command, args []string, s *session) error {
		remove, _ := cmd.Flags().GetBool("remove")
		if remove {
			if err := s.svc.UnassignTask(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			return s.out.done("unassigned %s from %s", args[1], args[0])
		}
		if err := s.svc.AssignTask(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		return s.out.done("assigned %s to %s", args[1], args[0])
	}),
}

var taskTagCmd = &cobra.Command{
	Use:   "tag <task-id> <tag-id>",
	Short: "Tag a task",
	Args:  cobra.ExactArgs(2),
	RunE: withSession(func(cmd *cobra.Command, args []string, s *session) error {
		remove, _ := cmd.Flags().GetBool("remove")
		if remove {
			if err := s.svc.UntagTask(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			return s.out.done("removed tag %s from %s", args[1], args[0])
		}
		if err := s.svc.TagTask(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		return s.out.done("tagged %s with %s", args[0], args[1])
	}),
}

func init() {
	taskAddCmd.Flags().StringP("list", "l", "", "List to create the task in")
	taskAddCmd.Flags().StringP("description", "d", "", "Task description")
	taskAddCmd.Flags().String("status", "", "Status id")
	taskAddCmd.Flags().String("priority", "", "Priority id")
	taskAddCmd.Flags().String("due", "", "Due date (YYYY-MM-DD)")
	taskAddCmd.Flags().Int("position", -1, "Order position (default: end of list)")
	taskAddCmd.Flags().StringSlice("assignee", nil, "Assignee user id (repeatable)")
	taskAddCmd.Flags().StringSlice("tag", nil, "Tag id (repeatable)")
	_ = taskAddCmd.MarkFlagRequired("list")

	taskArchiveCmd.Flags().Bool("undo", false, "Restore an archived task")
	taskAssignCmd.Flags().Bool("remove", false, "Remove the assignee instead")
	taskTagCmd.Flags().Bool("remove", false, "Remove the tag instead")

	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskShowCmd)
	taskCmd.AddCommand(taskArchiveCmd)
	taskCmd.AddCommand(taskAssignCmd)
	taskCmd.AddCommand(taskTagCmd)
	rootCmd.AddCommand(taskCmd)
}

func runTaskAdd(cmd *cobra.Command, args []string, s *session) error {
	n := service.NewTask{Title: args[0]}
	n.ListID, _ = cmd.Flags().GetString("list")
	n.Description, _ = cmd.Flags().GetString("description")
	n.StatusID, _ = cmd.Flags().GetString("status")
	n.PriorityID, _ = cmd.Flags().GetString("priority")
	n.AssigneeIDs, _ = cmd.Flags().GetStringSlice("assignee")
	n.TagIDs, _ = cmd.Flags().GetStringSlice("tag")

	if due, _ := cmd.Flags().GetString("due"); due != "" {
		d, err := tasks.ParseDate(due)
		if err != nil {
			return fmt.Errorf("--due: %w", err)
		}
		n.DueDate = &d
	}
	if position, _ := cmd.Flags().GetInt("position"); position >= 0 {
		n.OrderPosition = &position
	}

	t, err := s.svc.CreateTask(cmd.Context(), n)
	if err != nil {
		return err
	}
	return s.out.created(t, "task", t.Title, t.ID)
}
