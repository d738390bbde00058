package commands

import (
	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a user",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(func(cmd *cobra.Command, args []string, s *session) error {
		u, err := s.svc.CreateUser(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return s.out.created(u, "user", u.Name, u.ID)
	}),
}

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Manage tags",
}

var tagAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a tag",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(func(cmd *cobra.Command, args []string, s *session) error {
		t, err := s.svc.CreateTag(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return s.out.created(t, "tag", t.Name, t.ID)
	}),
}

var priorityCmd = &cobra.Command{
	Use:   "priority",
	Short: "Manage priorities",
}

var priorityAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a priority",
	Long:  `Create a priority level. Lower --position values sort first.`,
	Args:  cobra.ExactArgs(1),
	RunE: withSession(func(cmd *cobra.Command, args []string, s *session) error {
		position, _ := cmd.Flags().GetInt("position")
		p, err := s.svc.CreatePriority(cmd.Context(), args[0], position)
		if err != nil {
			return err
		}
		return s.out.created(p, "priority", p.Name, p.ID)
	}),
}

func init() {
	priorityAddCmd.Flags().Int("position", 0, "Rank of the priority (lower sorts first)")

	userCmd.AddCommand(userAddCmd)
	tagCmd.AddCommand(tagAddCmd)
	priorityCmd.AddCommand(priorityAddCmd)
	rootCmd.AddCommand(userCmd, tagCmd, priorityCmd)
}
