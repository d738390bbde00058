package commands

import (
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Manage lists",
	Long:  `Create lists and their workflow statuses, and show existing lists.`,
}

var listAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a list",
	Long: `Create a list. Each --status adds a workflow status in the order given;
the first status gets position 0.`,
	Args: cobra.ExactArgs(1),
	RunE: withSession(runListAdd),
}

var listLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "Show lists",
	Args:  cobra.NoArgs,
	RunE: withSession(func(cmd *cobra.Command, args []string, s *session) error {
		lists, err := s.svc.Lists(cmd.Context())
		if err != nil {
			return err
		}
		return s.out.lists(lists)
	}),
}

var listFieldsCmd = &cobra.Command{
	Use:   "fields <list-id>",
	Short: "Show the custom fields of a list",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(func(cmd *cobra.Command, args []string, s *session) error {
		fields, err := s.svc.CustomFields(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return s.out.fields(fields)
	}),
}

func init() {
	listAddCmd.Flags().StringSlice("status", nil, "Workflow status to create (repeatable, in order)")

	listCmd.AddCommand(listAddCmd)
	listCmd.AddCommand(listLsCmd)
	listCmd.AddCommand(listFieldsCmd)
	rootCmd.AddCommand(listCmd)
}

func runListAdd(cmd *cobra.Command, args []string, s *session) error {
	ctx := cmd.Context()
	statuses, _ := cmd.Flags().GetStringSlice("status")

	l, err := s.svc.CreateList(ctx, args[0])
	if err != nil {
		return err
	}
	for i, name := range statuses {
		if _, err := s.svc.CreateStatus(ctx, l.ID, name, i); err != nil {
			return err
		}
	}
	return s.out.created(l, "list", l.Name, l.ID)
}
