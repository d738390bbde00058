package commands

import (
	"github.com/spf13/cobra"

	"github.com/marcus/trellis/internal/customfields"
)

var fieldCmd = &cobra.Command{
	Use:   "field",
	Short: "Manage custom fields and their values",
	Long: `Define typed custom fields on a list and set their values on tasks.

Values are read as YAML scalars: 5 is a number, '5' is text, 2024-01-15
is a date.`,
}

var fieldAddCmd = &cobra.Command{
	Use:   "add <name> --list <list-id> --type <text|number|date|dropdown>",
	Short: "Define a custom field",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(func(cmd *cobra.Command, args []string, s *session) error {
		listID, _ := cmd.Flags().GetString("list")
		typeName, _ := cmd.Flags().GetString("type")
		options, _ := cmd.Flags().GetStringSlice("option")

		t, err := customfields.ParseType(typeName)
		if err != nil {
			return err
		}
		f, err := s.svc.CreateCustomField(cmd.Context(), customfields.Field{
			ListID: listID,
			Name:   args[0],
			Type:   t,
			Config: customfields.Config{Options: options},
		})
		if err != nil {
			return err
		}
		return s.out.created(f, "field", f.Name, f.ID)
	}),
}

var fieldSetCmd = &cobra.Command{
	Use:   "set <task-id> <field-id> <value>",
	Short: "Set a custom field value on a task",
	Args:  cobra.ExactArgs(3),
	RunE: withSession(func(cmd *cobra.Command, args []string, s *session) error {
		raw, err := parseValueArg(args[2])
		if err != nil {
			return err
		}
		sv, err := s.svc.CreateCustomFieldValue(cmd.Context(), args[0], args[1], raw)
		if err != nil {
			return err
		}
		return s.out.value(sv)
	}),
}

var fieldUpdateCmd = &cobra.Command{
	Use:   "update <value-id> <value>",
	Short: "Replace a stored custom field value",
	Args:  cobra.ExactArgs(2),
	RunE: withSession(func(cmd *cobra.Command, args []string, s *session) error {
		raw, err := parseValueArg(args[1])
		if err != nil {
			return err
		}
		sv, err := s.svc.UpdateCustomFieldValue(cmd.Context(), args[0], raw)
		if err != nil {
			return err
		}
		return s.out.value(sv)
	}),
}

var fieldGetCmd = &cobra.Command{
	Use:   "get <value-id>",
	Short: "Show a stored custom field value",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(func(cmd *cobra.Command, args []string, s *session) error {
		sv, err := s.svc.GetCustomFieldValue(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return s.out.value(sv)
	}),
}

var fieldRmCmd = &cobra.Command{
	Use:   "rm <value-id>",
	Short: "Delete a stored custom field value",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(func(cmd *cobra.Command, args []string, s *session) error {
		if err := s.svc.DeleteCustomFieldValue(cmd.Context(), args[0]); err != nil {
			return err
		}
		return s.out.done("deleted value %s", args[0])
	}),
}

func init() {
	fieldAddCmd.Flags().StringP("list", "l", "", "List that owns the field")
	fieldAddCmd.Flags().StringP("type", "t", "", "Field type (text, number, date, dropdown)")
	fieldAddCmd.Flags().StringSlice("option", nil, "Dropdown option (repeatable)")
	_ = fieldAddCmd.MarkFlagRequired("list")
	_ = fieldAddCmd.MarkFlagRequired("type")

	fieldCmd.AddCommand(fieldAddCmd)
	fieldCmd.AddCommand(fieldSetCmd)
	fieldCmd.AddCommand(fieldUpdateCmd)
	fieldCmd.AddCommand(fieldGetCmd)
	fieldCmd.AddCommand(fieldRmCmd)
	rootCmd.AddCommand(fieldCmd)
}
