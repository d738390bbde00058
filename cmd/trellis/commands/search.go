package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcus/trellis/internal/service"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find tasks by title or description",
	Long: `Find tasks whose title or description contains the query, ignoring
case. Accepts the same list, sort and paging flags as filter.`,
	Args: cobra.MinimumNArgs(1),
	RunE: withSession(func(cmd *cobra.Command, args []string, s *session) error {
		listID, _ := cmd.Flags().GetString("list")
		archived, _ := cmd.Flags().GetBool("include-archived")
		spec, err := sortFlags(cmd)
		if err != nil {
			return err
		}
		found, err := s.svc.SearchTasks(cmd.Context(), service.SearchRequest{
			Query:           strings.Join(args, " "),
			ListID:          listID,
			IncludeArchived: archived,
			Sort:            spec,
			Page:            pageFlags(cmd),
		})
		if err != nil {
			return err
		}
		return s.out.tasks(found)
	}),
}

func init() {
	addQueryFlags(searchCmd)
	rootCmd.AddCommand(searchCmd)
}
