package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/marcus/trellis/internal/stats"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate statistics",
	Long: `Display task counts per list: open, archived, overdue, unassigned and
blocked tasks, with a breakdown by status. Use --json for machine-readable
output.`,
	Args: cobra.NoArgs,
	RunE: withSession(func(cmd *cobra.Command, args []string, s *session) error {
		listID, _ := cmd.Flags().GetString("list")
		result, err := stats.New(s.db).Compute(cmd.Context(), listID)
		if err != nil {
			return fmt.Errorf("computing stats: %w", err)
		}
		return s.out.emit(result, func() { renderStatsHuman(s.out.w, s.out.st, result) })
	}),
}

func init() {
	statsCmd.Flags().StringP("list", "l", "", "Only this list")
	rootCmd.AddCommand(statsCmd)
}

func renderStatsHuman(w io.Writer, st styles, result *stats.StatsResult) {
	fmt.Fprintln(w, st.Title.Render("Trellis Stats"))
	row := func(label string, value int) {
		fmt.Fprintf(w, "  %s %s\n", st.Label.Render(fmt.Sprintf("%-14s", label)), st.Value.Render(fmt.Sprint(value)))
	}
	row("tasks", result.TotalTasks)
	row("archived", result.TotalArchived)
	row("overdue", result.TotalOverdue)
	row("blocked", result.TotalBlocked)
	row("dependencies", result.Dependencies)
	row("field values", result.CustomFieldValues)

	for _, l := range result.Lists {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%s %s\n", st.Accent.Render(l.Name), st.Muted.Render(l.ListID))
		row("open", l.Open())
		row("archived", l.Archived)
		if l.Overdue > 0 {
			fmt.Fprintf(w, "  %s %s\n", st.Label.Render(fmt.Sprintf("%-14s", "overdue")), st.Error.Render(fmt.Sprint(l.Overdue)))
		}
		row("unassigned", l.Unassigned)
		row("blocked", l.Blocked)
		for _, status := range l.SortedStatuses() {
			fmt.Fprintf(w, "    %s %d\n", st.Muted.Render(fmt.Sprintf("%-12s", status)), l.StatusBreakdown[status])
		}
	}
}
