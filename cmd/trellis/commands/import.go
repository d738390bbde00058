package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marcus/trellis/internal/store"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Load lists, tasks and dependencies from a YAML seed file",
	Long: `Import a YAML seed file describing priorities, users, tags, lists with
their statuses, custom fields and tasks, and dependencies between tasks.

Entities are written in a single transaction. Dependencies are added
afterwards, each checked for cycles.`,
	Args: cobra.ExactArgs(1),
	RunE: withSession(func(cmd *cobra.Command, args []string, s *session) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading seed file: %w", err)
		}
		seed, err := store.ParseSeed(data)
		if err != nil {
			return err
		}
		res, err := s.svc.Import(cmd.Context(), seed)
		if err != nil {
			return err
		}
		return s.out.emit(res, func() {
			fmt.Fprintf(s.out.w, "%s %d list(s), %d task(s), %d field(s), %d value(s), %d dependenc(ies)\n",
				s.out.st.Success.Render("imported"), res.Lists, res.Tasks, res.Fields, res.Values, res.Dependencies)
		})
	}),
}

func init() {
	rootCmd.AddCommand(importCmd)
}
