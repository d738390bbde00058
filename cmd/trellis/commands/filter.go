package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/marcus/trellis/internal/filter"
	"github.com/marcus/trellis/internal/logging"
	"github.com/marcus/trellis/internal/service"
)

// watchDebounce collapses the burst of events editors emit on save.
const watchDebounce = 100 * time.Millisecond

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Query tasks with a filter tree",
	Long: `Run a nested AND/OR filter over tasks.

The filter is read from --file or given inline with --where, as YAML or JSON:

  logic: AND
  conditions:
    - {field: dueDate, operator: gt, value: 2024-01-15}
  groups:
    - logic: OR
      conditions:
        - {field: tag, operator: in, value: [bug, ops]}
        - {field: customField, customFieldId: <id>, operator: gte, value: 3}

Without a filter every task in scope matches. Use --watch with --file to
re-run the query each time the file changes.`,
	Args: cobra.NoArgs,
	RunE: withSession(runFilter),
}

func init() {
	filterCmd.Flags().StringP("file", "f", "", "Filter file (YAML or JSON)")
	filterCmd.Flags().String("where", "", "Inline filter (YAML or JSON)")
	filterCmd.Flags().BoolP("watch", "w", false, "Re-run when --file changes")
	addQueryFlags(filterCmd)
	rootCmd.AddCommand(filterCmd)
}

func runFilter(cmd *cobra.Command, args []string, s *session) error {
	file, _ := cmd.Flags().GetString("file")
	where, _ := cmd.Flags().GetString("where")
	watch, _ := cmd.Flags().GetBool("watch")
	listID, _ := cmd.Flags().GetString("list")
	archived, _ := cmd.Flags().GetBool("include-archived")

	if file != "" && where != "" {
		return fmt.Errorf("--file and --where are mutually exclusive")
	}
	if watch && file == "" {
		return fmt.Errorf("--watch requires --file")
	}
	spec, err := sortFlags(cmd)
	if err != nil {
		return err
	}

	query := func(ctx context.Context) error {
		g, err := loadFilter(file, where)
		if err != nil {
			return err
		}
		found, err := s.svc.FilterTasks(ctx, service.FilterRequest{
			ListID:          listID,
			Filter:          g,
			IncludeArchived: archived,
			Sort:            spec,
			Page:            pageFlags(cmd),
		})
		if err != nil {
			return err
		}
		return s.out.tasks(found)
	}

	if !watch {
		return query(cmd.Context())
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return watchFile(ctx, file, func() {
		if err := query(ctx); err != nil {
			logging.Component("watch").Err(err).Str("file", file).Msg("filter re-run failed")
			fmt.Fprintln(cmd.ErrOrStderr(), s.out.st.Error.Render("error: ")+err.Error())
		}
	})
}

// loadFilter decodes the filter from a file or inline text. Neither yields nil.
func loadFilter(file, where string) (*filter.Group, error) {
	switch {
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading filter file: %w", err)
		}
		return filter.Parse(data)
	case where != "":
		return filter.Parse([]byte(where))
	}
	return nil, nil
}

// watchFile calls run once, then again after each change to path until ctx
// is done. The parent directory is watched so editors that replace the file
// on save are still seen.
func watchFile(ctx context.Context, path string, run func()) error {
	log := logging.Component("watch")
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	run()
	fmt.Fprintln(os.Stderr, "--- Watching "+path+" (Ctrl+C to exit) ---")

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				log.Debug().Str("file", abs).Str("op", event.Op.String()).Msg("filter file changed")
				pending = time.After(watchDebounce)
			}
		case <-pending:
			pending = nil
			run()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("watcher error")
		}
	}
}
