package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/marcus/trellis/internal/config"
	"github.com/marcus/trellis/internal/db"
	"github.com/marcus/trellis/internal/lock"
	"github.com/marcus/trellis/internal/logging"
	"github.com/marcus/trellis/internal/service"
	"github.com/marcus/trellis/internal/sortplan"
	"github.com/marcus/trellis/internal/store"
)

// session is an open database and the service over it.
type session struct {
	cfg *config.Config
	db  *db.DB
	svc *service.Service
	out *printer
}

func (s *session) Close() {
	_ = s.db.Close()
}

// loadConfig reads config honoring the global --config and --db flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.GlobalConfigPath()
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	cfg, err := config.LoadFromPaths(wd, path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if dbPath, _ := cmd.Flags().GetString("db"); dbPath != "" {
		cfg.Database.Path = dbPath
	}
	return cfg, nil
}

func initLogging(cmd *cobra.Command, cfg *config.Config) error {
	level := cfg.Logging.Level
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = "debug"
	}
	return logging.Init(logging.Config{
		Level:         level,
		Path:          cfg.Logging.Path,
		Format:        cfg.Logging.Format,
		RetentionDays: cfg.Logging.RetentionDays,
	})
}

// openSession loads config, starts logging and opens the database.
func openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := initLogging(cmd, cfg); err != nil {
		return nil, fmt.Errorf("initializing logging: %w", err)
	}

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}
	locks := lock.New(cfg.Locks.Dir, cfg.Locks.RetryInterval)
	return &session{
		cfg: cfg,
		db:  database,
		svc: service.New(store.New(database), cfg, locks),
		out: newPrinter(cmd),
	}, nil
}

// withSession runs fn against an open session and closes it afterwards.
func withSession(fn func(cmd *cobra.Command, args []string, s *session) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()
		return fn(cmd, args, s)
	}
}

// parseValueArg decodes a command-line value as a YAML scalar so that 5 is a
// number and '5' stays a string.
func parseValueArg(arg string) (any, error) {
	var v any
	if err := yaml.Unmarshal([]byte(arg), &v); err != nil {
		return nil, fmt.Errorf("invalid value %q: %w", arg, err)
	}
	switch v.(type) {
	case map[string]any, []any:
		return nil, fmt.Errorf("invalid value %q: want a single scalar", arg)
	}
	return v, nil
}

// parseSort builds a sort spec from the --sort, --desc and --field flags.
func parseSort(field string, desc bool, customFieldID string) (sortplan.Spec, error) {
	spec := sortplan.Spec{Direction: sortplan.Asc}
	if desc {
		spec.Direction = sortplan.Desc
	}
	field = strings.TrimSpace(field)
	if field == "" {
		if customFieldID != "" {
			return sortplan.Spec{}, fmt.Errorf("--field requires --sort customField")
		}
		return spec, nil
	}
	for _, f := range sortplan.Fields {
		if strings.EqualFold(string(f), field) {
			spec.Field = f
		}
	}
	if spec.Field == "" {
		names := make([]string, len(sortplan.Fields))
		for i, f := range sortplan.Fields {
			names[i] = string(f)
		}
		return sortplan.Spec{}, fmt.Errorf("unknown sort field %q (valid: %s)", field, strings.Join(names, ", "))
	}
	if spec.Field == sortplan.FieldCustomField {
		if customFieldID == "" {
			return sortplan.Spec{}, fmt.Errorf("--sort customField requires --field <id>")
		}
		spec.CustomFieldID = customFieldID
	} else if customFieldID != "" {
		return sortplan.Spec{}, fmt.Errorf("--field only applies to --sort customField")
	}
	return spec, nil
}

func pageFlags(cmd *cobra.Command) service.Page {
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")
	return service.Page{Limit: limit, Offset: offset}
}

func addQueryFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("list", "l", "", "List to query (default: all lists)")
	cmd.Flags().StringP("sort", "s", "", "Sort field (orderPosition, title, dueDate, priority, status, createdAt, updatedAt, assignee, customField)")
	cmd.Flags().Bool("desc", false, "Sort descending")
	cmd.Flags().String("field", "", "Custom field id for --sort customField")
	cmd.Flags().Bool("include-archived", false, "Include archived tasks")
	cmd.Flags().Int("limit", 0, "Maximum tasks to return (default query.default_limit)")
	cmd.Flags().Int("offset", 0, "Tasks to skip")
}

func sortFlags(cmd *cobra.Command) (sortplan.Spec, error) {
	field, _ := cmd.Flags().GetString("sort")
	desc, _ := cmd.Flags().GetBool("desc")
	custom, _ := cmd.Flags().GetString("field")
	return parseSort(field, desc, custom)
}
