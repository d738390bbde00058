package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/marcus/trellis/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create configuration file",
	Long: `Initialize a new trellis configuration file.

By default, creates trellis.yaml in the current directory.
Use --global to create a global config at ~/.config/trellis/config.yaml`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().Bool("global", false, "Create global config instead of project config")
	initCmd.Flags().BoolP("force", "f", false, "Overwrite an existing config")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	global, _ := cmd.Flags().GetBool("global")
	force, _ := cmd.Flags().GetBool("force")
	st := newPrinter(cmd).st

	configPath := config.GlobalConfigPath()
	configType := "global"
	if !global {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
		configPath = filepath.Join(cwd, config.ProjectConfigName)
		configType = "project"
	}

	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("config already exists: %s (use --force to overwrite)", configPath)
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	if err := os.WriteFile(configPath, []byte(generateDefaultConfig(global)), 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n\n", st.Success.Render("Created "+configType+" config:"), configPath)
	fmt.Fprintln(out, st.Accent.Render("Next steps:"))
	fmt.Fprintln(out, "  1. Edit the config to set database and lock paths")
	fmt.Fprintln(out, "  2. Run 'trellis import <seed.yaml>' or 'trellis list add <name>'")
	fmt.Fprintln(out, "  3. Run 'trellis filter --where ...' to query tasks")
	return nil
}

// generateDefaultConfig creates the default config YAML with comments.
func generateDefaultConfig(global bool) string {
	header := `# Trellis Project Configuration
# Values here override ~/.config/trellis/config.yaml.
# Environment variables (TRELLIS_QUERY_MAX_LIMIT, ...) override both.
`
	if global {
		header = `# Trellis Global Configuration
# Location: ~/.config/trellis/config.yaml
#
# Per-project configs (trellis.yaml) override these settings.
`
	}
	return header + fmt.Sprintf(`
database:
  path: %s

# Dependency locks: one file per list, shared by every process using the database.
locks:
  dir: %s
  retry_interval: %s

query:
  default_limit: %d              # Page size when --limit is not given
  max_limit: %d                  # Larger requested pages are clamped
  max_filter_depth: %d           # Deeper filter trees are rejected

logging:
  level: %s                      # debug | info | warn | error
  path: %s
  format: %s                     # json | text
  retention_days: %d
`,
		filepath.Join("~/.local/share/trellis", "trellis.db"),
		filepath.Join("~/.local/share/trellis", "locks"),
		config.DefaultRetryInterval,
		config.DefaultQueryLimit,
		config.DefaultMaxQueryLimit,
		config.DefaultMaxFilterDepth,
		config.DefaultLogLevel,
		filepath.Join("~/.local/share/trellis", "logs"),
		config.DefaultLogFormat,
		config.DefaultRetentionDays,
	)
}
