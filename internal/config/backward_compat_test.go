package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestBackwardCompat_PartialConfigKeepsDefaults verifies that config files
// written before the locks and query sections existed still load with the
// current defaults for those sections.
func TestBackwardCompat_PartialConfigKeepsDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	oldConfigContent := `
database:
  path: /tmp/old.db
logging:
  level: info
`
	if err := os.WriteFile(filepath.Join(tmpDir, ProjectConfigName), []byte(oldConfigContent), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPaths(tmpDir, "")
	if err != nil {
		t.Fatalf("LoadFromPaths error: %v", err)
	}
	if cfg.Database.Path != "/tmp/old.db" {
		t.Errorf("Database.Path = %q, want /tmp/old.db", cfg.Database.Path)
	}
	if cfg.Query.MaxLimit != DefaultMaxQueryLimit {
		t.Errorf("Query.MaxLimit = %d, want default %d", cfg.Query.MaxLimit, DefaultMaxQueryLimit)
	}
	if cfg.Locks.RetryInterval != DefaultRetryInterval {
		t.Errorf("Locks.RetryInterval = %v, want default %v", cfg.Locks.RetryInterval, DefaultRetryInterval)
	}
}

// TestBackwardCompat_UnknownSectionsIgnored verifies that sections trellis
// does not know about do not fail loading.
func TestBackwardCompat_UnknownSectionsIgnored(t *testing.T) {
	tmpDir := t.TempDir()
	content := `
budget:
  mode: daily
  weekly_tokens: 700000
schedule:
  cron: "0 2 * * *"
query:
  default_limit: 5
`
	if err := os.WriteFile(filepath.Join(tmpDir, ProjectConfigName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPaths(tmpDir, "")
	if err != nil {
		t.Fatalf("LoadFromPaths error: %v", err)
	}
	if cfg.Query.DefaultLimit != 5 {
		t.Errorf("Query.DefaultLimit = %d, want 5", cfg.Query.DefaultLimit)
	}
}

// TestBackwardCompat_PathExpansion verifies that ~ in path settings expands
// to the home directory.
func TestBackwardCompat_PathExpansion(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	tmpDir := t.TempDir()
	content := `
database:
  path: ~/data/trellis.db
locks:
  dir: ~/locks
logging:
  path: ~/logs
`
	if err := os.WriteFile(filepath.Join(tmpDir, ProjectConfigName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPaths(tmpDir, "")
	if err != nil {
		t.Fatalf("LoadFromPaths error: %v", err)
	}
	tests := []struct {
		name, got, want string
	}{
		{"database.path", cfg.Database.Path, filepath.Join(home, "data", "trellis.db")},
		{"locks.dir", cfg.Locks.Dir, filepath.Join(home, "locks")},
		{"logging.path", cfg.Logging.Path, filepath.Join(home, "logs")},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}
