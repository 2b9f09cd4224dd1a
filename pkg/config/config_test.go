package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/dirmigrate/pkg/userservice/store"
)

// yamlSafePath converts a filesystem path to a YAML-safe representation.
// On Windows, backslashes in double-quoted YAML strings are interpreted as
// escape sequences (e.g. \U -> Unicode escape), causing parse errors.
func yamlSafePath(p string) string {
	return filepath.ToSlash(p)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_ConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := writeConfig(t, `
logging:
  level: "debug"

directory:
  pool_id: eu-west-2_AbCdEf123
  pick_attributes: [phone_number, name]

database:
  type: sqlite
  sqlite:
    path: "`+yamlSafePath(tmpDir)+`/users.db"
  query_timeout: 3s

migration:
  workers: 4
  page_timeout: 1m
  role_mappings:
    - token: auditor
      roles: [FIND]
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected normalized level 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Directory.PoolID != "eu-west-2_AbCdEf123" {
		t.Errorf("Expected pool id from file, got %q", cfg.Directory.PoolID)
	}
	if len(cfg.Directory.PickAttributes) != 2 {
		t.Errorf("Expected 2 pick attributes, got %v", cfg.Directory.PickAttributes)
	}
	if cfg.Database.Type != store.DatabaseTypeSQLite {
		t.Errorf("Expected sqlite database, got %q", cfg.Database.Type)
	}
	if cfg.Database.QueryTimeout != 3*time.Second {
		t.Errorf("Expected query timeout 3s, got %v", cfg.Database.QueryTimeout)
	}
	if cfg.Migration.Workers != 4 {
		t.Errorf("Expected 4 workers, got %d", cfg.Migration.Workers)
	}
	if cfg.Migration.PageTimeout != time.Minute {
		t.Errorf("Expected page timeout 1m, got %v", cfg.Migration.PageTimeout)
	}
	if len(cfg.Migration.RoleMappings) != 1 || cfg.Migration.RoleMappings[0].Token != "auditor" {
		t.Errorf("Expected one role mapping for 'auditor', got %+v", cfg.Migration.RoleMappings)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// Loading with no config file returns a valid default config.
	nonExistentPath := filepath.Join(t.TempDir(), "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error when loading default config, got: %v", err)
	}
	if cfg.Migration.Workers != 8 {
		t.Errorf("Expected default workers 8, got %d", cfg.Migration.Workers)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, `
logging:
  level: INFO
  invalid yaml here [[[
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error with invalid YAML, got nil")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	configPath := writeConfig(t, `
directory:
  page_size: 500
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected validation error for page_size 500, got nil")
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("DIRMIGRATE_LOGGING_LEVEL", "ERROR")
	t.Setenv("DIRMIGRATE_DIRECTORY_POOL_ID", "eu-west-2_env")
	t.Setenv("DIRMIGRATE_MIGRATION_WORKERS", "16")
	t.Setenv("DIRMIGRATE_MIGRATION_DRY_RUN", "true")
	t.Setenv("DIRMIGRATE_PRIVACY_ENABLED", "true")
	t.Setenv("DIRMIGRATE_PRIVACY_SECRET", "0123456789abcdef0123456789abcdef")

	configPath := writeConfig(t, `
logging:
  level: "INFO"
directory:
  pool_id: eu-west-2_file
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "ERROR" {
		t.Errorf("Expected level 'ERROR' from env var, got %q", cfg.Logging.Level)
	}
	if cfg.Directory.PoolID != "eu-west-2_env" {
		t.Errorf("Expected pool id from env var, got %q", cfg.Directory.PoolID)
	}
	if cfg.Migration.Workers != 16 {
		t.Errorf("Expected 16 workers from env var, got %d", cfg.Migration.Workers)
	}
	if !cfg.Migration.DryRun {
		t.Error("Expected dry run enabled from env var")
	}
	if !cfg.Privacy.Enabled || cfg.Privacy.Secret == "" {
		t.Error("Expected privacy settings from env vars")
	}
}

func TestLoad_EnvironmentWithoutFile(t *testing.T) {
	t.Setenv("DIRMIGRATE_DIRECTORY_POOL_ID", "eu-west-2_only_env")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Directory.PoolID != "eu-west-2_only_env" {
		t.Errorf("Expected pool id from env var, got %q", cfg.Directory.PoolID)
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("DIRMIGRATE_DIRECTORY_REGION=us-east-1\n"), 0644); err != nil {
		t.Fatalf("Failed to write .env: %v", err)
	}

	old := EnvFiles
	EnvFiles = []string{envPath}
	t.Cleanup(func() {
		EnvFiles = old
		_ = os.Unsetenv("DIRMIGRATE_DIRECTORY_REGION")
	})

	cfg, err := Load(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Directory.Region != "us-east-1" {
		t.Errorf("Expected region from .env, got %q", cfg.Directory.Region)
	}
}

func TestMustLoad_MissingExplicitFile(t *testing.T) {
	_, err := MustLoad(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Expected error for missing explicit config file")
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := GetDefaultConfig()
	cfg.Directory.PoolID = "eu-west-2_saved"
	cfg.Migration.Workers = 3

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Saved config missing: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected 0600 permissions, got %v", info.Mode().Perm())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}
	if loaded.Directory.PoolID != "eu-west-2_saved" || loaded.Migration.Workers != 3 {
		t.Errorf("Saved values not preserved: %+v", loaded.Directory)
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	path := GetDefaultConfigPath()

	if !filepath.IsAbs(path) {
		t.Errorf("Expected absolute path, got %q", path)
	}
	if filepath.Base(path) != "config.yaml" {
		t.Errorf("Expected filename 'config.yaml', got %q", filepath.Base(path))
	}
	if filepath.Base(GetConfigDir()) != "dirmigrate" {
		t.Errorf("Expected directory name 'dirmigrate', got %q", filepath.Base(GetConfigDir()))
	}
}
