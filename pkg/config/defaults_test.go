package config

import (
	"testing"
	"time"

	"github.com/marmos91/dirmigrate/pkg/privacy"
	"github.com/marmos91/dirmigrate/pkg/userservice/store"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stderr" {
		t.Errorf("Expected default log output 'stderr', got %q", cfg.Logging.Output)
	}
}

func TestApplyDefaults_Directory(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Directory.Region != "eu-west-2" {
		t.Errorf("Expected default region 'eu-west-2', got %q", cfg.Directory.Region)
	}
	if cfg.Directory.PageSize != 60 {
		t.Errorf("Expected default page size 60, got %d", cfg.Directory.PageSize)
	}
	if cfg.Directory.FeaturesAttribute != "custom:features" {
		t.Errorf("Expected default features attribute, got %q", cfg.Directory.FeaturesAttribute)
	}
}

func TestApplyDefaults_Migration(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Migration.Workers != 8 {
		t.Errorf("Expected default workers 8, got %d", cfg.Migration.Workers)
	}
	if cfg.Migration.PageTimeout != 30*time.Second {
		t.Errorf("Expected default page timeout 30s, got %v", cfg.Migration.PageTimeout)
	}
	if cfg.Migration.DryRun {
		t.Error("Expected dry run to default to false")
	}
}

func TestApplyDefaults_DatabaseAndApply(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Database.Type != store.DatabaseTypeSQLite {
		t.Errorf("Expected default database type sqlite, got %q", cfg.Database.Type)
	}
	if cfg.Database.SQLite.Path == "" {
		t.Error("Expected default sqlite path to be set")
	}
	if cfg.Database.AutoMigrate {
		t.Error("Expected auto_migrate to default to false")
	}
	if cfg.Apply.Type != ApplyNone {
		t.Errorf("Expected default apply type 'none', got %q", cfg.Apply.Type)
	}
}

func TestApplyDefaults_Privacy(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Privacy.Enabled {
		t.Error("Expected privacy to default to disabled")
	}
	if cfg.Privacy.KeyNamespace != privacy.DefaultKeyNamespace {
		t.Errorf("Expected default key namespace, got %q", cfg.Privacy.KeyNamespace)
	}
	if cfg.Privacy.Context["purpose"] != privacy.DefaultPurpose {
		t.Errorf("Expected default purpose context, got %v", cfg.Privacy.Context)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{
			Level:  "debug",
			Format: "json",
			Output: "/var/log/dirmigrate.log",
		},
		Database: store.Config{
			Type:     store.DatabaseTypePostgres,
			Postgres: store.PostgresConfig{Host: "db", Port: 6543},
		},
		Migration: MigrationConfig{
			Workers:     2,
			PageTimeout: time.Minute,
		},
		Apply: ApplyConfig{Type: "POSTGRES"},
	}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected log level normalized to 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Output != "/var/log/dirmigrate.log" {
		t.Errorf("Expected explicit output preserved, got %q", cfg.Logging.Output)
	}
	if cfg.Database.Postgres.Port != 6543 {
		t.Errorf("Expected explicit postgres port preserved, got %d", cfg.Database.Postgres.Port)
	}
	if cfg.Migration.Workers != 2 || cfg.Migration.PageTimeout != time.Minute {
		t.Errorf("Expected explicit migration settings preserved, got %+v", cfg.Migration)
	}
	if cfg.Apply.Type != ApplyPostgres {
		t.Errorf("Expected apply type normalized to 'postgres', got %q", cfg.Apply.Type)
	}
	if cfg.Apply.Postgres.Relation != "gap_user" {
		t.Errorf("Expected apply postgres defaults applied, got relation %q", cfg.Apply.Postgres.Relation)
	}
}

func TestGetDefaultConfig_IsValid(t *testing.T) {
	if err := Validate(GetDefaultConfig()); err != nil {
		t.Errorf("Expected default config to be valid, got: %v", err)
	}
}
