package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dirmigrate/internal/cli/output"
	"github.com/marmos91/dirmigrate/pkg/config"
	"github.com/marmos91/dirmigrate/pkg/directory"
	"github.com/marmos91/dirmigrate/pkg/privacy"
	"github.com/marmos91/dirmigrate/pkg/reconcile"
	"github.com/marmos91/dirmigrate/pkg/userservice/store"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// execute runs the root command with args and returns what it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		configFile = ""
		outputFormat = "table"
	})
	err := rootCmd.Execute()
	return buf.String(), err
}

// writeConfig writes a config file into a fresh XDG layout.
func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	path := filepath.Join(dir, "dirmigrate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func record(id, contact, features string) directory.Record {
	return directory.Record{
		ID:       id,
		Contact:  contact,
		Username: id,
		Enabled:  true,
		Status:   "CONFIRMED",
		Attributes: []directory.Attribute{
			{Name: "sub", Value: id},
			{Name: "email", Value: contact},
			{Name: "custom:features", Value: features},
		},
	}
}

func testRunConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	cfg := config.GetDefaultConfig()
	cfg.Directory.PoolID = "eu-west-2_test"
	cfg.Database.SQLite.Path = ":memory:"
	cfg.Database.AutoMigrate = true
	return cfg
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)
}

func TestRoles(t *testing.T) {
	path := writeConfig(t, `
migration:
  role_mappings:
    - token: auditor
      roles: [FIND, AUDIT]
`)

	out, err := execute(t, "roles", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "TOKEN")
	assert.Contains(t, out, "super_administrator")
	assert.Contains(t, out, "APPLICANT, FIND, ADMIN, SUPER_ADMIN")
	assert.Contains(t, out, "FIND, AUDIT")
}

func TestHashAndDecrypt(t *testing.T) {
	path := writeConfig(t, "privacy:\n  secret: "+testSecret+"\n")

	transformer, err := privacy.New(privacy.Config{Secret: testSecret})
	require.NoError(t, err)

	out, err := execute(t, "hash", "alice@example.gov.uk", "--config", path)
	require.NoError(t, err)
	assert.Equal(t, transformer.Hash("alice@example.gov.uk")+"\n", out)

	protected, err := transformer.Protect("alice@example.gov.uk")
	require.NoError(t, err)

	out, err = execute(t, "decrypt", protected.Ciphertext, "--config", path)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.gov.uk\n", out)

	_, err = execute(t, "decrypt", "bm90IGFuIGVudmVsb3Bl", "--config", path)
	assert.Error(t, err)
}

func TestHashWithoutSecret(t *testing.T) {
	path := writeConfig(t, "")
	_, err := execute(t, "hash", "alice@example.gov.uk", "--config", path)
	assert.ErrorIs(t, err, privacy.ErrNoSecret)
}

func TestConfigInitValidateShow(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)
	path := filepath.Join(dir, "generated.yaml")

	out, err := execute(t, "config", "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	_, err = execute(t, "config", "init", "--config", path)
	assert.Error(t, err, "existing file is not overwritten without --force")

	out, err = execute(t, "config", "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Validation: OK")
	assert.Contains(t, out, "directory.pool_id is not set")

	cfg, err := config.MustLoad(path)
	require.NoError(t, err)
	require.NotEmpty(t, cfg.Privacy.Secret)

	out, err = execute(t, "config", "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "********")
	assert.NotContains(t, out, cfg.Privacy.Secret)
}

func TestConfigSchema(t *testing.T) {
	out, err := execute(t, "config", "schema")
	require.NoError(t, err)
	assert.Contains(t, out, `"title": "dirmigrate configuration"`)
	assert.Contains(t, out, `"pool_id"`)
	assert.Contains(t, out, `"role_mappings"`)
}

func TestApplyRunFlags(t *testing.T) {
	t.Run("pool id required", func(t *testing.T) {
		assert.Error(t, applyRunFlags(runCmd, config.GetDefaultConfig()))
	})

	t.Run("flags override configuration", func(t *testing.T) {
		t.Cleanup(func() {
			runDryRun, runPoolID, runWorkers = false, "", 0
			runCmd.Flags().Lookup("dry-run").Changed = false
			runCmd.Flags().Lookup("pool-id").Changed = false
			runCmd.Flags().Lookup("workers").Changed = false
		})
		require.NoError(t, runCmd.Flags().Set("dry-run", "true"))
		require.NoError(t, runCmd.Flags().Set("pool-id", "eu-west-2_flag"))
		require.NoError(t, runCmd.Flags().Set("workers", "3"))

		cfg := config.GetDefaultConfig()
		require.NoError(t, applyRunFlags(runCmd, cfg))
		assert.True(t, cfg.Migration.DryRun)
		assert.Equal(t, "eu-west-2_flag", cfg.Directory.PoolID)
		assert.Equal(t, 3, cfg.Migration.Workers)
	})
}

func TestExecuteRun(t *testing.T) {
	cfg := testRunConfig(t)
	src := directory.NewStaticSource([]directory.Record{
		record("u1", "a@b.com", "dept=Treasury,user=ordinary_user"),
		record("u2", "c@d.com", "dept=HMRC,user=administrator"),
	})

	var buf bytes.Buffer
	summary, err := executeRun(context.Background(), cfg, src, output.NewPrinter(&buf, output.FormatTable, false))
	require.NoError(t, err)

	assert.False(t, summary.DryRun)
	assert.Equal(t, 2, summary.UsersCreated)
	assert.Equal(t, 2, summary.DepartmentsCreated)
	assert.Equal(t, 3, summary.RolesCreated)
	assert.Equal(t, 5, summary.Associations)
	assert.Equal(t, 2, summary.Unmatched)

	out := buf.String()
	assert.Contains(t, out, "users created")
	assert.Contains(t, out, "Migration committed.")
}

func TestExecuteRunDryRun(t *testing.T) {
	cfg := testRunConfig(t)
	cfg.Migration.DryRun = true
	src := directory.NewStaticSource([]directory.Record{
		record("u1", "a@b.com", "dept=Treasury,user=ordinary_user"),
	})

	runStatements = true
	t.Cleanup(func() { runStatements = false })

	var buf bytes.Buffer
	summary, err := executeRun(context.Background(), cfg, src, output.NewPrinter(&buf, output.FormatTable, false))
	require.NoError(t, err)

	assert.True(t, summary.DryRun)
	assert.Equal(t, 1, summary.UsersCreated)

	out := buf.String()
	assert.Contains(t, out, "dry-run")
	assert.Contains(t, out, "roles_users")
	// one department, two roles, one user, two associations
	assert.Contains(t, out, "Dry run: 6 statements journaled, nothing written.")
}

func TestExecuteRunStoreUnavailable(t *testing.T) {
	cfg := testRunConfig(t)
	cfg.Database.Type = store.DatabaseTypePostgres
	cfg.Database.Postgres = store.PostgresConfig{}

	var buf bytes.Buffer
	_, err := executeRun(context.Background(), cfg, directory.NewStaticSource(), output.NewPrinter(&buf, output.FormatTable, false))
	assert.ErrorIs(t, err, reconcile.ErrStoreUnavailable)
}
