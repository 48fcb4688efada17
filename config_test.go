package dbforensic

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Provider)
	assert.Equal(t, "public", cfg.DefaultSchema)
	assert.True(t, cfg.Migration.SafeMode)
}

func TestLoadConfigParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dbforensic.yaml")
	contents := "provider: sqlserver\ndefault_schema: dbo\nhealth:\n  fail_under: 70\n"
	assert.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := LoadConfig(path)
	assert.NoError(t, err)
	assert.Equal(t, "sqlserver", cfg.Provider)
	assert.Equal(t, "dbo", cfg.DefaultSchema)
	assert.Equal(t, 70, cfg.Health.FailUnder)
}

func TestLoadConfigRejectsUnknownProvider(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dbforensic.yaml")
	assert.NoError(t, os.WriteFile(path, []byte("provider: mysql\n"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigRejectsOutOfRangeFailUnder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dbforensic.yaml")
	assert.NoError(t, os.WriteFile(path, []byte("provider: postgres\nhealth:\n  fail_under: 150\n"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestExpandEnvVarsBracedAndBareForms(t *testing.T) {
	t.Setenv("DBF_TEST_HOST", "db.internal")
	assert.Equal(t, "postgres://db.internal/app", expandEnvVars("postgres://${DBF_TEST_HOST}/app"))
	assert.Equal(t, "host=db.internal", expandEnvVars("host=$DBF_TEST_HOST"))
}
