package dbforensic

import (
	"fmt"
	"os"
	"regexp"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// Config is the top-level dbforensic configuration, loaded from a YAML file
// (dbforensic.yaml by default) with environment-variable expansion and
// .env overlay, mirroring how connection secrets are kept out of the file.
type Config struct {
	Provider      string              `yaml:"provider"` // "sqlserver" or "postgres"
	Connection    ConnectionConfig    `yaml:"connection"`
	DefaultSchema string              `yaml:"default_schema"`
	SchemaFilter  SchemaFilterConfig  `yaml:"schema_filter"`
	Health        HealthConfig        `yaml:"health"`
	Migration     MigrationConfig     `yaml:"migration"`
}

// ConnectionConfig names the DSN used to open a live connection. Secrets are
// expected to arrive via environment variable expansion, never written in
// plain text to the config file itself.
type ConnectionConfig struct {
	DSN             string `yaml:"dsn"`
	SchemaSnapshot  string `yaml:"schema_snapshot"` // path to a tbls JSON dump, alternative to DSN
}

// SchemaFilterConfig lists include/exclude name patterns for tables and
// views. The analysis pipeline does not apply them.
type SchemaFilterConfig struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

// HealthConfig holds CLI-level defaults for the health command.
type HealthConfig struct {
	FailUnder int `yaml:"fail_under"` // 0 means no threshold enforced
}

// MigrationConfig holds migration-output settings. SafeMode is not read by
// `diff --format sql`: migrate.Emit always guards DDL with existence checks
// and comments out Critical drops.
type MigrationConfig struct {
	SafeMode bool `yaml:"safe_mode"`
}

func defaultConfig() *Config {
	return &Config{
		Provider:      "postgres",
		DefaultSchema: "public",
		SchemaFilter: SchemaFilterConfig{
			Include: []string{"*"},
			Exclude: []string{"pg_*", "information_schema*", "sys"},
		},
		Health: HealthConfig{
			FailUnder: 0,
		},
		Migration: MigrationConfig{
			SafeMode: true,
		},
	}
}

// LoadConfig reads configPath, applying .env overlay and environment
// variable expansion. A missing file is not an error: the default
// configuration is returned instead.
func LoadConfig(configPath string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("failed to load environment file: %w", err)
	}

	if !fileExists(configPath) {
		cfg := defaultConfig()
		expandConfigEnvVars(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.UnmarshalWithOptions(data, cfg, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	expandConfigEnvVars(cfg)
	return cfg, nil
}

func validateConfig(cfg *Config) error {
	switch cfg.Provider {
	case "postgres", "sqlserver":
	default:
		return fmt.Errorf("%w: provider '%s': must be postgres or sqlserver", ErrConfigValidation, cfg.Provider)
	}
	if cfg.Health.FailUnder < 0 || cfg.Health.FailUnder > 100 {
		return fmt.Errorf("%w: health.fail_under must be within [0, 100], got %d", ErrConfigValidation, cfg.Health.FailUnder)
	}
	return nil
}

func loadEnvFile() error {
	if fileExists(".env") {
		if err := godotenv.Load(".env"); err != nil {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}
	return nil
}

var envVarBraced = regexp.MustCompile(`\$\{([^}]+)\}`)
var envVarBare = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)

func expandEnvVars(s string) string {
	s = envVarBraced.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
	s = envVarBare.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[1:])
	})
	return s
}

func expandConfigEnvVars(cfg *Config) {
	cfg.Connection.DSN = expandEnvVars(cfg.Connection.DSN)
	cfg.Connection.SchemaSnapshot = expandEnvVars(cfg.Connection.SchemaSnapshot)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
