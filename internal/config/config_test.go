package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "teamsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load("", map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.NoError(t, Default().Validate())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
database: /tmp/other.db
users_collection: people
include_metadata_changes: true
log_level: debug
token_ttl: 30m
`)
	cfg, err := load(path, map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, "/tmp/other.db", cfg.Database)
	assert.Equal(t, "people", cfg.UsersCollection)
	assert.Equal(t, "teams", cfg.TeamsCollection, "unset keys keep defaults")
	assert.True(t, cfg.IncludeMetadataChanges)
	assert.Equal(t, 30*time.Minute, cfg.TokenTTL)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "database: from-file.db\nlog_level: debug\n")
	cfg, err := load(path, map[string]string{
		"TEAMSYNC_DATABASE":    "from-env.db",
		"TEAMSYNC_TOKEN_TTL":   "2h",
		"TEAMSYNC_AUTH_SECRET": "a-much-longer-secret",
		"DATABASE":             "ignored-without-prefix.db",
	})
	require.NoError(t, err)

	assert.Equal(t, "from-env.db", cfg.Database)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "a-much-longer-secret", cfg.AuthSecret)
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := load(writeConfig(t, ""), map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_UnknownKey(t *testing.T) {
	_, err := load(writeConfig(t, "databse: typo.db\n"), map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "databse")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "missing.yaml"), map[string]string{})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_BadEnvValue(t *testing.T) {
	_, err := load("", map[string]string{"TEAMSYNC_TOKEN_TTL": "soon"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"short secret", func(c *Config) { c.AuthSecret = "short" }},
		{"empty database", func(c *Config) { c.Database = "" }},
		{"empty issuer", func(c *Config) { c.AuthIssuer = "" }},
		{"bad app name", func(c *Config) { c.AppName = "Team Sync" }},
		{"collection with slash", func(c *Config) { c.UsersCollection = "a/b" }},
		{"same collections", func(c *Config) { c.TeamsCollection = c.UsersCollection }},
		{"zero ttl", func(c *Config) { c.TokenTTL = 0 }},
		{"ttl too long", func(c *Config) { c.TokenTTL = 31 * 24 * time.Hour }},
		{"fractional ttl", func(c *Config) { c.TokenTTL = 1500 * time.Millisecond }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid config")
		})
	}
}

func TestSlogLevel(t *testing.T) {
	for level, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
	} {
		assert.Equal(t, want, Config{LogLevel: level}.SlogLevel(), level)
	}
}

func TestMarshal_RoundTripsThroughLoad(t *testing.T) {
	cfg := Default()
	cfg.Database = "round.db"
	cfg.TokenTTL = 45 * time.Minute

	out, err := cfg.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(out), "token_ttl: 45m0s")

	loaded, err := load(writeConfig(t, string(out)), map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestRedacted(t *testing.T) {
	cfg := Default().Redacted()
	assert.Equal(t, "***", cfg.AuthSecret)
	assert.Equal(t, "teamsync-dev-secret", Default().AuthSecret)
}
