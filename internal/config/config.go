// Package config loads teamsync settings: built-in defaults, then an
// optional YAML file, then TEAMSYNC_* environment variables. The result is
// checked against an embedded CUE schema.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource []byte

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "TEAMSYNC_"

// Config holds the settings shared by the CLI commands.
type Config struct {
	AppName                string        `yaml:"app_name" env:"APP_NAME"`
	Database               string        `yaml:"database" env:"DATABASE"`
	AuthSecret             string        `yaml:"auth_secret" env:"AUTH_SECRET"`
	AuthIssuer             string        `yaml:"auth_issuer" env:"AUTH_ISSUER"`
	UsersCollection        string        `yaml:"users_collection" env:"USERS_COLLECTION"`
	TeamsCollection        string        `yaml:"teams_collection" env:"TEAMS_COLLECTION"`
	IncludeMetadataChanges bool          `yaml:"include_metadata_changes" env:"INCLUDE_METADATA_CHANGES"`
	LogLevel               string        `yaml:"log_level" env:"LOG_LEVEL"`
	TokenTTL               time.Duration `yaml:"token_ttl" env:"TOKEN_TTL"`
}

// Default returns the built-in settings. The auth secret is a development
// value; override it outside local use.
func Default() Config {
	return Config{
		AppName:         "teamsync",
		Database:        "teamsync.db",
		AuthSecret:      "teamsync-dev-secret",
		AuthIssuer:      "teamsync-local",
		UsersCollection: "users",
		TeamsCollection: "teams",
		LogLevel:        "info",
		TokenTTL:        time.Hour,
	}
}

// Load reads the config file at path (skipped when empty), applies
// environment overrides, and validates the result.
func Load(path string) (Config, error) {
	return load(path, nil)
}

// load takes the environment explicitly; nil means the process environment.
func load(path string, environ map[string]string) (Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		if err := decodeYAML(f, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{
		Prefix:      EnvPrefix,
		Environment: environ,
	}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks the config against the embedded schema.
func (c Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	if c.TokenTTL%time.Second != 0 {
		return fmt.Errorf("invalid config: token_ttl must be whole seconds, got %s", c.TokenTTL)
	}
	v := schema.Unify(ctx.Encode(c.view()))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// view is the shape the schema constrains.
func (c Config) view() map[string]any {
	return map[string]any{
		"app_name":                 c.AppName,
		"database":                 c.Database,
		"auth_secret":              c.AuthSecret,
		"auth_issuer":              c.AuthIssuer,
		"users_collection":         c.UsersCollection,
		"teams_collection":         c.TeamsCollection,
		"include_metadata_changes": c.IncludeMetadataChanges,
		"log_level":                c.LogLevel,
		"token_ttl_seconds":        int64(c.TokenTTL / time.Second),
	}
}

// SlogLevel maps LogLevel to a slog level. Unknown values map to Info.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.AuthSecret != "" {
		c.AuthSecret = "***"
	}
	return c
}

// Marshal renders the config as YAML.
func (c Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}
