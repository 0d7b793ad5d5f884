// Package config loads the rws command defaults from built-in values, an
// optional YAML file and RWS_* environment variables, in that order of
// precedence (later wins).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
)

// DefaultFile is read from the working directory when no file is given.
const DefaultFile = "rws.yaml"

// EnvPrefix marks the environment variables that override the file.
const EnvPrefix = "RWS_"

// Config holds the defaults of every rws command.
type Config struct {
	// OutputDir receives derived files when a scenario names none.
	OutputDir string `koanf:"output_dir"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `koanf:"log_level"`

	// Format is text or json.
	Format string `koanf:"format"`

	// Archive is the sqlite archive path; empty disables archiving.
	Archive string `koanf:"archive"`

	// Qx and Qy are the target tunes checked against matched tables.
	Qx float64 `koanf:"qx"`
	Qy float64 `koanf:"qy"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		OutputDir: "out",
		LogLevel:  "info",
		Format:    "text",
		Qx:        62.31,
		Qy:        60.32,
	}
}

// Load merges the defaults, the YAML file at path and the environment. An
// empty path reads DefaultFile if it exists; an explicit path must exist.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
	} else {
		slog.Debug("loaded config file", "path", path)
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil)
	if err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	var c Config
	if err := k.Unmarshal("", &c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the enumerated settings.
func (c Config) Validate() error {
	if c.Format != "text" && c.Format != "json" {
		return fmt.Errorf("invalid format %q: must be 'text' or 'json'", c.Format)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.Qx <= 0 || c.Qy <= 0 {
		return fmt.Errorf("invalid tunes qx=%v qy=%v: must be positive", c.Qx, c.Qy)
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return l, nil
}
