// Package config handles stackvm.toml configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/stackvm/errors"
)

// FileName is the configuration file looked up by FindAndLoad.
const FileName = "stackvm.toml"

// DefaultBudget is the step budget used when none is configured.
const DefaultBudget = 10000

// Config represents a stackvm.toml file.
type Config struct {
	Execution Execution `toml:"execution"`
	Log       Log       `toml:"log"`

	// Path is the file the configuration was read from, empty for defaults.
	Path string `toml:"-"`
}

// Execution configures the interpreter.
type Execution struct {
	Budget int `toml:"budget"`
}

// Log configures the CLI logger.
type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Execution: Execution{Budget: DefaultBudget},
		Log:       Log{Level: "info", Format: "console"},
	}
}

// Load parses the configuration file at path. Keys absent from the file keep
// their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "read "+path)
	}

	c := Default()
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "parse "+path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.InvalidData(errors.PhaseConfig,
			fmt.Sprintf("%s: unknown key %s", path, undecoded[0]))
	}
	c.Path = path

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// FindAndLoad walks up from startDir looking for stackvm.toml and loads the
// first one found. Without a file it returns Default.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "resolve "+startDir)
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if c.Execution.Budget <= 0 {
		return errors.InvalidData(errors.PhaseConfig,
			fmt.Sprintf("execution.budget must be positive, got %d", c.Execution.Budget))
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return errors.InvalidData(errors.PhaseConfig,
			fmt.Sprintf("log.format must be console or json, got %q", c.Log.Format))
	}
	return nil
}

// Level parses the configured log level.
func (c *Config) Level() (zapcore.Level, error) {
	lvl, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return lvl, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "log.level")
	}
	return lvl, nil
}
