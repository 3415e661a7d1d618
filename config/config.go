// Package config loads tconsole settings from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"

	"github.com/karolba/tconsole/consolelog"
	"github.com/karolba/tconsole/terminalconsole"
)

const (
	EnvLevel   = "TCONSOLE_LEVEL"
	EnvPattern = "TCONSOLE_PATTERN"
	EnvAsync   = "TCONSOLE_ASYNC"
)

type Config struct {
	Terminal Terminal `yaml:"terminal"`
	Layout   Layout   `yaml:"layout"`
	Level    string   `yaml:"level"`
	Async    bool     `yaml:"async"`
	Prompt   string   `yaml:"prompt"`
}

type Terminal struct {
	Enabled bool `yaml:"enabled"`

	// Ansi is "auto", "true" or "false"
	Ansi string `yaml:"ansi"`

	IncompatibleEnv []string `yaml:"incompatible_env"`
}

type Layout struct {
	Pattern string `yaml:"pattern"`

	// DisableAnsi is expanded with terminalconsole.Session.Expand before it's parsed as a boolean
	DisableAnsi string `yaml:"disable_ansi"`
}

func Default() Config {
	return Config{
		Terminal: Terminal{
			Enabled:         true,
			Ansi:            "auto",
			IncompatibleEnv: slices.Clone(terminalconsole.DefaultIncompatibleEnv),
		},
		Layout: Layout{
			Pattern:     consolelog.DefaultPattern,
			DisableAnsi: "${" + terminalconsole.LookupPrefix + ":" + terminalconsole.KeyDisableAnsi + "}",
		},
		Level:  "info",
		Prompt: "§7> ",
	}
}

// Load reads the YAML file at path on top of the defaults. Settings missing from the file keep their default value.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("could not read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("could not parse config file %s: %w", path, err)
	}

	cfg.normalize()
	return cfg, cfg.Validate()
}

// ApplyEnv overrides settings from TCONSOLE_* environment variables.
func (c *Config) ApplyEnv(lookupEnv func(string) (string, bool)) error {
	if value, ok := lookupEnv(terminalconsole.EnvTerminal); ok {
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", terminalconsole.EnvTerminal, err)
		}
		c.Terminal.Enabled = enabled
	}
	if value, ok := lookupEnv(terminalconsole.EnvAnsi); ok {
		c.Terminal.Ansi = value
	}
	if value, ok := lookupEnv(EnvLevel); ok {
		c.Level = value
	}
	if value, ok := lookupEnv(EnvPattern); ok {
		c.Layout.Pattern = value
	}
	if value, ok := lookupEnv(EnvAsync); ok {
		async, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvAsync, err)
		}
		c.Async = async
	}

	c.normalize()
	return c.Validate()
}

func (c *Config) normalize() {
	c.Terminal.Ansi = strings.ToLower(strings.TrimSpace(c.Terminal.Ansi))

	slices.Sort(c.Terminal.IncompatibleEnv)
	c.Terminal.IncompatibleEnv = slices.Compact(c.Terminal.IncompatibleEnv)
	c.Terminal.IncompatibleEnv = slices.DeleteFunc(c.Terminal.IncompatibleEnv, func(name string) bool {
		return strings.TrimSpace(name) == ""
	})
}

func (c *Config) Validate() error {
	var errs []error
	if _, err := c.AnsiOverride(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Layout.Pattern == "" {
		errs = append(errs, errors.New("layout.pattern must not be empty"))
	}
	return errors.Join(errs...)
}

// AnsiOverride returns nil for auto-detection.
func (c *Config) AnsiOverride() (*bool, error) {
	switch c.Terminal.Ansi {
	case "", "auto":
		return nil, nil
	}

	ansi, err := strconv.ParseBool(c.Terminal.Ansi)
	if err != nil {
		return nil, fmt.Errorf("terminal.ansi must be auto, true or false, got %q", c.Terminal.Ansi)
	}
	return &ansi, nil
}

func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return 0, fmt.Errorf("invalid level %q: %w", c.Level, err)
	}
	return level, nil
}

// DisableAnsi expands layout.disable_ansi (usually with Session.Expand) and parses the result. An empty value
// means false.
func (c *Config) DisableAnsi(expand func(string) string) (bool, error) {
	value := strings.TrimSpace(expand(c.Layout.DisableAnsi))
	if value == "" {
		return false, nil
	}

	disable, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("layout.disable_ansi: %q is not a boolean", value)
	}
	return disable, nil
}

// SessionOptions turns the terminal settings into options for terminalconsole.New.
func (c *Config) SessionOptions() ([]terminalconsole.Option, error) {
	override, err := c.AnsiOverride()
	if err != nil {
		return nil, err
	}

	return []terminalconsole.Option{
		terminalconsole.WithEnabled(c.Terminal.Enabled),
		terminalconsole.WithAnsiOverride(override),
		terminalconsole.WithIncompatibleEnv(c.Terminal.IncompatibleEnv...),
	}, nil
}
