// Package config loads the DSL plugin configuration: which methods trigger a
// generator, and how the generator is launched.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/go-analyze/bulk"
	"github.com/goccy/go-yaml"
)

// DefaultExecutable is the interpreter every generator command is run with.
const DefaultExecutable = "ruby"

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid dsl plugin config")

// file mirrors the on-disk YAML document.
type file struct {
	RubyExtraArgs []string          `yaml:"ruby_extra_args"`
	Executable    string            `yaml:"executable"`
	Timeout       string            `yaml:"timeout"`
	Triggers      map[string]string `yaml:"triggers"`
}

// Config is the validated plugin configuration. It is read-only once
// loaded. A nil *Config behaves as a configuration with no plugins.
type Config struct {
	executable string
	extraArgs  []string
	timeout    time.Duration
	triggers   map[string]string
}

// Load reads and validates the YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a YAML document.
func Parse(data []byte) (*Config, error) {
	var raw file
	if err := yaml.UnmarshalWithOptions(data, &raw, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	cfg := &Config{
		executable: strings.TrimSpace(raw.Executable),
		extraArgs:  slices.Clone(raw.RubyExtraArgs),
		triggers:   make(map[string]string, len(raw.Triggers)),
	}
	if cfg.executable == "" {
		cfg.executable = DefaultExecutable
	}
	if raw.Timeout != "" {
		d, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return nil, fmt.Errorf("%w: timeout: %w", ErrInvalidConfig, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("%w: timeout must not be negative", ErrInvalidConfig)
		}
		cfg.timeout = d
	}
	for method, command := range raw.Triggers {
		method = strings.TrimSpace(method)
		if method == "" {
			return nil, fmt.Errorf("%w: trigger with empty method name", ErrInvalidConfig)
		}
		if strings.TrimSpace(command) == "" {
			return nil, fmt.Errorf("%w: trigger %q has no command", ErrInvalidConfig, method)
		}
		cfg.triggers[method] = command
	}
	return cfg, nil
}

// New builds a configuration directly, mostly for tests and embedding.
func New(executable string, extraArgs []string, triggers map[string]string) *Config {
	if executable == "" {
		executable = DefaultExecutable
	}
	cfg := &Config{
		executable: executable,
		extraArgs:  slices.Clone(extraArgs),
		triggers:   make(map[string]string, len(triggers)),
	}
	for k, v := range triggers {
		cfg.triggers[k] = v
	}
	return cfg
}

// HasAnyDslPlugin reports whether at least one trigger is registered.
func (c *Config) HasAnyDslPlugin() bool {
	return c != nil && len(c.triggers) > 0
}

// FindDslPlugin returns the command registered for method.
func (c *Config) FindDslPlugin(method string) (string, bool) {
	if c == nil {
		return "", false
	}
	cmd, ok := c.triggers[method]
	return cmd, ok
}

// ExtraArgs returns the arguments placed before the command on every
// invocation. The slice must not be modified.
func (c *Config) ExtraArgs() []string {
	if c == nil {
		return nil
	}
	return c.extraArgs
}

// Executable returns the program generator commands are run with.
func (c *Config) Executable() string {
	if c == nil || c.executable == "" {
		return DefaultExecutable
	}
	return c.executable
}

// Timeout returns the per-invocation time limit, zero meaning none.
func (c *Config) Timeout() time.Duration {
	if c == nil {
		return 0
	}
	return c.timeout
}

// Triggers returns the registered method names in sorted order.
func (c *Config) Triggers() []string {
	if c == nil {
		return nil
	}
	names := bulk.MapKeysSlice(c.triggers)
	slices.Sort(names)
	return names
}
