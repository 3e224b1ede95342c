// Package config holds loxvm constants and the loxvm.yaml settings loader.
//
// A config file is optional. When present it looks like:
//
//	trace: true
//	color: never
//	max_stack: 4096
//	log_file: /tmp/loxvm.log
//	verbosity: 2
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the top-level loxvm.yaml configuration.
type Config struct {
	// Trace prints the operand stack and the next instruction before every step.
	Trace bool `yaml:"trace"`

	// Color controls ANSI coloring of trace output: auto, always or never.
	// Defaults to auto, which colors only when the trace writer is a terminal.
	Color string `yaml:"color,omitempty"`

	// MaxStack caps the operand stack depth.
	MaxStack int `yaml:"max_stack,omitempty"`

	// LogFile sends log output to a file instead of stderr.
	LogFile string `yaml:"log_file,omitempty"`

	// Verbosity maps to the maximum log level (0 notice, 1 info, 2 debug).
	Verbosity int `yaml:"verbosity,omitempty"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// Load reads and parses a loxvm.yaml file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse parses loxvm.yaml content from bytes.
// The path argument is used only for error messages.
func Parse(data []byte, path string) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.setDefaults()
	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Find looks for a config file in dir and its parents.
// Returns an empty path and nil error if none exists.
func Find(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		for _, name := range ConfigFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// ApplyEnv overrides settings from the environment.
func (c *Config) ApplyEnv() {
	switch os.Getenv(TraceEnvVar) {
	case "1", "true", "yes":
		c.Trace = true
	case "0", "false", "no":
		c.Trace = false
	}
}

func (c *Config) setDefaults() {
	if c.Color == "" {
		c.Color = ColorAuto
	}
	if c.MaxStack == 0 {
		c.MaxStack = DefaultMaxStack
	}
}

// validate checks the configuration for semantic errors.
func (c *Config) validate(path string) error {
	switch c.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return fmt.Errorf("%s: color must be one of %s, %s, %s (got %q)",
			path, ColorAuto, ColorAlways, ColorNever, c.Color)
	}
	if c.MaxStack < 0 {
		return fmt.Errorf("%s: max_stack must be positive (got %d)", path, c.MaxStack)
	}
	return nil
}
