package config

// This file contains the configuration shared by the cli commands.

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultFile is read from the working directory when no path is given.
const DefaultFile = ".subunit.yaml"

// Environment variables overriding the file.
const (
	EnvConfig         = "SUBUNIT_CONFIG"
	EnvNonSubunitName = "SUBUNIT_NON_SUBUNIT_NAME"
	EnvMode           = "SUBUNIT_MODE"
	EnvHistoryDir     = "SUBUNIT_HISTORY_DIR"
	EnvRecord         = "SUBUNIT_RECORD"
)

// Config mirrors the global cli flags. Zero values mean "not set".
type Config struct {
	// NonSubunitName names the file that carries non-subunit bytes in v2 output
	NonSubunitName string `yaml:"non_subunit_name,omitempty"`
	// Mode is the v1 parser policy: lenient, legacy or strict
	Mode string `yaml:"mode,omitempty"`
	// HistoryDir is where run records are written
	HistoryDir string `yaml:"history_dir,omitempty"`
	// Record enables writing a history record for every processed stream
	Record *bool `yaml:"record,omitempty"`
	// Separators split test ids into frames of the timing profile
	Separators *string `yaml:"separators,omitempty"`
	// ExpectedFailures lists test ids whose failures are expected
	ExpectedFailures []string `yaml:"expected_failures,omitempty"`
}

// Load reads the config at path, or the file named by SUBUNIT_CONFIG, or
// .subunit.yaml in the working directory, then applies the environment.
// Only the implicit default file may be missing.
func Load(path string) (Config, error) {
	explicit := true
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path == "" {
		path = DefaultFile
		explicit = false
	}

	cfg, err := loadFile(path, explicit)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, mustExist bool) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	data = []byte(strings.TrimSpace(string(data)))
	if len(data) == 0 {
		return Config{}, nil
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvNonSubunitName); v != "" {
		c.NonSubunitName = v
	}
	if v := os.Getenv(EnvMode); v != "" {
		c.Mode = v
	}
	if v := os.Getenv(EnvHistoryDir); v != "" {
		c.HistoryDir = v
	}
	if v := os.Getenv(EnvRecord); v != "" {
		record, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvRecord, err)
		}
		c.Record = &record
	}
	return nil
}

// RecordEnabled reports whether history records should be written.
func (c Config) RecordEnabled() bool {
	return c.Record != nil && *c.Record
}
