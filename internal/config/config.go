// Package config loads formvis settings from a YAML file and the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the file.
const (
	EnvBaseURL  = "FORMVIS_BASE_URL"
	EnvUsername = "FORMVIS_USERNAME"
	EnvPassword = "FORMVIS_PASSWORD"
)

// Config is the root of formvis.yaml.
type Config struct {
	Activiti Activiti `yaml:"activiti"`
	Log      Log      `yaml:"log"`
	Trace    Trace    `yaml:"trace"`
}

// Activiti holds the REST endpoint and credentials.
type Activiti struct {
	BaseURL  string        `yaml:"base_url"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Log selects the log level: debug, info, warn or error.
type Log struct {
	Level string `yaml:"level"`
}

// Trace enables span export to a file when File is set.
type Trace struct {
	File string `yaml:"file"`
}

// Default returns the settings used when no file is given.
func Default() *Config {
	return &Config{
		Activiti: Activiti{Timeout: 30 * time.Second},
		Log:      Log{Level: "info"},
	}
}

// Load reads path (when not empty) over the defaults, then applies the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvBaseURL); ok {
		c.Activiti.BaseURL = v
	}
	if v, ok := lookup(EnvUsername); ok {
		c.Activiti.Username = v
	}
	if v, ok := lookup(EnvPassword); ok {
		c.Activiti.Password = v
	}
}

// Validate checks values that cannot be checked by the YAML decoder.
func (c *Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.Activiti.Timeout < 0 {
		return fmt.Errorf("activiti.timeout must not be negative, got %s", c.Activiti.Timeout)
	}
	return nil
}

// Level parses the configured log level.
func (c *Config) Level() (zapcore.Level, error) {
	if c.Log.Level == "" {
		return zapcore.InfoLevel, nil
	}
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return level, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
