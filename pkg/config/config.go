// Package config loads the YAML configuration shared by txstage binaries.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sushant-115/txstage/pkg/logger"
	"github.com/sushant-115/txstage/pkg/telemetry"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration file layout.
type Config struct {
	Logger    logger.Config    `yaml:"logger"`
	Telemetry telemetry.Config `yaml:"telemetry"`
	CLI       CLIConfig        `yaml:"cli"`
}

// CLIConfig configures the interactive shell.
type CLIConfig struct {
	Prompt string `yaml:"prompt"`
	// HistoryFile persists shell history between sessions. Empty disables it.
	HistoryFile string `yaml:"history_file"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Logger:    logger.DefaultConfig(),
		Telemetry: telemetry.Config{Enabled: false, ServiceName: "txstage"},
		CLI:       CLIConfig{Prompt: "txstage> "},
	}
}

// Load reads path and overlays it on Default. Unknown fields are rejected.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over Default.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	return cfg, nil
}
