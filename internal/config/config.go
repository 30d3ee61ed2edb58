// Package config loads store settings from an optional YAML file, overlaid
// with an optional .env file and the process environment, into a plain
// *Config value owned by the caller rather than a package-level singleton
// (the engine opens many stores in tests, each wanting its own settings).
package config

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"kvengine/internal/engine"
)

// Config holds the settings needed to open a store.
type Config struct {
	DataDir             string `yaml:"data_dir"`
	CompactionThreshold uint64 `yaml:"compaction_threshold"`
	DirPerm             uint32 `yaml:"dir_perm"`
	FilePerm            uint32 `yaml:"file_perm"`
}

// defaults returns a Config populated with the engine's own defaults, used
// as the base that a YAML file and environment overlay on top of.
func defaults() Config {
	return Config{
		DataDir:             ".",
		CompactionThreshold: engine.DefaultCompactionThreshold,
		DirPerm:             uint32(engine.DefaultDirPerm),
		FilePerm:            uint32(engine.DefaultFilePerm),
	}
}

// Load reads path (a YAML file) if it exists, expanding ${VAR} references
// against the process environment after first loading envPath (a .env file)
// if present. Both files are optional: a missing config file yields the
// engine's built-in defaults, and a missing .env file is silently skipped.
func Load(path, envPath string) (*Config, error) {
	if err := godotenv.Load(envPath); err != nil {
		slog.Debug("config: no .env file loaded", "path", envPath, "error", err)
	}

	cfg := defaults()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		slog.Debug("config: no config file found, using defaults", "path", path)
		return &cfg, nil
	}
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// EngineOptions translates a Config into the Option slice engine.Open
// expects.
func (c *Config) EngineOptions() []engine.Option {
	return []engine.Option{
		engine.WithCompactionThreshold(c.CompactionThreshold),
		engine.WithDirPerm(os.FileMode(c.DirPerm)),
		engine.WithFilePerm(os.FileMode(c.FilePerm)),
	}
}
