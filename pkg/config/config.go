package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// LocalConfigFile is the project-local config filename.
const LocalConfigFile = "repo2docker.local.toml"

// Config holds developer-specific configuration that is NOT committed to
// version control. It is resolved with Viper precedence:
// CLI flags > repo2docker.local.toml (project-local) > ~/.repo2docker/config.toml (global).
type Config struct {
	// Hg points at the Mercurial executable to use instead of the one
	// found on PATH.
	Hg string `toml:"hg" mapstructure:"hg"`
	// Workspace overrides the directory checkouts are materialized in.
	Workspace string `toml:"workspace" mapstructure:"workspace"`
}

// Load resolves configuration using Viper's merge semantics. flagHg and
// flagWorkspace, if non-empty, take highest precedence (set via CLI flags).
func Load(flagHg, flagWorkspace string) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("determining home directory: %w", err)
	}
	globalPath := filepath.Join(home, ".repo2docker", "config.toml")
	return load(flagHg, flagWorkspace, globalPath, LocalConfigFile)
}

// load is the internal implementation that accepts explicit paths, making
// it testable without touching the real home directory.
func load(flagHg, flagWorkspace, globalPath, localPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")

	// Lowest priority: global config. Ignore if missing.
	v.SetConfigFile(globalPath)
	_ = v.ReadInConfig()

	// Higher priority: project-local config.
	if _, err := os.Stat(localPath); err == nil {
		v.SetConfigFile(localPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", localPath, err)
		}
	}

	// Highest priority: CLI flags.
	if flagHg != "" {
		v.Set("hg", flagHg)
	}
	if flagWorkspace != "" {
		v.Set("workspace", flagWorkspace)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}
