// Copyright 2026 The Cage Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the optional on-disk policy override file. Site operators can
// replace the path allow-lists or adjust tool descriptors without
// rebuilding the wrappers. Absent file means built-in defaults.
type Config struct {
	// Tables overrides the safe-path allow-lists. Lists present in the
	// file replace the defaults wholesale; absent lists keep them.
	Tables Tables `yaml:"tables"`

	// Tools overrides tool descriptors by name. Only non-zero fields
	// of an entry override the built-in descriptor.
	Tools map[string]Tool `yaml:"tools"`
}

// ParseConfig parses a policy override file.
func ParseConfig(data []byte) (*Config, error) {
	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse policy config: %w", err)
	}
	return config, nil
}

// LoadConfig loads a policy override file from disk.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	config, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return config, nil
}

// ConfigSearchPaths returns the locations checked for a policy override
// file, in priority order. The first existing file wins.
func ConfigSearchPaths() []string {
	paths := []string{}

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		paths = append(paths, filepath.Join(xdgConfig, "cage", "policy.yaml"))
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "cage", "policy.yaml"))
	}

	paths = append(paths, "/etc/cage/policy.yaml")

	return paths
}

// LoadFromSearchPaths loads the first policy override file found in the
// standard locations, or an empty config if none exists. A file that
// exists but fails to parse is an error: silently ignoring a broken
// override would run with wider or narrower exposure than the operator
// intended.
func LoadFromSearchPaths(logger *slog.Logger) (*Config, error) {
	for _, path := range ConfigSearchPaths() {
		if _, err := os.Stat(path); err != nil {
			logger.Debug("policy config not found", "path", path)
			continue
		}
		config, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		logger.Debug("loaded policy config", "path", path)
		return config, nil
	}
	return &Config{}, nil
}

// ResolveTables returns the effective allow-lists: built-in defaults with
// the config's overrides applied.
func (c *Config) ResolveTables() Tables {
	return c.Tables.mergeOver(DefaultTables())
}

// ResolveTool returns the effective descriptor for a built-in tool,
// applying any per-tool override from the config.
func (c *Config) ResolveTool(tool Tool) Tool {
	override, ok := c.Tools[tool.Name]
	if !ok {
		return tool
	}
	if override.DefaultArgs != nil {
		tool.DefaultArgs = override.DefaultArgs
	}
	if override.DefaultArgsFlag != "" {
		tool.DefaultArgsFlag = override.DefaultArgsFlag
	}
	if override.HomeDotFile != "" {
		tool.HomeDotFile = override.HomeDotFile
	}
	if override.HelpText != "" {
		tool.HelpText = override.HelpText
	}
	if override.LocateHints != nil {
		tool.LocateHints = override.LocateHints
	}
	return tool
}
