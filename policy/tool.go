// Copyright 2026 The Cage Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Tool describes the CLI being sandboxed: its name, how it is invoked by
// default, and where its executable lives. Descriptors are static per
// wrapper binary; site overrides come through [Config.ResolveTool].
type Tool struct {
	// Name is the tool name. It determines the per-tool state paths
	// (~/.<name> and the project's .<name> directory) and the log
	// prefix.
	Name string `yaml:"name"`

	// DefaultArgs are prepended to the trailing arguments when the
	// entry command is built. Only applied when DefaultArgsFlag is
	// also set and the corresponding flag was not given.
	DefaultArgs []string `yaml:"default_args,omitempty"`

	// DefaultArgsFlag names the boolean flag that suppresses
	// DefaultArgs (underscores become dashes on the command line,
	// e.g. "no_skip_permissions" registers --no-skip-permissions).
	DefaultArgsFlag string `yaml:"default_args_flag,omitempty"`

	// HomeDotFile is a single state file in the home directory (e.g.
	// ".claude.json") created empty when absent and bound read-write.
	HomeDotFile string `yaml:"home_dot_file,omitempty"`

	// HelpText is the tool-specific fragment appended to --help output.
	HelpText string `yaml:"help_text,omitempty"`

	// LocateHints are candidate executable paths checked before
	// falling back to PATH lookup. A leading "~/" is expanded to the
	// home directory.
	LocateHints []string `yaml:"locate_hints,omitempty"`
}

// FlagName returns the command-line name of the default-args suppression
// flag, or "" if the tool has none.
func (t Tool) FlagName() string {
	if t.DefaultArgsFlag == "" {
		return ""
	}
	return strings.ReplaceAll(t.DefaultArgsFlag, "_", "-")
}

// Locate resolves the tool's executable: each hint in order, then PATH.
func (t Tool) Locate() (string, error) {
	home, _ := os.UserHomeDir()
	for _, hint := range t.LocateHints {
		path := hint
		if strings.HasPrefix(path, "~/") && home != "" {
			path = filepath.Join(home, path[2:])
		}
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	if path, err := exec.LookPath(t.Name); err == nil {
		return path, nil
	}

	where := "PATH"
	if len(t.LocateHints) > 0 {
		where = strings.Join(t.LocateHints, ", ") + " or PATH"
	}
	return "", &ConfigError{Message: fmt.Sprintf("%s CLI not found in %s", t.Name, where)}
}
