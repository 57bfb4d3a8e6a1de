// Copyright 2026 The Cage Authors
// SPDX-License-Identifier: Apache-2.0

// cage-claude runs the Claude CLI inside a bubblewrap sandbox.
//
// Usage:
//
//	cage-claude [flags] [--] [claude args...]
package main

import (
	"os"

	"github.com/cageworks/cage/policy"
)

var claudeTool = policy.Tool{
	Name:            "claude",
	DefaultArgs:     []string{"--dangerously-skip-permissions"},
	DefaultArgsFlag: "no_skip_permissions",
	HomeDotFile:     ".claude.json",
	LocateHints: []string{
		"~/.claude/local/claude",
		"~/.local/bin/claude",
	},
	HelpText: `  By default, --dangerously-skip-permissions is passed to Claude: the
  sandbox is the permission boundary, so Claude's own prompts are
  redundant. Use --no-skip-permissions to disable this behavior.`,
}

func main() {
	os.Exit(policy.Main(claudeTool, os.Args[1:]))
}
