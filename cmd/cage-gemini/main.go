// Copyright 2026 The Cage Authors
// SPDX-License-Identifier: Apache-2.0

// cage-gemini runs the Gemini CLI inside a bubblewrap sandbox.
//
// Usage:
//
//	cage-gemini [flags] [--] [gemini args...]
package main

import (
	"os"

	"github.com/cageworks/cage/policy"
)

var geminiTool = policy.Tool{
	Name: "gemini",
	LocateHints: []string{
		"~/.local/bin/gemini",
	},
	HelpText: `  For authentication, you may need to pass environment variables into the
  sandbox. Use --pass-env for each variable you need:

    cage-gemini --pass-env GOOGLE_APPLICATION_CREDENTIALS -- ...
    cage-gemini --pass-env OPENAI_ENDPOINT_API_KEY -- ...`,
}

func main() {
	os.Exit(policy.Main(geminiTool, os.Args[1:]))
}
