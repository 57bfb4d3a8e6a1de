// Copyright 2026 The Cage Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/cageworks/cage/internal/cli"
	"github.com/cageworks/cage/lib/version"
)

// Main is the shared driver for the per-tool wrapper binaries. It
// partitions the command line, compiles the policy, and invokes the
// backend, returning the process exit code: 0 on success, 1 for usage,
// configuration, resource, and backend failures, 130 on interrupt, and
// the sandboxed command's own code otherwise.
func Main(tool Tool, args []string) int {
	logger := cli.NewLogger()

	req, err := Partition(args, tool)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		Usage(os.Stderr, tool)
		return 1
	}

	if req.Help {
		Usage(os.Stdout, tool)
		return 0
	}
	if req.Version {
		fmt.Printf("cage-%s %s\n", tool.Name, version.Info())
		return 0
	}

	config, err := LoadFromSearchPaths(logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	tool = config.ResolveTool(tool)

	var pwd string
	if req.WorkingDirOverride != "" {
		pwd, err = filepath.Abs(req.WorkingDirOverride)
	} else {
		pwd, err = os.Getwd()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot resolve working directory: %v\n", err)
		return 1
	}

	if req.Check {
		preflight := NewPreflight()
		preflight.RunAll(tool, pwd)
		preflight.PrintResults(os.Stdout)
		if preflight.HasErrors() {
			return 1
		}
		return 0
	}

	cliPath := ""
	if req.InteractiveShell {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			logger.Warn("interactive shell requested without a terminal on stdin")
		}
	} else {
		cliPath, err = tool.Locate()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}

	compiler := &Compiler{Tables: config.ResolveTables(), Logger: logger}
	compiled, err := compiler.Compile(req, tool, pwd, cliPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if req.Verbose {
		logPolicy(logger, req, compiled)
	}

	// A terminal interrupt lands on the wrapper (the child runs in its
	// own process group); cancelling the context tears the child down
	// and Invoke reports exit code 130.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := Invoke(ctx, compiled); err != nil {
		if code, ok := IsExitError(err); ok {
			return code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// logPolicy writes the resolved policy and the exact backend invocation
// to the diagnostic log.
func logPolicy(logger *slog.Logger, req *Request, p *CompiledPolicy) {
	network := "enabled"
	if req.DisableNetwork {
		network = "disabled"
	}
	homeAccess := "safe (restricted)"
	if req.FullHomeAccess {
		homeAccess = "full (unsafe)"
	}

	logger.Info("sandbox configuration",
		"working_dir", p.WorkingDir,
		"scratch_tmp", p.ScratchDir,
		"network", network,
		"home_access", homeAccess,
		"shell", req.InteractiveShell,
		"extra_ro", req.ExtraROPaths,
		"extra_rw", req.ExtraRWPaths,
	)

	if bwrapPath, err := BwrapPath(); err == nil {
		logger.Info("backend invocation",
			"command", bwrapPath+" "+strings.Join(Serialize(p), " "))
	}
}
