// Copyright 2026 The Cage Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// CheckResult holds the outcome of one preflight check.
type CheckResult struct {
	Name    string
	Passed  bool
	Message string
	Warning bool // True if this is a warning, not an error.
}

// Preflight performs pre-run validation of the host environment. It is
// informational (exposed via --check); the normal run path only performs
// the bwrap lookup itself.
type Preflight struct {
	results []CheckResult
	errors  int
}

// NewPreflight creates an empty preflight validator.
func NewPreflight() *Preflight {
	return &Preflight{}
}

// Results returns all check results.
func (v *Preflight) Results() []CheckResult {
	return v.results
}

// HasErrors returns true if any check failed.
func (v *Preflight) HasErrors() bool {
	return v.errors > 0
}

func (v *Preflight) pass(name, message string) {
	v.results = append(v.results, CheckResult{Name: name, Passed: true, Message: message})
}

func (v *Preflight) warn(name, message string) {
	v.results = append(v.results, CheckResult{Name: name, Passed: true, Message: message, Warning: true})
}

func (v *Preflight) fail(name, message string) {
	v.results = append(v.results, CheckResult{Name: name, Passed: false, Message: message})
	v.errors++
}

// RunAll runs every preflight check for a wrapper invocation.
func (v *Preflight) RunAll(tool Tool, pwd string) {
	v.CheckBwrap()
	v.CheckUserNamespaces()
	v.CheckProjectDir(pwd)
	v.CheckScratchRoot()
	v.CheckTool(tool)
}

// CheckBwrap verifies that bubblewrap is installed and runnable.
func (v *Preflight) CheckBwrap() {
	path, err := BwrapPath()
	if err != nil {
		v.fail("bwrap", "bubblewrap not found in standard locations or PATH")
		return
	}

	output, err := exec.Command(path, "--version").Output()
	if err != nil {
		v.warn("bwrap", fmt.Sprintf("found at %s but --version failed", path))
		return
	}
	v.pass("bwrap", fmt.Sprintf("available: %s (%s)", path, strings.TrimSpace(string(output))))
}

// CheckUserNamespaces verifies that unprivileged user namespaces are not
// disabled via sysctl.
func (v *Preflight) CheckUserNamespaces() {
	data, err := os.ReadFile("/proc/sys/kernel/unprivileged_userns_clone")
	if err != nil {
		// Missing file usually means no restriction on this kernel.
		if os.IsNotExist(err) {
			v.pass("userns", "user namespaces supported (no clone restriction)")
			return
		}
		v.warn("userns", fmt.Sprintf("cannot check user namespace support: %v", err))
		return
	}

	if strings.TrimSpace(string(data)) == "0" {
		v.fail("userns", "unprivileged user namespaces are disabled (set kernel.unprivileged_userns_clone=1)")
		return
	}
	v.pass("userns", "user namespaces enabled")
}

// CheckProjectDir verifies the project directory exists and can hold the
// read-write .<tool> scratch subdirectory.
func (v *Preflight) CheckProjectDir(pwd string) {
	absPath, err := filepath.Abs(pwd)
	if err != nil {
		v.fail("project", fmt.Sprintf("cannot resolve path: %v", err))
		return
	}

	info, err := os.Stat(absPath)
	if err != nil {
		v.fail("project", fmt.Sprintf("does not exist: %s", absPath))
		return
	}
	if !info.IsDir() {
		v.fail("project", fmt.Sprintf("not a directory: %s", absPath))
		return
	}

	if unix.Access(absPath, unix.W_OK) != nil {
		v.warn("project", fmt.Sprintf("not writable: %s (tool scratch dir cannot be created)", absPath))
		return
	}
	v.pass("project", fmt.Sprintf("exists and writable: %s", absPath))
}

// CheckScratchRoot verifies the scratch /tmp backing directory can be
// allocated.
func (v *Preflight) CheckScratchRoot() {
	root := os.TempDir()
	if unix.Access(root, unix.W_OK) != nil {
		v.fail("scratch", fmt.Sprintf("temp root not writable: %s", root))
		return
	}
	v.pass("scratch", fmt.Sprintf("temp root writable: %s", root))
}

// CheckTool verifies the tool executable can be located.
func (v *Preflight) CheckTool(tool Tool) {
	path, err := tool.Locate()
	if err != nil {
		v.fail("tool", err.Error())
		return
	}
	v.pass("tool", fmt.Sprintf("found: %s", path))
}

// PrintResults writes check results to a writer.
func (v *Preflight) PrintResults(w io.Writer) {
	for _, r := range v.results {
		var prefix string
		if r.Passed {
			if r.Warning {
				prefix = "⚠"
			} else {
				prefix = "✓"
			}
		} else {
			prefix = "✗"
		}
		fmt.Fprintf(w, "%s %s: %s\n", prefix, r.Name, r.Message)
	}

	fmt.Fprintln(w)
	if v.HasErrors() {
		fmt.Fprintf(w, "Preflight failed with %d error(s)\n", v.errors)
	} else {
		fmt.Fprintln(w, "Ready to run sandbox")
	}
}
