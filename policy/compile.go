// Copyright 2026 The Cage Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Compiler turns a Request and a Tool descriptor into a CompiledPolicy.
// The zero value is not usable; populate Tables and Logger. Home, EtcRoot,
// and TmpRoot default to the real locations and exist so tests can compile
// against fixture filesystems.
type Compiler struct {
	// Tables are the safe-mode allow-lists.
	Tables Tables

	// Logger receives path warnings and debug detail.
	Logger *slog.Logger

	// Home overrides the user's home directory.
	Home string

	// EtcRoot overrides the host /etc when building the minimal /etc.
	// The sandbox side is always /etc.
	EtcRoot string

	// TmpRoot overrides where the scratch /tmp backing directory is
	// allocated.
	TmpRoot string
}

// Compile builds the complete sandbox policy. pwd is the resolved project
// directory (working-dir override or the caller's current directory);
// cliPath is the tool executable, ignored when the request asks for an
// interactive shell.
//
// Only two failures are fatal: a missing project directory (ConfigError)
// and a scratch allocation failure (ResourceError). Every other host-path
// check is best-effort: an absent path means the corresponding directive
// is omitted, never an error.
func (c *Compiler) Compile(req *Request, tool Tool, pwd string, cliPath string) (*CompiledPolicy, error) {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	info, err := os.Stat(pwd)
	if err != nil || !info.IsDir() {
		return nil, &ConfigError{Message: fmt.Sprintf("directory does not exist: %s", pwd)}
	}

	home := c.Home
	if home == "" {
		home, err = os.UserHomeDir()
		if err != nil {
			return nil, &ConfigError{Message: fmt.Sprintf("cannot determine home directory: %v", err)}
		}
	}
	etcRoot := c.EtcRoot
	if etcRoot == "" {
		etcRoot = "/etc"
	}

	p := &CompiledPolicy{
		DieWithParent: true,
		UnsharePID:    true,
		UnshareIPC:    true,
		ShareNet:      !req.DisableNetwork,
		WorkingDir:    pwd,
	}

	// Isolated /tmp backed by a private host directory.
	scratch, err := AllocateScratchDir(c.TmpRoot, tool.Name)
	if err != nil {
		return nil, err
	}
	p.ScratchDir = scratch
	p.bind(scratch, "/tmp", true)

	c.mountMinimalEtc(p, etcRoot)

	if req.FullHomeAccess {
		// Unsafe: the sandboxed tool sees everything, including
		// SSH keys and browser profiles.
		p.bind(home, home, true)
	} else {
		c.mountSafeHome(p, home)
	}

	// System binaries and libraries.
	for _, path := range []string{"/usr", "/lib", "/lib64"} {
		c.bindIfExists(p, path, path, false)
	}
	p.Directives = append(p.Directives, SymlinkPath{Target: "/usr/bin", Link: "/bin"})

	c.mountToolState(p, tool, home, logger)
	c.mountProject(p, tool, pwd, logger)

	// Extra paths from --allow-ro/--allow-rw. Appended after the
	// project binds so a user bind can shadow a policy bind; missing
	// paths warn and are skipped, never fatal.
	for _, path := range req.ExtraROPaths {
		if _, err := os.Stat(path); err != nil {
			logger.Warn("--allow-ro path does not exist, skipping", "path", path)
			continue
		}
		p.bind(path, path, false)
	}
	for _, path := range req.ExtraRWPaths {
		if _, err := os.Stat(path); err != nil {
			logger.Warn("--allow-rw path does not exist, skipping", "path", path)
			continue
		}
		p.bind(path, path, true)
	}

	// Process and device access. /dev is a device bind: interactive
	// tools need the TTY nodes.
	p.Directives = append(p.Directives, MountProc{Sandbox: "/proc"})
	p.Directives = append(p.Directives, BindPath{Host: "/dev", Sandbox: "/dev", Writable: true, Device: true})

	// Isolated, discarded /root.
	p.Directives = append(p.Directives, CreateTmpFS{Sandbox: "/root"})
	p.Directives = append(p.Directives, SetWorkingDir{Path: pwd})

	c.buildEnvironment(p, req, home, pwd)

	if req.InteractiveShell {
		p.Directives = append(p.Directives, ExecCommand{Path: "/bin/sh", Args: []string{"-i"}})
	} else {
		args := []string{}
		if len(tool.DefaultArgs) > 0 && tool.DefaultArgsFlag != "" && !req.DisableDefaultArgs {
			args = append(args, tool.DefaultArgs...)
		}
		args = append(args, req.TrailingArgs...)
		p.Directives = append(p.Directives, ExecCommand{Path: cliPath, Args: args})
	}

	return p, nil
}

// bindIfExists appends a bind directive when the host path exists, and
// silently omits it otherwise. All skip-if-absent mounting goes through
// here so every call site behaves identically.
func (c *Compiler) bindIfExists(p *CompiledPolicy, host, sandbox string, writable bool) {
	if _, err := os.Stat(host); err != nil {
		return
	}
	p.bind(host, sandbox, writable)
}

// mountMinimalEtc hides the host /etc behind an empty tmpfs and
// selectively re-exposes only the essential identity, resolver, and
// certificate paths. /etc/shadow and everything else stays invisible.
func (c *Compiler) mountMinimalEtc(p *CompiledPolicy, etcRoot string) {
	p.Directives = append(p.Directives, CreateTmpFS{Sandbox: "/etc"})

	for _, name := range c.Tables.EssentialEtcFiles {
		host := filepath.Join(etcRoot, name)
		sandbox := "/etc/" + name

		// resolv.conf is frequently a symlink into /run managed by
		// the host's resolver. Bind the resolved real file so the
		// minimal /etc does not contain a dangling link.
		if name == "resolv.conf" {
			if fi, err := os.Lstat(host); err == nil && fi.Mode()&os.ModeSymlink != 0 {
				if real, err := filepath.EvalSymlinks(host); err == nil {
					p.bind(real, sandbox, false)
					continue
				}
			}
		}

		c.bindIfExists(p, host, sandbox, false)
	}

	for _, name := range c.Tables.EssentialEtcDirs {
		c.bindIfExists(p, filepath.Join(etcRoot, name), "/etc/"+name, false)
	}
}

// mountSafeHome exposes only the allow-listed home subpaths and config
// subdirectories, read-only. Anything not listed is absent from the
// sandbox, not an error.
func (c *Compiler) mountSafeHome(p *CompiledPolicy, home string) {
	for _, rel := range c.Tables.SafeHomeSubpaths {
		path := filepath.Join(home, rel)
		c.bindIfExists(p, path, path, false)
	}

	configDir := filepath.Join(home, ".config")
	for _, sub := range c.Tables.SafeConfigSubdirs {
		path := filepath.Join(configDir, sub)
		c.bindIfExists(p, path, path, false)
	}
}

// mountToolState exposes the tool's accumulated global state: the
// ~/.<tool> directory if present, and the home dot file (created empty
// when absent so the bind cannot fail).
func (c *Compiler) mountToolState(p *CompiledPolicy, tool Tool, home string, logger *slog.Logger) {
	stateDir := filepath.Join(home, "."+tool.Name)
	c.bindIfExists(p, stateDir, stateDir, true)

	if tool.HomeDotFile == "" {
		return
	}
	dotFile := filepath.Join(home, tool.HomeDotFile)
	if _, err := os.Stat(dotFile); err != nil {
		if err := os.WriteFile(dotFile, nil, 0o644); err != nil {
			logger.Warn("cannot create tool state file, skipping bind", "path", dotFile, "error", err)
			return
		}
	}
	p.bind(dotFile, dotFile, true)
}

// mountProject binds the project directory read-only, then its .<tool>
// subdirectory read-write — the only writable location inside the project
// tree. The subdirectory is created when absent; an existing one is bound
// as-is.
func (c *Compiler) mountProject(p *CompiledPolicy, tool Tool, pwd string, logger *slog.Logger) {
	p.bind(pwd, pwd, false)

	toolDir := filepath.Join(pwd, "."+tool.Name)
	if _, err := os.Stat(toolDir); err != nil {
		if unix.Access(pwd, unix.W_OK) != nil {
			logger.Warn("project directory is not writable, skipping tool scratch dir", "path", toolDir)
			return
		}
		if err := os.Mkdir(toolDir, 0o755); err != nil {
			logger.Warn("cannot create tool scratch dir, skipping bind", "path", toolDir, "error", err)
			return
		}
	}
	p.bind(toolDir, toolDir, true)
}

// buildEnvironment clears the inherited environment and sets the minimal
// set the sandboxed tool needs, plus any explicitly passed variables.
func (c *Compiler) buildEnvironment(p *CompiledPolicy, req *Request, home, pwd string) {
	p.Directives = append(p.Directives, ClearEnv{})

	pathEnv := os.Getenv("PATH")
	if pathEnv == "" {
		pathEnv = "/usr/bin:/bin:/usr/sbin:/sbin"
	}
	termEnv := os.Getenv("TERM")
	if termEnv == "" {
		termEnv = "xterm"
	}
	userEnv := os.Getenv("USER")
	if userEnv == "" {
		userEnv = "user"
	}

	p.setenv("HOME", home)
	p.setenv("PWD", pwd)
	p.setenv("USER", userEnv)
	p.setenv("PATH", pathEnv)
	p.setenv("TERM", termEnv)

	// Absent variables are skipped, never set to empty: an empty
	// API key is worse than a missing one.
	for _, name := range req.PassEnvVars {
		if value, ok := os.LookupEnv(name); ok {
			p.setenv(name, value)
		}
	}
}
