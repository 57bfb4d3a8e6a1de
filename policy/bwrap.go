// Copyright 2026 The Cage Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// BwrapPath returns the path to the bwrap executable, checking the common
// locations first and PATH last.
func BwrapPath() (string, error) {
	for _, path := range []string{"/usr/bin/bwrap", "/usr/local/bin/bwrap", "/bin/bwrap"} {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	if path, err := exec.LookPath("bwrap"); err == nil {
		return path, nil
	}
	return "", &BackendMissingError{}
}

// Serialize translates a compiled policy into bwrap command-line
// arguments (without the leading executable). Directives map 1:1 onto
// bwrap flags in sequence order; the entry command always comes last,
// after an explicit "--" so trailing tool arguments are never mistaken
// for bwrap flags.
func Serialize(p *CompiledPolicy) []string {
	args := []string{}

	if p.DieWithParent {
		args = append(args, "--die-with-parent")
	}
	if p.UnsharePID {
		args = append(args, "--unshare-pid")
	}
	if p.UnshareIPC {
		args = append(args, "--unshare-ipc")
	}
	if p.ShareNet {
		args = append(args, "--share-net")
	} else {
		args = append(args, "--unshare-net")
	}

	var command []string
	for _, d := range p.Directives {
		switch d := d.(type) {
		case BindPath:
			switch {
			case d.Device:
				args = append(args, "--dev-bind", d.Host, d.Sandbox)
			case d.Writable:
				args = append(args, "--bind", d.Host, d.Sandbox)
			default:
				args = append(args, "--ro-bind", d.Host, d.Sandbox)
			}
		case CreateTmpFS:
			args = append(args, "--tmpfs", d.Sandbox)
		case CreateDir:
			args = append(args, "--dir", d.Sandbox)
		case SymlinkPath:
			args = append(args, "--symlink", d.Target, d.Link)
		case MountProc:
			args = append(args, "--proc", d.Sandbox)
		case ClearEnv:
			args = append(args, "--clearenv")
		case SetEnv:
			args = append(args, "--setenv", d.Name, d.Value)
		case SetWorkingDir:
			args = append(args, "--chdir", d.Path)
		case ExecCommand:
			command = append([]string{d.Path}, d.Args...)
		}
	}

	if command != nil {
		args = append(args, "--")
		args = append(args, command...)
	}
	return args
}

// Invoke executes the compiled policy via bwrap, blocking until the
// sandboxed command exits. It returns nil on exit code 0, an *ExitError
// carrying the child's code otherwise (130 when the context was cancelled
// by an interrupt), and a *BackendMissingError when bwrap is absent.
func Invoke(ctx context.Context, p *CompiledPolicy) error {
	bwrapPath, err := BwrapPath()
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, bwrapPath, Serialize(p)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	// Explicitly set a minimal environment for the bwrap process
	// itself. If cmd.Env is nil, Go inherits the parent's full
	// environment, and even with --clearenv inside the sandbox the
	// bwrap process's /proc/<pid>/environ would expose the parent's
	// secrets. Everything the sandbox needs goes through --setenv.
	cmd.Env = []string{
		"PATH=/usr/local/bin:/usr/bin:/bin",
		"TERM=" + os.Getenv("TERM"),
	}

	// Own process group: a terminal interrupt hits the wrapper, which
	// cancels ctx and tears the child down, rather than racing the
	// child for the signal.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return &ExitError{Code: 130}
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			return &ExitError{Code: exitErr.ExitCode()}
		}
		return fmt.Errorf("sandbox command failed: %w", err)
	}
	return nil
}
