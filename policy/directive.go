// Copyright 2026 The Cage Authors
// SPDX-License-Identifier: Apache-2.0

package policy

// Directive is one atomic unit of sandbox policy. The compiled policy is
// an ordered sequence of directives; the backend applies them in order, so
// a later mount of a path shadows an earlier one.
type Directive interface {
	directive()
}

// BindPath exposes a host path inside the sandbox.
type BindPath struct {
	// Host is the source path on the host filesystem.
	Host string
	// Sandbox is the mount point inside the sandbox.
	Sandbox string
	// Writable selects a read-write bind instead of read-only.
	Writable bool
	// Device marks a device bind (/dev passthrough), which implies
	// writable access to device nodes.
	Device bool
}

// CreateTmpFS mounts an empty tmpfs at a sandbox path, hiding whatever the
// host has there.
type CreateTmpFS struct {
	Sandbox string
}

// CreateDir creates an empty directory inside the sandbox.
type CreateDir struct {
	Sandbox string
}

// SymlinkPath creates a symlink inside the sandbox.
type SymlinkPath struct {
	// Target is what the link points at.
	Target string
	// Link is the path of the symlink itself.
	Link string
}

// MountProc mounts a fresh procfs at a sandbox path.
type MountProc struct {
	Sandbox string
}

// ClearEnv drops every environment variable inherited from the host.
type ClearEnv struct{}

// SetEnv sets one environment variable inside the sandbox.
type SetEnv struct {
	Name  string
	Value string
}

// SetWorkingDir sets the working directory of the sandboxed process.
type SetWorkingDir struct {
	Path string
}

// ExecCommand is the sandbox entry point. It is always the final directive
// of a compiled policy.
type ExecCommand struct {
	Path string
	Args []string
}

func (BindPath) directive()      {}
func (CreateTmpFS) directive()   {}
func (CreateDir) directive()     {}
func (SymlinkPath) directive()   {}
func (MountProc) directive()     {}
func (ClearEnv) directive()      {}
func (SetEnv) directive()        {}
func (SetWorkingDir) directive() {}
func (ExecCommand) directive()   {}

// CompiledPolicy is the complete sandbox policy: process-level isolation
// settings plus the ordered directive sequence. It is built once per
// invocation and handed to [Invoke].
type CompiledPolicy struct {
	// DieWithParent kills the sandboxed process when the wrapper dies.
	DieWithParent bool

	// UnsharePID gives the sandbox its own PID namespace.
	UnsharePID bool

	// UnshareIPC gives the sandbox its own IPC namespace.
	UnshareIPC bool

	// ShareNet keeps the host network namespace. Defaults to true; a
	// deliberate convenience/security trade-off, since most wrapped
	// tools are useless without API access.
	ShareNet bool

	// Directives are applied by the backend in order.
	Directives []Directive

	// ScratchDir is the host directory backing the sandbox's /tmp.
	// Recorded for diagnostics; the bind itself is in Directives.
	ScratchDir string

	// WorkingDir is the resolved project directory.
	WorkingDir string
}

// bind appends a bind directive.
func (p *CompiledPolicy) bind(host, sandbox string, writable bool) {
	p.Directives = append(p.Directives, BindPath{Host: host, Sandbox: sandbox, Writable: writable})
}

// setenv appends an environment assignment.
func (p *CompiledPolicy) setenv(name, value string) {
	p.Directives = append(p.Directives, SetEnv{Name: name, Value: value})
}

// Entry returns the policy's entry command, or nil if compilation never
// completed.
func (p *CompiledPolicy) Entry() *ExecCommand {
	for i := len(p.Directives) - 1; i >= 0; i-- {
		if exec, ok := p.Directives[i].(ExecCommand); ok {
			return &exec
		}
	}
	return nil
}
