// Copyright 2026 The Cage Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/pflag"
)

// Request is the parsed user intent for one wrapper invocation. It is
// built once by [Partition] and never mutated afterwards.
type Request struct {
	// DisableNetwork unshares the network namespace. Networking is
	// shared with the host by default.
	DisableNetwork bool

	// FullHomeAccess binds the entire home directory read-write
	// instead of the safe allow-list. Unsafe; off by default.
	FullHomeAccess bool

	// Verbose logs the resolved policy and the exact bwrap invocation.
	Verbose bool

	// InteractiveShell makes the entry point an interactive shell
	// instead of the tool (for debugging the sandbox itself).
	InteractiveShell bool

	// ExtraROPaths are additional read-only binds.
	ExtraROPaths []string

	// ExtraRWPaths are additional read-write binds.
	ExtraRWPaths []string

	// WorkingDirOverride replaces the current directory as the
	// project directory.
	WorkingDirOverride string

	// PassEnvVars are host environment variables copied into the
	// sandbox when set.
	PassEnvVars []string

	// DisableDefaultArgs suppresses the tool's built-in default
	// arguments (bound to the tool's DefaultArgsFlag, if any).
	DisableDefaultArgs bool

	// Help, Check, and Version short-circuit before any sandbox is
	// built.
	Help    bool
	Check   bool
	Version bool

	// TrailingArgs are forwarded verbatim to the sandboxed tool.
	TrailingArgs []string
}

// newFlagSet builds the shared policy flag schema for a tool. The same
// schema backs strict parsing, permissive token scanning, and help output.
func newFlagSet(tool Tool, req *Request) *pflag.FlagSet {
	fs := pflag.NewFlagSet("cage-"+tool.Name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.BoolVar(&req.DisableNetwork, "no-network", false, "disable network access (default: network enabled)")
	fs.BoolVar(&req.FullHomeAccess, "full-home-access", false, "allow full home directory access (default: safe dirs only)")
	fs.BoolVarP(&req.Verbose, "verbose", "v", false, "print sandbox configuration and bwrap command to stderr")
	fs.BoolVar(&req.InteractiveShell, "shell", false, "launch an interactive shell in the sandbox (for debugging)")
	fs.StringArrayVar(&req.ExtraROPaths, "allow-ro", nil, "mount additional read-only PATH (can be used multiple times)")
	fs.StringArrayVar(&req.ExtraRWPaths, "allow-rw", nil, "mount additional read-write PATH (can be used multiple times)")
	fs.StringVar(&req.WorkingDirOverride, "dir", "", "set working directory in sandbox (default: current directory)")
	fs.StringArrayVar(&req.PassEnvVars, "pass-env", nil, "pass an environment VAR into the sandbox (can be used multiple times)")
	fs.BoolVar(&req.Check, "check", false, "run preflight checks and exit")
	fs.BoolVar(&req.Version, "version", false, "print version and exit")
	fs.BoolVarP(&req.Help, "help", "h", false, "show this help message")

	if flag := tool.FlagName(); flag != "" {
		fs.BoolVar(&req.DisableDefaultArgs, flag, false,
			fmt.Sprintf("disable default arguments for %s (default: enabled)", tool.Name))
	}

	return fs
}

// Partition splits raw command-line tokens into a policy Request and the
// trailing arguments forwarded to the tool.
//
// With an explicit "--" separator, everything before it must parse as
// policy flags (unknown flags are a UsageError) and everything after it is
// taken verbatim. Without a separator, recognized flags are consumed and
// the first unrecognized token starts the trailing arguments. The dual
// mode exists because the wrapped CLIs have flags of their own that must
// not be swallowed by the wrapper.
func Partition(raw []string, tool Tool) (*Request, error) {
	req := &Request{}
	fs := newFlagSet(tool, req)

	var policyArgs []string
	if sep := slices.Index(raw, "--"); sep >= 0 {
		policyArgs = raw[:sep]
		req.TrailingArgs = append([]string{}, raw[sep+1:]...)
	} else {
		var trailing []string
		policyArgs, trailing = splitRecognized(raw, fs)
		req.TrailingArgs = trailing
	}

	if err := fs.Parse(policyArgs); err != nil {
		return nil, &UsageError{Err: err}
	}
	if fs.NArg() > 0 {
		return nil, &UsageError{Err: fmt.Errorf("unexpected argument %q before --", fs.Arg(0))}
	}

	return req, nil
}

// splitRecognized scans tokens against the flag schema and returns the
// recognized prefix and the remainder. The split happens at the first
// token that is not a known flag (or a known flag's value); nothing after
// the split point is inspected again, so tool flags that happen to share a
// name with policy flags pass through untouched.
func splitRecognized(raw []string, fs *pflag.FlagSet) (policyArgs, trailing []string) {
	i := 0
	for i < len(raw) {
		token := raw[i]

		switch {
		case strings.HasPrefix(token, "--"):
			name, _, hasValue := strings.Cut(token[2:], "=")
			flag := fs.Lookup(name)
			if flag == nil {
				return raw[:i], raw[i:]
			}
			i++
			// A non-bool flag without an inline value consumes
			// the next token.
			if !hasValue && flag.Value.Type() != "bool" && i < len(raw) {
				i++
			}

		case strings.HasPrefix(token, "-") && len(token) > 1:
			// Shorthand group: every character must be a known
			// shorthand (all shorthands in the schema are
			// booleans).
			for _, c := range token[1:] {
				if fs.ShorthandLookup(string(c)) == nil {
					return raw[:i], raw[i:]
				}
			}
			i++

		default:
			return raw[:i], raw[i:]
		}
	}
	return raw, nil
}

// Usage writes the wrapper's help text: the shared policy flags followed
// by the tool-specific fragment.
func Usage(w io.Writer, tool Tool) {
	prog := "cage-" + tool.Name
	title := strings.ToUpper(tool.Name[:1]) + tool.Name[1:]

	fmt.Fprintf(w, "%s - bubblewrap sandboxing wrapper for the %s CLI\n\n", prog, title)
	fmt.Fprintf(w, "USAGE\n    %s [flags] [--] [%s args...]\n\nFLAGS\n", prog, tool.Name)

	fs := newFlagSet(tool, &Request{})
	fmt.Fprint(w, fs.FlagUsages())

	if tool.HelpText != "" {
		fmt.Fprintf(w, "\n%s options:\n%s\n", title, tool.HelpText)
	}

	fmt.Fprintf(w, "\n%s arguments are passed through unchanged.\n", title)
	fmt.Fprintf(w, "Use -- to explicitly separate %s options from %s options:\n", prog, title)
	fmt.Fprintf(w, "    %s --no-network -- <%s command and args>\n\n", prog, tool.Name)
	fmt.Fprintf(w, "Additional paths can be mounted with --allow-ro and --allow-rw:\n")
	fmt.Fprintf(w, "    %s --allow-ro /var/log --allow-rw /tmp/custom -- <%s command>\n", prog, tool.Name)
}
