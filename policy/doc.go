// Copyright 2026 The Cage Authors
// SPDX-License-Identifier: Apache-2.0

// Package policy compiles sandbox policies for running AI command-line
// tools inside bubblewrap (bwrap) Linux namespaces.
//
// The central operation is [Compiler.Compile], which turns a parsed
// [Request] and a [Tool] descriptor into a [CompiledPolicy]: an ordered
// sequence of [Directive] values describing every bind mount, environment
// assignment, and the entry command of the sandbox. Directive order is
// significant: later mounts of the same path shadow earlier ones, so the
// compiler always mounts coarse trees before file-specific overlays (the
// empty /etc tmpfs before its selective re-exposure, the read-only project
// directory before its read-write .<tool> subdirectory).
//
// The default policy is deliberately minimal. Only an explicit allow-list
// of home and config paths ([Tables]) is visible inside the sandbox;
// everything else is simply absent. Host paths that do not exist are
// skipped silently rather than reported — the guiding rule is "expose
// less, not error more". The one convenience trade-off is networking,
// which is shared with the host unless the caller disables it.
//
// [Partition] splits the wrapper's command line into policy flags and
// arguments forwarded verbatim to the sandboxed tool, using an explicit
// "--" separator when present and best-effort inference otherwise.
// [Serialize] translates a compiled policy into bwrap argv, and [Invoke]
// executes it, forwarding the child's exit status unchanged.
//
// The scratch directory backing the sandbox's /tmp is left on disk after
// the child exits. Cleanup is delegated to the host's tmp reaper; removing
// it synchronously would race with anything the user expects to collect
// from it after the run.
package policy
