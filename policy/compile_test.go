// Copyright 2026 The Cage Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// testCompiler returns a compiler rooted in fixture directories so
// compilation never depends on the real home or /etc.
func testCompiler(t *testing.T) *Compiler {
	t.Helper()
	return &Compiler{
		Tables:  DefaultTables(),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Home:    t.TempDir(),
		EtcRoot: t.TempDir(),
		TmpRoot: t.TempDir(),
	}
}

func mustCompile(t *testing.T, c *Compiler, req *Request, tool Tool, pwd string) *CompiledPolicy {
	t.Helper()
	p, err := c.Compile(req, tool, pwd, "/opt/bin/"+tool.Name)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return p
}

// binds returns the bind directives keyed by host path.
func binds(p *CompiledPolicy) map[string]BindPath {
	result := make(map[string]BindPath)
	for _, d := range p.Directives {
		if b, ok := d.(BindPath); ok {
			result[b.Host] = b
		}
	}
	return result
}

func TestCompileDeterminism(t *testing.T) {
	c := testCompiler(t)
	pwd := t.TempDir()

	// Populate some of the optional host paths.
	if err := os.MkdirAll(filepath.Join(c.Home, ".cargo"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(c.EtcRoot, "hosts"), []byte("127.0.0.1 localhost\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	req := &Request{TrailingArgs: []string{"run"}}
	first := mustCompile(t, c, req, demoTool, pwd)
	second := mustCompile(t, c, req, demoTool, pwd)

	normalize := func(p *CompiledPolicy) string {
		return strings.ReplaceAll(strings.Join(Serialize(p), " "), p.ScratchDir, "SCRATCH")
	}

	if first.ScratchDir == second.ScratchDir {
		t.Error("scratch directories must be distinct across compilations")
	}
	if normalize(first) != normalize(second) {
		t.Errorf("policies differ beyond the scratch path:\n%s\n%s", normalize(first), normalize(second))
	}
}

func TestCompileSafeModeExcludesBrowserConfig(t *testing.T) {
	c := testCompiler(t)
	pwd := t.TempDir()

	configDir := filepath.Join(c.Home, ".config")
	for _, sub := range []string{"git", "chromium", "google-chrome", "firefox"} {
		if err := os.MkdirAll(filepath.Join(configDir, sub), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	p := mustCompile(t, c, &Request{}, demoTool, pwd)
	bound := binds(p)

	if _, ok := bound[filepath.Join(configDir, "git")]; !ok {
		t.Error("expected ~/.config/git to be exposed")
	}
	for _, browser := range []string{"chromium", "google-chrome", "firefox"} {
		if _, ok := bound[filepath.Join(configDir, browser)]; ok {
			t.Errorf("browser config %s must never be exposed in safe mode", browser)
		}
	}
}

func TestCompileMinimalEtc(t *testing.T) {
	c := testCompiler(t)
	pwd := t.TempDir()

	for _, name := range []string{"hosts", "passwd", "shadow", "sudoers"} {
		if err := os.WriteFile(filepath.Join(c.EtcRoot, name), []byte("x\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	p := mustCompile(t, c, &Request{}, demoTool, pwd)
	bound := binds(p)

	if _, ok := bound[filepath.Join(c.EtcRoot, "hosts")]; !ok {
		t.Error("expected /etc/hosts bind")
	}
	for _, secret := range []string{"shadow", "sudoers"} {
		if _, ok := bound[filepath.Join(c.EtcRoot, secret)]; ok {
			t.Errorf("/etc/%s must never be exposed", secret)
		}
	}

	// The empty /etc tmpfs must precede its selective re-exposure.
	tmpfsIdx, bindIdx := -1, -1
	for i, d := range p.Directives {
		switch d := d.(type) {
		case CreateTmpFS:
			if d.Sandbox == "/etc" {
				tmpfsIdx = i
			}
		case BindPath:
			if d.Sandbox == "/etc/hosts" && bindIdx == -1 {
				bindIdx = i
			}
		}
	}
	if tmpfsIdx == -1 || bindIdx == -1 || tmpfsIdx > bindIdx {
		t.Errorf("tmpfs /etc at %d must precede /etc/hosts bind at %d", tmpfsIdx, bindIdx)
	}
}

func TestCompileResolvConfSymlink(t *testing.T) {
	c := testCompiler(t)
	pwd := t.TempDir()

	realConf := filepath.Join(t.TempDir(), "resolv-real.conf")
	if err := os.WriteFile(realConf, []byte("nameserver 1.1.1.1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(realConf, filepath.Join(c.EtcRoot, "resolv.conf")); err != nil {
		t.Fatal(err)
	}

	p := mustCompile(t, c, &Request{}, demoTool, pwd)

	resolved, err := filepath.EvalSymlinks(realConf)
	if err != nil {
		t.Fatal(err)
	}

	var found *BindPath
	for _, d := range p.Directives {
		if b, ok := d.(BindPath); ok && b.Sandbox == "/etc/resolv.conf" {
			found = &b
			break
		}
	}
	if found == nil {
		t.Fatal("expected a bind for /etc/resolv.conf")
	}
	if found.Host != resolved {
		t.Errorf("resolv.conf bound from %q, want resolved target %q", found.Host, resolved)
	}
}

func TestCompileProjectScratchIdempotent(t *testing.T) {
	c := testCompiler(t)
	pwd := t.TempDir()

	toolDir := filepath.Join(pwd, ".demo")
	if err := os.Mkdir(toolDir, 0o700); err != nil {
		t.Fatal(err)
	}
	marker := filepath.Join(toolDir, "state.json")
	if err := os.WriteFile(marker, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := mustCompile(t, c, &Request{}, demoTool, pwd)

	if _, err := os.Stat(marker); err != nil {
		t.Errorf("existing tool dir contents must be untouched: %v", err)
	}
	info, err := os.Stat(toolDir)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o700 {
		t.Errorf("existing tool dir must not be recreated (perm now %o)", info.Mode().Perm())
	}

	b, ok := binds(p)[toolDir]
	if !ok || !b.Writable {
		t.Error("expected read-write bind of the project tool dir")
	}
}

func TestCompileProjectScratchCreated(t *testing.T) {
	c := testCompiler(t)
	pwd := t.TempDir()

	p := mustCompile(t, c, &Request{}, demoTool, pwd)

	toolDir := filepath.Join(pwd, ".demo")
	info, err := os.Stat(toolDir)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected tool dir to be created: %v", err)
	}

	// The read-only project bind must precede its read-write sub-overlay.
	projectIdx, toolIdx := -1, -1
	for i, d := range p.Directives {
		if b, ok := d.(BindPath); ok {
			switch b.Host {
			case pwd:
				projectIdx = i
			case toolDir:
				toolIdx = i
			}
		}
	}
	if projectIdx == -1 || toolIdx == -1 || projectIdx > toolIdx {
		t.Errorf("project bind at %d must precede tool dir bind at %d", projectIdx, toolIdx)
	}
}

func TestCompileMissingExtraPath(t *testing.T) {
	var logBuf bytes.Buffer
	c := testCompiler(t)
	c.Logger = slog.New(slog.NewTextHandler(&logBuf, nil))
	pwd := t.TempDir()

	req := &Request{ExtraROPaths: []string{"/does/not/exist"}}
	p := mustCompile(t, c, req, demoTool, pwd)

	if _, ok := binds(p)["/does/not/exist"]; ok {
		t.Error("missing extra path must not be bound")
	}
	if !strings.Contains(logBuf.String(), "/does/not/exist") {
		t.Error("expected a warning naming the missing path")
	}
}

func TestCompileExtraPaths(t *testing.T) {
	c := testCompiler(t)
	pwd := t.TempDir()

	ro := t.TempDir()
	rw := t.TempDir()
	p := mustCompile(t, c, &Request{ExtraROPaths: []string{ro}, ExtraRWPaths: []string{rw}}, demoTool, pwd)

	bound := binds(p)
	if b, ok := bound[ro]; !ok || b.Writable {
		t.Error("expected read-only bind for --allow-ro path")
	}
	if b, ok := bound[rw]; !ok || !b.Writable {
		t.Error("expected read-write bind for --allow-rw path")
	}
}

func TestCompileDefaultArgs(t *testing.T) {
	c := testCompiler(t)
	pwd := t.TempDir()

	req := &Request{TrailingArgs: []string{"run"}}
	p := mustCompile(t, c, req, demoTool, pwd)

	entry := p.Entry()
	if entry == nil {
		t.Fatal("no entry command")
	}
	if entry.Path != "/opt/bin/demo" {
		t.Errorf("entry path = %q", entry.Path)
	}
	if strings.Join(entry.Args, " ") != "--flag run" {
		t.Errorf("entry args = %v, want [--flag run]", entry.Args)
	}

	req = &Request{TrailingArgs: []string{"run"}, DisableDefaultArgs: true}
	p = mustCompile(t, c, req, demoTool, pwd)
	if strings.Join(p.Entry().Args, " ") != "run" {
		t.Errorf("entry args = %v, want [run]", p.Entry().Args)
	}
}

func TestCompileShellEntry(t *testing.T) {
	c := testCompiler(t)
	pwd := t.TempDir()

	p := mustCompile(t, c, &Request{InteractiveShell: true}, demoTool, pwd)

	entry := p.Entry()
	if entry.Path != "/bin/sh" || strings.Join(entry.Args, " ") != "-i" {
		t.Errorf("entry = %v %v, want /bin/sh -i", entry.Path, entry.Args)
	}
}

func TestCompileNetwork(t *testing.T) {
	c := testCompiler(t)
	pwd := t.TempDir()

	p := mustCompile(t, c, &Request{}, demoTool, pwd)
	if !p.ShareNet {
		t.Error("network must default to shared")
	}

	p = mustCompile(t, c, &Request{DisableNetwork: true}, demoTool, pwd)
	if p.ShareNet {
		t.Error("expected network disabled")
	}
}

func TestCompileEnvironment(t *testing.T) {
	c := testCompiler(t)
	pwd := t.TempDir()

	t.Setenv("USER", "alice")
	t.Setenv("CAGE_TEST_SECRET", "s3cret")
	os.Unsetenv("CAGE_TEST_UNSET")

	req := &Request{PassEnvVars: []string{"CAGE_TEST_SECRET", "CAGE_TEST_UNSET"}}
	p := mustCompile(t, c, req, demoTool, pwd)

	env := make(map[string]string)
	clearIdx, firstSetIdx := -1, -1
	for i, d := range p.Directives {
		switch d := d.(type) {
		case ClearEnv:
			clearIdx = i
		case SetEnv:
			if firstSetIdx == -1 {
				firstSetIdx = i
			}
			env[d.Name] = d.Value
		}
	}

	if clearIdx == -1 || clearIdx > firstSetIdx {
		t.Error("environment must be cleared before any assignment")
	}
	if env["HOME"] != c.Home || env["PWD"] != pwd || env["USER"] != "alice" {
		t.Errorf("base environment wrong: %v", env)
	}
	if env["CAGE_TEST_SECRET"] != "s3cret" {
		t.Error("expected passed-through variable")
	}
	if _, ok := env["CAGE_TEST_UNSET"]; ok {
		t.Error("unset variables must be skipped, not set empty")
	}
}

func TestCompileHomeDotFile(t *testing.T) {
	c := testCompiler(t)
	pwd := t.TempDir()

	tool := Tool{Name: "demo", HomeDotFile: ".demo.json"}
	dotFile := filepath.Join(c.Home, ".demo.json")

	p := mustCompile(t, c, &Request{}, tool, pwd)

	info, err := os.Stat(dotFile)
	if err != nil {
		t.Fatalf("dot file must be created when absent: %v", err)
	}
	if info.Size() != 0 {
		t.Error("created dot file must be empty")
	}
	if b, ok := binds(p)[dotFile]; !ok || !b.Writable {
		t.Error("expected read-write bind of the dot file")
	}

	// A pre-existing file is bound as-is.
	if err := os.WriteFile(dotFile, []byte(`{"key":1}`), 0o644); err != nil {
		t.Fatal(err)
	}
	mustCompile(t, c, &Request{}, tool, pwd)
	data, err := os.ReadFile(dotFile)
	if err != nil || string(data) != `{"key":1}` {
		t.Errorf("existing dot file must be untouched, got %q (%v)", data, err)
	}
}

func TestCompileToolStateDir(t *testing.T) {
	c := testCompiler(t)
	pwd := t.TempDir()

	stateDir := filepath.Join(c.Home, ".demo")
	if err := os.Mkdir(stateDir, 0o755); err != nil {
		t.Fatal(err)
	}

	p := mustCompile(t, c, &Request{}, demoTool, pwd)
	if b, ok := binds(p)[stateDir]; !ok || !b.Writable {
		t.Error("expected read-write bind of ~/.demo")
	}
}

func TestCompileFullHomeAccess(t *testing.T) {
	c := testCompiler(t)
	pwd := t.TempDir()

	if err := os.MkdirAll(filepath.Join(c.Home, ".config", "git"), 0o755); err != nil {
		t.Fatal(err)
	}

	p := mustCompile(t, c, &Request{FullHomeAccess: true}, demoTool, pwd)
	bound := binds(p)

	b, ok := bound[c.Home]
	if !ok || !b.Writable {
		t.Error("expected read-write bind of the whole home directory")
	}
	if _, ok := bound[filepath.Join(c.Home, ".config", "git")]; ok {
		t.Error("safe-mode binds must not be emitted in full-home mode")
	}
}

func TestCompileMissingProjectDir(t *testing.T) {
	c := testCompiler(t)

	_, err := c.Compile(&Request{}, demoTool, "/does/not/exist", "/opt/bin/demo")
	var configErr *ConfigError
	if !errors.As(err, &configErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}
