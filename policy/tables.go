// Copyright 2026 The Cage Authors
// SPDX-License-Identifier: Apache-2.0

package policy

// Tables holds the fixed allow-lists used in safe (non-full-home) mode.
// Every entry is a policy decision with direct security impact: adding a
// path widens what the sandboxed tool can read, removing one narrows it.
// The zero value exposes nothing; [DefaultTables] returns the shipped
// policy. Tables are injectable so tests and site overrides can substitute
// their own lists (see [Config]).
type Tables struct {
	// SafeHomeSubpaths are paths relative to the home directory that
	// are exposed read-only in safe mode.
	SafeHomeSubpaths []string `yaml:"safe_home_subpaths"`

	// SafeConfigSubdirs are subdirectory names under ~/.config exposed
	// read-only in safe mode. Browser configuration directories are
	// deliberately excluded: they hold session cookies and credentials.
	SafeConfigSubdirs []string `yaml:"safe_config_subdirs"`

	// EssentialEtcFiles are the /etc files re-exposed inside the
	// otherwise empty /etc tmpfs.
	EssentialEtcFiles []string `yaml:"essential_etc_files"`

	// EssentialEtcDirs are the /etc directories re-exposed inside the
	// otherwise empty /etc tmpfs.
	EssentialEtcDirs []string `yaml:"essential_etc_dirs"`
}

// DefaultTables returns the shipped allow-lists.
func DefaultTables() Tables {
	return Tables{
		SafeHomeSubpaths: []string{
			".local/share",
			".local/bin", // user-installed binaries
			"Documents",
			"Downloads",
			"Projects",
			".cargo",    // Rust package manager
			".rustup",   // Rust toolchain manager
			".npm",      // npm cache/config
			".gem",      // Ruby gems
			".gradle",   // Gradle (Java/Kotlin builds)
			".m2",       // Maven (Java builds)
			".nvm",      // Node Version Manager
			".go",       // Go workspace
			".viminfo",  // Vim history and settings
			".gitconfig",
		},
		SafeConfigSubdirs: []string{
			"git", "nvim", "vim", "htop", "nano", "less", "lsd", "bat",
			"zsh", "bash", "fish", "alacritty", "kitty",
		},
		EssentialEtcFiles: []string{
			"hostname", "hosts", "resolv.conf", "passwd", "group",
		},
		EssentialEtcDirs: []string{
			"pki", "ssl", "crypto-policies",
		},
	}
}

// mergeOver returns t applied on top of base. A list present in t replaces
// the corresponding base list wholesale; an absent (nil) list keeps the
// base. Wholesale replacement keeps overrides auditable: the effective
// list is exactly what the override file says, never a union.
func (t Tables) mergeOver(base Tables) Tables {
	result := base
	if t.SafeHomeSubpaths != nil {
		result.SafeHomeSubpaths = t.SafeHomeSubpaths
	}
	if t.SafeConfigSubdirs != nil {
		result.SafeConfigSubdirs = t.SafeConfigSubdirs
	}
	if t.EssentialEtcFiles != nil {
		result.EssentialEtcFiles = t.EssentialEtcFiles
	}
	if t.EssentialEtcDirs != nil {
		result.EssentialEtcDirs = t.EssentialEtcDirs
	}
	return result
}
