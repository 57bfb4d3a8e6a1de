// Copyright 2026 The Cage Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// AllocateScratchDir creates the process-private directory that backs the
// sandbox's /tmp, named <tmpRoot>/cage-<tool>-<8 hex chars>. The random
// suffix keeps concurrent invocations from colliding. An empty tmpRoot
// uses the system temp directory.
//
// The directory is never removed by the wrapper; see the package doc.
func AllocateScratchDir(tmpRoot, toolName string) (string, error) {
	if tmpRoot == "" {
		tmpRoot = os.TempDir()
	}

	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return "", &ResourceError{Op: "failed to generate scratch suffix", Err: err}
	}

	dir := filepath.Join(tmpRoot, fmt.Sprintf("cage-%s-%s", toolName, hex.EncodeToString(suffix)))
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", &ResourceError{Op: fmt.Sprintf("failed to create scratch directory %s", dir), Err: err}
	}
	return dir, nil
}
