// Copyright 2026 The Cage Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsExitError(t *testing.T) {
	if code, ok := IsExitError(&ExitError{Code: 7}); !ok || code != 7 {
		t.Errorf("IsExitError = %d, %v", code, ok)
	}
	if _, ok := IsExitError(errors.New("other")); ok {
		t.Error("plain error must not match")
	}
	if _, ok := IsExitError(nil); ok {
		t.Error("nil must not match")
	}
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("inner")

	if !errors.Is(&UsageError{Err: inner}, inner) {
		t.Error("UsageError must unwrap to its cause")
	}
	if !errors.Is(&ResourceError{Op: "op", Err: inner}, inner) {
		t.Error("ResourceError must unwrap to its cause")
	}

	wrapped := fmt.Errorf("context: %w", &ConfigError{Message: "bad input"})
	var configErr *ConfigError
	if !errors.As(wrapped, &configErr) {
		t.Error("ConfigError must be found through wrapping")
	}
}
