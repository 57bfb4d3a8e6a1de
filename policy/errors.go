// Copyright 2026 The Cage Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import "fmt"

// UsageError indicates bad or unknown policy flags. It is only produced in
// strict parsing mode (when an explicit "--" separator is present); in
// permissive mode unrecognized tokens become trailing arguments instead.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string {
	return e.Err.Error()
}

func (e *UsageError) Unwrap() error {
	return e.Err
}

// ConfigError indicates an invalid policy input, such as a working
// directory that does not exist or a tool executable that cannot be found.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}

// ResourceError indicates a fatal host resource failure, such as being
// unable to create the scratch directory backing the sandbox's /tmp.
type ResourceError struct {
	Op  string
	Err error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

// BackendMissingError indicates the bwrap executable could not be located.
type BackendMissingError struct{}

func (e *BackendMissingError) Error() string {
	return "bwrap not found. Please install bubblewrap (e.g. 'apt install bubblewrap' or 'dnf install bubblewrap')"
}

// ExitError represents a non-zero exit from the sandboxed command.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command exited with code %d", e.Code)
}

// IsExitError checks if an error is an ExitError and returns the code.
func IsExitError(err error) (int, bool) {
	if exitErr, ok := err.(*ExitError); ok {
		return exitErr.Code, true
	}
	return 0, false
}
