// Package cos provides common low-level types and utilities shared by
// every package in this module.
/*
 * Copyright (c) 2021-2023, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"fmt"
	"os"
	"path/filepath"
)

// CreatePersistDir materializes a store-persistence directory under the
// working directory, per the three mutually exclusive combinations the
// config loader enforces: a static name, an auto-generated unique one, or
// "saving disabled" (in which case this is never called).
func CreatePersistDir(dirname string) (string, error) {
	abs, err := filepath.Abs(dirname)
	if err != nil {
		return "", fmt.Errorf("persistence dir %q: %w", dirname, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", fmt.Errorf("persistence dir %q: %w", abs, err)
	}
	return abs, nil
}

// GenEphemeralDirname mints a unique, human-debuggable directory name of
// the form <prefix>-<handle tag>.
func GenEphemeralDirname(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, GenHandleTag())
}

// RemoveEphemeralSocket best-effort removes the Unix-domain socket file at
// path; an empty path is a no-op.
func RemoveEphemeralSocket(path string) {
	if path == "" {
		return
	}
	_ = os.Remove(path)
}
