//go:build !debug

// Package debug provides build-tag gated assertions: a no-op build in
// production, fail-fast checks when built with -tags=debug.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package debug

func ON() bool { return false }

func Func(_ func()) {}

func Assert(_ bool, _ ...any)            {}
func AssertNoErr(_ error)                {}
func Assertf(_ bool, _ string, _ ...any) {}
