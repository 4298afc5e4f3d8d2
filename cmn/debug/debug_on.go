//go:build debug

// Package debug provides build-tag gated assertions: a no-op build in
// production, fail-fast checks when built with -tags=debug.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package debug

import "fmt"

func ON() bool { return true }

func Func(f func()) { f() }

func Assert(cond bool, args ...any) {
	if cond {
		return
	}
	panic(fmt.Sprintln(append([]any{"assertion failed:"}, args...)...))
}

func AssertNoErr(err error) {
	if err != nil {
		panic(fmt.Sprintf("assertion failed: unexpected error: %v", err))
	}
}

func Assertf(cond bool, f string, args ...any) {
	if cond {
		return
	}
	panic("assertion failed: " + fmt.Sprintf(f, args...))
}
