// Package atomic provides typed wrappers over sync/atomic, matching the
// way every other package in this module references counters and flags
// (cmn/atomic.Int64, .Uint32, .Bool, ...) without repeating the
// load/store/add boilerplate at each call site.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package atomic

import "sync/atomic"

type (
	Int32  struct{ v atomic.Int32 }
	Int64  struct{ v atomic.Int64 }
	Uint32 struct{ v atomic.Uint32 }
	Uint64 struct{ v atomic.Uint64 }
	Bool   struct{ v atomic.Bool }
)

func (i *Int32) Load() int32         { return i.v.Load() }
func (i *Int32) Store(n int32)       { i.v.Store(n) }
func (i *Int32) Add(n int32) int32   { return i.v.Add(n) }
func (i *Int32) CAS(old, new int32) bool { return i.v.CompareAndSwap(old, new) }

func (i *Int64) Load() int64             { return i.v.Load() }
func (i *Int64) Store(n int64)           { i.v.Store(n) }
func (i *Int64) Add(n int64) int64       { return i.v.Add(n) }
func (i *Int64) CAS(old, new int64) bool { return i.v.CompareAndSwap(old, new) }

func (u *Uint32) Load() uint32       { return u.v.Load() }
func (u *Uint32) Store(n uint32)     { u.v.Store(n) }
func (u *Uint32) Add(n uint32) uint32 { return u.v.Add(n) }

func (u *Uint64) Load() uint64        { return u.v.Load() }
func (u *Uint64) Store(n uint64)      { u.v.Store(n) }
func (u *Uint64) Add(n uint64) uint64 { return u.v.Add(n) }

func (b *Bool) Load() bool     { return b.v.Load() }
func (b *Bool) Store(v bool)   { b.v.Store(v) }
func (b *Bool) CAS(old, new bool) bool { return b.v.CompareAndSwap(old, new) }
