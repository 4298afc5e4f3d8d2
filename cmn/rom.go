// Package cmn provides common constants and types shared across the
// pipeline runtime (Nexus, links, the object store, and the actor
// driver loop).
/*
 * Copyright (c) 2023, NVIDIA CORPORATION. All rights reserved.
 */
package cmn

import "time"

// read-mostly, most-often-used timeouts: fixed defaults set in init and
// overridable through Rom.Set, read without a lock on every driver-loop
// tick or link poll.

type readMostly struct {
	timeout struct {
		signalPoll     time.Duration // interleaved poll of the signal link inside run_step
		shutdownJoin   time.Duration // bound on joining a child process after quit
		linkGetDefault time.Duration // default Link.get() timeout when none is supplied
	}
	verbose bool
}

var Rom readMostly

func init() {
	Rom.timeout.signalPoll = 5 * time.Millisecond
	Rom.timeout.shutdownJoin = 5 * time.Second
	Rom.timeout.linkGetDefault = time.Second
}

func (rom *readMostly) Set(signalPoll, shutdownJoin, linkGetDefault time.Duration, verbose bool) {
	if signalPoll > 0 {
		rom.timeout.signalPoll = signalPoll
	}
	if shutdownJoin > 0 {
		rom.timeout.shutdownJoin = shutdownJoin
	}
	if linkGetDefault > 0 {
		rom.timeout.linkGetDefault = linkGetDefault
	}
	rom.verbose = verbose
}

func (rom *readMostly) SignalPoll() time.Duration     { return rom.timeout.signalPoll }
func (rom *readMostly) ShutdownJoin() time.Duration   { return rom.timeout.shutdownJoin }
func (rom *readMostly) LinkGetDefault() time.Duration { return rom.timeout.linkGetDefault }
func (rom *readMostly) Verbose() bool                 { return rom.verbose }
