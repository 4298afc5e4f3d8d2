// Package nexus implements the supervisor: it parses a pipeline spec,
// spawns actors as OS processes, wires links between them, and drives
// their lifecycle (spec.md §4.5).
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package nexus

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nexusrt/nexus/cmn/nlog"
	"github.com/nexusrt/nexus/config"
	"github.com/nexusrt/nexus/link"
)

// State is an ActorRuntime's last-known lifecycle state, advancing
// monotonically init -> setup -> ready -> run -> {stop, quit} except for
// the explicit stop -> setup "revive" re-entry (spec.md §3 Invariants).
type State string

const (
	StateInit  State = "init"
	StateSetup State = "setup"
	StateReady State = "ready"
	StateRun   State = "run"
	StateStop  State = "stop"
	StateQuit  State = "quit"
)

// ActorRuntime is Nexus's per-actor bookkeeping record (spec.md §3): the
// OS process handle, spawn method, its two supervisor-owned links, last
// observed state, and a restart count maintained by revive.
type ActorRuntime struct {
	Spec config.ActorSpec

	Process *os.Process
	Method  string

	Signal *link.SignalSender // supervisor dials the actor's signal listener to send commands
	Comm   *link.SignalLink   // supervisor-owned listener; the actor dials in to report events

	CommServer *link.SignalServer // owns Comm; closed on revive/shutdown
	CommAddr   string             // passed to the child at spawn via -comm-addr

	SignalAddr string // the actor's signal listener address, reported over stdout at spawn
	QInAddr    string // the actor's q_in listener address, if it has one (InboundActors)

	Cmd   *exec.Cmd
	stdin io.WriteCloser // the child's stdin, used once to send its WIRE line

	// exited is closed, and exitErr set, exactly once by watchExit - the
	// single goroutine allowed to call Cmd.Wait (os/exec forbids calling it
	// twice). crashed distinguishes an unrequested exit from one following
	// SigQuit, which is what Revive and isDead act on.
	exited  chan struct{}
	exitErr error
	crashed atomic.Bool

	State        State
	RestartCount int
	StartedAt    time.Time

	IsGUI bool
}

func (rt *ActorRuntime) Name() string { return rt.Spec.Name }

func (rt *ActorRuntime) Alive() bool {
	if rt.Process == nil {
		return false
	}
	// os.Process carries no liveness flag of its own on most platforms;
	// watchExit/isDead are the source of truth for exit, this is just a
	// nil-process convenience check used before a process exists.
	return true
}

// watchExit blocks until the child exits, then records the result. It must
// be started exactly once per spawn (including each revive respawn), and
// is the only caller of Cmd.Wait for this ActorRuntime.
func (rt *ActorRuntime) watchExit() {
	err := rt.Cmd.Wait()
	rt.exitErr = err
	if rt.State != StateQuit {
		rt.crashed.Store(true)
		if err != nil {
			nlog.Warningf("nexus: %s exited unexpectedly: %v", rt.Name(), err)
		} else {
			nlog.Warningf("nexus: %s exited unexpectedly", rt.Name())
		}
	}
	close(rt.exited)
}

// RuntimeSnapshot is a point-in-time read of every tracked ActorRuntime,
// exposed over the control socket for the `ready` command (spec.md §3).
type RuntimeSnapshot struct {
	Actors []ActorStateView
}

type ActorStateView struct {
	Name         string
	State        State
	PID          int
	RestartCount int
}

// String renders one name=state(pid=N,restarts=M) entry per actor,
// space-separated on a single line - the
// body the control socket's `ready` command replies with in place of the
// bare ctlReply acknowledgement (spec.md §6).
func (s RuntimeSnapshot) String() string {
	var b strings.Builder
	for i, a := range s.Actors {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%s(pid=%d,restarts=%d)", a.Name, a.State, a.PID, a.RestartCount)
	}
	return b.String()
}
