// Package actor defines the contract every Nexus processing unit
// implements and the default driver loop that runs it.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package actor

import (
	"context"

	"github.com/nexusrt/nexus/cmn"
	"github.com/nexusrt/nexus/cmn/cos"
	"github.com/nexusrt/nexus/cmn/nlog"
)

// Signal vocabulary exchanged on Ports.Signal / Ports.Comm, spec.md §6.
const (
	SigSetup = "setup"
	SigRun   = "run"
	SigStop  = "stop"
	SigQuit  = "quit"

	// SigRewire carries "<actorName>@<addr>" after its space-separated
	// prefix. It never reaches Drive: the actorhost process intercepts it
	// ahead of the Actor contract's signal loop and repoints the named
	// q_out Fanout destination at addr, the revive fix for a stale
	// RemoteSender left dialed into a crashed downstream actor's old
	// process (spec.md §8 Scenario 4).
	SigRewire = "rewire"

	EvtReady       = "ready"
	EvtStopSuccess = "stop_success"
	EvtSetupFailed = "setup_failed"
	EvtRunError    = "run_error"
)

// Drive runs the default driver loop (spec.md §4.3) against a concrete
// Actor: it is the generalization of the teacher's xaction lifecycle
// (idle -> running -> finished, with an abort channel polled between
// units of work) to a four-state actor contract that can be revived
// after stop instead of only ever finishing once.
func Drive(ctx context.Context, ports Ports, a Actor) error {
	for {
		sig, err := ports.Signal.Get(ctx)
		if err != nil {
			return err // signal link closed: terminal failure of this actor
		}
		switch sig {
		case SigQuit:
			return a.Stop()
		case SigSetup:
			if err := a.Setup(); err != nil {
				nlog.Errorf("actor: setup failed: %v", err)
				_ = ports.Comm.Put(ctx, EvtSetupFailed)
				continue // await setup again; Nexus will not send run until ready
			}
			_ = ports.Comm.Put(ctx, EvtReady)
			// step 2: await "run" repeatedly. A clean "stop" returns here
			// without requiring another "setup" (spec.md §4.3 step 4).
			for {
				quit, err := awaitRun(ctx, ports, a)
				if err != nil {
					return err
				}
				if quit {
					return nil
				}
			}
		default:
			nlog.Warningf("actor: ignoring signal %q before setup", sig)
		}
	}
}

// awaitRun blocks for "run" or "quit". On "run" it steps the actor until
// "stop" (returns quit=false, nil) or "quit" (quit=true, nil). On an
// unrecognized signal it keeps waiting.
func awaitRun(ctx context.Context, ports Ports, a Actor) (quit bool, err error) {
	for {
		sig, err := ports.Signal.Get(ctx)
		if err != nil {
			return false, err
		}
		switch sig {
		case SigQuit:
			return true, a.Stop()
		case SigRun:
			return runLoop(ctx, ports, a)
		default:
			nlog.Warningf("actor: ignoring signal %q while awaiting run", sig)
		}
	}
}

func runLoop(ctx context.Context, ports Ports, a Actor) (quit bool, err error) {
	poll := cmn.Rom.SignalPoll()
	for {
		pctx, cancel := context.WithTimeout(ctx, poll)
		sig, gerr := ports.Signal.Get(pctx)
		cancel()

		switch {
		case gerr == nil && sig == SigStop:
			if serr := a.Stop(); serr != nil {
				nlog.Errorf("actor: stop failed: %v", serr)
			}
			_ = ports.Comm.Put(ctx, EvtStopSuccess)
			return false, nil
		case gerr == nil && sig == SigQuit:
			return true, a.Stop()
		case gerr == nil:
			nlog.Warningf("actor: ignoring signal %q while running", sig)
		case cos.IsErrClosed(gerr):
			return false, gerr
		}
		// either the poll timed out (most common case) or we saw an
		// unrecognized signal: do one unit of work and loop.
		if err := a.RunStep(); err != nil {
			nlog.Errorf("actor: run_step error: %v", err)
			_ = ports.Comm.Put(ctx, EvtRunError)
		}
	}
}
