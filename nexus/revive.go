// Package nexus implements the supervisor.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package nexus

import (
	"fmt"

	"github.com/nexusrt/nexus/actor"
	"github.com/nexusrt/nexus/cmn/cos"
	"github.com/nexusrt/nexus/cmn/nlog"
	"github.com/nexusrt/nexus/config"
	"github.com/nexusrt/nexus/link"
)

// Revive rebuilds any actor whose process has exited without reaching
// StateQuit (an unrequested exit - a crash), respawning it from the same
// ActorSpec and re-running the wire handshake against its already-wired
// peers. The gui actor is excluded (spec.md §9 Open Questions, resolved:
// a GUI front end that died is an operator-visible event to re-attach to
// manually, not to silently respawn headless).
func (n *Nexus) Revive() error {
	var errs cos.Errs
	n.reg.forEach(func(rt *ActorRuntime) {
		if rt.IsGUI {
			return
		}
		if !n.isDead(rt) {
			return
		}
		if err := n.reviveOne(rt); err != nil {
			errs.Add(fmt.Errorf("revive %s: %w", rt.Name(), err))
		}
	})
	_, err := errs.JoinErr()
	return err
}

func (n *Nexus) isDead(rt *ActorRuntime) bool {
	return rt.crashed.Load()
}

func (n *Nexus) reviveOne(rt *ActorRuntime) error {
	nlog.Warningf("nexus: reviving %s (restart #%d)", rt.Name(), rt.RestartCount+1)

	comm := link.NewSignal(rt.Name()+".comm", 64)
	srv := link.NewSignalServer(comm)
	if err := srv.Listen("tcp", "127.0.0.1:0"); err != nil {
		return err
	}
	rt.Comm = comm
	rt.CommServer = srv
	rt.CommAddr = srv.Addr().String()
	rt.SignalAddr = ""
	rt.QInAddr = ""
	rt.State = StateInit
	rt.RestartCount++

	if err := n.spawn(rt); err != nil {
		return err
	}
	if err := n.wireOne(rt); err != nil {
		return err
	}
	if err := rt.dialSignal(); err != nil {
		return err
	}
	go func() {
		if err := rt.CommServer.Accept(); err != nil {
			nlog.Warningf("nexus: %s comm server: %v", rt.Name(), err)
		}
	}()
	go n.pumpComm(rt)
	n.Stats.ActorRestarts.WithLabelValues(rt.Name()).Inc()

	if rt.QInAddr != "" {
		if err := n.rewireUpstream(rt); err != nil {
			return err
		}
	}
	return rt.Signal.Send(actor.SigSetup)
}

// wireOne recomputes and resends just this actor's WIRE line - used by
// revive, where every *other* actor's QInAddr is already known and
// unchanged.
func (n *Nexus) wireOne(rt *ActorRuntime) error {
	sinks, err := n.spec.SinkEndpoints()
	if err != nil {
		return err
	}
	dsts, ok := sinks[config.Endpoint{Actor: rt.Name(), Port: config.DefaultOutPort}]
	if !ok {
		return rt.wire("")
	}
	pairs := make([]string, 0, len(dsts))
	for _, d := range dsts {
		drt, err := n.reg.get(d.Actor)
		if err != nil {
			return err
		}
		pairs = append(pairs, d.Actor+"@"+drt.QInAddr)
	}
	return rt.wire("q_out=" + joinAddrs(pairs))
}

// rewireUpstream notifies every actor whose q_out fans into rt of rt's
// freshly-revived q_in address, so their long-lived Fanout - dialed once
// at their own startup and otherwise never revisited - can swap the stale
// RemoteSender pointed at rt's dead process for one pointed at the new
// one (spec.md §8 Scenario 4). Without this, the next handle an upstream
// actor tries to deliver to rt fails against a closed connection.
func (n *Nexus) rewireUpstream(rt *ActorRuntime) error {
	sinks, err := n.spec.SinkEndpoints()
	if err != nil {
		return err
	}
	var errs cos.Errs
	for src, dsts := range sinks {
		targets := false
		for _, d := range dsts {
			if d.Actor == rt.Name() {
				targets = true
				break
			}
		}
		if !targets {
			continue
		}
		srt, err := n.reg.get(src.Actor)
		if err != nil {
			errs.Add(err)
			continue
		}
		if srt.Signal == nil || srt == rt {
			continue // not yet wired (shouldn't happen post-startup), or self-loop
		}
		if err := srt.Signal.Send(actor.SigRewire + " " + rt.Name() + "@" + rt.QInAddr); err != nil {
			errs.Add(fmt.Errorf("rewire %s -> %s: %w", src.Actor, rt.Name(), err))
		}
	}
	_, err = errs.JoinErr()
	return err
}

// Kill terminates one actor's process without reviving it - used by the
// `kill <actor>` control command (spec.md §4.8), mainly for exercising
// the hot-shutdown-under-load and revive scenarios of spec.md §8.
func (n *Nexus) Kill(name string) error {
	rt, err := n.reg.get(name)
	if err != nil {
		return err
	}
	if rt.Process == nil {
		return cos.NewErrNotFound("live process for actor %q", name)
	}
	return rt.Process.Kill()
}
