// Package nexus implements the supervisor.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package nexus

import (
	"sort"
	"sync"

	"github.com/nexusrt/nexus/cmn/cos"
)

// registry is the supervisor's live actor table: one ActorRuntime per
// declared actor (plus the optional gui), looked up by name for signal
// broadcast, revive, and the control socket's `ready` command.
type registry struct {
	mu  sync.RWMutex
	all map[string]*ActorRuntime
}

func newRegistry() *registry {
	return &registry{all: make(map[string]*ActorRuntime, 16)}
}

func (r *registry) add(rt *ActorRuntime) {
	r.mu.Lock()
	r.all[rt.Name()] = rt
	r.mu.Unlock()
}

func (r *registry) get(name string) (*ActorRuntime, error) {
	r.mu.RLock()
	rt, ok := r.all[name]
	r.mu.RUnlock()
	if !ok {
		return nil, cos.NewErrNotFound("actor %q", name)
	}
	return rt, nil
}

// forEach iterates in a deterministic (name-sorted) order so that signal
// broadcast and status dumps are reproducible across runs.
func (r *registry) forEach(fn func(*ActorRuntime)) {
	r.mu.RLock()
	names := make([]string, 0, len(r.all))
	for name := range r.all {
		names = append(names, name)
	}
	sort.Strings(names)
	rts := make([]*ActorRuntime, len(names))
	for i, name := range names {
		rts[i] = r.all[name]
	}
	r.mu.RUnlock()

	for _, rt := range rts {
		fn(rt)
	}
}

// allIn reports whether every registered actor's state equals want - the
// gate Nexus consults before honoring a `run` or re-`run`-after-`stop`
// control command (spec.md §3 Invariants: "run refused unless every actor
// has reported ready").
func (r *registry) allIn(want State) bool {
	ok := true
	r.forEach(func(rt *ActorRuntime) {
		if rt.State != want {
			ok = false
		}
	})
	return ok
}

func (r *registry) snapshot() RuntimeSnapshot {
	var snap RuntimeSnapshot
	r.forEach(func(rt *ActorRuntime) {
		pid := 0
		if rt.Process != nil {
			pid = rt.Process.Pid
		}
		snap.Actors = append(snap.Actors, ActorStateView{
			Name: rt.Name(), State: rt.State, PID: pid, RestartCount: rt.RestartCount,
		})
	})
	return snap
}

func (r *registry) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.all))
	for name := range r.all {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
