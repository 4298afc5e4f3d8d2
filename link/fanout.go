// Package link implements Nexus Links.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package link

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/nexusrt/nexus/cmn/nlog"
	"github.com/nexusrt/nexus/memsys"
)

// Policy selects what a Fanout does when one of its destination Links is
// full. Back-pressure is the default (spec.md §9 Open Questions, resolved
// in favor of "no silent data loss"): a producer with multiple outputs
// pays for the slowest consumer rather than have that consumer miss
// handles.
type Policy int

const (
	Backpressure Policy = iota
	Drop
)

// Putter is anything a Fanout can deliver a handle to: an in-process Link
// (same-process sink) or a RemoteSender (cross-process sink, the common
// case since actors run as separate processes). TryPut is only needed
// for the Drop policy; under Drop, a Putter without a TryPut method is
// delivered to with its blocking Put.
type Putter interface {
	Put(ctx context.Context, h memsys.Handle) error
	Close() error
}

type tryPutter interface {
	TryPut(h memsys.Handle) error
}

// dest pairs a Putter with the sink actor name it was dialed for, so a
// later Rewire (after that actor is revived at a new address) can find
// and replace just this one entry instead of rebuilding the whole Fanout.
type dest struct {
	name string
	p    Putter
}

// Fanout delivers every Put to all of its destination Links, grounded in
// the teacher's stream-bundle pattern of one producer writing to many
// per-destination streams (transport/bundle), generalized here from
// per-node HTTP streams to per-actor Links, in-process or remote. A mutex
// guards dests since Rewire runs concurrently with the Put loop, on the
// signal-handling goroutine rather than the one draining q_out.
type Fanout struct {
	mu      sync.Mutex
	dests   []dest
	policy  Policy
	dropped atomic.Int64
}

func NewFanout(policy Policy, dests ...Putter) *Fanout {
	f := &Fanout{policy: policy}
	for _, p := range dests {
		f.dests = append(f.dests, dest{p: p})
	}
	return f
}

func (f *Fanout) Add(p Putter) { f.AddNamed("", p) }

// AddNamed adds p as the destination for the sink actor name, so it can
// later be found and swapped out by Rewire.
func (f *Fanout) AddNamed(name string, p Putter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dests = append(f.dests, dest{name: name, p: p})
}

// Rewire replaces the destination previously added under name with p,
// closing the old one - the revive path's fix for an upstream Fanout
// left dialed into a dead process's now-stale q_in address (spec.md §8
// Scenario 4). Reports whether name was found.
func (f *Fanout) Rewire(name string, p Putter) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.dests {
		if f.dests[i].name == name {
			old := f.dests[i].p
			f.dests[i].p = p
			old.Close()
			return true
		}
	}
	return false
}

// Put delivers h to every destination exactly once. Under Backpressure it
// blocks on each destination in turn (bounded by ctx); under Drop it never
// blocks, incrementing the dropped counter per destination it could not
// reach immediately (a destination with no TryPut, e.g. a RemoteSender,
// is always attempted with a blocking Put even under Drop, since the
// underlying TCP write buffer is the only back-pressure signal it has).
func (f *Fanout) Put(ctx context.Context, h memsys.Handle) error {
	f.mu.Lock()
	dests := make([]dest, len(f.dests))
	copy(dests, f.dests)
	f.mu.Unlock()

	for _, d := range dests {
		switch f.policy {
		case Backpressure:
			if err := d.p.Put(ctx, h); err != nil {
				return err
			}
		case Drop:
			tp, ok := d.p.(tryPutter)
			if !ok {
				if err := d.p.Put(ctx, h); err != nil {
					return err
				}
				continue
			}
			if err := tp.TryPut(h); err != nil {
				f.dropped.Add(1)
				nlog.Warningf("link: fanout dropped handle %s (full)", h)
			}
		}
	}
	return nil
}

func (f *Fanout) Dropped() int64 { return f.dropped.Load() }

func (f *Fanout) Close() {
	f.mu.Lock()
	dests := f.dests
	f.mu.Unlock()
	for _, d := range dests {
		d.p.Close()
	}
}
