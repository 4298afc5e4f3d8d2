// Package actor defines the contract every Nexus processing unit
// implements and the default driver loop that runs it.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package actor_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nexusrt/nexus/actor"
	"github.com/nexusrt/nexus/link"
)

type countingActor struct {
	steps  atomic.Int64
	setups atomic.Int64
}

func (c *countingActor) Setup() error   { c.setups.Add(1); return nil }
func (c *countingActor) RunStep() error { c.steps.Add(1); return nil }
func (c *countingActor) Stop() error    { return nil }

func newTestPorts() (actor.Ports, *link.SignalLink, *link.SignalLink) {
	sig := link.NewSignal("signal", 4)
	comm := link.NewSignal("comm", 4)
	return actor.Ports{Signal: sig, Comm: comm}, sig, comm
}

func TestDriveSetupRunStopQuit(t *testing.T) {
	ports, sig, comm := newTestPorts()
	a := &countingActor{}

	done := make(chan error, 1)
	ctx := context.Background()
	go func() { done <- actor.Drive(ctx, ports, a) }()

	sig.Put(ctx, actor.SigSetup)
	if got, err := comm.Get(ctx); err != nil || got != actor.EvtReady {
		t.Fatalf("want ready, got %q err %v", got, err)
	}

	sig.Put(ctx, actor.SigRun)
	time.Sleep(50 * time.Millisecond) // let run_step tick a few times

	sig.Put(ctx, actor.SigStop)
	if got, err := comm.Get(ctx); err != nil || got != actor.EvtStopSuccess {
		t.Fatalf("want stop_success, got %q err %v", got, err)
	}

	sig.Put(ctx, actor.SigQuit)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("drive returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("drive did not exit after quit")
	}

	if a.setups.Load() != 1 {
		t.Fatalf("expected exactly one setup call, got %d", a.setups.Load())
	}
	if a.steps.Load() == 0 {
		t.Fatal("expected at least one run_step call")
	}
}

func TestDriveReviveAfterStopSkipsSetup(t *testing.T) {
	ports, sig, comm := newTestPorts()
	a := &countingActor{}

	done := make(chan error, 1)
	ctx := context.Background()
	go func() { done <- actor.Drive(ctx, ports, a) }()

	sig.Put(ctx, actor.SigSetup)
	comm.Get(ctx) // ready

	sig.Put(ctx, actor.SigRun)
	time.Sleep(20 * time.Millisecond)
	sig.Put(ctx, actor.SigStop)
	comm.Get(ctx) // stop_success

	// revive: run again directly, no second setup required
	sig.Put(ctx, actor.SigRun)
	time.Sleep(20 * time.Millisecond)
	sig.Put(ctx, actor.SigQuit)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("drive did not exit after quit")
	}

	if a.setups.Load() != 1 {
		t.Fatalf("expected setup to run exactly once across the revive, got %d", a.setups.Load())
	}
}
