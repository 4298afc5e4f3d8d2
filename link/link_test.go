// Package link implements Nexus Links.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package link_test

import (
	"context"
	"testing"
	"time"

	"github.com/nexusrt/nexus/link"
	"github.com/nexusrt/nexus/memsys"
)

func TestFIFOOrder(t *testing.T) {
	l := link.New("l0", 4)
	ctx := context.Background()

	hs := make([]memsys.Handle, 3)
	for i := range hs {
		hs[i] = memsys.FromTag(string(rune('a'+i)), "")
		if err := l.Put(ctx, hs[i]); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	for i := range hs {
		got, err := l.Get(ctx)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Tag() != hs[i].Tag() {
			t.Fatalf("fifo violated: want %q got %q", hs[i].Tag(), got.Tag())
		}
	}
}

func TestPutBlocksWhenFull(t *testing.T) {
	l := link.New("l0", 1)
	ctx := context.Background()
	if err := l.Put(ctx, memsys.FromTag("a", "")); err != nil {
		t.Fatalf("put: %v", err)
	}

	ctx2, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := l.Put(ctx2, memsys.FromTag("b", "")); err == nil {
		t.Fatal("expected Put to block and time out on a full Link")
	}
}

func TestTryGetEmpty(t *testing.T) {
	l := link.New("l0", 1)
	if _, err := l.TryGet(); err == nil {
		t.Fatal("expected TryGet to report empty")
	}
}

func TestEmpty(t *testing.T) {
	l := link.New("l0", 2)
	if !l.Empty() {
		t.Fatal("expected a fresh Link to report empty")
	}
	if err := l.Put(context.Background(), memsys.FromTag("a", "")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if l.Empty() {
		t.Fatal("expected a Link holding a handle to report non-empty")
	}
}

func TestFanoutBackpressureDeliversToAll(t *testing.T) {
	a, b := link.New("a", 2), link.New("b", 2)
	f := link.NewFanout(link.Backpressure, a, b)
	ctx := context.Background()

	h := memsys.FromTag("x", "")
	if err := f.Put(ctx, h); err != nil {
		t.Fatalf("fanout put: %v", err)
	}
	for _, l := range []*link.Link{a, b} {
		got, err := l.TryGet()
		if err != nil || got.Tag() != "x" {
			t.Fatalf("destination %q did not receive the handle", l.Name())
		}
	}
}

func TestFanoutDropPolicyCountsDrops(t *testing.T) {
	full := link.New("full", 1)
	_ = full.Put(context.Background(), memsys.FromTag("first", ""))

	f := link.NewFanout(link.Drop, full)
	_ = f.Put(context.Background(), memsys.FromTag("second", ""))

	if f.Dropped() != 1 {
		t.Fatalf("expected one dropped delivery, got %d", f.Dropped())
	}
}

func TestCloseDrainsThenErrors(t *testing.T) {
	l := link.New("l0", 2)
	ctx := context.Background()
	_ = l.Put(ctx, memsys.FromTag("a", ""))
	l.Close()

	if _, err := l.Get(ctx); err != nil {
		t.Fatalf("expected buffered handle to still drain after close: %v", err)
	}
	if _, err := l.Get(ctx); err == nil {
		t.Fatal("expected closed+drained Link to return an error")
	}
}
