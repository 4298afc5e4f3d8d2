package link

import (
	"context"
	"testing"
	"time"

	"github.com/nexusrt/nexus/memsys"
)

func TestFanoutBackpressureExactlyOnce(t *testing.T) {
	a := New("a", 4)
	b := New("b", 4)
	f := NewFanout(Backpressure, a, b)

	h := memsys.FromTag("t1", "")
	ctx := context.Background()
	if err := f.Put(ctx, h); err != nil {
		t.Fatalf("put: %v", err)
	}

	ga, err := a.TryGet()
	if err != nil || ga.Tag() != "t1" {
		t.Fatalf("a did not receive the handle: %v, %v", ga, err)
	}
	gb, err := b.TryGet()
	if err != nil || gb.Tag() != "t1" {
		t.Fatalf("b did not receive the handle: %v, %v", gb, err)
	}
}

func TestFanoutBackpressureBlocksOnFullDest(t *testing.T) {
	a := New("a", 1)
	f := NewFanout(Backpressure, a)

	ctx := context.Background()
	if err := f.Put(ctx, memsys.FromTag("t1", "")); err != nil {
		t.Fatalf("first put: %v", err)
	}

	ctx2, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := f.Put(ctx2, memsys.FromTag("t2", "")); err == nil {
		t.Fatal("expected put to a full destination under Backpressure to block until ctx deadline")
	}
}

// fakePutter is a Putter that records whether it was closed, standing in
// for a RemoteSender dialed into a now-dead actor process.
type fakePutter struct {
	link   *Link
	closed bool
}

func (p *fakePutter) Put(ctx context.Context, h memsys.Handle) error { return p.link.Put(ctx, h) }
func (p *fakePutter) Close() error                                   { p.closed = true; return nil }

func TestFanoutRewireSwapsNamedDestination(t *testing.T) {
	oldDest := &fakePutter{link: New("old", 4)}
	f := NewFanout(Backpressure)
	f.AddNamed("Consumer", oldDest)

	newLink := New("new", 4)
	newDest := &fakePutter{link: newLink}
	if !f.Rewire("Consumer", newDest) {
		t.Fatal("expected Rewire to find the named destination")
	}
	if !oldDest.closed {
		t.Fatal("expected the replaced destination to be closed")
	}

	ctx := context.Background()
	h := memsys.FromTag("t1", "")
	if err := f.Put(ctx, h); err != nil {
		t.Fatalf("put after rewire: %v", err)
	}
	got, err := newLink.TryGet()
	if err != nil || got.Tag() != "t1" {
		t.Fatalf("expected the new destination to receive the handle, got %v, %v", got, err)
	}
}

func TestFanoutRewireUnknownNameReportsNotFound(t *testing.T) {
	f := NewFanout(Backpressure)
	if f.Rewire("Ghost", &fakePutter{link: New("x", 1)}) {
		t.Fatal("expected Rewire to report false for an unregistered name")
	}
}

func TestFanoutDropOnFullDest(t *testing.T) {
	a := New("a", 1)
	f := NewFanout(Drop, a)
	ctx := context.Background()

	if err := f.Put(ctx, memsys.FromTag("t1", "")); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if err := f.Put(ctx, memsys.FromTag("t2", "")); err != nil {
		t.Fatalf("second put under Drop should not error: %v", err)
	}
	if f.Dropped() != 1 {
		t.Fatalf("expected 1 dropped handle, got %d", f.Dropped())
	}

	got, err := a.TryGet()
	if err != nil || got.Tag() != "t1" {
		t.Fatalf("expected the first handle to survive, got %v, %v", got, err)
	}
}
