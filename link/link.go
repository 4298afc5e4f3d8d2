// Package link implements Nexus Links: the bounded, FIFO channels that
// move object-store handles between actors. A Link never carries the
// payload itself - only the memsys.Handle - so the cost of fan-out and
// cross-process delivery stays independent of message size.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package link

import (
	"context"
	"sync"

	"github.com/nexusrt/nexus/cmn/cos"
	"github.com/nexusrt/nexus/memsys"
)

// Link is a single bounded producer/consumer queue of handles. Put blocks
// once the ring is full; Get blocks once it is empty. Both accept a
// context so a caller can honor the driver loop's shutdown deadline
// (spec.md §5) instead of leaking a goroutine on a full/empty Link.
type Link struct {
	name string
	ring chan memsys.Handle

	mu     sync.Mutex
	closed bool
}

func New(name string, capacity int) *Link {
	if capacity <= 0 {
		capacity = 1
	}
	return &Link{name: name, ring: make(chan memsys.Handle, capacity)}
}

func (l *Link) Name() string { return l.name }

func (l *Link) Cap() int { return cap(l.ring) }

func (l *Link) Len() int { return len(l.ring) }

// Empty reports whether the Link currently holds no buffered handles.
func (l *Link) Empty() bool { return len(l.ring) == 0 }

// Put blocks until there is room, ctx is canceled, or the Link is closed.
func (l *Link) Put(ctx context.Context, h memsys.Handle) (err error) {
	defer func() {
		if recover() != nil { // send on the ring after Close
			err = cos.NewErrClosed("link " + l.name)
		}
	}()
	select {
	case l.ring <- h:
		return nil
	default:
	}
	select {
	case l.ring <- h:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPut is the non-blocking form: it reports cos.ErrFull immediately
// instead of waiting for room, the semantics a drop-policy fan-out needs.
func (l *Link) TryPut(h memsys.Handle) error {
	select {
	case l.ring <- h:
		return nil
	default:
		return cos.ErrFull
	}
}

// Get blocks until a handle is available, ctx is canceled, or the Link is
// closed and drained.
func (l *Link) Get(ctx context.Context) (memsys.Handle, error) {
	select {
	case h, ok := <-l.ring:
		if !ok {
			return memsys.Handle{}, cos.NewErrClosed("link " + l.name)
		}
		return h, nil
	case <-ctx.Done():
		return memsys.Handle{}, ctx.Err()
	}
}

// TryGet is the non-blocking form used by actors that poll several
// input Links in a single run_step.
func (l *Link) TryGet() (memsys.Handle, error) {
	select {
	case h, ok := <-l.ring:
		if !ok {
			return memsys.Handle{}, cos.NewErrClosed("link " + l.name)
		}
		return h, nil
	default:
		return memsys.Handle{}, cos.ErrEmpty
	}
}

// GetAsync returns a channel that receives exactly one handle (or is
// closed without a value if ctx is canceled first), so a caller can
// select across several Links without spawning its own goroutine per
// Link on every run_step.
func (l *Link) GetAsync(ctx context.Context) <-chan memsys.Handle {
	out := make(chan memsys.Handle, 1)
	go func() {
		defer close(out)
		h, err := l.Get(ctx)
		if err == nil {
			out <- h
		}
	}()
	return out
}

// Close marks the Link closed; any blocked or future Get drains whatever
// remains buffered and then returns cos.ErrClosed. Idempotent.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	close(l.ring)
	return nil
}
