// Package memsys implements the pipeline's object store.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package memsys

import (
	"sync"
	"time"

	"github.com/nexusrt/nexus/cmn/cos"
	"github.com/nexusrt/nexus/cmn/nlog"
	"github.com/nexusrt/nexus/hk"
)

// entry is the handle table's value: the payload's backing buffer plus
// enough to free it back to its slab class and to publish evictions.
type entry struct {
	buf   []byte
	class int
	name  string
}

// MMSA ("memory manager + slab arena") is the in-process, single-host
// object-store backend: handles are minted atomically, payloads are
// copied into pooled, size-classed buffers, and `get` returns a copy so
// that callers on either side of a link never alias the arena's buffers.
//
// Not usable across process boundaries by itself - Nexus always wraps an
// MMSA in an ExternalServer, and actor processes reach it through the
// external backend's wire protocol (see external.go); the end-to-end
// tests also use it directly, with all actors in this process's address
// space.
type MMSA struct {
	mu      sync.RWMutex
	table   map[string]*entry
	arena   *arena
	events  *eventBus
	name    string
	closed  bool
}

var _ Store = (*MMSA)(nil)

func NewMMSA(name string, budgetBytes int64) *MMSA {
	return &MMSA{
		table:  make(map[string]*entry, 1024),
		arena:  newArena(budgetBytes),
		events: newEventBus(),
		name:   name,
	}
}

func (m *MMSA) Put(p Payload) (Handle, error) {
	return m.put(mintHandle(p.Name), p)
}

// PutAt inserts p under a handle minted elsewhere - the external store's
// AOF replay path, which must reconstruct the exact handle a pre-crash
// client still holds (see ExternalServer.replay) rather than mint a new
// one the way a live Put does.
func (m *MMSA) PutAt(h Handle, p Payload) error {
	_, err := m.put(h, p)
	return err
}

func (m *MMSA) put(h Handle, p Payload) (Handle, error) {
	buf, class := m.arena.alloc(len(p.Bytes))
	if buf == nil {
		return Handle{}, cos.ErrStoreFull
	}
	copy(buf, p.Bytes)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.arena.free(buf, class)
		return Handle{}, cos.NewErrClosed("store " + m.name)
	}
	m.table[h.tag] = &entry{buf: buf, class: class, name: p.Name}
	m.mu.Unlock()

	m.events.publish(StoreEvent{Kind: EventPut, Handle: h, Name: p.Name, Size: len(buf), At: time.Now()})
	return h, nil
}

func (m *MMSA) Get(h Handle) (Payload, error) {
	m.mu.RLock()
	e, ok := m.table[h.tag]
	m.mu.RUnlock()
	if !ok {
		return Payload{}, cos.NewErrNotFound("handle %q", h.tag)
	}
	out := make([]byte, len(e.buf))
	copy(out, e.buf)
	return Payload{Bytes: out, Name: e.name}, nil
}

func (m *MMSA) GetList(hs []Handle) ([]Payload, error) {
	out := make([]Payload, len(hs))
	for i, h := range hs {
		p, err := m.Get(h)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// Expire is advisory under the in-process backend (spec.md §9 Open
// Questions): it schedules eviction via the shared housekeeper but a
// concurrent Get before the timer fires always succeeds.
func (m *MMSA) Expire(h Handle, after time.Duration) {
	hk.OnceAt("mmsa-expire-"+h.tag, time.Now().Add(after), func() {
		m.evict(h)
	})
}

func (m *MMSA) evict(h Handle) {
	m.mu.Lock()
	e, ok := m.table[h.tag]
	if ok {
		delete(m.table, h.tag)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	m.arena.free(e.buf, e.class)
	m.events.publish(StoreEvent{Kind: EventEvict, Handle: h, Name: e.name, At: time.Now()})
}

func (m *MMSA) Subscribe() (<-chan StoreEvent, func()) { return m.events.subscribe() }

func (m *MMSA) UsedBytes() int64 { return m.arena.usedBytes() }

func (m *MMSA) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	n := len(m.table)
	m.table = nil
	m.mu.Unlock()
	nlog.Infof("store %q closed, %d handle(s) released", m.name, n)
	return nil
}
