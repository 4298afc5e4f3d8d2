// Package hk provides a mechanism for registering cleanup and periodic
// functions invoked at specified intervals, plus one-shot "at" timers.
// Nexus uses it to drive the object store's advisory expire().
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package hk

import (
	"container/heap"
	"sync"
	"time"

	"github.com/nexusrt/nexus/cmn/debug"
	"github.com/nexusrt/nexus/cmn/nlog"
)

const NameSuffix = ".hk"

// CleanupFunc returns the delay until it should run again. A return value
// <= 0 deregisters a job registered with a zero interval; a job registered
// with a positive interval runs again after that interval instead.
type CleanupFunc func() time.Duration

type job struct {
	name  string
	fn    CleanupFunc
	due   time.Time
	ival  time.Duration
	once  bool
	index int
}

type jobHeap []*job

func (h jobHeap) Len() int            { return len(h) }
func (h jobHeap) Less(i, j int) bool  { return h[i].due.Before(h[j].due) }
func (h jobHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index, h[j].index = i, j }
func (h *jobHeap) Push(x any)         { j := x.(*job); j.index = len(*h); *h = append(*h, j) }
func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	j := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return j
}

type HK struct {
	mu      sync.Mutex
	byName  map[string]*job
	heap    jobHeap
	wake    chan struct{}
	started chan struct{}
	once    sync.Once
	stop    chan struct{}
}

// DefaultHK is the process-wide housekeeper; Nexus starts it once at
// startup and stops it on shutdown.
var DefaultHK = New()

func New() *HK {
	return &HK{
		byName:  make(map[string]*job, 16),
		wake:    make(chan struct{}, 1),
		started: make(chan struct{}),
		stop:    make(chan struct{}),
	}
}

// TestInit resets DefaultHK for a fresh test run.
func TestInit() { DefaultHK = New() }

func WaitStarted() { <-DefaultHK.started }

// Reg registers a periodic cleanup function; if interval is zero the
// function's own first return value sets the cadence.
func Reg(name string, fn CleanupFunc, interval time.Duration) { DefaultHK.Reg(name, fn, interval) }

func Unreg(name string) { DefaultHK.Unreg(name) }

// OnceAt registers a one-shot callback to fire at (or after) `at` - the
// object store's expire(handle, seconds) is implemented on top of this.
func OnceAt(name string, at time.Time, fn func()) {
	DefaultHK.OnceAt(name, at, fn)
}

func (hk *HK) Reg(name string, fn CleanupFunc, interval time.Duration) {
	hk.mu.Lock()
	defer hk.mu.Unlock()
	if old, ok := hk.byName[name]; ok {
		heap.Fix(&hk.heap, old.index)
	}
	j := &job{name: name, fn: fn, ival: interval, due: time.Now().Add(interval)}
	hk.byName[name] = j
	heap.Push(&hk.heap, j)
	hk.poke()
}

func (hk *HK) OnceAt(name string, at time.Time, fn func()) {
	hk.mu.Lock()
	defer hk.mu.Unlock()
	j := &job{name: name, once: true, due: at, fn: func() time.Duration {
		fn()
		return 0
	}}
	hk.byName[name] = j
	heap.Push(&hk.heap, j)
	hk.poke()
}

func (hk *HK) Unreg(name string) {
	hk.mu.Lock()
	defer hk.mu.Unlock()
	j, ok := hk.byName[name]
	if !ok {
		return
	}
	delete(hk.byName, name)
	heap.Remove(&hk.heap, j.index)
}

func (hk *HK) poke() {
	select {
	case hk.wake <- struct{}{}:
	default:
	}
}

// Run drives the heap until Stop is called. It is meant to run in its own
// goroutine, started once by Nexus at startup.
func (hk *HK) Run() {
	hk.once.Do(func() { close(hk.started) })

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		hk.mu.Lock()
		var wait time.Duration
		if hk.heap.Len() == 0 {
			wait = time.Hour
		} else {
			wait = time.Until(hk.heap[0].due)
			if wait < 0 {
				wait = 0
			}
		}
		hk.mu.Unlock()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-hk.stop:
			return
		case <-hk.wake:
			continue
		case <-timer.C:
			hk.fireDue()
		}
	}
}

func (hk *HK) fireDue() {
	now := time.Now()
	for {
		hk.mu.Lock()
		if hk.heap.Len() == 0 || hk.heap[0].due.After(now) {
			hk.mu.Unlock()
			return
		}
		j := heap.Pop(&hk.heap).(*job)
		delete(hk.byName, j.name)
		hk.mu.Unlock()

		debug.Assert(j.fn != nil)
		next := safeCall(j)
		if next > 0 && !j.once {
			hk.mu.Lock()
			j.due = time.Now().Add(next)
			hk.byName[j.name] = j
			heap.Push(&hk.heap, j)
			hk.mu.Unlock()
		}
	}
}

func safeCall(j *job) (next time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			nlog.Errorf("hk: job %q panicked: %v", j.name, r)
			next = 0
		}
	}()
	if j.ival > 0 && !j.once {
		// periodic job: callback may override the cadence by returning >0
		if d := j.fn(); d > 0 {
			return d
		}
		return j.ival
	}
	return j.fn()
}

func (hk *HK) Stop() { close(hk.stop) }
