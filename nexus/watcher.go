// Package nexus implements the supervisor.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package nexus

import (
	"context"
	"fmt"
	"time"

	"github.com/nexusrt/nexus/actor"
	"github.com/nexusrt/nexus/cmn/nlog"
	"github.com/nexusrt/nexus/config"
	"github.com/nexusrt/nexus/link"
	"github.com/nexusrt/nexus/memsys"
)

// watcherHub is the supervisor-hosted receiving end of every watched
// actor's watchout link (spec.md §4.6: "Nexus creates an extra outbound
// link <actor>.watchout and binds it to the watcher"). One RemoteReceiver
// serves every watched actor over a single listener; each sample arrives
// as a handle whose Payload.Name identifies the actor it came from, so
// one Link is enough to multiplex them all.
type watcherHub struct {
	qin  *link.Link
	recv *link.RemoteReceiver
}

func newWatcherHub() *watcherHub {
	qin := link.New("watcher."+config.DefaultInPort, 256)
	return &watcherHub{qin: qin, recv: link.NewRemoteReceiver(map[string]*link.Link{config.DefaultInPort: qin})}
}

// listen binds the hub's receiver and returns its address for the WIRE
// line's watchout clause.
func (h *watcherHub) listen() (string, error) {
	errc := make(chan error, 1)
	go func() {
		errc <- h.recv.Serve("tcp", "127.0.0.1:0")
	}()
	for i := 0; i < 1000; i++ {
		if a := h.recv.Addr(); a != nil {
			return a.String(), nil
		}
		select {
		case err := <-errc:
			return "", err
		default:
		}
		time.Sleep(time.Millisecond)
	}
	return "", fmt.Errorf("watcher hub never reported a bound address")
}

func (h *watcherHub) close() error { return h.recv.Close() }

// watcherSink is the watcher's consumer half: a plain actor (spec.md
// §4.3) that dereferences every handle the hub receives and logs a
// diagnostic line. It has no Signal/Comm links of its own - there is no
// separate watcher process to hand a WIRE line to, so the supervisor
// drives it directly instead of through actor.Drive.
type watcherSink struct {
	hub   *watcherHub
	store memsys.Store
	stop  chan struct{}
	done  chan struct{}
}

var _ actor.Actor = (*watcherSink)(nil)

func newWatcherSink(hub *watcherHub, store memsys.Store) *watcherSink {
	return &watcherSink{hub: hub, store: store, stop: make(chan struct{}), done: make(chan struct{})}
}

func (w *watcherSink) Setup() error { return nil }

// RunStep drains one sample off the hub Link and logs it, run repeatedly
// by start's loop the way actor.Drive's runLoop calls RunStep between
// signal polls.
func (w *watcherSink) RunStep() error {
	ctx, cancel := context.WithTimeout(context.Background(), watchTick)
	defer cancel()
	h, err := w.hub.qin.Get(ctx)
	if err != nil {
		return nil // poll timeout or closed hub: nothing to sample this tick
	}
	p, err := w.store.Get(h)
	if err != nil {
		return fmt.Errorf("watcher: dereference sample %s: %w", h, err)
	}
	nlog.Infof("watcher: %s", p.Bytes)
	return nil
}

func (w *watcherSink) Stop() error { return nil }

func (w *watcherSink) start() {
	go func() {
		defer close(w.done)
		for {
			select {
			case <-w.stop:
				return
			default:
			}
			if err := w.RunStep(); err != nil {
				nlog.Warningf("watcher: %v", err)
			}
		}
	}()
}

func (w *watcherSink) stopWatching() {
	close(w.stop)
	<-w.done
}

const watchTick = 2 * time.Second
