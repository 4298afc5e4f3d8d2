// Package link implements Nexus Links.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package link

import (
	"context"
	"net"
	"sync"

	"github.com/nexusrt/nexus/cmn/nlog"
	"github.com/nexusrt/nexus/memsys"
	"github.com/tinylib/msgp/msgp"
)

// RemoteSender forwards every handle Put to it over a persistent TCP
// connection to the actor process hosting the destination Link, the
// cross-process counterpart of an in-process Fanout destination.
type RemoteSender struct {
	linkName string
	mu       sync.Mutex
	conn     net.Conn
	w        *msgp.Writer
}

func DialRemote(network, addr, linkName string) (*RemoteSender, error) {
	conn, err := net.Dial(network, addr)
	if err != nil {
		return nil, err
	}
	return &RemoteSender{linkName: linkName, conn: conn, w: msgp.NewWriter(conn)}, nil
}

func (s *RemoteSender) Put(_ context.Context, h memsys.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeFrame(s.w, frame{link: s.linkName, tag: h.Tag(), name: h.Name()})
}

func (s *RemoteSender) Close() error { return s.conn.Close() }

// RemoteReceiver listens for connections from RemoteSenders and enqueues
// each received frame onto the local Link it names, so a driver loop on
// this side of the process boundary observes forwarded handles through
// the exact same Link.Get it uses for in-process producers.
type RemoteReceiver struct {
	ln    net.Listener
	links map[string]*Link
	wg    sync.WaitGroup
}

func NewRemoteReceiver(links map[string]*Link) *RemoteReceiver {
	return &RemoteReceiver{links: links}
}

func (r *RemoteReceiver) Serve(network, addr string) error {
	ln, err := net.Listen(network, addr)
	if err != nil {
		return err
	}
	r.ln = ln
	nlog.Infof("link: remote receiver listening on %s/%s", network, ln.Addr())
	for {
		conn, err := ln.Accept()
		if err != nil {
			return nil
		}
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.handle(conn)
		}()
	}
}

func (r *RemoteReceiver) Addr() net.Addr {
	if r.ln == nil {
		return nil
	}
	return r.ln.Addr()
}

func (r *RemoteReceiver) handle(conn net.Conn) {
	defer conn.Close()
	rd := msgp.NewReader(conn)
	ctx := context.Background()
	for {
		f, err := readFrame(rd)
		if err != nil {
			if !isEOF(err) {
				nlog.Warningf("link: remote receiver frame error: %v", err)
			}
			return
		}
		dst, ok := r.links[f.link]
		if !ok {
			nlog.Warningf("link: remote receiver got frame for unknown link %q", f.link)
			continue
		}
		h := memsys.FromTag(f.tag, f.name)
		if err := dst.Put(ctx, h); err != nil {
			return
		}
	}
}

func (r *RemoteReceiver) Close() error {
	var err error
	if r.ln != nil {
		err = r.ln.Close()
	}
	r.wg.Wait()
	return err
}
