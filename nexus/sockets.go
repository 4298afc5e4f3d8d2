// Package nexus implements the supervisor.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package nexus

import (
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/nexusrt/nexus/cmn/nlog"
	"github.com/valyala/fasthttp"
)

// outputSocket is a local TCP listener that fans every published line out
// to every currently-connected subscriber (spec.md §4.5's "output socket":
// the teacher's stream-collector idiom, simplified to line-oriented
// pub/sub since there is no per-bucket/per-target demux to do here).
type outputSocket struct {
	ln   net.Listener
	mu   sync.Mutex
	subs map[net.Conn]struct{}
	wg   sync.WaitGroup
}

func newOutputSocket(port int) (*outputSocket, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, err
	}
	return &outputSocket{ln: ln, subs: make(map[net.Conn]struct{}, 4)}, nil
}

func (o *outputSocket) Addr() string { return o.ln.Addr().String() }

func (o *outputSocket) serve() {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		for {
			conn, err := o.ln.Accept()
			if err != nil {
				return
			}
			o.mu.Lock()
			o.subs[conn] = struct{}{}
			o.mu.Unlock()
		}
	}()
}

// Publish writes line, uncolored, to every connected subscriber, dropping
// any that errors; the CLI subscriber colorizes client-side.
func (o *outputSocket) Publish(line string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for conn := range o.subs {
		if _, err := io.WriteString(conn, line+"\n"); err != nil {
			delete(o.subs, conn)
			conn.Close()
		}
	}
}

func (o *outputSocket) Close() {
	o.ln.Close()
	o.mu.Lock()
	for conn := range o.subs {
		conn.Close()
	}
	o.mu.Unlock()
	o.wg.Wait()
}

// ctlSocket is the control socket: a fasthttp request/reply server that
// accepts the bare command strings of spec.md §6 and replies
// "Awaiting input:" (spec.md §4.5) for every command but `ready`, which
// replies with the actor state snapshot instead - for every other
// command, success/failure is observable via Status()/the output socket,
// not the control reply itself.
type ctlSocket struct {
	n    *Nexus
	ln   net.Listener
	srv  *fasthttp.Server
	addr string
}

const ctlReply = "Awaiting input:"

func newCtlSocket(n *Nexus, port int) (*ctlSocket, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, err
	}
	c := &ctlSocket{n: n, ln: ln, addr: ln.Addr().String()}
	c.srv = &fasthttp.Server{Handler: c.handle}
	go func() {
		if err := c.srv.Serve(ln); err != nil {
			nlog.Warningf("nexus: control socket: %v", err)
		}
	}()
	return c, nil
}

func (c *ctlSocket) Addr() string { return c.addr }

func (c *ctlSocket) handle(ctx *fasthttp.RequestCtx) {
	cmd := strings.TrimSpace(string(ctx.PostBody()))
	parts := strings.Fields(cmd)

	var err error
	reply := ctlReply
	if len(parts) > 0 {
		switch parts[0] {
		case "setup":
			err = c.n.Setup()
		case "run":
			err = c.n.Run()
		case "stop":
			err = c.n.Stop()
		case "revive":
			err = c.n.Revive()
		case "quit":
			go c.n.Shutdown() // after replying, so the HTTP response isn't orphaned
		case "kill":
			if len(parts) == 2 {
				err = c.n.Kill(parts[1])
			}
		case "load":
			// reloading a new pipeline spec mid-run is out of scope here;
			// acknowledged but a no-op, matching the always-"Awaiting
			// input:" reply contract.
		case "ready":
			reply = c.n.Status().String()
		case "pause":
			err = c.n.Pause()
		}
	}
	if err != nil {
		nlog.Warningf("nexus: control command %q: %v", cmd, err)
		if c.n.out != nil {
			c.n.out.Publish(fmt.Sprintf("%s: %v", cmd, err))
		}
	}
	if cmd == "quit" {
		c.n.out.Publish("QUIT")
	}
	ctx.SetBodyString(reply)
}

func (c *ctlSocket) Close() {
	_ = c.srv.Shutdown()
	c.ln.Close()
}
