// Package link implements Nexus Links.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package link

import (
	"context"
	"net"
	"sync"

	"github.com/nexusrt/nexus/cmn/cos"
	"github.com/nexusrt/nexus/cmn/nlog"
	"github.com/tinylib/msgp/msgp"
)

// SignalLink is the lifecycle-command counterpart of Link: a bounded FIFO
// of short command strings ("setup", "run", "stop", "quit", "ready",
// "stop_success", ...) instead of object-store handles. Nexus owns one
// signal SignalLink (write side) and one comm SignalLink (read side) per
// actor, per spec.md §4.3.
type SignalLink struct {
	name string
	ring chan string
}

func NewSignal(name string, capacity int) *SignalLink {
	if capacity <= 0 {
		capacity = 1
	}
	return &SignalLink{name: name, ring: make(chan string, capacity)}
}

func (l *SignalLink) Name() string { return l.name }
func (l *SignalLink) Len() int     { return len(l.ring) }

func (l *SignalLink) Put(ctx context.Context, sig string) error {
	select {
	case l.ring <- sig:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *SignalLink) TryPut(sig string) error {
	select {
	case l.ring <- sig:
		return nil
	default:
		return cos.ErrFull
	}
}

func (l *SignalLink) Get(ctx context.Context) (string, error) {
	select {
	case s, ok := <-l.ring:
		if !ok {
			return "", cos.NewErrClosed("signal link " + l.name)
		}
		return s, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (l *SignalLink) TryGet() (string, error) {
	select {
	case s, ok := <-l.ring:
		if !ok {
			return "", cos.NewErrClosed("signal link " + l.name)
		}
		return s, nil
	default:
		return "", cos.ErrEmpty
	}
}

func (l *SignalLink) Close() {
	defer func() { recover() }() // tolerate a second close from both ends racing
	close(l.ring)
}

// signal-link cross-process transport: one msgp string per signal, used
// because an actor is a re-exec'd child process rather than a goroutine.

type SignalSender struct {
	mu   sync.Mutex
	conn net.Conn
	w    *msgp.Writer
}

func DialSignal(network, addr string) (*SignalSender, error) {
	conn, err := net.Dial(network, addr)
	if err != nil {
		return nil, err
	}
	return &SignalSender{conn: conn, w: msgp.NewWriter(conn)}, nil
}

func (s *SignalSender) Send(sig string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.w.WriteString(sig); err != nil {
		return err
	}
	return s.w.Flush()
}

func (s *SignalSender) Close() error { return s.conn.Close() }

// SignalServer is a TCP listener that accepts exactly one connection (the
// peer process's SignalSender) and forwards every signal it receives onto
// the local SignalLink that the receiving side polls.
type SignalServer struct {
	ln  net.Listener
	dst *SignalLink
}

func NewSignalServer(dst *SignalLink) *SignalServer { return &SignalServer{dst: dst} }

// Serve binds network/addr and then runs Accept. Splitting the two lets a
// caller that needs the bound address (e.g. addr "127.0.0.1:0") call
// Listen synchronously before handing Accept off to a goroutine.
func (s *SignalServer) Serve(network, addr string) error {
	if err := s.Listen(network, addr); err != nil {
		return err
	}
	return s.Accept()
}

func (s *SignalServer) Listen(network, addr string) error {
	ln, err := net.Listen(network, addr)
	if err != nil {
		return err
	}
	s.ln = ln
	return nil
}

func (s *SignalServer) Accept() error {
	conn, err := s.ln.Accept()
	if err != nil {
		return err
	}
	defer conn.Close()
	r := msgp.NewReader(conn)
	ctx := context.Background()
	for {
		sig, err := r.ReadString()
		if err != nil {
			if !isEOF(err) {
				nlog.Warningf("signal link: read error: %v", err)
			}
			return nil
		}
		if err := s.dst.Put(ctx, sig); err != nil {
			return err
		}
	}
}

func (s *SignalServer) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *SignalServer) Close() error {
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}
