// Package memsys implements the pipeline's object store.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package memsys

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nexusrt/nexus/cmn/cos"
	"github.com/nexusrt/nexus/cmn/nlog"
	"github.com/tinylib/msgp/msgp"
)

type FsyncPolicy string

const (
	FsyncEveryWrite  FsyncPolicy = "every_write"
	FsyncEverySecond FsyncPolicy = "every_second"
	FsyncNoSchedule  FsyncPolicy = "no_schedule"
)

type ExternalConfig struct {
	Network    string // "tcp" or "unix"
	Addr       string // host:port, or socket path when Network == "unix"
	BudgetByte int64
	PersistDir string // "" disables the AOF
	Fsync      FsyncPolicy
}

// ExternalServer is the durable, cross-process object-store backend: it
// accepts connections from every actor's ExternalClient, serves requests
// against an in-process arena (the same allocator MMSA uses), and - when
// persistence is enabled - appends every Put to a local append-only log so
// that a warm restart can replay committed writes (spec.md §4.1).
type ExternalServer struct {
	cfg ExternalConfig
	mem *MMSA
	ln  net.Listener

	aof      *os.File
	aofw     *msgp.Writer
	aofmu    sync.Mutex
	stopFsync chan struct{}

	wg sync.WaitGroup
}

func NewExternalServer(cfg ExternalConfig) (*ExternalServer, error) {
	s := &ExternalServer{
		cfg:       cfg,
		mem:       NewMMSA("external", cfg.BudgetByte),
		stopFsync: make(chan struct{}),
	}
	if cfg.PersistDir != "" {
		if err := s.openAOF(); err != nil {
			return nil, err
		}
		if err := s.replay(); err != nil {
			return nil, err
		}
		go s.fsyncLoop()
	}
	return s, nil
}

func (s *ExternalServer) aofPath() string { return filepath.Join(s.cfg.PersistDir, "store.aof") }

func (s *ExternalServer) openAOF() error {
	if _, err := cos.CreatePersistDir(s.cfg.PersistDir); err != nil {
		return err
	}
	f, err := os.OpenFile(s.aofPath(), os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	s.aof = f
	s.aofw = msgp.NewWriter(f)
	return nil
}

// replay re-reads committed AOF entries on warm restart.
func (s *ExternalServer) replay() error {
	f, err := os.Open(s.aofPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	r := msgp.NewReader(f)
	n := 0
	for {
		req, err := readReq(r)
		if err != nil {
			if isEOF(err) {
				break
			}
			return fmt.Errorf("aof replay: %w", err)
		}
		if req.op != opPut {
			continue
		}
		// reconstruct the original handle (FromTag), not mint a new one -
		// a client that survives the restart still holds the pre-crash
		// tag and must be able to Get() it afterward (spec.md §8 Scenario 3).
		h := FromTag(req.tag, req.name)
		if err := s.mem.PutAt(h, Payload{Bytes: req.bytes, Name: req.name}); err != nil {
			return fmt.Errorf("aof replay: %w", err)
		}
		n++
	}
	nlog.Infof("store: replayed %d entries from %s", n, s.aofPath())
	return nil
}

func (s *ExternalServer) appendAOF(req wireReq) error {
	if s.aofw == nil {
		return nil
	}
	s.aofmu.Lock()
	defer s.aofmu.Unlock()
	if err := writeReq(s.aofw, req); err != nil {
		return err
	}
	if s.cfg.Fsync == FsyncEveryWrite {
		return s.aof.Sync()
	}
	return nil
}

func (s *ExternalServer) fsyncLoop() {
	if s.cfg.Fsync != FsyncEverySecond {
		return
	}
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-s.stopFsync:
			return
		case <-t.C:
			s.aofmu.Lock()
			s.aof.Sync()
			s.aofmu.Unlock()
		}
	}
}

func (s *ExternalServer) Serve() error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Accept(ln)
}

// Listen binds the configured network/address and returns the listener,
// split out from Accept so a caller that requested an ephemeral port
// (Addr == ":0") can read back the actual bound address before handing
// the accept loop off to a goroutine - Nexus needs that address to pass
// -store-addr to every actor it spawns.
func (s *ExternalServer) Listen() (net.Listener, error) {
	ln, err := net.Listen(s.cfg.Network, s.cfg.Addr)
	if err != nil {
		return nil, err
	}
	s.ln = ln
	nlog.Infof("store: external backend listening on %s/%s", s.cfg.Network, ln.Addr())
	return ln, nil
}

func (s *ExternalServer) Accept(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return nil // listener closed on shutdown
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(conn)
		}()
	}
}

func (s *ExternalServer) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *ExternalServer) handle(conn net.Conn) {
	defer conn.Close()
	r := msgp.NewReader(conn)
	w := msgp.NewWriter(conn)
	for {
		req, err := readReq(r)
		if err != nil {
			return
		}
		rep := s.dispatch(req)
		if err := writeRep(w, rep); err != nil {
			return
		}
	}
}

func (s *ExternalServer) dispatch(req wireReq) wireRep {
	switch req.op {
	case opPut:
		h, err := s.mem.Put(Payload{Bytes: req.bytes, Name: req.name})
		if err != nil {
			return wireRep{errMsg: err.Error()}
		}
		// the AOF record carries the minted tag so replay can reconstruct
		// the same Handle instead of minting a fresh one (see replay).
		req.tag = h.tag
		if err := s.appendAOF(req); err != nil {
			nlog.Errorf("store: aof append failed: %v", err)
		}
		return wireRep{ok: true, tag: h.tag}
	case opGet:
		p, err := s.mem.Get(Handle{tag: req.tag})
		if err != nil {
			return wireRep{errMsg: err.Error()}
		}
		return wireRep{ok: true, bytes: p.Bytes, name: p.Name}
	case opGetList:
		reps := make([]wireRep, len(req.tags))
		for i, tag := range req.tags {
			p, err := s.mem.Get(Handle{tag: tag})
			if err != nil {
				return wireRep{errMsg: err.Error()}
			}
			reps[i] = wireRep{ok: true, bytes: p.Bytes, name: p.Name}
		}
		return wireRep{ok: true, payload: reps}
	case opExpire:
		s.mem.Expire(Handle{tag: req.tag}, time.Duration(req.afterSec)*time.Second)
		return wireRep{ok: true}
	default:
		return wireRep{errMsg: "unknown opcode"}
	}
}

func (s *ExternalServer) Close() error {
	close(s.stopFsync)
	if s.ln != nil {
		s.ln.Close()
	}
	s.wg.Wait()
	if s.aof != nil {
		s.aofw.Flush()
		s.aof.Sync()
		s.aof.Close()
	}
	return s.mem.Close()
}

// ExternalClient is the Store implementation every actor process uses,
// whatever settings.store_backend declares: a single synchronous
// connection to the ExternalServer, framed identically to the AOF
// encoding above.
type ExternalClient struct {
	mu   sync.Mutex
	conn net.Conn
	r    *msgp.Reader
	w    *msgp.Writer
}

var _ Store = (*ExternalClient)(nil)

func DialExternal(network, addr string) (*ExternalClient, error) {
	conn, err := net.Dial(network, addr)
	if err != nil {
		return nil, err
	}
	return &ExternalClient{conn: conn, r: msgp.NewReader(conn), w: msgp.NewWriter(conn)}, nil
}

func (c *ExternalClient) roundTrip(req wireReq) (wireRep, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := writeReq(c.w, req); err != nil {
		return wireRep{}, err
	}
	return readRep(c.r)
}

func (c *ExternalClient) Put(p Payload) (Handle, error) {
	rep, err := c.roundTrip(wireReq{op: opPut, name: p.Name, bytes: p.Bytes})
	if err != nil {
		return Handle{}, err
	}
	if !rep.ok {
		return Handle{}, fmt.Errorf("%s", rep.errMsg)
	}
	return Handle{tag: rep.tag, name: p.Name}, nil
}

func (c *ExternalClient) Get(h Handle) (Payload, error) {
	rep, err := c.roundTrip(wireReq{op: opGet, tag: h.tag})
	if err != nil {
		return Payload{}, err
	}
	if !rep.ok {
		return Payload{}, cos.NewErrNotFound("handle %q", h.tag)
	}
	return Payload{Bytes: rep.bytes, Name: rep.name}, nil
}

func (c *ExternalClient) GetList(hs []Handle) ([]Payload, error) {
	tags := make([]string, len(hs))
	for i, h := range hs {
		tags[i] = h.tag
	}
	rep, err := c.roundTrip(wireReq{op: opGetList, tags: tags})
	if err != nil {
		return nil, err
	}
	if !rep.ok {
		return nil, cos.NewErrNotFound("one of %d handles", len(hs))
	}
	out := make([]Payload, len(rep.payload))
	for i, sub := range rep.payload {
		out[i] = Payload{Bytes: sub.bytes, Name: sub.name}
	}
	return out, nil
}

func (c *ExternalClient) Expire(h Handle, after time.Duration) {
	_, _ = c.roundTrip(wireReq{op: opExpire, tag: h.tag, afterSec: int64(after.Seconds())})
}

// Subscribe is not carried over the wire - observability tooling that
// needs store events attaches to ExternalServer's MMSA directly within
// the Nexus process.
func (c *ExternalClient) Subscribe() (<-chan StoreEvent, func()) {
	ch := make(chan StoreEvent)
	return ch, func() {}
}

func (c *ExternalClient) Close() error { return c.conn.Close() }
