// Package nexus implements the supervisor: it parses a pipeline spec,
// spawns actors as OS processes, wires links between them, and drives
// their lifecycle end to end (spec.md §4.5).
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package nexus

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/nexusrt/nexus/actor"
	"github.com/nexusrt/nexus/cmn"
	"github.com/nexusrt/nexus/cmn/cos"
	"github.com/nexusrt/nexus/cmn/nlog"
	"github.com/nexusrt/nexus/config"
	"github.com/nexusrt/nexus/hk"
	"github.com/nexusrt/nexus/link"
	"github.com/nexusrt/nexus/memsys"
	"github.com/nexusrt/nexus/stats"
	"github.com/nexusrt/nexus/sys"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// Nexus is the process-wide supervisor: one per pipeline run, owning the
// object store backend, every actor's signal/comm links, the output and
// control sockets, and the metrics registry (spec.md §4).
type Nexus struct {
	specPath string
	spec     *config.PipelineSpec
	reg      *registry
	Stats    *stats.Registry

	storeNetwork string
	storeAddr    string
	storeServer  *memsys.ExternalServer

	watched   map[string]bool
	watchAddr string
	watchHub  *watcherHub
	watchSink *watcherSink

	out *outputSocket
	ctl *ctlSocket

	metricsLn  net.Listener
	metricsSrv *http.Server

	shutdownOnce sync.Once
	cancel       context.CancelFunc
}

// New loads and validates the pipeline spec at specPath and prepares a
// Nexus ready to Start.
func New(specPath string, cliControlPort, cliOutputPort int) (*Nexus, error) {
	spec, err := config.Load(specPath)
	if err != nil {
		return nil, err
	}
	config.ApplyPortOverrides(spec, cliControlPort, cliOutputPort)

	watched := make(map[string]bool, len(spec.Settings.UseWatcher))
	for _, name := range spec.Settings.UseWatcher {
		watched[name] = true
	}

	return &Nexus{
		specPath: specPath,
		spec:     spec,
		reg:      newRegistry(),
		Stats:    stats.NewRegistry(),
		watched:  watched,
	}, nil
}

// Start runs the full startup sequence (spec.md §4.5 steps 1-8) and then
// blocks, polling for control commands and child exits, until ctx is
// canceled or Shutdown is called.
func (n *Nexus) Start(ctx context.Context) error {
	ctx, n.cancel = context.WithCancel(ctx)
	sys.SetMaxProcs()
	go hk.DefaultHK.Run()

	if err := n.startStore(); err != nil {
		return fmt.Errorf("supervisor: start store: %w", err)
	}

	if err := n.buildRegistry(); err != nil {
		return err
	}
	n.warnUnconsumedSources()
	if err := n.spawnAll(); err != nil {
		return err
	}
	if err := n.startWatcher(); err != nil {
		return fmt.Errorf("supervisor: start watcher: %w", err)
	}
	if err := n.wireAll(); err != nil {
		return err
	}
	if err := n.acceptAll(); err != nil {
		return err
	}

	if err := n.startSockets(); err != nil {
		return fmt.Errorf("supervisor: start sockets: %w", err)
	}
	if err := n.startMetrics(); err != nil {
		return fmt.Errorf("supervisor: start metrics: %w", err)
	}

	installSignalHandler(n)

	nlog.Infof("nexus: pipeline %q up, %d actor(s), control=%s output=%s metrics=%s",
		n.specPath, len(n.reg.all), n.ctl.Addr(), n.out.Addr(), n.MetricsAddr())

	<-ctx.Done()
	return nil
}

// defaultStoreBudget picks a conservative fraction of host RAM when
// settings.store_size is left at its zero value, so a pipeline spec
// doesn't need to hardcode a byte budget for the common case.
func defaultStoreBudget() int64 {
	const fraction = 4 // 1/4 of free RAM
	mem, err := sys.ReadHostMemory()
	if err != nil {
		nlog.Warningf("nexus: read host memory: %v, defaulting store budget to 256MiB", err)
		return 256 << 20
	}
	budget := int64(mem.FreeBytes) / fraction
	if budget <= 0 {
		budget = 256 << 20
	}
	return budget
}

func (n *Nexus) startStore() error {
	dir := ""
	if n.spec.Settings.RedisSavingEnabled {
		dir = n.spec.Settings.RedisAofDirname
		if n.spec.Settings.GenerateEphemeralAofDirname || dir == "" {
			var err error
			dir, err = os.MkdirTemp("", "nexus-aof-*")
			if err != nil {
				return err
			}
		}
	}
	fsync := memsys.FsyncPolicy(n.spec.Settings.RedisFsyncFrequency)
	if fsync == "" {
		fsync = memsys.FsyncEverySecond
	}

	budget := n.spec.Settings.StoreSize
	if budget <= 0 {
		budget = defaultStoreBudget()
	}

	n.storeNetwork = "tcp"
	n.storeAddr = fmt.Sprintf("127.0.0.1:%d", n.spec.Settings.RedisPort)

	srv, err := memsys.NewExternalServer(memsys.ExternalConfig{
		Network:    n.storeNetwork,
		Addr:       n.storeAddr,
		BudgetByte: budget,
		PersistDir: dir,
		Fsync:      fsync,
	})
	if err != nil {
		return err
	}
	n.storeServer = srv

	ln, err := srv.Listen()
	if err != nil {
		return err
	}
	n.storeAddr = ln.Addr().String()
	go srv.Accept(ln)
	return nil
}

// buildRegistry creates one ActorRuntime per declared actor (plus gui),
// and binds each one's comm listener - all before any process spawns, so
// every -comm-addr flag is known up front.
func (n *Nexus) buildRegistry() error {
	specs := make([]config.ActorSpec, 0, len(n.spec.Actors)+1)
	for _, a := range n.spec.Actors {
		specs = append(specs, a)
	}
	if n.spec.GUI != nil {
		specs = append(specs, *n.spec.GUI)
	}

	for _, a := range specs {
		comm := link.NewSignal(a.Name+".comm", 64)
		srv := link.NewSignalServer(comm)
		if err := srv.Listen("tcp", "127.0.0.1:0"); err != nil {
			return fmt.Errorf("supervisor: bind comm listener for %s: %w", a.Name, err)
		}
		rt := &ActorRuntime{
			Spec:       a,
			Method:     a.Method(),
			Comm:       comm,
			CommServer: srv,
			CommAddr:   srv.Addr().String(),
			State:      StateInit,
			IsGUI:      n.spec.GUI != nil && a.Name == n.spec.GUI.Name,
		}
		n.reg.add(rt)
	}
	return nil
}

// warnUnconsumedSources logs a warning for every connection source no
// sink consumes (spec.md §4.4) - allowed, but surfaced since it usually
// means a forgotten connections entry rather than an intentional sink.
func (n *Nexus) warnUnconsumedSources() {
	unconsumed, err := n.spec.UnconsumedSources()
	if err != nil {
		nlog.Warningf("nexus: unconsumed-source check: %v", err)
		return
	}
	for _, src := range unconsumed {
		nlog.Warningf("nexus: connection source %q has no sink", src)
	}
}

// spawnAll spawns every actor concurrently (each runs its own re-exec and
// stdout handshake independently, so there is nothing to serialize),
// grounded in the teacher's per-mountpath errgroup fan-out.
func (n *Nexus) spawnAll() error {
	group, _ := errgroup.WithContext(context.Background())
	n.reg.forEach(func(rt *ActorRuntime) {
		group.Go(func() error {
			if err := n.spawn(rt); err != nil {
				return err
			}
			rt.State = StateInit
			return nil
		})
	})
	return group.Wait()
}

// wireAll computes, for every actor with a q_out fanout, the downstream
// QInAddr list, and sends each actor its WIRE line (spec.md §4.5 step 8).
// Safe to call only once every actor has reported its own QInAddr, which
// spawnAll (run to completion, not interleaved) guarantees.
func (n *Nexus) wireAll() error {
	sinks, err := n.spec.SinkEndpoints()
	if err != nil {
		return err
	}

	var errs cos.Errs
	n.reg.forEach(func(rt *ActorRuntime) {
		dsts, ok := sinks[config.Endpoint{Actor: rt.Name(), Port: config.DefaultOutPort}]
		wireLine := ""
		if ok {
			pairs := make([]string, 0, len(dsts))
			for _, d := range dsts {
				drt, err := n.reg.get(d.Actor)
				if err != nil {
					errs.Add(err)
					continue
				}
				if drt.QInAddr == "" {
					errs.Add(fmt.Errorf("%w: %s has no q_in listener but is a connection sink",
						cos.ErrConfig, d.Actor))
					continue
				}
				pairs = append(pairs, d.Actor+"@"+drt.QInAddr)
			}
			wireLine = config.DefaultOutPort + "=" + joinAddrs(pairs)
		}
		if n.watched[rt.Name()] {
			clause := config.WatchoutPort + "=watcher@" + n.watchAddr
			if wireLine == "" {
				wireLine = clause
			} else {
				wireLine += ";" + clause
			}
		}
		if err := rt.wire(wireLine); err != nil {
			errs.Add(fmt.Errorf("%s: send wire line: %w", rt.Name(), err))
		}
	})
	if _, err := errs.JoinErr(); err != nil {
		return err
	}
	return nil
}

// joinAddrs joins "name@addr" pairs (or bare addrs, for callers that
// don't need the name) with commas for the WIRE line's q_out clause.
func joinAddrs(addrs []string) string {
	out := ""
	for i, a := range addrs {
		if i > 0 {
			out += ","
		}
		out += a
	}
	return out
}

// acceptAll dials every actor's signal listener and starts accepting its
// single comm connection, completing the two-way control channel.
func (n *Nexus) acceptAll() error {
	group, _ := errgroup.WithContext(context.Background())
	n.reg.forEach(func(rt *ActorRuntime) {
		group.Go(func() error { return rt.dialSignal() })
	})
	if err := group.Wait(); err != nil {
		return err
	}
	n.reg.forEach(func(rt *ActorRuntime) {
		go func(rt *ActorRuntime) {
			if err := rt.CommServer.Accept(); err != nil {
				nlog.Warningf("nexus: %s comm server: %v", rt.Name(), err)
			}
		}(rt)
		go n.pumpComm(rt)
	})
	return nil
}

// pumpComm drains one actor's comm events, updating its tracked State and
// republishing each event on the output socket and lifecycle metric
// (spec.md §4.5 "tracks every actor's last reported state").
func (n *Nexus) pumpComm(rt *ActorRuntime) {
	ctx := context.Background()
	for {
		sig, err := rt.Comm.Get(ctx)
		if err != nil {
			return
		}
		switch sig {
		case actor.EvtReady:
			rt.State = StateReady
		case actor.EvtStopSuccess:
			rt.State = StateStop
		}
		n.Stats.ActorLifecycle.WithLabelValues(rt.Name(), sig).Inc()
		if n.out != nil {
			n.out.Publish(rt.Name() + ": " + sig)
		}
	}
}

// startWatcher binds the watcher hub and starts its consumer loop, and
// must run after spawnAll (the object store address it dials is already
// known by then) but before wireAll (which needs watchAddr to build the
// watchout clause for every watched actor's WIRE line).
func (n *Nexus) startWatcher() error {
	if len(n.watched) == 0 {
		return nil
	}
	for name := range n.watched {
		if _, err := n.reg.get(name); err != nil {
			nlog.Warningf("nexus: use_watcher names unknown actor %q", name)
		}
	}

	hub := newWatcherHub()
	addr, err := hub.listen()
	if err != nil {
		return err
	}
	n.watchHub = hub
	n.watchAddr = addr

	store, err := memsys.DialExternal(n.storeNetwork, n.storeAddr)
	if err != nil {
		return err
	}
	n.watchSink = newWatcherSink(hub, store)
	n.watchSink.start()
	return nil
}

func (n *Nexus) startSockets() error {
	ctl, err := newCtlSocket(n, n.spec.Settings.ControlPort)
	if err != nil {
		return err
	}
	n.ctl = ctl

	out, err := newOutputSocket(n.spec.Settings.OutputPort)
	if err != nil {
		return err
	}
	n.out = out
	out.serve()
	return nil
}

// startMetrics mounts the Prometheus registry under /metrics on its own
// listener (spec.md §4.7) - a plain net/http server since promhttp's
// handler is net/http-native, unlike the control/output sockets' fasthttp.
func (n *Nexus) startMetrics() error {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", n.spec.Settings.MetricsPort))
	if err != nil {
		return err
	}
	n.metricsLn = ln

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(n.Stats.Gatherer(), promhttp.HandlerOpts{}))
	n.metricsSrv = &http.Server{Handler: mux}
	go func() {
		if err := n.metricsSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			nlog.Warningf("nexus: metrics server: %v", err)
		}
	}()
	return nil
}

// broadcast sends sig to every actor's signal channel, per spec.md §4.3's
// description of run/stop/quit as pipeline-wide commands.
func (n *Nexus) broadcast(sig string) error {
	var errs cos.Errs
	n.reg.forEach(func(rt *ActorRuntime) {
		if err := rt.Signal.Send(sig); err != nil {
			errs.Add(fmt.Errorf("%s: %w", rt.Name(), err))
		}
	})
	_, err := errs.JoinErr()
	return err
}

// Setup implements the `setup` control command: broadcasts SigSetup to
// every actor so each runs its Setup() and reports ready, the
// precondition Run's gate checks for (spec.md §4.3 step 1-2).
func (n *Nexus) Setup() error {
	n.reg.forEach(func(rt *ActorRuntime) { rt.State = StateSetup })
	return n.broadcast(actor.SigSetup)
}

// Run implements the `run` control command: refused unless every actor has
// reported ready (fresh start) or stop_success (after a prior stop) - the
// Gate invariant from spec.md §3.
func (n *Nexus) Run() error {
	if !n.reg.allIn(StateReady) && !n.reg.allIn(StateStop) {
		if n.reg.allIn(StateInit) || n.reg.allIn(StateSetup) {
			return cos.ErrGateNotReady
		}
		return cos.ErrGateNotStopped
	}
	if err := n.broadcast(actor.SigRun); err != nil {
		return err
	}
	n.reg.forEach(func(rt *ActorRuntime) { rt.State = StateRun })
	return nil
}

func (n *Nexus) Stop() error {
	if err := n.broadcast(actor.SigStop); err != nil {
		return err
	}
	return nil
}

// Pause implements the `pause` control command. It is acknowledged and
// logged only; there is no SigPause in the actor signal vocabulary, and
// the original implementation this was distilled from never finished it
// either (its handler is a logged no-op with a standing TODO for
// resume/reset). A real pause needs a fifth actor state between run and
// stop that the driver loop can suspend into and later resume from
// without re-running setup - out of scope here.
func (n *Nexus) Pause() error {
	nlog.Warningf("nexus: pause requested; not implemented, ignoring")
	return nil
}

func (n *Nexus) Status() RuntimeSnapshot { return n.reg.snapshot() }

// ControlAddr and OutputAddr are valid only after Start has completed
// startSockets and are empty before then; the CLI reads them once, after
// its startup progress bar, and skips the output stream if it is empty.
func (n *Nexus) ControlAddr() string {
	if n.ctl == nil {
		return ""
	}
	return n.ctl.Addr()
}

func (n *Nexus) OutputAddr() string {
	if n.out == nil {
		return ""
	}
	return n.out.Addr()
}

func (n *Nexus) MetricsAddr() string {
	if n.metricsLn == nil {
		return ""
	}
	return n.metricsLn.Addr().String()
}

// Shutdown publishes quit, waits (bounded by cmn.Rom.ShutdownJoin) for
// each child to exit, escalates to Kill on timeout, then tears down the
// store and sockets (spec.md §5).
func (n *Nexus) Shutdown() {
	n.shutdownOnce.Do(func() {
		nlog.Infof("nexus: shutting down")
		_ = n.broadcast(actor.SigQuit)

		var wg sync.WaitGroup
		n.reg.forEach(func(rt *ActorRuntime) {
			wg.Add(1)
			go func(rt *ActorRuntime) {
				defer wg.Done()
				n.reapOne(rt)
			}(rt)
		})
		wg.Wait()

		if n.watchSink != nil {
			n.watchSink.stopWatching()
			_ = n.watchSink.store.Close()
		}
		if n.watchHub != nil {
			if err := n.watchHub.close(); err != nil {
				nlog.Warningf("nexus: close watcher hub: %v", err)
			}
		}
		if n.out != nil {
			n.out.Close()
		}
		if n.ctl != nil {
			n.ctl.Close()
		}
		if n.metricsSrv != nil {
			_ = n.metricsSrv.Close()
		}
		if n.storeServer != nil {
			if err := n.storeServer.Close(); err != nil {
				nlog.Warningf("nexus: close store: %v", err)
			}
		}
		hk.DefaultHK.Stop()
		if n.cancel != nil {
			n.cancel()
		}
	})
}

func (n *Nexus) reapOne(rt *ActorRuntime) {
	rt.State = StateQuit // set before the wait so watchExit doesn't mark this exit a crash

	select {
	case <-rt.exited:
		if rt.exitErr != nil {
			nlog.Warningf("nexus: %s exited: %v", rt.Name(), rt.exitErr)
		}
	case <-time.After(cmn.Rom.ShutdownJoin()):
		nlog.Warningf("nexus: %s did not exit within %s, killing", rt.Name(), cmn.Rom.ShutdownJoin())
		if rt.Process != nil {
			_ = rt.Process.Kill()
		}
		<-rt.exited
	}
}

