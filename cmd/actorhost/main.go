// Command actorhost is the re-exec'd child process every Nexus actor
// runs as (spec.md §4.5: "spawn via os/exec, re-executing the current
// binary with a -actor <name> flag"). It is not a user-facing entry
// point - `nexus run` launches it, never a human.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/nexusrt/nexus/actor"
	"github.com/nexusrt/nexus/cmn/nlog"
	"github.com/nexusrt/nexus/config"
	"github.com/nexusrt/nexus/demo"
	"github.com/nexusrt/nexus/link"
	"github.com/nexusrt/nexus/memsys"
	"github.com/nexusrt/nexus/sys"
)

func main() {
	var (
		name         = flag.String("actor", "", "actor name, as declared in the pipeline spec")
		specPath     = flag.String("spec", "", "path to the pipeline spec this actor belongs to")
		commAddr     = flag.String("comm-addr", "", "supervisor's signal server address for this actor's comm events")
		storeNetwork = flag.String("store-network", "tcp", "object store backend network")
		storeAddr    = flag.String("store-addr", "", "object store backend address")
	)
	flag.Parse()

	if err := run(*name, *specPath, *commAddr, *storeNetwork, *storeAddr); err != nil {
		nlog.Errorf("actorhost %s: %v", *name, err)
		os.Exit(1)
	}
}

func run(name, specPath, commAddr, storeNetwork, storeAddr string) error {
	spec, err := config.Load(specPath)
	if err != nil {
		return fmt.Errorf("reload spec: %w", err)
	}
	aspec, ok := spec.Actors[name]
	if !ok {
		if spec.GUI == nil || spec.GUI.Name != name {
			return fmt.Errorf("actor %q not declared in %s", name, specPath)
		}
		aspec = *spec.GUI
	}
	inbound, err := spec.InboundActors()
	if err != nil {
		return err
	}

	store, err := memsys.DialExternal(storeNetwork, storeAddr)
	if err != nil {
		return fmt.Errorf("dial store: %w", err)
	}
	defer store.Close()

	// supervisor -> actor lifecycle commands: bind first, report the
	// address, then accept in the background while we finish wiring.
	signalLink := link.NewSignal(name+".signal", 64)
	signalSrv := link.NewSignalServer(signalLink)
	if err := signalSrv.Listen("tcp", "127.0.0.1:0"); err != nil {
		return fmt.Errorf("bind signal listener: %w", err)
	}
	fmt.Printf("SIGNAL_ADDR %s\n", signalSrv.Addr())

	var qin *link.Link
	if inbound[name] {
		qin = link.New(name+".q_in", 256)
		recv := link.NewRemoteReceiver(map[string]*link.Link{config.DefaultInPort: qin})
		go func() {
			if err := recv.Serve("tcp", "127.0.0.1:0"); err != nil {
				nlog.Warningf("actorhost %s: q_in receiver: %v", name, err)
			}
		}()
		addr, err := waitListening(recv)
		if err != nil {
			return err
		}
		fmt.Printf("QIN_ADDR %s\n", addr)
	}

	fmt.Println("READY_FOR_WIRE")
	os.Stdout.Sync()
	go signalSrv.Accept()

	qout := link.New(name+".q_out", 256)
	fanout, extra, err := readWireLine(qout)
	if err != nil {
		return err
	}
	defer fanout.Close()

	// driveSignal is what actor.Drive actually reads; interceptRewire sits
	// between it and the supervisor-facing signalLink so a "rewire" signal
	// never reaches (and is silently dropped by) the Actor contract's loop.
	driveSignal := link.NewSignal(name+".drive-signal", 64)
	go interceptRewire(signalLink, driveSignal, fanout)

	if addrs, ok := extra[config.WatchoutPort]; ok && len(addrs) > 0 {
		if _, addr, ok := strings.Cut(addrs[0], "@"); ok {
			go sampleWatchout(name, addr, store)
		}
	}

	commSender, err := link.DialSignal("tcp", commAddr)
	if err != nil {
		return fmt.Errorf("dial comm: %w", err)
	}
	defer commSender.Close()
	comm := link.NewSignal(name+".comm", 64)
	go forwardComm(comm, commSender)

	ctor, ok := demo.Registry[aspec.Classname]
	if !ok {
		return fmt.Errorf("no actor registered for classname %q", aspec.Classname)
	}
	ports := actor.Ports{QIn: qin, QOut: qout, Signal: driveSignal, Comm: comm, Store: store}
	a := ctor(ports, aspec.Options)

	if runner, ok := a.(actor.Runner); ok {
		runner.Run(ports)
		return nil
	}
	return actor.Drive(context.Background(), ports, a)
}

// waitListening blocks until recv's listener is bound - RemoteReceiver.Serve
// binds synchronously before its accept loop, so this just needs to
// observe Addr() become non-nil, which in practice is immediate; a short
// retry loop avoids adding a Listen/Accept split purely for this.
func waitListening(recv *link.RemoteReceiver) (string, error) {
	for i := 0; i < 1000; i++ {
		if a := recv.Addr(); a != nil {
			return a.String(), nil
		}
		time.Sleep(time.Millisecond)
	}
	return "", fmt.Errorf("q_in receiver never reported a bound address")
}

// readWireLine reads the supervisor's single WIRE line from stdin (spec.md
// §4.5 step 8: "port=name@addr,name@addr;port2=name@addr"), dials every
// q_out destination by name, and returns a Fanout ready to receive from
// qout. Each destination is added under its sink actor name so a later
// "rewire" signal (see interceptRewire) can find and replace it. Clauses
// for any port other than q_out (currently only "watchout", spec.md
// §4.6) are returned verbatim in extra for the caller to act on.
func readWireLine(qout *link.Link) (fanout *link.Fanout, extra map[string][]string, err error) {
	sc := bufio.NewScanner(os.Stdin)
	line := ""
	if sc.Scan() {
		line = sc.Text()
	}
	fanout = link.NewFanout(link.Backpressure)
	extra = make(map[string][]string)
	for _, clause := range strings.Split(line, ";") {
		if clause == "" {
			continue
		}
		parts := strings.SplitN(clause, "=", 2)
		if len(parts) != 2 {
			continue
		}
		port, pairsStr := parts[0], parts[1]
		if port != config.DefaultOutPort {
			extra[port] = strings.Split(pairsStr, ",")
			continue
		}
		for _, pair := range strings.Split(pairsStr, ",") {
			if pair == "" {
				continue
			}
			name, addr, ok := strings.Cut(pair, "@")
			if !ok {
				return nil, nil, fmt.Errorf("malformed q_out destination %q", pair)
			}
			sender, err := link.DialRemote("tcp", addr, config.DefaultInPort)
			if err != nil {
				return nil, nil, fmt.Errorf("dial downstream %s (%s): %w", name, addr, err)
			}
			fanout.AddNamed(name, sender)
		}
	}
	go func() {
		ctx := context.Background()
		for {
			h, err := qout.Get(ctx)
			if err != nil {
				return
			}
			if err := fanout.Put(ctx, h); err != nil {
				return
			}
		}
	}()
	return fanout, extra, nil
}

// sampleWatchout periodically samples this process's own resource usage
// and delivers it to the watcher hub at addr over the watchout link
// (spec.md §4.6), the counterpart of readWireLine's q_out dialing for the
// extra link Nexus opens to every actor named in use_watcher.
func sampleWatchout(name, addr string, store memsys.Store) {
	sender, err := link.DialRemote("tcp", addr, config.DefaultInPort)
	if err != nil {
		nlog.Warningf("actorhost %s: dial watcher: %v", name, err)
		return
	}
	defer sender.Close()

	t := time.NewTicker(2 * time.Second)
	defer t.Stop()
	ctx := context.Background()
	var prevU, prevS uint64
	for range t.C {
		ps, err := sys.ReadProcStat(os.Getpid())
		if err != nil {
			nlog.Warningf("actorhost %s: watchout sample: %v", name, err)
			continue
		}
		dU, dS := ps.UtimeTick-prevU, ps.StimeTick-prevS
		prevU, prevS = ps.UtimeTick, ps.StimeTick
		line := fmt.Sprintf("%s pid=%d rss=%dKiB d(utime)=%d d(stime)=%d",
			name, ps.Pid, ps.RSSBytes/1024, dU, dS)
		h, err := store.Put(memsys.Payload{Bytes: []byte(line), Name: name + ".watchout"})
		if err != nil {
			nlog.Warningf("actorhost %s: watchout put: %v", name, err)
			continue
		}
		if err := sender.Put(ctx, h); err != nil {
			nlog.Warningf("actorhost %s: watchout send: %v", name, err)
			return
		}
	}
}

// interceptRewire pumps every signal the supervisor sends on in, handling
// "rewire <name>@<addr>" itself - dialing a fresh RemoteSender and
// swapping it into fanout under name - and forwarding everything else to
// out, which is what actor.Drive actually reads from. Without this split,
// Drive would just log and discard a rewire signal it doesn't recognize
// (actor/driver.go's default case), leaving the stale sender in place.
func interceptRewire(in, out *link.SignalLink, fanout *link.Fanout) {
	ctx := context.Background()
	for {
		sig, err := in.Get(ctx)
		if err != nil {
			out.Close()
			return
		}
		if rest, ok := strings.CutPrefix(sig, actor.SigRewire+" "); ok {
			name, addr, ok := strings.Cut(rest, "@")
			if !ok {
				nlog.Warningf("actorhost: malformed rewire signal %q", sig)
				continue
			}
			sender, err := link.DialRemote("tcp", addr, config.DefaultInPort)
			if err != nil {
				nlog.Warningf("actorhost: rewire dial %s: %v", addr, err)
				continue
			}
			if !fanout.Rewire(name, sender) {
				nlog.Warningf("actorhost: rewire target %q not found in this actor's fanout", name)
				sender.Close()
			}
			continue
		}
		if err := out.Put(ctx, sig); err != nil {
			return
		}
	}
}

func forwardComm(comm *link.SignalLink, sender *link.SignalSender) {
	ctx := context.Background()
	for {
		sig, err := comm.Get(ctx)
		if err != nil {
			return
		}
		if err := sender.Send(sig); err != nil {
			nlog.Warningf("actorhost: comm send failed: %v", err)
			return
		}
	}
}
