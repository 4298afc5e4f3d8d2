// Package nexus implements the supervisor.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package nexus

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/nexusrt/nexus/cmn/cos"
	"github.com/nexusrt/nexus/cmn/nlog"
	"github.com/nexusrt/nexus/link"
)

// handshake lines an actorhost child prints on stdout before it blocks
// waiting for its WIRE line on stdin: the TCP addresses of the signal and
// q_in listeners it bound, in place of inherited sockets.
const (
	lineSignalAddr = "SIGNAL_ADDR "
	lineQInAddr    = "QIN_ADDR "
	lineReady      = "READY_FOR_WIRE"
)

// spawn re-execs this same binary as an actorhost child: `-actor name`
// tells it which ActorSpec to build from the (re-read) pipeline spec file,
// `-comm-addr` is the supervisor-owned SignalServer address it dials to
// report lifecycle events, `-store-*` locates the shared object store.
func (n *Nexus) spawn(rt *ActorRuntime) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("supervisor: resolve self path: %w", err)
	}

	args := []string{
		"-actor", rt.Name(),
		"-spec", n.specPath,
		"-comm-addr", rt.CommAddr,
		"-store-network", n.storeNetwork,
		"-store-addr", n.storeAddr,
	}
	cmd := exec.Command(exe, args...)
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), "NEXUS_ACTORHOST=1")

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("supervisor: spawn %s: %w", rt.Name(), err)
	}
	rt.Process = cmd.Process
	rt.Cmd = cmd
	rt.StartedAt = time.Now()
	rt.stdin = stdin
	rt.exited = make(chan struct{})
	rt.crashed.Store(false)
	go rt.watchExit()

	sc := bufio.NewScanner(stdout)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, lineSignalAddr):
			rt.SignalAddr = strings.TrimPrefix(line, lineSignalAddr)
		case strings.HasPrefix(line, lineQInAddr):
			rt.QInAddr = strings.TrimPrefix(line, lineQInAddr)
		case line == lineReady:
			rt.stdoutDrain(stdout)
			nlog.Infof("nexus: %s bound signal=%s qin=%q", rt.Name(), rt.SignalAddr, rt.QInAddr)
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("supervisor: handshake with %s: %w", rt.Name(), err)
	}
	return fmt.Errorf("%w: %s exited before completing handshake", cos.ErrActorSetup, rt.Name())
}

// wire sends the downstream addresses rt's q_out fanout (and any named
// extra ports) should dial, computed once every actor has reported its
// QInAddr (spec.md §4.5 step 7-8). The line is built by the caller
// (wireAll/wireOne), in the form "port=name@addr,name@addr;...".
func (rt *ActorRuntime) wire(spec string) error {
	defer rt.stdin.Close()
	_, err := fmt.Fprintln(rt.stdin, spec)
	return err
}

// dialSignal connects the supervisor to the actor's already-bound signal
// listener; called once per actor, right after spawn/handshake.
func (rt *ActorRuntime) dialSignal() error {
	sender, err := link.DialSignal("tcp", rt.SignalAddr)
	if err != nil {
		return fmt.Errorf("supervisor: dial %s signal listener: %w", rt.Name(), err)
	}
	rt.Signal = sender
	return nil
}

// stdoutDrain keeps reading (and discarding, to nlog) anything the child
// writes to stdout after the handshake, so a well-behaved actor's stray
// prints don't block on a full pipe buffer.
func (rt *ActorRuntime) stdoutDrain(stdout io.Reader) {
	go func() {
		sc := bufio.NewScanner(stdout)
		for sc.Scan() {
			nlog.Infof("%s: %s", rt.Name(), sc.Text())
		}
	}()
}
