// Package link implements Nexus Links.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package link_test

import (
	"context"
	"testing"

	"github.com/nexusrt/nexus/link"
)

func TestSignalLinkFIFO(t *testing.T) {
	sl := link.NewSignal("sig", 4)
	ctx := context.Background()
	for _, s := range []string{"setup", "run", "stop"} {
		if err := sl.Put(ctx, s); err != nil {
			t.Fatalf("put %q: %v", s, err)
		}
	}
	for _, want := range []string{"setup", "run", "stop"} {
		got, err := sl.Get(ctx)
		if err != nil || got != want {
			t.Fatalf("want %q, got %q err %v", want, got, err)
		}
	}
}

func TestSignalLinkClosedIsTerminal(t *testing.T) {
	sl := link.NewSignal("sig", 1)
	sl.Close()
	if _, err := sl.Get(context.Background()); err == nil {
		t.Fatal("expected error reading from a closed, empty signal link")
	}
}

func TestSignalCrossProcessRoundTrip(t *testing.T) {
	dst := link.NewSignal("comm", 4)
	srv := link.NewSignalServer(dst)

	if err := srv.Listen("tcp", "127.0.0.1:0"); err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer srv.Close()
	go srv.Accept()

	sender, err := link.DialSignal("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer sender.Close()

	if err := sender.Send("run"); err != nil {
		t.Fatalf("send: %v", err)
	}

	got, err := dst.Get(context.Background())
	if err != nil || got != "run" {
		t.Fatalf("want %q, got %q err %v", "run", got, err)
	}
}
