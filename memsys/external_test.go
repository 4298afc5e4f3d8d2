// Package memsys implements the pipeline's object store.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package memsys_test

import (
	"testing"

	"github.com/nexusrt/nexus/memsys"
)

func serveExternal(t *testing.T, dir string) (*memsys.ExternalServer, string) {
	t.Helper()
	srv, err := memsys.NewExternalServer(memsys.ExternalConfig{
		Network:    "tcp",
		Addr:       "127.0.0.1:0",
		BudgetByte: 0,
		PersistDir: dir,
		Fsync:      memsys.FsyncEveryWrite,
	})
	if err != nil {
		t.Fatalf("new external server: %v", err)
	}
	ln, err := srv.Listen()
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go srv.Accept(ln)
	return srv, ln.Addr().String()
}

// TestExternalServerReplayPreservesHandle shuts down a persisted external
// store after a Put and restarts it against the same AOF directory,
// asserting the first client's handle still dereferences to the same
// payload afterward (spec.md §8 Scenario 3).
func TestExternalServerReplayPreservesHandle(t *testing.T) {
	dir := t.TempDir()

	srv1, addr1 := serveExternal(t, dir)
	client1, err := memsys.DialExternal("tcp", addr1)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	h, err := client1.Put(memsys.Payload{Bytes: []byte("frame-42"), Name: "warm-restart"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	client1.Close()
	if err := srv1.Close(); err != nil {
		t.Fatalf("close server: %v", err)
	}

	srv2, addr2 := serveExternal(t, dir)
	defer srv2.Close()
	client2, err := memsys.DialExternal("tcp", addr2)
	if err != nil {
		t.Fatalf("dial after restart: %v", err)
	}
	defer client2.Close()

	got, err := client2.Get(h)
	if err != nil {
		t.Fatalf("get after restart: %v", err)
	}
	if string(got.Bytes) != "frame-42" {
		t.Fatalf("expected replayed payload to round-trip, got %q", got.Bytes)
	}
	if got.Name != "warm-restart" {
		t.Fatalf("expected replayed name to round-trip, got %q", got.Name)
	}
}
