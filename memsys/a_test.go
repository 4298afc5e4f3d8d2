// Package memsys implements the pipeline's object store.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package memsys_test

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/nexusrt/nexus/hk"
	"github.com/nexusrt/nexus/memsys"
)

func TestPutGetRoundTrip(t *testing.T) {
	mem := memsys.NewMMSA("t", 0)
	defer mem.Close()

	payload := []byte("the quick brown fox")
	h, err := mem.Put(memsys.Payload{Bytes: payload, Name: "frame-0"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := mem.Get(h)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got.Bytes) != string(payload) {
		t.Fatalf("round trip mismatch: got %q", got.Bytes)
	}
	if got.Name != "frame-0" {
		t.Fatalf("name mismatch: got %q", got.Name)
	}
}

func TestGetUnknownHandle(t *testing.T) {
	mem := memsys.NewMMSA("t", 0)
	defer mem.Close()

	if _, err := mem.Get(memsys.Handle{}); err == nil {
		t.Fatal("expected error for unknown handle")
	}
}

func TestGetListFailsFastOnFirstMiss(t *testing.T) {
	mem := memsys.NewMMSA("t", 0)
	defer mem.Close()

	h1, _ := mem.Put(memsys.Payload{Bytes: []byte("a")})
	_, err := mem.GetList([]memsys.Handle{h1, {}})
	if err == nil {
		t.Fatal("expected GetList to fail when one handle is missing")
	}
}

func TestStoreFullRejectsPut(t *testing.T) {
	mem := memsys.NewMMSA("tight", 8*1024) // 8KiB budget, smaller than one slab class
	defer mem.Close()

	_, err := mem.Put(memsys.Payload{Bytes: make([]byte, 64*1024)})
	if err == nil {
		t.Fatal("expected ErrStoreFull once the budget is exceeded")
	}
}

func TestExpireEvictsAfterDelay(t *testing.T) {
	go hk.DefaultHK.Run() // Expire's eviction fires on the process-wide housekeeper
	defer hk.DefaultHK.Stop()

	mem := memsys.NewMMSA("t", 0)
	defer mem.Close()

	h, _ := mem.Put(memsys.Payload{Bytes: []byte("ephemeral")})
	mem.Expire(h, 20*time.Millisecond)

	if _, err := mem.Get(h); err != nil {
		t.Fatalf("expected handle to still be live immediately after Expire: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := mem.Get(h); err != nil {
			return // evicted, as expected
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("handle was never evicted")
}

func TestSubscribeReceivesPutEvent(t *testing.T) {
	mem := memsys.NewMMSA("t", 0)
	defer mem.Close()

	ch, cancel := mem.Subscribe()
	defer cancel()

	h, err := mem.Put(memsys.Payload{Bytes: []byte("watched"), Name: "w"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	select {
	case ev := <-ch:
		if ev.Kind != memsys.EventPut || ev.Handle != h {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for put event")
	}
}

func TestConcurrentPutGet(t *testing.T) {
	mem := memsys.NewMMSA("stress", 64*1024*1024)
	defer mem.Close()

	const goroutines = 50
	const perGoroutine = 200

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(int64(id)))
			for i := 0; i < perGoroutine; i++ {
				siz := rnd.Intn(8*1024) + 1
				buf := make([]byte, siz)
				name := fmt.Sprintf("g%d-%d", id, i)
				h, err := mem.Put(memsys.Payload{Bytes: buf, Name: name})
				if err != nil {
					continue // budget pressure is expected under concurrent stress
				}
				if _, err := mem.Get(h); err != nil {
					t.Errorf("get after put failed for %s: %v", name, err)
				}
			}
		}(g)
	}
	wg.Wait()
}
