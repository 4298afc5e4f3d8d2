package nexus

import (
	"context"
	"testing"
	"time"

	"github.com/nexusrt/nexus/config"
	"github.com/nexusrt/nexus/link"
	"github.com/nexusrt/nexus/memsys"
)

// TestWatcherHubDeliversSampleToSink exercises the cross-process watchout
// path end to end: a RemoteSender dialed the way cmd/actorhost's
// sampleWatchout dials, delivering a handle into the hub's Link, which
// watcherSink.RunStep then dereferences through the store.
func TestWatcherHubDeliversSampleToSink(t *testing.T) {
	store := memsys.NewMMSA("watcher-test", 1<<20)
	defer store.Close()

	hub := newWatcherHub()
	addr, err := hub.listen()
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer hub.close()

	sender, err := link.DialRemote("tcp", addr, config.DefaultInPort)
	if err != nil {
		t.Fatalf("dial hub: %v", err)
	}
	defer sender.Close()

	h, err := store.Put(memsys.Payload{Bytes: []byte("Worker pid=1 rss=0KiB"), Name: "Worker.watchout"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := sender.Put(ctx, h); err != nil {
		t.Fatalf("send sample: %v", err)
	}

	for i := 0; i < 1000 && hub.qin.Empty(); i++ {
		time.Sleep(time.Millisecond)
	}
	if hub.qin.Empty() {
		t.Fatal("hub never received the sample")
	}

	sink := newWatcherSink(hub, store)
	if err := sink.RunStep(); err != nil {
		t.Fatalf("run step: %v", err)
	}
}

func TestWatcherHubAddrEmptyBeforeListen(t *testing.T) {
	hub := newWatcherHub()
	if hub.recv.Addr() != nil {
		t.Fatal("expected a fresh hub's receiver to report no bound address")
	}
}
