package demo

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/nexusrt/nexus/actor"
	"github.com/nexusrt/nexus/link"
	"github.com/nexusrt/nexus/memsys"
)

// TestProducerConsumerSum drives a Producer and a Consumer through the
// default actor.Drive loop, wired by a single in-process Link, and checks
// the spec.md §8 scenario: a 100-item producer's items sum to 5050.
func TestProducerConsumerSum(t *testing.T) {
	store := memsys.NewMMSA("test", 16<<20)
	defer store.Close()

	q := link.New("q", 8)

	prodSig := link.NewSignal("prod.signal", 4)
	prodComm := link.NewSignal("prod.comm", 4)
	consSig := link.NewSignal("cons.signal", 4)
	consComm := link.NewSignal("cons.comm", 4)

	prodPorts := actor.Ports{QOut: q, Signal: prodSig, Comm: prodComm, Store: store}
	consPorts := actor.Ports{QIn: q, Signal: consSig, Comm: consComm, Store: store}

	producer := NewProducer(prodPorts, map[string]any{"count": 100})
	consumer := NewConsumer(consPorts, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errs := make(chan error, 2)
	go func() { errs <- actor.Drive(ctx, prodPorts, producer) }()
	go func() { errs <- actor.Drive(ctx, consPorts, consumer) }()

	sendAndAwait(t, prodSig, prodComm, actor.SigSetup, actor.EvtReady)
	sendAndAwait(t, consSig, consComm, actor.SigSetup, actor.EvtReady)

	if err := prodSig.Put(ctx, actor.SigRun); err != nil {
		t.Fatalf("run producer: %v", err)
	}
	if err := consSig.Put(ctx, actor.SigRun); err != nil {
		t.Fatalf("run consumer: %v", err)
	}

	// give the producer's 100 steps (each gated by cmn.Rom.SignalPoll) time
	// to drain onto q and the consumer time to drain q.
	time.Sleep(time.Second)

	if err := prodSig.Put(ctx, actor.SigStop); err != nil {
		t.Fatalf("stop producer: %v", err)
	}
	awaitEvt(t, prodComm, actor.EvtStopSuccess)

	if err := consSig.Put(ctx, actor.SigStop); err != nil {
		t.Fatalf("stop consumer: %v", err)
	}
	sig := awaitEvt(t, consComm, "")
	if want := "sum:" + strconv.Itoa(5050); sig != want {
		t.Fatalf("consumer comm reported %q, want %q", sig, want)
	}
	if consumer.Sum() != 5050 {
		t.Fatalf("consumer sum = %d, want 5050", consumer.Sum())
	}

	_ = prodSig.Put(ctx, actor.SigQuit)
	_ = consSig.Put(ctx, actor.SigQuit)
	for i := 0; i < 2; i++ {
		<-errs
	}
}

func sendAndAwait(t *testing.T, sig, comm *link.SignalLink, send, want string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := sig.Put(ctx, send); err != nil {
		t.Fatalf("send %q: %v", send, err)
	}
	got := awaitEvt(t, comm, want)
	if want != "" && got != want {
		t.Fatalf("got comm event %q, want %q", got, want)
	}
}

func awaitEvt(t *testing.T, comm *link.SignalLink, want string) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		got, err := comm.Get(ctx)
		if err != nil {
			t.Fatalf("await comm event: %v", err)
		}
		if want == "" || got == want {
			return got
		}
	}
}
