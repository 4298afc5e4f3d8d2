package nexus

import (
	"testing"

	"github.com/nexusrt/nexus/config"
)

func newTestRuntime(name string, state State) *ActorRuntime {
	return &ActorRuntime{Spec: config.ActorSpec{Name: name}, State: state}
}

func TestRegistryAllIn(t *testing.T) {
	r := newRegistry()
	r.add(newTestRuntime("a", StateReady))
	r.add(newTestRuntime("b", StateReady))

	if !r.allIn(StateReady) {
		t.Fatal("expected allIn(StateReady) to be true")
	}
	if r.allIn(StateRun) {
		t.Fatal("expected allIn(StateRun) to be false")
	}

	rt, err := r.get("a")
	if err != nil {
		t.Fatalf("get a: %v", err)
	}
	rt.State = StateRun
	if r.allIn(StateReady) {
		t.Fatal("expected allIn(StateReady) to be false after a transitioned to StateRun")
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	r := newRegistry()
	if _, err := r.get("missing"); err == nil {
		t.Fatal("expected an error for an unregistered actor")
	}
}

func TestRegistryForEachOrder(t *testing.T) {
	r := newRegistry()
	r.add(newTestRuntime("charlie", StateInit))
	r.add(newTestRuntime("alpha", StateInit))
	r.add(newTestRuntime("bravo", StateInit))

	var order []string
	r.forEach(func(rt *ActorRuntime) { order = append(order, rt.Name()) })

	want := []string{"alpha", "bravo", "charlie"}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}

func TestRegistrySnapshot(t *testing.T) {
	r := newRegistry()
	rt := newTestRuntime("a", StateRun)
	rt.RestartCount = 2
	r.add(rt)

	snap := r.snapshot()
	if len(snap.Actors) != 1 {
		t.Fatalf("expected 1 actor in snapshot, got %d", len(snap.Actors))
	}
	view := snap.Actors[0]
	if view.Name != "a" || view.State != StateRun || view.RestartCount != 2 || view.PID != 0 {
		t.Fatalf("unexpected snapshot view: %+v", view)
	}
}
