// Package config parses and validates the declarative pipeline spec.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package config_test

import (
	"strings"
	"testing"

	"github.com/nexusrt/nexus/config"
)

const minimalSpec = `
settings:
  store_backend: inproc
  store_size: 10000000
actors:
  Producer:
    package: demo
    classname: Producer
  Consumer:
    package: demo
    classname: Consumer
connections:
  Producer.q_out:
    - Consumer.q_in
`

func TestParseMinimalSpec(t *testing.T) {
	spec, err := config.Parse([]byte(minimalSpec))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(spec.Actors) != 2 {
		t.Fatalf("expected 2 actors, got %d", len(spec.Actors))
	}
	if spec.Actors["Producer"].Name != "Producer" {
		t.Fatalf("expected actor Name to be backfilled from the map key")
	}
	inbound, err := spec.InboundActors()
	if err != nil {
		t.Fatalf("inbound actors: %v", err)
	}
	if !inbound["Consumer"] {
		t.Fatal("expected Consumer to be recognized as having an inbound sink")
	}
}

func TestDanglingConnectionSourceIsRejected(t *testing.T) {
	const bad = `
actors:
  Consumer:
    package: demo
    classname: Consumer
connections:
  Ghost.q_out:
    - Consumer.q_in
`
	_, err := config.Parse([]byte(bad))
	if err == nil {
		t.Fatal("expected an error for a connection source naming an unknown actor")
	}
	if !strings.Contains(err.Error(), "Ghost") {
		t.Fatalf("expected error to mention the unknown actor, got: %v", err)
	}
}

func TestMutuallyExclusivePersistenceOptionsRejected(t *testing.T) {
	const bad = `
settings:
  redis_saving_enabled: true
  redis_aof_dirname: "custom"
  generate_ephemeral_aof_dirname: true
actors:
  A:
    package: demo
    classname: A
`
	_, err := config.Parse([]byte(bad))
	if err == nil {
		t.Fatal("expected an error for conflicting persistence options")
	}
}

func TestInvalidFsyncFrequencyRejected(t *testing.T) {
	const bad = `
settings:
  redis_fsync_frequency: sometimes
actors:
  A:
    package: demo
    classname: A
`
	_, err := config.Parse([]byte(bad))
	if err == nil {
		t.Fatal("expected an error for an invalid fsync frequency")
	}
}

func TestNegativeMetricsPortRejected(t *testing.T) {
	const bad = `
settings:
  metrics_port: -1
actors:
  A:
    package: demo
    classname: A
`
	_, err := config.Parse([]byte(bad))
	if err == nil {
		t.Fatal("expected an error for a negative metrics_port")
	}
}

func TestUnconsumedSourcesReportsSourceWithNoSink(t *testing.T) {
	const spec = `
actors:
  Producer:
    package: demo
    classname: Producer
  Orphan:
    package: demo
    classname: Producer
connections:
  Producer.q_out: []
`
	parsed, err := config.Parse([]byte(spec))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	unconsumed, err := parsed.UnconsumedSources()
	if err != nil {
		t.Fatalf("unconsumed sources: %v", err)
	}
	if len(unconsumed) != 1 || unconsumed[0] != "Producer.q_out" {
		t.Fatalf("expected exactly [\"Producer.q_out\"], got %v", unconsumed)
	}
}

func TestApplyPortOverrides(t *testing.T) {
	spec, err := config.Parse([]byte(minimalSpec))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	config.ApplyPortOverrides(spec, 9090, 0)
	if spec.Settings.ControlPort != 9090 {
		t.Fatalf("expected CLI control port to override file default, got %d", spec.Settings.ControlPort)
	}
	if spec.Settings.OutputPort != 0 {
		t.Fatalf("expected CLI zero output port to leave the file value (0) alone, got %d", spec.Settings.OutputPort)
	}
}
