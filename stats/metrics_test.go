// Package stats exposes Nexus's runtime counters and gauges.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package stats_test

import (
	"testing"

	"github.com/nexusrt/nexus/stats"
)

func TestRegistryGathersRegisteredMetrics(t *testing.T) {
	r := stats.NewRegistry()
	r.StorePuts.Inc()
	r.LinkDepth.WithLabelValues("a.q_out").Set(3)
	r.ActorLifecycle.WithLabelValues("Producer", "ready").Inc()

	families, err := r.Gatherer().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected at least one metric family after recording samples")
	}
}
