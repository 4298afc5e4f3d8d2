// Package stats exposes Nexus's runtime counters and gauges to
// Prometheus (spec.md §4.7): store traffic, link depth, and actor
// lifecycle transitions.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package stats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry bundles every metric Nexus publishes under /metrics. Built
// once at startup and held by the supervisor, which updates the actor
// lifecycle and restart metrics; the store and link metrics are
// registered and exported but nothing updates them, so they read zero.
type Registry struct {
	reg *prometheus.Registry

	StorePuts    prometheus.Counter
	StoreGets    prometheus.Counter
	StoreEvicts  prometheus.Counter
	StoreBytes   prometheus.Counter
	StoreDropped prometheus.Counter

	LinkDepth *prometheus.GaugeVec
	LinkFull  *prometheus.CounterVec
	LinkEmpty *prometheus.CounterVec

	ActorRestarts  *prometheus.CounterVec
	ActorLifecycle *prometheus.CounterVec
}

func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		reg: reg,

		StorePuts: factory.NewCounter(prometheus.CounterOpts{
			Name: "nexus_store_puts_total", Help: "Total number of object store put() calls.",
		}),
		StoreGets: factory.NewCounter(prometheus.CounterOpts{
			Name: "nexus_store_gets_total", Help: "Total number of object store get() calls.",
		}),
		StoreEvicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "nexus_store_evicts_total", Help: "Total number of object store evictions.",
		}),
		StoreBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "nexus_store_put_bytes_total", Help: "Total bytes accepted by put().",
		}),
		StoreDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "nexus_store_events_dropped_total", Help: "StoreEvents dropped by a slow subscribe() listener.",
		}),

		LinkDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nexus_link_depth", Help: "Current number of buffered items on a Link.",
		}, []string{"link"}),
		LinkFull: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nexus_link_full_total", Help: "Total put()/put_nowait() calls that observed a full Link.",
		}, []string{"link"}),
		LinkEmpty: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nexus_link_empty_total", Help: "Total get_nowait() calls that observed an empty Link.",
		}, []string{"link"}),

		ActorRestarts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nexus_actor_restarts_total", Help: "Total number of times revive() rebuilt an actor process.",
		}, []string{"actor"}),
		ActorLifecycle: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nexus_actor_lifecycle_total", Help: "Total lifecycle-transition events observed per actor.",
		}, []string{"actor", "event"}),
	}
}

// Gatherer exposes the underlying prometheus.Registry so the caller can
// wire it to an http.Handler (nexus.startMetrics mounts it under /metrics
// on its own listener).
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }
