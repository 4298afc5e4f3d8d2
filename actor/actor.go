// Package actor defines the contract every Nexus processing unit
// implements and the default driver loop that runs it.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package actor

import (
	"github.com/nexusrt/nexus/link"
	"github.com/nexusrt/nexus/memsys"
)

// Ports is the typed record an actor's constructor receives - no field
// injection (spec.md §9 DESIGN NOTES): every link the actor may use is
// named and present (or explicitly nil for an optional port) at
// construction time, so a missing wiring is a startup-time error rather
// than a nil-field surprise discovered mid-run.
type Ports struct {
	QIn   *link.Link // inbound data, nil for a source actor
	QOut  *link.Link // outbound data, nil for a sink actor
	Extra map[string]*link.Link // additional named links declared in the spec

	Signal *link.SignalLink // read-only: supervisor -> actor lifecycle commands
	Comm   *link.SignalLink // write-only: actor -> supervisor status

	Store memsys.Store
}

// Actor is the capability set every concrete actor implements (spec.md
// §4.3): no base class, just the four lifecycle operations plus an
// optional Run override for actors that own their own event loop (GUIs).
type Actor interface {
	Setup() error
	RunStep() error
	Stop() error
}

// Runner is implemented by actors that take full control of the main
// loop instead of using the default driver (spec.md §4.3 "run()"). Such
// an actor is responsible for polling its own Signal link.
type Runner interface {
	Actor
	Run(ports Ports)
}
