// Package demo provides the minimal actors spec.md §8's example scenarios
// exercise: a counting Producer and a summing Consumer.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package demo

import "github.com/nexusrt/nexus/actor"

// Constructor builds a concrete Actor from its wired Ports and the
// options map the pipeline spec declared for it.
type Constructor func(ports actor.Ports, options map[string]any) actor.Actor

// Registry is the classname -> Constructor table cmd/actorhost consults
// to instantiate the actor named in a spawned process's -actor flag. A
// real deployment would look this up across every actor package linked
// into the actorhost binary; this module ships only the demo package.
var Registry = map[string]Constructor{
	"Producer": func(p actor.Ports, o map[string]any) actor.Actor { return NewProducer(p, o) },
	"Consumer": func(p actor.Ports, o map[string]any) actor.Actor { return NewConsumer(p, o) },
}
