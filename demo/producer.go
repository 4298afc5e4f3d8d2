// Package demo provides the minimal actors spec.md §8's example scenarios
// exercise: a counting Producer and a summing Consumer.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package demo

import (
	"context"
	"fmt"

	"github.com/nexusrt/nexus/actor"
	"github.com/nexusrt/nexus/cmn/nlog"
	"github.com/nexusrt/nexus/memsys"
)

// Producer puts Count handles, one per integer in [1, Count], onto q_out,
// one per run_step call, then goes idle until stopped (spec.md §8
// scenario 1: "Producer puts 100 items, integers 1..100, one per tick").
type Producer struct {
	ports actor.Ports
	count int
	next  int
}

func NewProducer(ports actor.Ports, options map[string]any) *Producer {
	count := 100
	if c, ok := options["count"].(int); ok && c > 0 {
		count = c
	}
	return &Producer{ports: ports, count: count}
}

func (p *Producer) Setup() error {
	p.next = 1
	return nil
}

func (p *Producer) RunStep() error {
	if p.next > p.count {
		return nil // idle: nothing left to emit this run
	}
	h, err := p.ports.Store.Put(memsys.Payload{
		Bytes: []byte(fmt.Sprintf("%d", p.next)),
		Name:  "int",
	})
	if err != nil {
		return err
	}
	if err := p.ports.QOut.Put(context.Background(), h); err != nil {
		return err
	}
	p.next++
	return nil
}

func (p *Producer) Stop() error {
	nlog.Infof("producer: stopped after emitting %d item(s)", p.next-1)
	return nil
}
