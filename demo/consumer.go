// Package demo provides the minimal actors spec.md §8's example scenarios
// exercise: a counting Producer and a summing Consumer.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package demo

import (
	"context"
	"strconv"

	"github.com/nexusrt/nexus/actor"
	"github.com/nexusrt/nexus/cmn/cos"
	"github.com/nexusrt/nexus/cmn/nlog"
)

// Consumer dereferences every handle it reads off q_in, parses it back to
// an int, and accumulates a running sum - reported over the comm link on
// stop so an end-to-end test can assert on it without a side channel
// (spec.md §8 scenario 1: "sum reported via comm link equals 5050").
type Consumer struct {
	ports actor.Ports
	sum   int
	n     int
}

func NewConsumer(ports actor.Ports, _ map[string]any) *Consumer {
	return &Consumer{ports: ports}
}

func (c *Consumer) Setup() error { return nil }

func (c *Consumer) RunStep() error {
	h, err := c.ports.QIn.TryGet()
	if err != nil {
		if err == cos.ErrEmpty {
			return nil
		}
		return err
	}
	p, err := c.ports.Store.Get(h)
	if err != nil {
		return err
	}
	v, err := strconv.Atoi(string(p.Bytes))
	if err != nil {
		return err
	}
	c.sum += v
	c.n++
	return nil
}

func (c *Consumer) Stop() error {
	nlog.Infof("consumer: received %d item(s), sum=%d", c.n, c.sum)
	_ = c.ports.Comm.Put(context.Background(), "sum:"+strconv.Itoa(c.sum))
	return nil
}

func (c *Consumer) Sum() int { return c.sum }
