// Package hk provides a mechanism for registering cleanup and periodic
// functions invoked at specified intervals.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package hk_test

import (
	"testing"
	"time"

	"github.com/nexusrt/nexus/hk"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestHousekeeper(t *testing.T) {
	hk.TestInit()
	go hk.DefaultHK.Run()
	hk.WaitStarted()
	RegisterFailHandler(Fail)
	RunSpecs(t, t.Name())
}

var _ = Describe("housekeeper", func() {
	It("fires a one-shot OnceAt job", func() {
		done := make(chan struct{})
		hk.OnceAt("t1", time.Now(), func() { close(done) })
		Eventually(done, "1s").Should(BeClosed())
	})

	It("re-fires a periodic job at its own cadence", func() {
		hits := make(chan struct{}, 8)
		hk.Reg("t2", func() time.Duration {
			hits <- struct{}{}
			return 10 * time.Millisecond
		}, 10*time.Millisecond)
		Eventually(func() int { return len(hits) }, "1s").Should(BeNumerically(">=", 2))
		hk.Unreg("t2")
	})
})
