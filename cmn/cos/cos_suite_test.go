// Package cos provides common low-level types and utilities shared by
// every package in this module.
/*
 * Copyright (c) 2018-2022, NVIDIA CORPORATION. All rights reserved.
 */
package cos_test

import (
	"testing"

	"github.com/nexusrt/nexus/cmn/cos"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestCos(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, t.Name())
}

var _ = Describe("handle tags", func() {
	BeforeEach(func() {
		cos.InitShortID(1)
	})

	It("mints alpha-nice, valid tags", func() {
		for range 100 {
			tag := cos.GenHandleTag()
			Expect(cos.IsValidHandleTag(tag)).To(BeTrue())
			Expect(cos.IsAlphaNice(tag)).To(BeTrue())
		}
	})

	It("mints distinct tags under tie-breaking", func() {
		seen := make(map[string]bool, 200)
		for range 200 {
			tag := cos.GenHandleTag()
			Expect(seen[tag]).To(BeFalse())
			seen[tag] = true
		}
	})
})
