// Package cos provides common low-level types and utilities shared by
// every package in this module.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"errors"
	"fmt"

	"github.com/nexusrt/nexus/cmn/atomic"
	"github.com/teris-io/shortid"
)

const (
	// alphabet for generating handle tags, akin to shortid.DEFAULT_ABC
	// NOTE: len(handleABC) > 0x3f - see GenTie()
	handleABC = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"
)

const (
	LenShortID = 9  // handle tag length, as per https://github.com/teris-io/shortid#id-length
	tooLongID  = 32 // NOTE: cannot be smaller than any of the valid max lengths above

	tooLongName = 64
)

const (
	mayOnlyContain = "may only contain letters, numbers, dashes (-), underscores (_)"
	OnlyNice       = "must be less than 32 characters and " + mayOnlyContain
	OnlyPlus       = mayOnlyContain + ", and dots (.)"
)

var (
	sid  *shortid.Shortid
	rtie atomic.Uint32
)

func InitShortID(seed uint64) {
	sid = shortid.MustNew(4 /*worker*/, handleABC, seed)
}

//
// handle tags - minted by the object store on every put(), never forged
// by a caller (see store.Handle)
//

func GenHandleTag() (tag string) {
	var h, t string
	tag = sid.MustGenerate()
	if !isAlpha(tag[0]) {
		tie := int(rtie.Add(1))
		h = string(rune('A' + tie%26))
	}
	c := tag[len(tag)-1]
	if c == '-' || c == '_' {
		tie := int(rtie.Add(1))
		t = string(rune('a' + tie%26))
	}
	return h + tag + t
}

func IsValidHandleTag(tag string) bool {
	return len(tag) >= LenShortID && IsAlphaNice(tag)
}

//
// utility functions
//

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// letters and numbers w/ '-' and '_' permitted with limitations (see OnlyNice const)
func IsAlphaNice(s string) bool {
	l := len(s)
	if l > tooLongID {
		return false
	}
	for i := range l {
		c := s[i]
		if isAlpha(c) || (c >= '0' && c <= '9') {
			continue
		}
		if c != '-' && c != '_' {
			return false
		}
		if i == 0 || i == l-1 {
			return false
		}
	}
	return true
}

// alpha-numeric++ including letters, numbers, dashes (-), and underscores (_)
// period (.) is allowed except for '..' (OnlyPlus const) - used to validate
// actor names and link/port names parsed out of the pipeline spec
func CheckAlphaPlus(s, tag string) error {
	l := len(s)
	if l > tooLongName {
		return fmt.Errorf("%s is too long: %d > %d(max length)", tag, l, tooLongName)
	}
	for i := range l {
		c := s[i]
		if isAlpha(c) || (c >= '0' && c <= '9') || c == '-' || c == '_' {
			continue
		}
		if c != '.' {
			return errors.New(tag + " is invalid: " + OnlyPlus)
		}
		if i < l-1 && s[i+1] == '.' {
			return errors.New(tag + " is invalid: " + OnlyPlus)
		}
	}
	return nil
}

// 3-letter tie breaker (fast), used when two handles mint in the same tick
func GenTie() string {
	tie := rtie.Add(1)
	b0 := handleABC[tie&0x3f]
	b1 := handleABC[-tie&0x3f]
	b2 := handleABC[(tie>>2)&0x3f]
	return string([]byte{b0, b1, b2})
}
