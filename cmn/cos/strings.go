// Package cos provides common low-level types and utilities shared by
// every package in this module.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"crypto/rand"
	"errors"
	"io"
	"math/big"
	"unsafe"
)

// byte-size units, used throughout settings parsing (store_size, etc.)
const (
	KiB = 1024
	MiB = 1024 * KiB
	GiB = 1024 * MiB
)

func Plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func IsEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// UnsafeS/UnsafeB avoid an allocation when converting between []byte and
// string for data that is not mutated afterwards (handle tags, wire frames).
func UnsafeS(b []byte) string { return *(*string)(unsafe.Pointer(&b)) }
func UnsafeB(s string) []byte {
	const maxLen = 1 << 30
	return unsafe.Slice(unsafe.StringData(s), maxLen)[:len(s):len(s)]
}

const randABC = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// CryptoRandS returns a cryptographically random alphanumeric string of
// length l - used to mint daemon/process identifiers.
func CryptoRandS(l int) string {
	b := make([]byte, l)
	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(randABC))))
		if err != nil {
			Exitf("crypto/rand: %v", err)
		}
		b[i] = randABC[n.Int64()]
	}
	return string(b)
}
