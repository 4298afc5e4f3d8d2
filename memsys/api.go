// Package memsys implements the pipeline's object store.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package memsys

import (
	"time"

	"github.com/nexusrt/nexus/cmn/cos"
)

// Payload is the serialized representation the store records: the store
// never interprets these bytes (spec.md §4.1) - it is metadata plus blob.
type Payload struct {
	Bytes []byte
	Name  string
}

// Store is the backend-agnostic object-store client surface every actor
// dereferences handles through. Implementations are MMSA (the in-process
// arena) and ExternalClient (a client of ExternalServer); Nexus always runs
// an ExternalServer and every actor process uses an ExternalClient,
// whatever settings.store_backend declares.
type Store interface {
	Put(p Payload) (Handle, error)
	Get(h Handle) (Payload, error)
	GetList(hs []Handle) ([]Payload, error)
	Expire(h Handle, after time.Duration)
	Subscribe() (events <-chan StoreEvent, cancel func())
	Close() error
}

var ErrStoreFull = cos.ErrStoreFull
