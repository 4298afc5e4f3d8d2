// Package memsys implements the pipeline's object store: a fast,
// handle-addressed payload exchange actors use to pass frame-sized data
// without copying it across link boundaries.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package memsys

import "github.com/nexusrt/nexus/cmn/cos"

// Handle is the opaque token minted by Put and dereferenced by Get. It is
// not forgeable by construction: the zero value is never returned by Put,
// and the tag is generated by the store, not supplied by the caller.
type Handle struct {
	tag  string
	name string // human-readable, for debugging only - not a lookup key
}

func (h Handle) String() string {
	if h.name == "" {
		return h.tag
	}
	return h.tag + "(" + h.name + ")"
}

func (h Handle) IsZero() bool { return h.tag == "" }

func (h Handle) Tag() string { return h.tag }

func (h Handle) Name() string { return h.name }

func mintHandle(name string) Handle {
	return Handle{tag: cos.GenHandleTag(), name: name}
}

// FromTag reconstructs a Handle from a tag minted by a remote store or
// received over a cross-process Link. It never mints a new tag, so it
// must only be called with a tag this process already knows is valid.
func FromTag(tag, name string) Handle {
	return Handle{tag: tag, name: name}
}
