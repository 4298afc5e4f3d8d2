// Package memsys implements the pipeline's object store.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package memsys

import (
	"io"

	"github.com/tinylib/msgp/msgp"
)

// wire framing for the external store backend's request/reply protocol.
// Each request is an opcode byte followed by that opcode's msgp-encoded
// fields; each reply is an ok flag followed by either an error string or
// the tag, name, bytes and sub-reply array fields, whatever the opcode.
// Neither has an enclosing array header - hand-written rather than
// code-generated, since the schema is tiny and stable.

type opcode byte

const (
	opPut opcode = iota + 1
	opGet
	opGetList
	opExpire
)

type wireReq struct {
	op       opcode
	name     string   // opPut
	bytes    []byte   // opPut
	tag      string   // opGet, opExpire; also opPut when replayed from the AOF
	tags     []string // opGetList
	afterSec int64    // opExpire
}

type wireRep struct {
	ok      bool
	errMsg  string
	tag     string   // opPut
	bytes   []byte   // opGet
	name    string   // opGet
	payload []wireRep // opGetList
}

func writeReq(w *msgp.Writer, r wireReq) error {
	if err := w.WriteByte(byte(r.op)); err != nil {
		return err
	}
	switch r.op {
	case opPut:
		if err := w.WriteString(r.name); err != nil {
			return err
		}
		if err := w.WriteBytes(r.bytes); err != nil {
			return err
		}
		// tag is "" on a live client request (the server mints one) and
		// non-empty only when this record is being re-appended verbatim
		// to the AOF after a server-side Put - see ExternalServer.dispatch.
		if err := w.WriteString(r.tag); err != nil {
			return err
		}
	case opGet, opExpire:
		if err := w.WriteString(r.tag); err != nil {
			return err
		}
		if r.op == opExpire {
			if err := w.WriteInt64(r.afterSec); err != nil {
				return err
			}
		}
	case opGetList:
		if err := w.WriteArrayHeader(uint32(len(r.tags))); err != nil {
			return err
		}
		for _, t := range r.tags {
			if err := w.WriteString(t); err != nil {
				return err
			}
		}
	}
	return w.Flush()
}

func readReq(r *msgp.Reader) (wireReq, error) {
	b, err := r.ReadByte()
	if err != nil {
		return wireReq{}, err
	}
	req := wireReq{op: opcode(b)}
	switch req.op {
	case opPut:
		if req.name, err = r.ReadString(); err != nil {
			return req, err
		}
		if req.bytes, err = r.ReadBytes(nil); err != nil {
			return req, err
		}
		req.tag, err = r.ReadString()
	case opGet, opExpire:
		if req.tag, err = r.ReadString(); err != nil {
			return req, err
		}
		if req.op == opExpire {
			req.afterSec, err = r.ReadInt64()
		}
	case opGetList:
		var n uint32
		if n, err = r.ReadArrayHeader(); err != nil {
			return req, err
		}
		req.tags = make([]string, n)
		for i := range req.tags {
			if req.tags[i], err = r.ReadString(); err != nil {
				return req, err
			}
		}
	}
	return req, err
}

func writeRep(w *msgp.Writer, rep wireRep) error {
	if err := w.WriteBool(rep.ok); err != nil {
		return err
	}
	if !rep.ok {
		if err := w.WriteString(rep.errMsg); err != nil {
			return err
		}
		return w.Flush()
	}
	if err := w.WriteString(rep.tag); err != nil {
		return err
	}
	if err := w.WriteString(rep.name); err != nil {
		return err
	}
	if err := w.WriteBytes(rep.bytes); err != nil {
		return err
	}
	if err := w.WriteArrayHeader(uint32(len(rep.payload))); err != nil {
		return err
	}
	for _, sub := range rep.payload {
		if err := writeRep(w, sub); err != nil {
			return err
		}
	}
	return w.Flush()
}

func readRep(r *msgp.Reader) (wireRep, error) {
	var rep wireRep
	ok, err := r.ReadBool()
	if err != nil {
		return rep, err
	}
	rep.ok = ok
	if !ok {
		rep.errMsg, err = r.ReadString()
		return rep, err
	}
	if rep.tag, err = r.ReadString(); err != nil {
		return rep, err
	}
	if rep.name, err = r.ReadString(); err != nil {
		return rep, err
	}
	if rep.bytes, err = r.ReadBytes(nil); err != nil {
		return rep, err
	}
	n, err := r.ReadArrayHeader()
	if err != nil {
		return rep, err
	}
	rep.payload = make([]wireRep, n)
	for i := range rep.payload {
		if rep.payload[i], err = readRep(r); err != nil {
			return rep, err
		}
	}
	return rep, nil
}

func isEOF(err error) bool { return err == io.EOF }
