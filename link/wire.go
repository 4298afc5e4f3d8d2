// Package link implements Nexus Links.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package link

import (
	"io"

	"github.com/tinylib/msgp/msgp"
)

// Cross-process Links frame each forwarded handle as three consecutive
// msgp strings, with no enclosing array header: linkName, handleTag,
// handleDisplayName. The teacher's object-stream
// transport frames a PDU header ahead of payload bytes (transport/pdu.go);
// a Link forwards no payload at all, only a handle, so one fixed-arity
// frame replaces header+body entirely.
type frame struct {
	link string
	tag  string
	name string
}

func writeFrame(w *msgp.Writer, f frame) error {
	if err := w.WriteString(f.link); err != nil {
		return err
	}
	if err := w.WriteString(f.tag); err != nil {
		return err
	}
	if err := w.WriteString(f.name); err != nil {
		return err
	}
	return w.Flush()
}

func readFrame(r *msgp.Reader) (frame, error) {
	var f frame
	var err error
	if f.link, err = r.ReadString(); err != nil {
		return f, err
	}
	if f.tag, err = r.ReadString(); err != nil {
		return f, err
	}
	if f.name, err = r.ReadString(); err != nil {
		return f, err
	}
	return f, nil
}

func isEOF(err error) bool { return err == io.EOF }
