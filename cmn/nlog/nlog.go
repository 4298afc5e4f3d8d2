// Package nlog is the buffered, severity-leveled, file-rotating logger
// used by every package in this module.
/*
 * Copyright (c) 2023, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

var sevText = [...]string{"I", "W", "E"}

type nlog struct {
	mw      sync.Mutex
	file    *os.File
	w       *bufio.Writer
	sev     severity
	written int64
	last    atomic.Int64
	erred   atomic.Bool
}

var (
	nlogs        [3]*nlog
	toStderr     bool
	alsoToStderr bool
	logDir       string
	aisrole      string
	title        string
	host, _      = os.Hostname()
	pid          = os.Getpid()

	onceInitFiles sync.Once
)

// main function
func log(sev severity, depth int, format string, args ...any) {
	onceInitFiles.Do(initFiles)

	line := render(sev, depth+1, format, args)

	switch {
	case toStderr:
		os.Stderr.WriteString(line)
		return
	case alsoToStderr || sev >= sevWarn:
		os.Stderr.WriteString(line)
	}

	if sev >= sevWarn {
		nlogs[sevErr].write(line)
	}
	nlogs[sevInfo].write(line)
}

func initFiles() {
	for _, sev := range []severity{sevInfo, sevErr} {
		nl := &nlog{sev: sev}
		if logDir != "" {
			if f, _, err := fcreate(sevText[sev], time.Now()); err == nil {
				nl.file = f
				nl.w = bufio.NewWriterSize(f, 32*1024)
				if title != "" {
					nl.w.WriteString(title + "\n")
				}
			} else {
				nl.erred.Store(true)
			}
		}
		nlogs[sev] = nl
	}
}

func (nl *nlog) write(line string) {
	nl.mw.Lock()
	defer nl.mw.Unlock()

	nl.last.Store(time.Now().UnixNano())
	if nl.w == nil || nl.erred.Load() {
		return
	}
	n, err := nl.w.WriteString(line)
	nl.written += int64(n)
	if err != nil {
		nl.erred.Store(true)
		return
	}
	if nl.written >= MaxSize {
		nl.rotateLocked()
	}
}

func (nl *nlog) flushLocked() {
	if nl.w != nil {
		nl.w.Flush()
	}
}

func (nl *nlog) rotateLocked() {
	nl.flushLocked()
	if nl.file != nil {
		nl.file.Close()
	}
	f, _, err := fcreate(sevText[nl.sev], time.Now())
	if err != nil {
		nl.erred.Store(true)
		return
	}
	nl.file = f
	nl.w = bufio.NewWriterSize(f, 32*1024)
	nl.written = 0
	nl.erred.Store(false)
}

func (nl *nlog) since(now int64) time.Duration { return time.Duration(now - nl.last.Load()) }

//
// formatting
//

func render(sev severity, depth int, format string, args []any) string {
	var b strings.Builder
	b.WriteString(sevText[sev])
	b.WriteByte(' ')
	b.WriteString(time.Now().Format("15:04:05.000000"))
	b.WriteByte(' ')
	if _, fn, ln, ok := runtime.Caller(depth + 2); ok {
		if idx := strings.LastIndexByte(fn, filepath.Separator); idx > 0 {
			fn = fn[idx+1:]
		}
		b.WriteString(fn)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(ln))
		b.WriteByte(' ')
	}
	if format == "" {
		fmt.Fprintln(&b, args...)
	} else {
		fmt.Fprintf(&b, format, args...)
		if !strings.HasSuffix(b.String(), "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func sname() string {
	if aisrole == "" {
		return "nexus"
	}
	return "nexus." + aisrole
}

func fcreate(tag string, t time.Time) (*os.File, string, error) {
	name := fmt.Sprintf("%s.%s.%s.%02d%02d-%02d%02d%02d.%d.log",
		sname(), host, tag, t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), pid)
	path := filepath.Join(logDir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	return f, path, err
}
