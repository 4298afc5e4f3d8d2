// Package sys provides methods to read system and per-process resource
// information, used by Nexus at startup (GOMAXPROCS tuning) and by the
// watcher actor (per-actor CPU/RSS snapshots).
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package sys

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// LoadAverage returns the host's 1/5/15-minute load average.
func LoadAverage() (avg LoadAvg, err error) {
	line, err := readOneLine("/proc/loadavg")
	if err != nil {
		return avg, err
	}
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return avg, fmt.Errorf("unexpected /proc/loadavg format: %q", line)
	}
	if avg.One, err = strconv.ParseFloat(fields[0], 64); err != nil {
		return avg, err
	}
	if avg.Five, err = strconv.ParseFloat(fields[1], 64); err != nil {
		return avg, err
	}
	avg.Fifteen, err = strconv.ParseFloat(fields[2], 64)
	return avg, err
}

// ProcStat is a per-process resource snapshot, read from /proc/<pid>,
// sampled by each watched actor's own actorhost process for itself.
type ProcStat struct {
	Pid       int
	UtimeTick uint64 // user-mode CPU ticks, cumulative
	StimeTick uint64 // kernel-mode CPU ticks, cumulative
	RSSBytes  uint64
}

func ReadProcStat(pid int) (ProcStat, error) {
	ps := ProcStat{Pid: pid}

	stat, err := readOneLine(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return ps, err
	}
	// fields after the last ')' are space-separated; utime/stime are 14th/15th overall
	idx := strings.LastIndexByte(stat, ')')
	if idx < 0 || idx+2 >= len(stat) {
		return ps, fmt.Errorf("unexpected /proc/%d/stat format", pid)
	}
	fields := strings.Fields(stat[idx+2:])
	const (
		utimeIdx = 11 // 0-based, relative to the field after state
		stimeIdx = 12
	)
	if len(fields) <= stimeIdx {
		return ps, fmt.Errorf("short /proc/%d/stat", pid)
	}
	ps.UtimeTick, _ = strconv.ParseUint(fields[utimeIdx], 10, 64)
	ps.StimeTick, _ = strconv.ParseUint(fields[stimeIdx], 10, 64)

	f, err := os.Open(fmt.Sprintf("/proc/%d/status", pid))
	if err != nil {
		return ps, err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "VmRSS:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			if kb, err := strconv.ParseUint(fields[1], 10, 64); err == nil {
				ps.RSSBytes = kb * 1024
			}
		}
		break
	}
	return ps, nil
}

// HostMemory is the host's total/free RAM, sampled once at startup to size
// the in-process object store's default budget when settings.store_size
// is left at its zero value (spec.md §4.2).
type HostMemory struct {
	TotalBytes uint64
	FreeBytes  uint64
}

func ReadHostMemory() (HostMemory, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return HostMemory{}, fmt.Errorf("sysinfo: %w", err)
	}
	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}
	return HostMemory{
		TotalBytes: uint64(info.Totalram) * unit,
		FreeBytes:  uint64(info.Freeram) * unit,
	}, nil
}

func readOneLine(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	if sc.Scan() {
		return sc.Text(), nil
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("empty file: %s", path)
}
