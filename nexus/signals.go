// Package nexus implements the supervisor.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package nexus

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/nexusrt/nexus/cmn/nlog"
)

// installSignalHandler makes SIGINT/SIGTERM trigger the same graceful
// shutdown as the `quit` control command, and SIGHUP a best-effort
// revive pass (spec.md §5: the supervisor is the only process a human
// operator signals directly; actors only ever receive signals routed
// through the signal link).
func installSignalHandler(n *Nexus) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		for sig := range ch {
			switch sig {
			case syscall.SIGHUP:
				nlog.Infof("nexus: SIGHUP, reviving dead actors")
				if err := n.Revive(); err != nil {
					nlog.Warningf("nexus: revive: %v", err)
				}
			default:
				nlog.Infof("nexus: %s, shutting down", sig)
				n.Shutdown()
				return
			}
		}
	}()
}
