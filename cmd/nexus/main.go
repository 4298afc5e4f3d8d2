// Command nexus is the operator-facing entry point: `nexus run
// <spec.yaml>` starts a pipeline in this process, `nexus ctl
// <control-addr> <command>`
// drives an already-running one over its control socket (spec.md §4.8,
// restoring the Cmd-style shell original_source/improv/nexus.py exposed).
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/nexusrt/nexus/api"
	"github.com/nexusrt/nexus/cmn/nlog"
	"github.com/nexusrt/nexus/nexus"
	"github.com/urfave/cli"
	"github.com/vbauerster/mpb/v4"
	"github.com/vbauerster/mpb/v4/decor"
	"golang.org/x/term"
)

// barWidth picks the startup progress bar's width from the controlling
// terminal, falling back to 40 columns when stdout isn't one (piped
// output, CI logs).
func barWidth() int {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return 40
	}
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 40
	}
	if w > 80 {
		w = 80
	}
	return w
}

func main() {
	app := cli.NewApp()
	app.Name = "nexus"
	app.Usage = "run and control Nexus streaming dataflow pipelines"
	app.Commands = []cli.Command{
		runCommand,
		ctlCommand,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(1)
	}
}

var runCommand = cli.Command{
	Name:      "run",
	Usage:     "load a pipeline spec and run it until terminated",
	ArgsUsage: "<spec.yaml>",
	Flags: []cli.Flag{
		cli.IntFlag{Name: "control-port", Usage: "override settings.control_port"},
		cli.IntFlag{Name: "output-port", Usage: "override settings.output_port"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.NewExitError("expected exactly one argument: <spec.yaml>", 1)
		}
		return runPipeline(c.Args().Get(0), c.Int("control-port"), c.Int("output-port"))
	},
}

var ctlCommand = cli.Command{
	Name:      "ctl",
	Usage:     "send a single control command to a running Nexus",
	ArgsUsage: "<control-addr> <command> [args...]",
	Action: func(c *cli.Context) error {
		if c.NArg() < 2 {
			return cli.NewExitError("expected: <control-addr> <command> [args...]", 1)
		}
		client := api.NewClient(c.Args().Get(0))
		cmd := c.Args().Get(1)
		rest := ""
		for _, a := range c.Args()[2:] {
			rest += " " + a
		}
		reply, err := client.Command(cmd + rest)
		if err != nil {
			return err
		}
		fmt.Println(color.GreenString(reply))
		return nil
	},
}

func runPipeline(specPath string, controlPort, outputPort int) error {
	p := mpb.New(mpb.WithWidth(barWidth()))
	bar := p.AddBar(int64(100),
		mpb.PrependDecorators(decor.Name("starting pipeline ")),
		mpb.AppendDecorators(decor.Percentage()),
	)

	n, err := nexus.New(specPath, controlPort, outputPort)
	if err != nil {
		bar.Abort(false)
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan error, 1)
	go func() { started <- n.Start(ctx) }()

	for i := 0; i < 100; i++ {
		select {
		case err := <-started:
			bar.Abort(false)
			return err
		default:
		}
		bar.IncrBy(1)
		time.Sleep(5 * time.Millisecond)
	}
	p.Wait()

	if addr := n.OutputAddr(); addr != "" {
		go streamColorized(addr)
	}
	nlog.Infof("nexus: %s running, control=%s output=%s", specPath, n.ControlAddr(), n.OutputAddr())
	return <-started
}

// streamColorized prints every output-socket line to stdout, colorized
// when stdout is a TTY (fatih/color no-ops the color codes otherwise).
func streamColorized(outputAddr string) {
	err := api.StreamOutput(outputAddr, func(line string) bool {
		fmt.Println(color.CyanString(line))
		return true
	})
	if err != nil {
		nlog.Warningf("nexus: output stream: %v", err)
	}
}
