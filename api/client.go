// Package api is the control-socket client library both `nexus ctl` and
// any external scripting tool use to drive a running Nexus (spec.md §6).
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package api

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// Client is a thin wrapper over one pipeline run's control and output
// sockets - fasthttp on the control side (matching the supervisor's own
// transport), a plain net.Conn subscriber on the output side.
type Client struct {
	ctlAddr string
	http    *fasthttp.Client
}

func NewClient(ctlAddr string) *Client {
	return &Client{ctlAddr: ctlAddr, http: &fasthttp.Client{}}
}

// Command posts cmd to the control socket and returns its reply: the
// literal string "Awaiting input:" for every command except `ready`,
// which replies with the actor state snapshot (spec.md §6) - callers
// that need to know whether a non-ready cmd succeeded must watch the
// output socket instead.
func (c *Client) Command(cmd string) (string, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI("http://" + c.ctlAddr + "/")
	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetBodyString(cmd)

	if err := c.http.DoTimeout(req, resp, 5*time.Second); err != nil {
		return "", fmt.Errorf("control command %q: %w", cmd, err)
	}
	return string(resp.Body()), nil
}

func (c *Client) Setup() (string, error)            { return c.Command("setup") }
func (c *Client) Run() (string, error)              { return c.Command("run") }
func (c *Client) Stop() (string, error)             { return c.Command("stop") }
func (c *Client) Revive() (string, error)           { return c.Command("revive") }
func (c *Client) Quit() (string, error)             { return c.Command("quit") }
func (c *Client) Kill(actor string) (string, error) { return c.Command("kill " + actor) }
func (c *Client) Load(path string) (string, error)  { return c.Command("load " + path) }

// Ready returns the reply to the `ready` command: one name=state(...) entry
// per tracked actor, the same body nexus.RuntimeSnapshot.String() produces.
func (c *Client) Ready() (string, error) { return c.Command("ready") }
func (c *Client) Pause() (string, error) { return c.Command("pause") }

// StreamOutput connects to outputAddr and invokes fn once per published
// line until the connection closes or fn returns false.
func StreamOutput(outputAddr string, fn func(line string) bool) error {
	conn, err := net.Dial("tcp", outputAddr)
	if err != nil {
		return err
	}
	defer conn.Close()

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		if !fn(strings.TrimRight(sc.Text(), "\r\n")) {
			return nil
		}
	}
	return sc.Err()
}
