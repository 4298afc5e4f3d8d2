// Package config parses and validates the declarative pipeline spec.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/nexusrt/nexus/cmn/cos"
	"gopkg.in/yaml.v2"
)

// Load reads and validates a pipeline spec document. Every failure here
// is a cos.ErrConfig and fatal before any actor spawns (spec.md §4.4).
func Load(path string) (*PipelineSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", cos.ErrConfig, path, err)
	}
	spec, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	return spec, nil
}

func Parse(raw []byte) (*PipelineSpec, error) {
	var spec PipelineSpec
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return nil, fmt.Errorf("%w: %v", cos.ErrConfig, err)
	}
	for name, a := range spec.Actors {
		a.Name = name
		spec.Actors[name] = a
	}
	if spec.GUI != nil && spec.GUI.Name == "" {
		spec.GUI.Name = "gui"
	}
	if err := validate(&spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

// ParseEndpoint splits "actor.port" into its Endpoint, applying the
// direction-appropriate default port name when none is given.
func ParseEndpoint(s, defaultPort string) (Endpoint, error) {
	parts := strings.SplitN(s, ".", 2)
	if parts[0] == "" {
		return Endpoint{}, fmt.Errorf("%w: empty endpoint", cos.ErrConfig)
	}
	if len(parts) == 1 {
		return Endpoint{Actor: parts[0], Port: defaultPort}, nil
	}
	return Endpoint{Actor: parts[0], Port: parts[1]}, nil
}

func validate(spec *PipelineSpec) error {
	var errs cos.Errs

	allActors := make(map[string]bool, len(spec.Actors)+1)
	for name := range spec.Actors {
		allActors[name] = true
	}
	if spec.GUI != nil {
		allActors[spec.GUI.Name] = true
	}

	for srcStr, sinkStrs := range spec.Connections {
		src, err := ParseEndpoint(srcStr, DefaultOutPort)
		if err != nil {
			errs.Add(err)
			continue
		}
		if !allActors[src.Actor] {
			errs.Add(fmt.Errorf("%w: connection source %q references unknown actor", cos.ErrConfig, srcStr))
			continue
		}
		for _, sinkStr := range sinkStrs {
			sink, err := ParseEndpoint(sinkStr, DefaultInPort)
			if err != nil {
				errs.Add(err)
				continue
			}
			if !allActors[sink.Actor] {
				errs.Add(fmt.Errorf("%w: connection sink %q references unknown actor", cos.ErrConfig, sinkStr))
				continue
			}
		}
	}
	// Dangling sinks (a sink no source targets) are allowed; a source with
	// no sink is only a warning (spec.md §4.4), logged by the caller from
	// UnconsumedSources below, not treated as a config error here.

	validateFsync(spec, &errs)
	validatePersistence(spec, &errs)
	validatePorts(spec, &errs)

	if _, err := errs.JoinErr(); err != nil {
		return err
	}
	return nil
}

func validateFsync(spec *PipelineSpec, errs *cos.Errs) {
	switch spec.Settings.RedisFsyncFrequency {
	case "", FsyncEveryWrite, FsyncEverySecond, FsyncNoSchedule:
	default:
		errs.Add(fmt.Errorf("%w: invalid redis_fsync_frequency %q", cos.ErrConfig, spec.Settings.RedisFsyncFrequency))
	}
}

func validatePersistence(spec *PipelineSpec, errs *cos.Errs) {
	s := &spec.Settings
	n := 0
	if s.RedisAofDirname != "" {
		n++
	}
	if s.GenerateEphemeralAofDirname {
		n++
	}
	if !s.RedisSavingEnabled {
		n++
	}
	if n > 1 {
		errs.Add(fmt.Errorf(
			"%w: redis_aof_dirname, generate_ephemeral_aof_dirname, and redis_saving_enabled=false are mutually exclusive",
			cos.ErrConfig))
	}
}

// validatePorts checks only that the file-declared ports are >= 0; the
// CLI-override-over-file precedence (spec.md §4.4) is applied separately
// by ApplyPortOverrides once the CLI flags are known.
func validatePorts(spec *PipelineSpec, errs *cos.Errs) {
	s := &spec.Settings
	if s.ControlPort < 0 || s.OutputPort < 0 || s.RedisPort < 0 || s.MetricsPort < 0 {
		errs.Add(fmt.Errorf("%w: ports must be >= 0", cos.ErrConfig))
	}
}

// ApplyPortOverrides implements "CLI-supplied ports override file-supplied
// ports; a file setting overrides a CLI default of zero" (spec.md §4.4).
func ApplyPortOverrides(spec *PipelineSpec, cliControlPort, cliOutputPort int) {
	if cliControlPort != 0 {
		spec.Settings.ControlPort = cliControlPort
	}
	if cliOutputPort != 0 {
		spec.Settings.OutputPort = cliOutputPort
	}
}

// SinkEndpoints parses every declared connection into (source, sink)
// Endpoint pairs, for the caller (nexus, during link construction) to
// group by source and by sink when building Links and multi-links.
func (spec *PipelineSpec) SinkEndpoints() (map[Endpoint][]Endpoint, error) {
	out := make(map[Endpoint][]Endpoint, len(spec.Connections))
	for srcStr, sinkStrs := range spec.Connections {
		src, err := ParseEndpoint(srcStr, DefaultOutPort)
		if err != nil {
			return nil, err
		}
		sinks := make([]Endpoint, 0, len(sinkStrs))
		for _, sinkStr := range sinkStrs {
			sink, err := ParseEndpoint(sinkStr, DefaultInPort)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, sink)
		}
		out[src] = sinks
	}
	return out, nil
}

// UnconsumedSources returns every declared connection source whose sink
// list is empty - "a source that no sink consumes" (spec.md §4.4) - as
// "actor.port" strings, for the caller to log a warning for once loaded.
func (spec *PipelineSpec) UnconsumedSources() ([]string, error) {
	sinks, err := spec.SinkEndpoints()
	if err != nil {
		return nil, err
	}
	var out []string
	for src, dsts := range sinks {
		if len(dsts) == 0 {
			out = append(out, src.Actor+"."+src.Port)
		}
	}
	return out, nil
}

// InboundActors returns the set of actors that are the sink of at least
// one connection on their q_in port - the set the "no unwired actor"
// check (spec.md §8) compares each instantiated actor's Ports.QIn != nil
// against.
func (spec *PipelineSpec) InboundActors() (map[string]bool, error) {
	sinks, err := spec.SinkEndpoints()
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(spec.Actors))
	for _, dsts := range sinks {
		for _, d := range dsts {
			if d.Port == DefaultInPort {
				out[d.Actor] = true
			}
		}
	}
	return out, nil
}
