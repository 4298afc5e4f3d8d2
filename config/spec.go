// Package config parses and validates the declarative pipeline spec
// (spec.md §6) into the typed PipelineSpec graph Nexus drives.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package config

// FsyncPolicy mirrors memsys.FsyncPolicy in string form as it appears in
// the YAML document; config does not import memsys to avoid a config ->
// memsys -> hk -> ... import cycle risk, so nexus/ converts at the seam.
type FsyncPolicy string

const (
	FsyncEveryWrite  FsyncPolicy = "every_write"
	FsyncEverySecond FsyncPolicy = "every_second"
	FsyncNoSchedule  FsyncPolicy = "no_schedule"
)

type StoreBackend string

const (
	BackendInproc   StoreBackend = "inproc"
	BackendExternal StoreBackend = "external"
)

// Settings is the pipeline spec's top-level `settings` mapping.
type Settings struct {
	StoreBackend StoreBackend `yaml:"store_backend"`
	StoreSize    int64        `yaml:"store_size"`
	ControlPort  int          `yaml:"control_port"`
	OutputPort   int          `yaml:"output_port"`
	MetricsPort  int          `yaml:"metrics_port"`
	UseWatcher   []string     `yaml:"use_watcher"`

	RedisSavingEnabled          bool        `yaml:"redis_saving_enabled"`
	RedisAofDirname             string      `yaml:"redis_aof_dirname"`
	GenerateEphemeralAofDirname bool        `yaml:"generate_ephemeral_aof_dirname"`
	RedisFsyncFrequency         FsyncPolicy `yaml:"redis_fsync_frequency"`
	RedisPort                   int         `yaml:"redis_port"`
}

// ActorSpec is a declarative `(name, classname, package, options)` record,
// spec.md §3. Nexus passes Options verbatim to the actor's constructor.
type ActorSpec struct {
	Name      string         `yaml:"-"` // set from the actors map key
	Package   string         `yaml:"package"`
	Classname string         `yaml:"classname"`
	Options   map[string]any `yaml:"options"`
}

// Method returns the options.method value recognized by Nexus itself,
// defaulting to "fork" per spec.md §3 (degraded to an advisory hint that
// only affects whether a re-exec'd child re-reads the full spec, per
// spec.md §9 DESIGN NOTES).
func (a ActorSpec) Method() string {
	if m, ok := a.Options["method"].(string); ok && m != "" {
		return m
	}
	return "fork"
}

func (a ActorSpec) Daemon() bool {
	d, _ := a.Options["daemon"].(bool)
	return d
}

// PipelineSpec is the document's root: settings, actors, connections, and
// an optional gui actor (spec.md §3, §6).
type PipelineSpec struct {
	Settings    Settings             `yaml:"settings"`
	Actors      map[string]ActorSpec `yaml:"actors"`
	Connections map[string][]string  `yaml:"connections"`
	GUI         *ActorSpec           `yaml:"gui"`
}

// Endpoint is an `actorName.portName` connection endpoint (spec.md §3);
// ports default to "q_out" outbound and "q_in" inbound.
type Endpoint struct {
	Actor string
	Port  string
}

const (
	DefaultOutPort = "q_out"
	DefaultInPort  = "q_in"

	// WatchoutPort names the extra outbound link a watched actor opens to
	// the watcher (spec.md §4.6: "Nexus creates an extra outbound link
	// <actor>.watchout and binds it to the watcher"). It is carried in the
	// WIRE line alongside q_out but fans into the supervisor's watcher hub
	// rather than another actor's q_in.
	WatchoutPort = "watchout"
)
