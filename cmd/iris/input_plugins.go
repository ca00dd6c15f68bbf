package main

import (
	"context"
	"fmt"
	"os"

	"github.com/tinytelemetry/iris/internal/logsource"
)

// NamedEntrySource aliases the shared source abstraction to keep app-layer APIs explicit.
type NamedEntrySource = logsource.EntrySource

// InputSourcePlugin is a small plugin primitive for wiring offline entry inputs.
type InputSourcePlugin interface {
	Name() string
	Enabled() bool
	Build(ctx context.Context) (NamedEntrySource, error)
}

// InputPluginConfig defines runtime input selection.
type InputPluginConfig struct {
	ReplayPath   string
	ReplayConfig logsource.ReplayConfig
	stdinIsPipe  func() bool
}

func buildInputPlugins(cfg InputPluginConfig) []InputSourcePlugin {
	isPipe := cfg.stdinIsPipe
	if isPipe == nil {
		isPipe = stdinIsPipe
	}
	plugins := make([]InputSourcePlugin, 0, 2)
	plugins = append(plugins, replayInputPlugin{
		path: cfg.ReplayPath,
		conf: cfg.ReplayConfig,
	})
	// An explicit "-" replay already owns stdin.
	plugins = append(plugins, stdinInputPlugin{
		enabled: cfg.ReplayPath != "-" && isPipe(),
		conf:    cfg.ReplayConfig,
	})
	return plugins
}

type replayInputPlugin struct {
	path string
	conf logsource.ReplayConfig
}

func (p replayInputPlugin) Name() string { return "replay" }

func (p replayInputPlugin) Enabled() bool { return p.path != "" }

func (p replayInputPlugin) Build(ctx context.Context) (NamedEntrySource, error) {
	src, err := logsource.Open(ctx, p.path, p.conf)
	if err != nil {
		return nil, fmt.Errorf("open replay: %w", err)
	}
	return src, nil
}

type stdinInputPlugin struct {
	enabled bool
	conf    logsource.ReplayConfig
}

func (p stdinInputPlugin) Name() string { return "stdin" }

func (p stdinInputPlugin) Enabled() bool { return p.enabled }

func (p stdinInputPlugin) Build(ctx context.Context) (NamedEntrySource, error) {
	return logsource.NewReplaySource(ctx, "stdin", os.Stdin, p.conf), nil
}

func stdinIsPipe() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}
