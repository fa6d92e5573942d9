package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"ham/sequencer"
	"ham/timing"
)

// AudioConfig describes the host audio stream that clocks the engine.
type AudioConfig struct {
	SampleRate int `json:"sampleRate" yaml:"sampleRate"`
	BufferSize int `json:"bufferSize" yaml:"bufferSize"` // frames per callback
}

// TransportConfig holds the initial transport state.
type TransportConfig struct {
	Tempo       float64 `json:"tempo" yaml:"tempo"`
	BeatsPerBar int     `json:"beatsPerBar" yaml:"beatsPerBar"`
	Swing       float64 `json:"swing,omitempty" yaml:"swing,omitempty"`
}

// EngineConfig sizes the queues and voice pool.
type EngineConfig struct {
	InboxCapacity        int   `json:"inboxCapacity" yaml:"inboxCapacity"`
	OutboxCapacity       int   `json:"outboxCapacity" yaml:"outboxCapacity"`
	MaxMessagesPerBuffer int   `json:"maxMessagesPerBuffer" yaml:"maxMessagesPerBuffer"`
	MaxVoices            int   `json:"maxVoices" yaml:"maxVoices"`
	Seed                 int64 `json:"seed" yaml:"seed"`
	TelemetryEvery       int   `json:"telemetryEvery" yaml:"telemetryEvery"` // buffers
}

// FeelConfig is the gate floor and humanization.
type FeelConfig struct {
	MinGateMs        float64 `json:"minGateMs" yaml:"minGateMs"`
	HumanizeTiming   float64 `json:"humanizeTiming,omitempty" yaml:"humanizeTiming,omitempty"`
	HumanizeVelocity float64 `json:"humanizeVelocity,omitempty" yaml:"humanizeVelocity,omitempty"`
	MaxJitterMs      float64 `json:"maxJitterMs" yaml:"maxJitterMs"`
}

// OutputConfig picks the MIDI output port and startup pattern file.
type OutputConfig struct {
	PortName    string `json:"portName,omitempty" yaml:"portName,omitempty"`
	PatternFile string `json:"patternFile,omitempty" yaml:"patternFile,omitempty"`
	DebugLog    string `json:"debugLog,omitempty" yaml:"debugLog,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	Audio     AudioConfig     `json:"audio" yaml:"audio"`
	Transport TransportConfig `json:"transport" yaml:"transport"`
	Engine    EngineConfig    `json:"engine" yaml:"engine"`
	Feel      FeelConfig      `json:"feel" yaml:"feel"`
	Output    OutputConfig    `json:"output,omitempty" yaml:"output,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	opts := sequencer.DefaultOptions()
	return &Config{
		Audio: AudioConfig{
			SampleRate: opts.SampleRate,
			BufferSize: 512,
		},
		Transport: TransportConfig{
			Tempo:       opts.Tempo,
			BeatsPerBar: opts.BeatsPerBar,
		},
		Engine: EngineConfig{
			InboxCapacity:        opts.InboxCapacity,
			OutboxCapacity:       opts.OutboxCapacity,
			MaxMessagesPerBuffer: opts.MaxMessagesPerBuffer,
			MaxVoices:            opts.MaxVoices,
			Seed:                 opts.Seed,
			TelemetryEvery:       opts.TimingEvery,
		},
		Feel: FeelConfig{
			MinGateMs:   opts.MinGateMs,
			MaxJitterMs: opts.MaxJitterMs,
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ham"), nil
}

// ConfigPath returns the full path to config.yaml
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	cfg, err := LoadFile(path)
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	return cfg, err
}

// LoadFile reads a config file. Fields missing from the file keep their
// defaults. The format follows the extension: .json or .yaml/.yml.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if isJSON(path) {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Validate()
	return cfg, nil
}

// Save writes the config to ConfigPath.
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes the config to path in the format its extension names.
func (c *Config) SaveFile(path string) error {
	var (
		data []byte
		err  error
	)
	if isJSON(path) {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// Validate clamps every field into its legal range and returns the names of
// the fields it changed.
func (c *Config) Validate() []string {
	var changed []string
	clampInt := func(name string, v *int, lo, hi int) {
		if n := min(max(*v, lo), hi); n != *v {
			*v = n
			changed = append(changed, name)
		}
	}
	clampFloat := func(name string, v *float64, lo, hi float64) {
		n := *v
		if math.IsNaN(n) {
			n = lo
		}
		n = min(max(n, lo), hi)
		if n != *v {
			*v = n
			changed = append(changed, name)
		}
	}

	clampInt("audio.sampleRate", &c.Audio.SampleRate, 8000, 192000)
	clampInt("audio.bufferSize", &c.Audio.BufferSize, 16, 8192)
	clampFloat("transport.tempo", &c.Transport.Tempo, 1, timing.MaxTempo)
	clampInt("transport.beatsPerBar", &c.Transport.BeatsPerBar, 1, timing.MaxBeatsPerBar)
	clampFloat("transport.swing", &c.Transport.Swing, 0, 1)
	clampInt("engine.inboxCapacity", &c.Engine.InboxCapacity, 16, 1<<16)
	clampInt("engine.outboxCapacity", &c.Engine.OutboxCapacity, 64, 1<<16)
	clampInt("engine.maxMessagesPerBuffer", &c.Engine.MaxMessagesPerBuffer, 1, c.Engine.InboxCapacity)
	clampInt("engine.maxVoices", &c.Engine.MaxVoices, 1, timing.MaxVoices)
	clampInt("engine.telemetryEvery", &c.Engine.TelemetryEvery, 0, 1<<20)
	clampFloat("feel.minGateMs", &c.Feel.MinGateMs, 0, 1000)
	clampFloat("feel.humanizeTiming", &c.Feel.HumanizeTiming, 0, 1)
	clampFloat("feel.humanizeVelocity", &c.Feel.HumanizeVelocity, 0, 1)
	clampFloat("feel.maxJitterMs", &c.Feel.MaxJitterMs, 0, 100)
	return changed
}

// Options converts the config into engine options.
func (c *Config) Options() sequencer.Options {
	opts := sequencer.DefaultOptions()
	opts.SampleRate = c.Audio.SampleRate
	opts.MaxBufferSize = max(opts.MaxBufferSize, c.Audio.BufferSize)
	opts.Tempo = c.Transport.Tempo
	opts.BeatsPerBar = c.Transport.BeatsPerBar
	opts.Swing = c.Transport.Swing
	opts.InboxCapacity = c.Engine.InboxCapacity
	opts.OutboxCapacity = c.Engine.OutboxCapacity
	opts.MaxMessagesPerBuffer = c.Engine.MaxMessagesPerBuffer
	opts.MaxVoices = c.Engine.MaxVoices
	opts.Seed = c.Engine.Seed
	opts.TimingEvery = c.Engine.TelemetryEvery
	opts.MinGateMs = c.Feel.MinGateMs
	opts.HumanizeTiming = c.Feel.HumanizeTiming
	opts.HumanizeVelocity = c.Feel.HumanizeVelocity
	opts.MaxJitterMs = c.Feel.MaxJitterMs
	return opts
}
