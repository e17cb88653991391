//go:build !tinygo

// Package config loads the host daemon's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	proto "github.com/ystepanoff/ppmlink/protocol"
	"github.com/ystepanoff/ppmlink/transport"
)

// Limits on timing fields. At the largest resolution a full frame still
// fits a uint32 tick count with room to spare.
const (
	MaxTicksPerUS   = 16
	MaxFrameLenUS   = 100000
	MaxStaleAfterMS = 60000
)

var (
	ErrInterval           = errors.New("interval must be positive")
	ErrBridgeWithoutInput = errors.New("bridge.enabled requires input.enabled")
)

// Config is the top-level configuration for cmd/ppmd.
type Config struct {
	PPM     PPMConfig     `yaml:"ppm"`
	Output  LineConfig    `yaml:"output"`
	Input   LineConfig    `yaml:"input"`
	Bridge  BridgeConfig  `yaml:"bridge"`
	Command CommandConfig `yaml:"command"`
	Status  StatusConfig  `yaml:"status"`
	Metrics MetricsConfig `yaml:"metrics"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
}

// PPMConfig holds frame timing
type PPMConfig struct {
	Channels     int    `yaml:"channels"`       // 1..16
	FrameLenUS   uint32 `yaml:"frame_len_us"`   // nominal frame period
	PulseLenUS   uint32 `yaml:"pulse_len_us"`   // separator pulse width
	TicksPerUS   uint32 `yaml:"ticks_per_us"`   // timer resolution
	StaleAfterMS int    `yaml:"stale_after_ms"` // decoded input considered lost after this
}

// LineConfig names a GPIO line on a character device.
type LineConfig struct {
	Enabled bool   `yaml:"enabled"`
	Chip    string `yaml:"chip"`   // e.g. gpiochip0
	Offset  int    `yaml:"offset"` // line offset on the chip
	Edge    string `yaml:"edge"`   // input only: rising or falling
}

// RouteConfig maps a decoded channel onto a store channel (0-based).
type RouteConfig struct {
	Channel int `yaml:"channel"`
	Source  int `yaml:"source"`
}

// BridgeConfig controls the decoder-to-store conditioner.
type BridgeConfig struct {
	Enabled        bool          `yaml:"enabled"`
	DirectChannels int           `yaml:"direct_channels"` // channels [0, n) belong to the command port
	Routes         []RouteConfig `yaml:"routes"`
	Shift          uint8         `yaml:"shift"`
}

// CommandConfig selects the command channel. An empty Port reads stdin.
type CommandConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

type StatusConfig struct {
	IntervalMS int `yaml:"interval_ms"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// MQTTConfig contains MQTT broker settings
type MQTTConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Broker     string `yaml:"broker"` // e.g. tcp://localhost:1883
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	Topic      string `yaml:"topic"`
	QoS        byte   `yaml:"qos"`
	Retain     bool   `yaml:"retain"`
	IntervalMS int    `yaml:"interval_ms"`
}

// Default returns the reference configuration: 8 channels at 22.5 ms, six
// command channels and decoded channels 7 and 8 smoothed onto themselves.
func Default() *Config {
	return &Config{
		PPM: PPMConfig{
			Channels:     proto.DefaultChannels,
			FrameLenUS:   proto.FrameLenUS,
			PulseLenUS:   proto.PulseLenUS,
			TicksPerUS:   proto.TicksPerMicrosecond,
			StaleAfterMS: 500,
		},
		Output: LineConfig{Enabled: true, Chip: "gpiochip0", Offset: 18},
		Input:  LineConfig{Chip: "gpiochip0", Offset: 17, Edge: "falling"},
		Bridge: BridgeConfig{
			DirectChannels: proto.DefaultDirectChannels,
			Routes:         []RouteConfig{{Channel: 6, Source: 6}, {Channel: 7, Source: 7}},
			Shift:          proto.DefaultSmoothingShift,
		},
		Command: CommandConfig{Baud: 115200},
		Status:  StatusConfig{IntervalMS: proto.StatusInterval},
		Metrics: MetricsConfig{Listen: ":9110"},
		MQTT: MQTTConfig{
			Broker:     "tcp://localhost:1883",
			Topic:      "ppmlink/status",
			IntervalMS: 5000,
		},
	}
}

// Load reads filename on top of Default and validates the result.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.PPM.Channels < 1 || c.PPM.Channels > proto.MaxChannels {
		return proto.ErrChannelCount
	}
	if c.PPM.PulseLenUS == 0 || c.PPM.PulseLenUS >= proto.MinChannelUS {
		return fmt.Errorf("ppm.pulse_len_us %d outside 1..%d", c.PPM.PulseLenUS, proto.MinChannelUS-1)
	}
	if c.PPM.FrameLenUS == 0 || c.PPM.FrameLenUS > MaxFrameLenUS {
		return fmt.Errorf("ppm.frame_len_us %d outside 1..%d", c.PPM.FrameLenUS, MaxFrameLenUS)
	}
	if c.PPM.TicksPerUS == 0 || c.PPM.TicksPerUS > MaxTicksPerUS {
		return fmt.Errorf("ppm.ticks_per_us %d outside 1..%d", c.PPM.TicksPerUS, MaxTicksPerUS)
	}
	if c.PPM.StaleAfterMS <= 0 || c.PPM.StaleAfterMS > MaxStaleAfterMS {
		return fmt.Errorf("ppm.stale_after_ms %d outside 1..%d", c.PPM.StaleAfterMS, MaxStaleAfterMS)
	}
	if c.Status.IntervalMS <= 0 {
		return fmt.Errorf("status.interval_ms %d: %w", c.Status.IntervalMS, ErrInterval)
	}
	if c.MQTT.Enabled && c.MQTT.IntervalMS <= 0 {
		return fmt.Errorf("mqtt.interval_ms %d: %w", c.MQTT.IntervalMS, ErrInterval)
	}
	if c.Input.Enabled {
		if _, err := transport.ParseEdge(c.Input.Edge); err != nil {
			return fmt.Errorf("input.edge %q: %w", c.Input.Edge, err)
		}
	}

	if c.Bridge.DirectChannels < 0 || c.Bridge.DirectChannels > c.PPM.Channels {
		return fmt.Errorf("bridge.direct_channels %d: %w", c.Bridge.DirectChannels, proto.ErrPortRange)
	}
	if !c.Bridge.Enabled {
		return nil
	}
	if c.Bridge.Shift > proto.MaxSmoothingShift {
		return proto.ErrInvalidShift
	}
	var seen uint16
	for _, r := range c.Bridge.Routes {
		if r.Channel < c.Bridge.DirectChannels || r.Channel >= c.PPM.Channels {
			return fmt.Errorf("bridge route channel %d: %w", r.Channel, proto.ErrPortRange)
		}
		if r.Source < 0 || r.Source >= proto.MaxChannels {
			return fmt.Errorf("bridge route source %d: %w", r.Source, proto.ErrPortRange)
		}
		if seen&(1<<uint(r.Channel)) != 0 {
			return fmt.Errorf("bridge route channel %d: %w", r.Channel, proto.ErrPortOverlap)
		}
		seen |= 1 << uint(r.Channel)
	}
	if !c.Input.Enabled {
		return ErrBridgeWithoutInput
	}
	return nil
}

// Timing returns the frame timing the encoder should use.
func (c *Config) Timing() proto.Timing {
	return proto.Timing{FrameLenUS: c.PPM.FrameLenUS, PulseLenUS: c.PPM.PulseLenUS}
}

// Edge returns the parsed input edge. Call after Validate.
func (c *Config) Edge() transport.Edge {
	e, _ := transport.ParseEdge(c.Input.Edge)
	return e
}

// Routes converts the bridge routes for transport.NewBridge.
func (c *Config) Routes() transport.BridgeConfig {
	routes := make([]transport.Route, len(c.Bridge.Routes))
	for i, r := range c.Bridge.Routes {
		routes[i] = transport.Route{Channel: r.Channel, Source: r.Source}
	}
	return transport.BridgeConfig{Routes: routes, Shift: c.Bridge.Shift}
}

func (c *Config) StatusInterval() time.Duration {
	return time.Duration(c.Status.IntervalMS) * time.Millisecond
}

func (c *Config) MQTTInterval() time.Duration {
	return time.Duration(c.MQTT.IntervalMS) * time.Millisecond
}

func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.PPM.StaleAfterMS) * time.Millisecond
}
