// Package ppmlink provides a façade to access the PPM encoding layer.
package ppmlink

import (
	"github.com/ystepanoff/ppmlink/protocol"
	"github.com/ystepanoff/ppmlink/transport"
)

// The drivers behind the constructors are split into build-tag specific files:
// - constructors_avr.go - for AVR boards (//go:build tinygo && avr)
// - constructors_host.go - for development/testing (//go:build !tinygo)

// Re-export types so applications only import this package.
type (
	Frame          = protocol.Frame
	Timing         = protocol.Timing
	Command        = protocol.Command
	Edge           = transport.Edge
	Guard          = transport.Guard
	Store          = transport.Store
	Port           = transport.Port
	Capture        = transport.Capture
	Encoder        = transport.Encoder
	EncoderConfig  = transport.EncoderConfig
	Decoder        = transport.Decoder
	DecoderConfig  = transport.DecoderConfig
	Bridge         = transport.Bridge
	BridgeConfig   = transport.BridgeConfig
	Route          = transport.Route
	Smoother       = transport.Smoother
	CommandHandler = transport.CommandHandler
	LineBuffer     = transport.LineBuffer
)

// Error values exposed in the public API
var (
	ErrNoValues      = protocol.ErrNoValues
	ErrChannelCount  = protocol.ErrChannelCount
	ErrPortRange     = protocol.ErrPortRange
	ErrPortOverlap   = protocol.ErrPortOverlap
	ErrInvalidShift  = protocol.ErrInvalidShift
	ErrInvalidEdge   = protocol.ErrInvalidEdge
	ErrNotConfigured = protocol.ErrNotConfigured
)

// Constants exposed in the public API
const (
	FrameLenUS       = protocol.FrameLenUS
	PulseLenUS       = protocol.PulseLenUS
	MinChannelUS     = protocol.MinChannelUS
	MaxChannelUS     = protocol.MaxChannelUS
	NeutralChannelUS = protocol.NeutralChannelUS
	MaxChannels      = protocol.MaxChannels
	DefaultChannels  = protocol.DefaultChannels

	DefaultDirectChannels = protocol.DefaultDirectChannels

	EdgeFalling = transport.EdgeFalling
	EdgeRising  = transport.EdgeRising
)

// NewStore returns a neutral store of n channels guarded by the platform's
// critical-section primitive.
func NewStore(n int) (*Store, error) {
	return transport.NewStore(n, NewGuard())
}

// NewCapture returns an empty decoder outbox.
func NewCapture() *Capture {
	return transport.NewCapture(NewGuard())
}

// DefaultBridgeConfig routes decoded channels 7 and 8 onto store channels
// 7 and 8 with the default smoothing.
func DefaultBridgeConfig() BridgeConfig { return transport.DefaultBridgeConfig() }

// NewBridge wires decoder output into store through cfg's routes.
func NewBridge(store *Store, capture *Capture, cfg BridgeConfig) (*Bridge, error) {
	return transport.NewBridge(store, capture, cfg)
}

func NewCommandHandler(p *Port) *CommandHandler {
	return transport.NewCommandHandler(p)
}
