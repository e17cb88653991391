//go:build tinygo && avr

// This file is built only for AVR boards (Timer1 and pin-change hardware).
package ppmlink

import (
	"machine"

	"github.com/ystepanoff/ppmlink/driver/avr"
	"github.com/ystepanoff/ppmlink/transport"
)

// Pin assignments used by the constructors. Override before calling them.
var (
	OutputPin machine.Pin = machine.D10
	InputPin  machine.Pin = machine.D2
)

func NewGuard() Guard { return avr.NewGuard() }

// NewEncoder returns an Encoder driving OutputPin from Timer1.
func NewEncoder(store *Store) *Encoder {
	return transport.NewEncoderWithDriver(store, avr.NewPulseDriver(OutputPin), transport.DefaultEncoderConfig())
}

// NewDecoder returns a Decoder timestamping edge transitions on InputPin.
func NewDecoder(capture *Capture, edge Edge) *Decoder {
	cfg := transport.DefaultDecoderConfig()
	cfg.Edge = edge
	return transport.NewDecoderWithDriver(capture, avr.NewEdgeDriver(InputPin), cfg)
}
