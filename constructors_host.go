//go:build !tinygo

// This file is built only for non-embedded targets (host-based testing).
package ppmlink

import (
	"github.com/ystepanoff/ppmlink/driver/stub"
	"github.com/ystepanoff/ppmlink/transport"
)

func NewGuard() Guard { return stub.NewGuard() }

// NewEncoder returns an Encoder on a simulated timer that never fires on its
// own. Use NewLoopback to step simulated time.
func NewEncoder(store *Store) *Encoder {
	return transport.NewEncoderWithDriver(store, stub.NewPulseDriver(0), transport.DefaultEncoderConfig())
}

// NewDecoder returns a Decoder on a simulated input pin listening on edge.
func NewDecoder(capture *Capture, edge Edge) *Decoder {
	cfg := transport.DefaultDecoderConfig()
	cfg.Edge = edge
	return transport.NewDecoderWithDriver(capture, stub.NewEdgeDriver(), cfg)
}

// NewLoopback returns an Encoder over store whose output is wired into a
// Decoder publishing to capture, as if the two pins were jumpered. The
// returned driver steps simulated time.
func NewLoopback(store *Store, capture *Capture, edge Edge) (*Encoder, *Decoder, *stub.PulseDriver) {
	pulse := stub.NewPulseDriver(0)
	in := stub.NewEdgeDriver()
	pulse.Wire(in)

	cfg := transport.DefaultDecoderConfig()
	cfg.Edge = edge
	enc := transport.NewEncoderWithDriver(store, pulse, transport.DefaultEncoderConfig())
	dec := transport.NewDecoderWithDriver(capture, in, cfg)
	return enc, dec, pulse
}
