//go:build !tinygo

package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ystepanoff/ppmlink/driver/stub"
	"github.com/ystepanoff/ppmlink/transport"
)

// rig runs a stub loopback for a few frames so every counter has moved.
func rig(t *testing.T) Sources {
	t.Helper()
	guard := stub.NewGuard()

	store, err := transport.NewStore(8, guard)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	direct, _ := store.Port(0, 6)
	direct.Write([]uint16{1100, 1200, 1300, 1400, 1500, 1600})

	capture := transport.NewCapture(guard)
	bridge, err := transport.NewBridge(store, capture, transport.DefaultBridgeConfig())
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}

	pulse := stub.NewPulseDriver(0)
	in := stub.NewEdgeDriver()
	pulse.Wire(in)
	enc := transport.NewEncoderWithDriver(store, pulse, transport.DefaultEncoderConfig())
	dec := transport.NewDecoderWithDriver(capture, in, transport.DefaultDecoderConfig())
	if err := dec.Start(); err != nil {
		t.Fatalf("Decoder.Start() error = %v", err)
	}
	if err := enc.Start(); err != nil {
		t.Fatalf("Encoder.Start() error = %v", err)
	}

	// Three full frames: the decoder publishes frame 2 as frame 3 starts.
	pulse.Run(3 * 18)
	if !bridge.Pump() {
		t.Fatal("Pump() = false after three frames")
	}

	return Sources{Encoder: enc, Decoder: dec, Store: store, Bridge: bridge}
}

func TestCollector_Counters(t *testing.T) {
	c := NewCollector(rig(t))

	expected := `
# HELP ppmlink_encoder_frames_total Frames emitted by the encoder.
# TYPE ppmlink_encoder_frames_total counter
ppmlink_encoder_frames_total 3
# HELP ppmlink_encoder_sync_gap_microseconds Sync gap of the latest emitted frame.
# TYPE ppmlink_encoder_sync_gap_microseconds gauge
ppmlink_encoder_sync_gap_microseconds 8200
# HELP ppmlink_decoder_frames_total Frames published by the decoder.
# TYPE ppmlink_decoder_frames_total counter
ppmlink_decoder_frames_total 1
# HELP ppmlink_bridge_decoded_channels Channel count of the latest consumed frame.
# TYPE ppmlink_bridge_decoded_channels gauge
ppmlink_bridge_decoded_channels 8
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"ppmlink_encoder_frames_total",
		"ppmlink_encoder_sync_gap_microseconds",
		"ppmlink_decoder_frames_total",
		"ppmlink_bridge_decoded_channels",
	)
	if err != nil {
		t.Error(err)
	}
}

func TestCollector_Channels(t *testing.T) {
	c := NewCollector(rig(t))

	if n := testutil.CollectAndCount(c, "ppmlink_channel_microseconds"); n != 8 {
		t.Errorf("channel series = %d, want 8", n)
	}
	if n := testutil.CollectAndCount(c, "ppmlink_bridge_smoothed_microseconds"); n != 2 {
		t.Errorf("smoothed series = %d, want 2", n)
	}

	// Decoded channels 7 and 8 carried the neutral store values back in,
	// so the smoothed outputs have not moved.
	expected := `
# HELP ppmlink_bridge_smoothed_microseconds Smoothed value of a routed channel.
# TYPE ppmlink_bridge_smoothed_microseconds gauge
ppmlink_bridge_smoothed_microseconds{channel="7"} 1500
ppmlink_bridge_smoothed_microseconds{channel="8"} 1500
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected), "ppmlink_bridge_smoothed_microseconds"); err != nil {
		t.Error(err)
	}
}

func TestCollector_NilSources(t *testing.T) {
	c := NewCollector(Sources{})
	if n := testutil.CollectAndCount(c); n != 0 {
		t.Errorf("metrics with no sources = %d, want 0", n)
	}

	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
}
