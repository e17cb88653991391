//go:build !tinygo

package ppmlink

import "testing"

func TestLoopback_Bridge(t *testing.T) {
	// Transmitter side: eight channels, 7 and 8 at full scale.
	txStore, err := NewStore(DefaultChannels)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	txPort, _ := txStore.Port(0, DefaultChannels)
	txPort.Write([]uint16{1500, 1500, 1500, 1500, 1500, 1500, 2000, 2000})

	// Receiver side: a bridge store whose channels 7 and 8 follow the
	// decoded input.
	rxStore, _ := NewStore(DefaultChannels)
	direct, err := rxStore.Port(0, DefaultDirectChannels)
	if err != nil {
		t.Fatalf("Port() error = %v", err)
	}
	capture := NewCapture()
	bridge, err := NewBridge(rxStore, capture, DefaultBridgeConfig())
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}

	enc, dec, pulse := NewLoopback(txStore, capture, EdgeFalling)
	if err := dec.Start(); err != nil {
		t.Fatalf("Decoder.Start() error = %v", err)
	}
	if err := enc.Start(); err != nil {
		t.Fatalf("Encoder.Start() error = %v", err)
	}

	if ack, err := NewCommandHandler(direct).Handle("1100,1900"); err != nil || ack != "OK 2" {
		t.Fatalf("Handle() = %q, %v", ack, err)
	}

	pulse.Run(3 * (2*DefaultChannels + 2))
	if !bridge.Pump() {
		t.Fatal("Pump() = false after three frames")
	}

	snap := rxStore.Snapshot()
	want := []uint16{1100, 1900, 1500, 1500, 1500, 1500, 1562, 1562}
	for i, w := range want {
		if snap.Channels[i] != w {
			t.Errorf("channel %d = %d, want %d", i+1, snap.Channels[i], w)
		}
	}
	if got := bridge.Status(); got != "decoded=8 ch7=1562 ch8=1562" {
		t.Errorf("Status() = %q", got)
	}
}

func TestNewDecoder_Edge(t *testing.T) {
	dec := NewDecoder(NewCapture(), EdgeRising)
	if err := dec.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, ok := dec.Capture().Take(); ok {
		t.Error("fresh decoder has a frame")
	}
}

func TestNewEncoder_Start(t *testing.T) {
	store, _ := NewStore(4)
	enc := NewEncoder(store)
	if err := enc.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if got := enc.Stats().Frames; got != 0 {
		t.Errorf("Stats().Frames = %d before any compare event", got)
	}
}
