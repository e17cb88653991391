package transport

import (
	"sync/atomic"

	proto "github.com/ystepanoff/ppmlink/protocol"
)

// Accumulator is the Decoder's interrupt-owned view of the frame in
// progress.
type Accumulator struct {
	Pending    [proto.MaxChannels]uint16
	Count      int
	Started    bool
	LastEdgeUS uint32
}

func (a *Accumulator) reset() {
	a.Count = 0
	a.Started = false
}

// DecoderConfig holds the Decoder's classification parameters.
type DecoderConfig struct {
	Edge        Edge
	MaxChannels int    // accumulation limit, at most proto.MaxChannels
	SyncMinUS   uint32 // dt > SyncMinUS is a frame boundary
	WindowLoUS  uint32 // accepted channel interval, inclusive
	WindowHiUS  uint32
}

// DefaultDecoderConfig returns the reference thresholds on falling edges.
func DefaultDecoderConfig() DecoderConfig {
	return DecoderConfig{
		Edge:        EdgeFalling,
		MaxChannels: proto.MaxChannels,
		SyncMinUS:   proto.SyncMinUS,
		WindowLoUS:  proto.ChannelWindowLo,
		WindowHiUS:  proto.ChannelWindowHi,
	}
}

// DecoderStats is a snapshot of the Decoder's counters.
type DecoderStats struct {
	Frames     uint32 // frames published to the Capture
	Resyncs    uint32 // accumulations discarded on an out-of-window interval
	Overwrites uint32 // published frames that replaced an unread one
}

// Decoder classifies the intervals between input edges into sync
// boundaries and channel pulses, and publishes each completed frame to its
// Capture.
type Decoder struct {
	capture *Capture
	driver  EdgeDriver
	cfg     DecoderConfig
	acc     Accumulator

	frames     uint32
	resyncs    uint32
	overwrites uint32
}

func NewDecoderWithDriver(capture *Capture, d EdgeDriver, cfg DecoderConfig) *Decoder {
	if cfg.MaxChannels <= 0 || cfg.MaxChannels > proto.MaxChannels {
		cfg.MaxChannels = proto.MaxChannels
	}
	return &Decoder{capture: capture, driver: d, cfg: cfg}
}

// Start installs the edge handler on the configured polarity.
func (d *Decoder) Start() error {
	if d.driver == nil || d.capture == nil {
		return proto.ErrNotConfigured
	}
	return d.driver.Configure(d.cfg.Edge, d.HandleEdge)
}

// HandleEdge consumes one edge timestamp. It runs in interrupt context.
//
// Intervals are computed with wrapping uint32 arithmetic, so a free-running
// microsecond counter rolling over is harmless.
func (d *Decoder) HandleEdge(nowUS uint32) {
	a := &d.acc
	dt := nowUS - a.LastEdgeUS
	if dt == 0 {
		return
	}
	a.LastEdgeUS = nowUS

	switch {
	case dt > d.cfg.SyncMinUS:
		if a.Count > 0 {
			if d.capture.publish(a.Pending[:a.Count], nowUS) {
				atomic.AddUint32(&d.overwrites, 1)
			}
			atomic.AddUint32(&d.frames, 1)
		}
		a.Count = 0
		a.Started = true

	case dt >= d.cfg.WindowLoUS && dt <= d.cfg.WindowHiUS && a.Started && a.Count < d.cfg.MaxChannels:
		a.Pending[a.Count] = proto.Clamp(int(dt))
		a.Count++

	default:
		if a.Started || a.Count > 0 {
			atomic.AddUint32(&d.resyncs, 1)
		}
		a.reset()
	}
}

func (d *Decoder) Stats() DecoderStats {
	return DecoderStats{
		Frames:     atomic.LoadUint32(&d.frames),
		Resyncs:    atomic.LoadUint32(&d.resyncs),
		Overwrites: atomic.LoadUint32(&d.overwrites),
	}
}

// Capture returns the outbox the Decoder publishes to.
func (d *Decoder) Capture() *Capture { return d.capture }
