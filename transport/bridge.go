package transport

import (
	"strconv"
	"strings"
	"sync"

	proto "github.com/ystepanoff/ppmlink/protocol"
)

// Smoother is a single-pole exponential filter in integer arithmetic:
//
//	value += (raw - value) >> shift
//
// The arithmetic shift rounds toward negative infinity, so the value never
// overshoots the input it is chasing.
type Smoother struct {
	value uint16
	shift uint8
}

// NewSmoother returns a filter resting at the neutral position.
func NewSmoother(shift uint8) Smoother {
	return Smoother{value: proto.NeutralChannelUS, shift: shift}
}

// Update blends raw (clamped first) into the filter and returns the new value.
func (s *Smoother) Update(raw uint16) uint16 {
	r := int32(proto.Clamp(int(raw)))
	p := int32(s.value)
	s.value = uint16(p + (r-p)>>s.shift)
	return s.value
}

func (s *Smoother) Value() uint16 { return s.value }

// Route sends decoded channel Source through a Smoother into store channel
// Channel.
type Route struct {
	Channel int
	Source  int
}

// BridgeConfig describes which store channels the Bridge owns.
type BridgeConfig struct {
	Routes []Route
	Shift  uint8
}

// DefaultBridgeConfig routes decoded channels 7 and 8 (indices 6 and 7)
// onto the same store positions.
func DefaultBridgeConfig() BridgeConfig {
	return BridgeConfig{
		Routes: []Route{{Channel: 6, Source: 6}, {Channel: 7, Source: 7}},
		Shift:  proto.DefaultSmoothingShift,
	}
}

// Bridge feeds smoothed decoder output into the Store alongside whatever
// producer owns the remaining channels. Pump runs in application context;
// the accessors may be called from other goroutines.
type Bridge struct {
	port    *Port
	capture *Capture
	routes  []Route

	mu        sync.Mutex
	smoothers []Smoother

	frames    uint32
	lastCount int
}

// NewBridge claims a single Port from the lowest to the highest routed
// channel. Unrouted channels inside that span belong to the Bridge too and
// stay untouched by it. Each store channel may be routed once.
func NewBridge(store *Store, capture *Capture, cfg BridgeConfig) (*Bridge, error) {
	if cfg.Shift > proto.MaxSmoothingShift {
		return nil, proto.ErrInvalidShift
	}
	if len(cfg.Routes) == 0 {
		return nil, proto.ErrPortRange
	}

	var seen uint16
	lo, hi := cfg.Routes[0].Channel, cfg.Routes[0].Channel
	for _, r := range cfg.Routes {
		if r.Source < 0 || r.Source >= proto.MaxChannels {
			return nil, proto.ErrPortRange
		}
		if r.Channel < 0 || r.Channel >= proto.MaxChannels {
			return nil, proto.ErrPortRange
		}
		if seen&(1<<uint(r.Channel)) != 0 {
			return nil, proto.ErrPortOverlap
		}
		seen |= 1 << uint(r.Channel)
		lo = min(lo, r.Channel)
		hi = max(hi, r.Channel)
	}

	port, err := store.Port(lo, hi-lo+1)
	if err != nil {
		return nil, err
	}

	b := &Bridge{
		port:      port,
		capture:   capture,
		routes:    append([]Route(nil), cfg.Routes...),
		smoothers: make([]Smoother, len(cfg.Routes)),
	}
	for i := range b.smoothers {
		b.smoothers[i] = NewSmoother(cfg.Shift)
	}
	return b, nil
}

// Pump consumes the latest captured frame, if any, and writes the smoothed
// routed channels to the Store. Routes whose source index is beyond the
// frame's channel count keep their previous value. It reports whether a
// frame was consumed.
func (b *Bridge) Pump() bool {
	f, ok := b.capture.Take()
	if !ok {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var buf [proto.MaxChannels]uint16
	var mask uint16
	start := b.port.Start()
	for i, r := range b.routes {
		if r.Source >= f.Count {
			continue
		}
		buf[r.Channel-start] = b.smoothers[i].Update(f.Channels[r.Source])
		mask |= 1 << uint(r.Channel-start)
	}
	b.port.WriteMasked(&buf, mask)

	b.frames++
	b.lastCount = f.Count
	return true
}

// Smoothed returns the current filter outputs in route order.
func (b *Bridge) Smoothed() []uint16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]uint16, len(b.smoothers))
	for i := range b.smoothers {
		out[i] = b.smoothers[i].Value()
	}
	return out
}

// Routes returns the configured routes.
func (b *Bridge) Routes() []Route { return append([]Route(nil), b.routes...) }

// LastCount is the channel count of the most recently consumed frame.
func (b *Bridge) LastCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastCount
}

// Frames is the number of frames the Bridge has consumed.
func (b *Bridge) Frames() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frames
}

// Stale reports whether no frame has been published within timeoutUS of
// nowUS (both on the edge timestamp clock). It is true before the first
// frame.
func (b *Bridge) Stale(nowUS, timeoutUS uint32) bool {
	at, ok := b.capture.LastPublished()
	if !ok {
		return true
	}
	return nowUS-at > timeoutUS
}

// Status renders a one-line report, e.g. "decoded=8 ch7=1562 ch8=1500".
// Channel numbers are 1-based.
func (b *Bridge) Status() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var sb strings.Builder
	sb.WriteString("decoded=")
	sb.WriteString(strconv.Itoa(b.lastCount))
	for i, r := range b.routes {
		sb.WriteString(" ch")
		sb.WriteString(strconv.Itoa(r.Channel + 1))
		sb.WriteByte('=')
		sb.WriteString(strconv.Itoa(int(b.smoothers[i].Value())))
	}
	return sb.String()
}
