//go:build !tinygo

package stub

import (
	"sync"

	proto "github.com/ystepanoff/ppmlink/protocol"
	"github.com/ystepanoff/ppmlink/transport"
)

// Segment is one constant-level stretch of the simulated output line.
type Segment struct {
	High  bool
	Ticks uint32
}

// PulseDriver simulates a compare timer and an output line in virtual time,
// for host-side testing. Nothing fires on its own: Step delivers the next
// compare event.
type PulseDriver struct {
	mu         sync.Mutex
	ticksPerUS uint32
	onCompare  func()
	level      bool
	nowTicks   uint64 // time of the most recent compare event
	pending    uint32 // ticks from nowTicks to the next event
	armed      bool
	segments   ringBuffer
	wired      *EdgeDriver
}

func NewPulseDriver(ticksPerUS uint32) *PulseDriver {
	if ticksPerUS == 0 {
		ticksPerUS = proto.TicksPerMicrosecond
	}
	return &PulseDriver{ticksPerUS: ticksPerUS, level: true}
}

func (d *PulseDriver) Configure(onCompare func()) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onCompare = onCompare
	return nil
}

func (d *PulseDriver) SetLine(high bool) {
	d.mu.Lock()
	changed := d.level != high
	d.level = high
	wired := d.wired
	nowUS := uint32(d.nowTicks / uint64(d.ticksPerUS))
	d.mu.Unlock()

	if changed && wired != nil && wired.matches(high) {
		wired.Inject(nowUS)
	}
}

func (d *PulseDriver) Arm(ticks uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = ticks
	d.armed = true
	d.segments.push(Segment{High: d.level, Ticks: ticks})
}

// Wire feeds the line's transitions into e, as if the output pin were
// jumpered to the input pin.
func (d *PulseDriver) Wire(e *EdgeDriver) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.wired = e
}

// Step advances virtual time to the armed compare event and runs the
// handler. It returns false if nothing is armed.
func (d *PulseDriver) Step() bool {
	d.mu.Lock()
	if !d.armed || d.onCompare == nil {
		d.mu.Unlock()
		return false
	}
	d.nowTicks += uint64(d.pending)
	d.armed = false
	fn := d.onCompare
	d.mu.Unlock()

	fn()
	return true
}

// Run delivers n compare events.
func (d *PulseDriver) Run(n int) {
	for i := 0; i < n; i++ {
		if !d.Step() {
			return
		}
	}
}

// Level returns the current output level.
func (d *PulseDriver) Level() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.level
}

// NowTicks returns virtual time at the most recent compare event.
func (d *PulseDriver) NowTicks() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.nowTicks
}

// Segments returns the recorded line segments, oldest first.
func (d *PulseDriver) Segments() []Segment {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.segments.snapshot()
}

func (d *PulseDriver) ClearSegments() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.segments = ringBuffer{}
}

// EdgeDriver simulates an edge-triggered input pin.
type EdgeDriver struct {
	mu     sync.Mutex
	edge   transport.Edge
	onEdge func(nowUS uint32)
}

func NewEdgeDriver() *EdgeDriver { return &EdgeDriver{} }

func (d *EdgeDriver) Configure(edge transport.Edge, onEdge func(nowUS uint32)) error {
	if edge != transport.EdgeFalling && edge != transport.EdgeRising {
		return proto.ErrInvalidEdge
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.edge = edge
	d.onEdge = onEdge
	return nil
}

// Edge returns the configured polarity.
func (d *EdgeDriver) Edge() transport.Edge {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.edge
}

// Inject delivers one edge at nowUS. It is a no-op before Configure.
func (d *EdgeDriver) Inject(nowUS uint32) {
	d.mu.Lock()
	fn := d.onEdge
	d.mu.Unlock()
	if fn != nil {
		fn(nowUS)
	}
}

// InjectIntervals delivers an edge at startUS and then one edge after each
// interval. It returns the timestamp of the last edge.
func (d *EdgeDriver) InjectIntervals(startUS uint32, intervals ...uint32) uint32 {
	now := startUS
	d.Inject(now)
	for _, dt := range intervals {
		now += dt
		d.Inject(now)
	}
	return now
}

func (d *EdgeDriver) matches(high bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.edge == transport.EdgeRising {
		return high
	}
	return !high
}

// NewGuard returns the host stand-in for interrupt masking.
func NewGuard() transport.Guard { return &sync.Mutex{} }

const ringCapacity = 256

type ringBuffer struct {
	data       [ringCapacity]Segment
	head, tail int // head = next pop, tail = next push
	count      int
}

func (rb *ringBuffer) push(s Segment) {
	if rb.count == ringCapacity {
		// Overwrite the oldest when buffer is full to keep memory bounded
		rb.head = (rb.head + 1) % ringCapacity
		rb.count--
	}
	rb.data[rb.tail] = s
	rb.tail = (rb.tail + 1) % ringCapacity
	rb.count++
}

func (rb *ringBuffer) snapshot() []Segment {
	out := make([]Segment, rb.count)
	i := rb.head
	for c := 0; c < rb.count; c++ {
		out[c] = rb.data[i]
		i = (i + 1) % ringCapacity
	}
	return out
}
