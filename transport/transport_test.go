package transport

import (
	"sync"

	proto "github.com/ystepanoff/ppmlink/protocol"
)

// MockPulseDriver implements the PulseDriver interface for testing.
// Every Arm call is logged together with the line level at that moment.
type MockPulseDriver struct {
	mutex     sync.Mutex
	onCompare func()
	level     bool
	armed     bool
	log       []segment
}

type segment struct {
	high bool
	us   uint32 // ticks / TicksPerMicrosecond
}

func NewMockPulseDriver() *MockPulseDriver {
	return &MockPulseDriver{level: true}
}

func (d *MockPulseDriver) Configure(onCompare func()) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.onCompare = onCompare
	return nil
}

func (d *MockPulseDriver) SetLine(high bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.level = high
}

func (d *MockPulseDriver) Arm(ticks uint32) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.armed = true
	d.log = append(d.log, segment{high: d.level, us: ticks / proto.TicksPerMicrosecond})
}

// Fire delivers n compare events.
func (d *MockPulseDriver) Fire(n int) {
	for i := 0; i < n; i++ {
		d.mutex.Lock()
		fn := d.onCompare
		d.armed = false
		d.mutex.Unlock()
		fn()
	}
}

func (d *MockPulseDriver) Log() []segment {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	out := make([]segment, len(d.log))
	copy(out, d.log)
	return out
}

func (d *MockPulseDriver) ClearLog() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.log = d.log[:0]
}

// MockEdgeDriver implements the EdgeDriver interface for testing.
type MockEdgeDriver struct {
	mutex  sync.Mutex
	edge   Edge
	onEdge func(uint32)
}

func (d *MockEdgeDriver) Configure(edge Edge, onEdge func(uint32)) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.edge = edge
	d.onEdge = onEdge
	return nil
}

// Intervals delivers an edge at start followed by one edge per interval.
func (d *MockEdgeDriver) Intervals(start uint32, dts ...uint32) uint32 {
	d.mutex.Lock()
	fn := d.onEdge
	d.mutex.Unlock()

	now := start
	fn(now)
	for _, dt := range dts {
		now += dt
		fn(now)
	}
	return now
}

func newTestStore(n int) *Store {
	s, err := NewStore(n, &sync.Mutex{})
	if err != nil {
		panic(err)
	}
	return s
}

func repeat(v uint16, n int) []uint16 {
	out := make([]uint16, n)
	for i := range out {
		out[i] = v
	}
	return out
}
