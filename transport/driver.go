package transport

import (
	"sync"

	proto "github.com/ystepanoff/ppmlink/protocol"
)

// PulseDriver is the interface that wraps the timer-compare hardware behind
// the Encoder.
//
// Configure installs onCompare as the compare-match handler. Arm programs
// the next compare event ticks timer counts after the previous one (not
// after "now"), so phase boundaries do not drift. SetLine drives the output
// pin level.
type PulseDriver interface {
	Configure(onCompare func()) error
	SetLine(high bool)
	Arm(ticks uint32)
}

// EdgeDriver is the interface that wraps the edge-capture hardware behind
// the Decoder. onEdge receives a free-running microsecond timestamp; only
// differences between successive timestamps are meaningful.
type EdgeDriver interface {
	Configure(edge Edge, onEdge func(nowUS uint32)) error
}

// Guard brackets accesses to state shared between interrupt and application
// context. On hardware it masks interrupts; on a host it is a mutex.
type Guard = sync.Locker

// Edge selects which input transition the Decoder timestamps.
type Edge uint8

const (
	EdgeFalling Edge = iota
	EdgeRising
)

func (e Edge) String() string {
	switch e {
	case EdgeFalling:
		return "falling"
	case EdgeRising:
		return "rising"
	}
	return "unknown"
}

// ParseEdge maps a configuration string onto an Edge.
func ParseEdge(s string) (Edge, error) {
	switch s {
	case "falling", "":
		return EdgeFalling, nil
	case "rising":
		return EdgeRising, nil
	}
	return EdgeFalling, proto.ErrInvalidEdge
}
