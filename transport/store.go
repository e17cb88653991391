package transport

import (
	"time"

	proto "github.com/ystepanoff/ppmlink/protocol"
)

// Store is the channel vector shared by the Encoder (reader, interrupt
// context) and application-side producers (writers). Every access goes
// through the guard; critical sections are plain memory copies.
//
// Producers do not write the Store directly. Each one claims a Port over a
// disjoint channel range, so two producers can never fight over a channel.
type Store struct {
	guard  Guard
	values [proto.MaxChannels]uint16
	n      int
	owned  uint16 // channels claimed by ports

	writes    uint32
	writtenAt time.Time
	now       func() time.Time
}

// NewStore returns a store of n channels, all at the neutral position.
func NewStore(n int, guard Guard) (*Store, error) {
	if n < 1 || n > proto.MaxChannels {
		return nil, proto.ErrChannelCount
	}
	s := &Store{guard: guard, n: n, now: time.Now}
	for i := 0; i < n; i++ {
		s.values[i] = proto.NeutralChannelUS
	}
	return s, nil
}

// Len returns the number of channels. It never changes.
func (s *Store) Len() int { return s.n }

// Load returns channel i as stored. Callers in interrupt context clamp on
// consumption.
func (s *Store) Load(i int) uint16 {
	s.guard.Lock()
	v := s.values[i]
	s.guard.Unlock()
	return v
}

// Snapshot copies the whole vector atomically.
func (s *Store) Snapshot() proto.Frame {
	var f proto.Frame
	s.guard.Lock()
	f.Channels = s.values
	s.guard.Unlock()
	f.Count = s.n
	return f
}

// LastWrite reports how many writes the store has accepted and when the
// latest one happened. Callers use it to implement their own staleness
// policy.
func (s *Store) LastWrite() (uint32, time.Time) {
	s.guard.Lock()
	defer s.guard.Unlock()
	return s.writes, s.writtenAt
}

// Port claims channels [start, start+n) for a single producer.
func (s *Store) Port(start, n int) (*Port, error) {
	if start < 0 || n < 1 || start+n > s.n {
		return nil, proto.ErrPortRange
	}
	mask := uint16((1<<uint(n))-1) << uint(start)

	s.guard.Lock()
	defer s.guard.Unlock()
	if s.owned&mask != 0 {
		return nil, proto.ErrPortOverlap
	}
	s.owned |= mask
	return &Port{store: s, start: start, n: n}, nil
}

// writeMasked stores values[i] into channel start+i for every bit i of mask.
// values must already be clamped.
func (s *Store) writeMasked(start int, values *[proto.MaxChannels]uint16, mask uint16) {
	at := s.now()
	s.guard.Lock()
	for i := 0; mask != 0; i++ {
		if mask&1 != 0 {
			s.values[start+i] = values[i]
		}
		mask >>= 1
	}
	s.writes++
	s.writtenAt = at
	s.guard.Unlock()
}

// Port is a producer's exclusive window onto a range of Store channels.
// Index 0 of a port is channel Start() of the store.
type Port struct {
	store *Store
	start int
	n     int
}

func (p *Port) Start() int { return p.start }
func (p *Port) Len() int   { return p.n }

// Write clamps and stores values into the port's channels, in order.
// Extra values are ignored; channels past len(values) are left unchanged.
// It returns the number of channels written.
func (p *Port) Write(values []uint16) int {
	var buf [proto.MaxChannels]uint16
	n := proto.ClampSlice(buf[:p.n], values)
	if n == 0 {
		return 0
	}
	p.store.writeMasked(p.start, &buf, uint16((1<<uint(n))-1))
	return n
}

// WriteMasked stores values[i] for every bit i set in mask, clamping on the
// way in. Bits past the port width are dropped. It returns the number of
// channels written.
func (p *Port) WriteMasked(values *[proto.MaxChannels]uint16, mask uint16) int {
	mask &= uint16((1 << uint(p.n)) - 1)
	if mask == 0 {
		return 0
	}

	var buf [proto.MaxChannels]uint16
	n := 0
	for i := 0; i < p.n; i++ {
		if mask&(1<<uint(i)) != 0 {
			buf[i] = proto.Clamp(int(values[i]))
			n++
		}
	}
	p.store.writeMasked(p.start, &buf, mask)
	return n
}
