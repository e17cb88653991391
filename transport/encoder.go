package transport

import (
	"sync/atomic"

	proto "github.com/ystepanoff/ppmlink/protocol"
)

// Phase is the segment of the PPM cycle the Encoder is emitting.
type Phase uint8

const (
	PhasePulse Phase = iota // next compare event starts a low pulse
	PhaseGap                // next compare event ends the pulse and starts a high gap
)

// Cursor is the Encoder's interrupt-owned position within the frame.
type Cursor struct {
	Phase       Phase
	Index       int    // next channel whose gap will be emitted; Len() means the sync gap
	RemainderUS uint32 // sync gap for the frame in flight
}

// EncoderConfig holds the Encoder's timing parameters.
type EncoderConfig struct {
	Timing     proto.Timing
	TicksPerUS uint32
}

// DefaultEncoderConfig returns the reference timing on a 0.5 µs timer.
func DefaultEncoderConfig() EncoderConfig {
	return EncoderConfig{
		Timing:     proto.DefaultTiming(),
		TicksPerUS: proto.TicksPerMicrosecond,
	}
}

// EncoderStats is a snapshot of the Encoder's counters.
type EncoderStats struct {
	Frames    uint32 // completed frames
	SyncGapUS uint32 // sync gap of the latest frame
}

// Encoder turns the Store into a PPM waveform, one compare event at a time.
type Encoder struct {
	store  *Store
	driver PulseDriver
	cfg    EncoderConfig
	cursor Cursor

	frames    uint32
	syncGapUS uint32
}

func NewEncoderWithDriver(store *Store, d PulseDriver, cfg EncoderConfig) *Encoder {
	if cfg.TicksPerUS == 0 {
		cfg.TicksPerUS = proto.TicksPerMicrosecond
	}
	return &Encoder{
		store:  store,
		driver: d,
		cfg:    cfg,
		cursor: Cursor{Phase: PhasePulse},
	}
}

// Start idles the line high, installs the compare handler and arms the
// first event one pulse length out.
func (e *Encoder) Start() error {
	if e.driver == nil || e.store == nil {
		return proto.ErrNotConfigured
	}
	e.cursor = Cursor{Phase: PhasePulse}
	e.driver.SetLine(true)
	if err := e.driver.Configure(e.HandleCompare); err != nil {
		return err
	}
	e.driver.Arm(e.ticks(e.cfg.Timing.PulseLenUS))
	return nil
}

// HandleCompare advances the state machine by one phase. It runs in
// interrupt context: no blocking, no logging.
func (e *Encoder) HandleCompare() {
	c := &e.cursor

	if c.Phase == PhasePulse {
		if c.Index == 0 {
			snap := e.store.Snapshot()
			c.RemainderUS = proto.SyncGap(snap.Values(), e.cfg.Timing)
		}
		e.driver.SetLine(false)
		e.driver.Arm(e.ticks(e.cfg.Timing.PulseLenUS))
		c.Phase = PhaseGap
		return
	}

	e.driver.SetLine(true)
	c.Phase = PhasePulse

	if c.Index >= e.store.Len() {
		e.driver.Arm(e.ticks(c.RemainderUS))
		c.Index = 0
		atomic.StoreUint32(&e.syncGapUS, c.RemainderUS)
		atomic.AddUint32(&e.frames, 1)
		return
	}

	gap := uint32(proto.Clamp(int(e.store.Load(c.Index)))) - e.cfg.Timing.PulseLenUS
	e.driver.Arm(e.ticks(gap))
	c.Index++
}

func (e *Encoder) Stats() EncoderStats {
	return EncoderStats{
		Frames:    atomic.LoadUint32(&e.frames),
		SyncGapUS: atomic.LoadUint32(&e.syncGapUS),
	}
}

func (e *Encoder) ticks(us uint32) uint32 { return us * e.cfg.TicksPerUS }
