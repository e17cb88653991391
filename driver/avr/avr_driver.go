//go:build tinygo && avr

package avr

import (
	"device/avr"
	"machine"
	"runtime/interrupt"
	"time"

	proto "github.com/ystepanoff/ppmlink/protocol"
	"github.com/ystepanoff/ppmlink/transport"
)

// onCompare is the handler installed by PulseDriver.Configure. The vector
// below must be a top-level function, so the handler lives here.
var onCompare func()

func timer1CompareA(interrupt.Interrupt) {
	if onCompare != nil {
		onCompare()
	}
}

// PulseDriver drives a PPM output pin from Timer1 in CTC mode with a /8
// prescaler: one tick is 0.5 µs on a 16 MHz part.
type PulseDriver struct {
	pin machine.Pin
}

func NewPulseDriver(pin machine.Pin) *PulseDriver {
	return &PulseDriver{pin: pin}
}

func (d *PulseDriver) Configure(handler func()) error {
	d.pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	d.pin.High()

	state := interrupt.Disable()
	onCompare = handler

	avr.TCCR1A.Set(0)
	avr.TCCR1B.Set(0)
	avr.TCNT1H.Set(0)
	avr.TCNT1L.Set(0)
	avr.TCCR1B.SetBits(avr.TCCR1B_WGM12 | avr.TCCR1B_CS11)
	avr.TIMSK1.SetBits(avr.TIMSK1_OCIE1A)

	intr := interrupt.New(avr.IRQ_TIMER1_COMPA, timer1CompareA)
	intr.Enable()

	interrupt.Restore(state)
	return nil
}

func (d *PulseDriver) SetLine(high bool) {
	d.pin.Set(high)
}

// Arm loads the compare register. In CTC mode the counter restarts at every
// match, so the next event lands ticks after the previous one.
func (d *PulseDriver) Arm(ticks uint32) {
	if ticks == 0 {
		ticks = 1
	}
	top := uint16(ticks - 1)
	// High byte first: it is latched until the low byte is written.
	avr.OCR1AH.Set(uint8(top >> 8))
	avr.OCR1AL.Set(uint8(top))
}

// EdgeDriver timestamps pin-change interrupts on an input pin.
type EdgeDriver struct {
	pin machine.Pin
}

func NewEdgeDriver(pin machine.Pin) *EdgeDriver {
	return &EdgeDriver{pin: pin}
}

func (d *EdgeDriver) Configure(edge transport.Edge, onEdge func(nowUS uint32)) error {
	var change machine.PinChange
	switch edge {
	case transport.EdgeFalling:
		change = machine.PinFalling
	case transport.EdgeRising:
		change = machine.PinRising
	default:
		return proto.ErrInvalidEdge
	}

	d.pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	return d.pin.SetInterrupt(change, func(machine.Pin) {
		onEdge(nowUS())
	})
}

func nowUS() uint32 {
	return uint32(time.Now().UnixNano() / 1000)
}

// Guard masks interrupts for the duration of a critical section. Sections
// must not nest.
type Guard struct {
	state interrupt.State
}

func NewGuard() transport.Guard { return &Guard{} }

func (g *Guard) Lock()   { g.state = interrupt.Disable() }
func (g *Guard) Unlock() { interrupt.Restore(g.state) }
