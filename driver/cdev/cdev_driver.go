//go:build linux && !tinygo

// Package cdev drives PPM lines through the Linux GPIO character device.
// Output timing comes from a goroutine sleeping to absolute deadlines, so it
// carries scheduler jitter; it is meant for bench rigs and loopback checks,
// not for flying anything.
package cdev

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"syscall"
	"time"

	"github.com/warthog618/go-gpiocdev"
	"golang.org/x/sys/unix"

	proto "github.com/ystepanoff/ppmlink/protocol"
	"github.com/ystepanoff/ppmlink/transport"
)

// PulseDriver emulates a compare timer on an output line.
type PulseDriver struct {
	chip       string
	offset     int
	ticksPerUS uint32

	line      *gpiocdev.Line
	armed     chan uint32
	stop      chan struct{}
	done      chan struct{}
	running   bool
	closeOnce sync.Once
	closeErr  error
}

func NewPulseDriver(chip string, offset int, ticksPerUS uint32) *PulseDriver {
	if ticksPerUS == 0 {
		ticksPerUS = proto.TicksPerMicrosecond
	}
	return &PulseDriver{
		chip:       chip,
		offset:     offset,
		ticksPerUS: ticksPerUS,
		armed:      make(chan uint32, 1),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Configure requests the line as an output idling high and starts the
// compare loop.
func (d *PulseDriver) Configure(onCompare func()) error {
	line, err := gpiocdev.RequestLine(d.chip, d.offset, gpiocdev.AsOutput(1))
	if err != nil {
		return fmt.Errorf("request output line %s:%d: %w", d.chip, d.offset, err)
	}
	d.line = line
	d.start(onCompare)
	return nil
}

func (d *PulseDriver) SetLine(high bool) {
	if d.line == nil {
		return
	}
	v := 0
	if high {
		v = 1
	}
	if err := d.line.SetValue(v); err != nil {
		log.Printf("[Cdev] set value: %v\r\n", err)
	}
}

// Arm schedules the next compare event. Only the latest pending arm counts.
func (d *PulseDriver) Arm(ticks uint32) {
	select {
	case <-d.armed:
	default:
	}
	d.armed <- ticks
}

func (d *PulseDriver) start(onCompare func()) {
	d.running = true
	go d.loop(onCompare)
}

func (d *PulseDriver) loop(onCompare func()) {
	defer close(d.done)
	deadline := time.Now()
	for {
		var ticks uint32
		select {
		case <-d.stop:
			return
		case ticks = <-d.armed:
		}

		deadline = nextDeadline(deadline, ticks, d.ticksPerUS)
		if wait := time.Until(deadline); wait > 0 {
			select {
			case <-d.stop:
				return
			case <-time.After(wait):
			}
		} else if wait < -time.Duration(proto.FrameLenUS)*time.Microsecond {
			// Fell a whole frame behind; restart the schedule from now.
			deadline = time.Now()
		}
		onCompare()
	}
}

// nextDeadline returns prev advanced by ticks timer counts.
func nextDeadline(prev time.Time, ticks, ticksPerUS uint32) time.Time {
	ns := uint64(ticks) * 1000 / uint64(ticksPerUS)
	return prev.Add(time.Duration(ns))
}

// Close stops the compare loop, returns the line to input and releases it.
// Later calls return the first call's result.
func (d *PulseDriver) Close() error {
	d.closeOnce.Do(func() {
		close(d.stop)
		if d.running {
			<-d.done
		}
		if d.line == nil {
			return
		}
		if err := d.line.Reconfigure(gpiocdev.AsInput); err != nil {
			log.Printf("[Cdev] reconfigure output line: %v\r\n", err)
		}
		d.closeErr = d.line.Close()
	})
	return d.closeErr
}

// EdgeDriver timestamps edges on an input line using the kernel's event
// timestamps.
type EdgeDriver struct {
	chip   string
	offset int
	line   *gpiocdev.Line
	closed bool
}

func NewEdgeDriver(chip string, offset int) *EdgeDriver {
	return &EdgeDriver{chip: chip, offset: offset}
}

func (d *EdgeDriver) Configure(edge transport.Edge, onEdge func(nowUS uint32)) error {
	var edgeOpt gpiocdev.LineReqOption
	switch edge {
	case transport.EdgeFalling:
		edgeOpt = gpiocdev.WithFallingEdge
	case transport.EdgeRising:
		edgeOpt = gpiocdev.WithRisingEdge
	default:
		return proto.ErrInvalidEdge
	}

	line, err := gpiocdev.RequestLine(d.chip, d.offset,
		gpiocdev.WithPullUp,
		edgeOpt,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			onEdge(eventMicros(evt))
		}))
	if err != nil {
		if errors.Is(err, syscall.EINVAL) {
			log.Printf("[Cdev] pull-up bias needs Linux 5.5 or later\r\n")
		}
		return fmt.Errorf("request input line %s:%d: %w", d.chip, d.offset, err)
	}
	d.line = line
	return nil
}

func eventMicros(evt gpiocdev.LineEvent) uint32 {
	return uint32(evt.Timestamp / time.Microsecond)
}

// NowUS reads CLOCK_MONOTONIC on the same microsecond scale as edge
// timestamps, for staleness checks against Capture.LastPublished.
func NowUS() uint32 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0
	}
	return uint32(ts.Nano() / 1000)
}

func (d *EdgeDriver) Close() error {
	if d.line == nil || d.closed {
		return nil
	}
	d.closed = true
	return d.line.Close()
}

// NewGuard returns the lock shared by the compare loop, the edge handler
// and application goroutines.
func NewGuard() transport.Guard { return &sync.Mutex{} }
