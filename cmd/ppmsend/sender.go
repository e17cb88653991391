//go:build !tinygo

package main

import (
	"errors"
	"io"
	"strconv"
	"strings"
	"sync"

	proto "github.com/ystepanoff/ppmlink/protocol"
)

var (
	errBadInput = errors.New("expected v1,v2,..., ch=value, +ch, -ch, arm or reset")
	errNoPreset = errors.New("channel has no preset")
	errNotArmed = errors.New("guarded channel needs arm first")
)

// Presets are the values channels jump to while held. Guarded channels only
// respond to a hold that directly follows an arm.
type Presets struct {
	Values  map[int]uint16 // 0-based channel -> held value
	Guarded uint16         // bit i set: channel i needs arm
}

// DefaultPresets holds channels 1-7 at full scale except channel 4 at 1700
// and channel 5 at 1000. Channels 4, 5 and 6 are guarded.
func DefaultPresets(n int) Presets {
	p := Presets{Values: make(map[int]uint16)}
	for i := 0; i < 7 && i < n; i++ {
		p.Values[i] = proto.MaxChannelUS
	}
	if n > 3 {
		p.Values[3] = 1700
	}
	if n > 4 {
		p.Values[4] = proto.MinChannelUS
	}
	for i := 3; i < 6 && i < n; i++ {
		p.Guarded |= 1 << uint(i)
	}
	return p
}

func (p *Presets) String() string {
	if p == nil {
		return ""
	}
	parts := make([]string, 0, len(p.Values))
	for i := 0; i < proto.MaxChannels; i++ {
		if v, ok := p.Values[i]; ok {
			parts = append(parts, strconv.Itoa(i+1)+"="+strconv.Itoa(int(v)))
		}
	}
	return strings.Join(parts, ",")
}

// Set parses one "ch=value" preset (1-based channel) into p.
func (p *Presets) Set(arg string) error {
	i, v, err := parseAssign(arg)
	if err != nil {
		return err
	}
	if p.Values == nil {
		p.Values = make(map[int]uint16)
	}
	p.Values[i] = proto.Clamp(v)
	return nil
}

// Sender holds the channel vector the operator is editing and writes it to
// the encoder as a command line whenever it differs from what was last sent.
type Sender struct {
	mu       sync.Mutex
	w        io.Writer
	channels []uint16
	lastSent []uint16

	presets Presets
	held    uint16
	armed   bool
}

// NewSender starts with n neutral channels, which the encoder already
// holds, so nothing is sent until something changes.
func NewSender(w io.Writer, n int) *Sender {
	ch := make([]uint16, n)
	for i := range ch {
		ch[i] = proto.NeutralChannelUS
	}
	return &Sender{w: w, channels: ch, lastSent: append([]uint16(nil), ch...), presets: DefaultPresets(n)}
}

// SetPresets replaces the hold presets and drops any held channels.
func (s *Sender) SetPresets(p Presets) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presets = p
	s.releaseAll()
}

// Apply edits the vector from one line of operator input:
//
//	1500,2000,1500   replace the leading channels
//	3=2000           set channel 3 (1-based)
//	+3               hold channel 3 at its preset
//	-3               release channel 3 back to neutral
//	arm              allow the next hold of a guarded channel
//	reset            return every channel to neutral
func (s *Sender) Apply(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case line == "reset":
		s.releaseAll()
		for i := range s.channels {
			s.channels[i] = proto.NeutralChannelUS
		}
		return nil
	case line == "arm":
		s.armed = true
		return nil
	case (line[0] == '+' || line[0] == '-') && len(line) > 1 && !strings.ContainsAny(line, ",="):
		i, err := strconv.Atoi(line[1:])
		if err != nil || i < 1 || i > len(s.channels) {
			return errBadInput
		}
		if line[0] == '+' {
			return s.hold(i - 1)
		}
		s.release(i - 1)
		return nil
	}

	if strings.Contains(line, "=") {
		i, v, err := parseAssign(line)
		if err != nil || i >= len(s.channels) {
			return errBadInput
		}
		s.channels[i] = proto.Clamp(v)
		return nil
	}

	cmd, err := proto.ParseCommand(line, len(s.channels))
	if err != nil {
		return err
	}
	for i := 0; i < len(s.channels); i++ {
		if cmd.Mask&(1<<uint(i)) != 0 {
			s.channels[i] = cmd.Values[i]
		}
	}
	return nil
}

// hold drives channel i to its preset. Repeated holds are ignored, and a
// guarded channel consumes the pending arm.
func (s *Sender) hold(i int) error {
	v, ok := s.presets.Values[i]
	if !ok {
		return errNoPreset
	}
	bit := uint16(1) << uint(i)
	if s.held&bit != 0 {
		return nil
	}
	if s.presets.Guarded&bit != 0 {
		if !s.armed {
			return errNotArmed
		}
		s.armed = false
	}
	s.held |= bit
	s.channels[i] = v
	return nil
}

func (s *Sender) release(i int) {
	bit := uint16(1) << uint(i)
	if s.held&bit == 0 {
		return
	}
	s.held &^= bit
	s.channels[i] = proto.NeutralChannelUS
}

func (s *Sender) releaseAll() {
	for i := range s.channels {
		s.release(i)
	}
	s.armed = false
}

// parseAssign splits "ch=value" into a 0-based channel and a raw value.
func parseAssign(arg string) (int, int, error) {
	ch, val, ok := strings.Cut(arg, "=")
	if !ok {
		return 0, 0, errBadInput
	}
	i, err := strconv.Atoi(strings.TrimSpace(ch))
	if err != nil || i < 1 || i > proto.MaxChannels {
		return 0, 0, errBadInput
	}
	v, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return 0, 0, errBadInput
	}
	return i - 1, v, nil
}

// Flush sends the vector if it changed since the last send.
func (s *Sender) Flush() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if equal(s.channels, s.lastSent) {
		return false, nil
	}
	if _, err := io.WriteString(s.w, proto.FormatCommand(s.channels)); err != nil {
		return false, err
	}
	copy(s.lastSent, s.channels)
	return true, nil
}

// Channels returns a copy of the current vector.
func (s *Sender) Channels() []uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint16(nil), s.channels...)
}

func equal(a, b []uint16) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// pickPort returns the first port that looks like a USB serial adapter or a
// native-USB board, or "" if none does.
func pickPort(ports []string) string {
	for _, p := range ports {
		for _, hint := range []string{"usbmodem", "usbserial", "ttyACM", "ttyUSB"} {
			if strings.Contains(p, hint) {
				return p
			}
		}
	}
	return ""
}
