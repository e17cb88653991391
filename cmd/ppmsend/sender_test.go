//go:build !tinygo

package main

import (
	"bytes"
	"testing"

	proto "github.com/ystepanoff/ppmlink/protocol"
)

func TestSender_SendsOnlyOnChange(t *testing.T) {
	var out bytes.Buffer
	s := NewSender(&out, 8)

	if sent, err := s.Flush(); sent || err != nil {
		t.Fatalf("Flush() on neutral vector = %v, %v; want nothing sent", sent, err)
	}

	if err := s.Apply("1=2000"); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if sent, _ := s.Flush(); !sent {
		t.Fatal("Flush() after change sent nothing")
	}
	if sent, _ := s.Flush(); sent {
		t.Fatal("second Flush() resent an unchanged vector")
	}

	want := "2000,1500,1500,1500,1500,1500,1500,1500\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}

	// Every line the sender writes is accepted by the command grammar.
	cmd, err := proto.ParseCommand(out.String(), 8)
	if err != nil || cmd.Count != 8 {
		t.Errorf("ParseCommand(sent line) = %+v, %v", cmd, err)
	}
}

func TestSender_Apply(t *testing.T) {
	tests := []struct {
		name    string
		lines   []string
		want    []uint16
		wantErr bool
	}{
		{
			name:  "vector replaces leading channels",
			lines: []string{"1100,1200,1300"},
			want:  []uint16{1100, 1200, 1300, 1500},
		},
		{
			name:  "single channel clamps",
			lines: []string{"4=2600"},
			want:  []uint16{1500, 1500, 1500, 2000},
		},
		{
			name:  "reset",
			lines: []string{"1000,1000,1000,1000", "reset"},
			want:  []uint16{1500, 1500, 1500, 1500},
		},
		{
			name:    "channel out of range",
			lines:   []string{"5=1000"},
			want:    []uint16{1500, 1500, 1500, 1500},
			wantErr: true,
		},
		{
			name:    "garbage",
			lines:   []string{"left"},
			want:    []uint16{1500, 1500, 1500, 1500},
			wantErr: true,
		},
		{
			name:  "blank line",
			lines: []string{"   "},
			want:  []uint16{1500, 1500, 1500, 1500},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSender(&bytes.Buffer{}, 4)
			var err error
			for _, l := range tt.lines {
				err = s.Apply(l)
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("Apply() error = %v, wantErr %v", err, tt.wantErr)
			}
			got := s.Channels()
			if !equal(got, tt.want) {
				t.Errorf("Channels() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSender_Hold(t *testing.T) {
	s := NewSender(&bytes.Buffer{}, 8)
	neutral := []uint16{1500, 1500, 1500, 1500, 1500, 1500, 1500, 1500}

	steps := []struct {
		line    string
		want    []uint16
		wantErr error
	}{
		{line: "+1", want: []uint16{2000, 1500, 1500, 1500, 1500, 1500, 1500, 1500}},
		{line: "+1", want: []uint16{2000, 1500, 1500, 1500, 1500, 1500, 1500, 1500}},
		{line: "-1", want: neutral},
		{line: "+4", want: neutral, wantErr: errNotArmed},
		{line: "arm", want: neutral},
		{line: "+4", want: []uint16{1500, 1500, 1500, 1700, 1500, 1500, 1500, 1500}},
		{line: "-4", want: neutral},
		// The arm was spent on the previous hold.
		{line: "+5", want: neutral, wantErr: errNotArmed},
		{line: "arm", want: neutral},
		{line: "+5", want: []uint16{1500, 1500, 1500, 1500, 1000, 1500, 1500, 1500}},
		{line: "+7", want: []uint16{1500, 1500, 1500, 1500, 1000, 1500, 2000, 1500}},
		{line: "+8", want: []uint16{1500, 1500, 1500, 1500, 1000, 1500, 2000, 1500}, wantErr: errNoPreset},
		{line: "reset", want: neutral},
		{line: "-7", want: neutral},
		{line: "+9", want: neutral, wantErr: errBadInput},
	}
	for _, st := range steps {
		if err := s.Apply(st.line); err != st.wantErr {
			t.Errorf("Apply(%q) error = %v, want %v", st.line, err, st.wantErr)
		}
		if got := s.Channels(); !equal(got, st.want) {
			t.Errorf("after %q Channels() = %v, want %v", st.line, got, st.want)
		}
	}
}

func TestSender_SetPresets(t *testing.T) {
	var p Presets
	if err := p.Set("2=1800"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := p.Set("bad"); err == nil {
		t.Error("Set(bad) error = nil")
	}
	p.Guarded = 1 << 1

	s := NewSender(&bytes.Buffer{}, 4)
	s.Apply("+1")
	s.SetPresets(p)
	if got := s.Channels(); !equal(got, []uint16{1500, 1500, 1500, 1500}) {
		t.Errorf("SetPresets() kept held channels: %v", got)
	}
	if err := s.Apply("+1"); err != errNoPreset {
		t.Errorf("Apply(+1) error = %v, want %v", err, errNoPreset)
	}
	s.Apply("arm")
	s.Apply("+2")
	if got := s.Channels(); !equal(got, []uint16{1500, 1800, 1500, 1500}) {
		t.Errorf("Channels() = %v", got)
	}
}

func TestPickPort(t *testing.T) {
	tests := []struct {
		ports []string
		want  string
	}{
		{ports: []string{"/dev/ttyS0", "/dev/ttyACM0"}, want: "/dev/ttyACM0"},
		{ports: []string{"/dev/cu.Bluetooth", "/dev/cu.usbmodem101"}, want: "/dev/cu.usbmodem101"},
		{ports: []string{"/dev/ttyS0"}, want: ""},
		{ports: nil, want: ""},
	}
	for _, tt := range tests {
		if got := pickPort(tt.ports); got != tt.want {
			t.Errorf("pickPort(%v) = %q, want %q", tt.ports, got, tt.want)
		}
	}
}
