package protocol

import "testing"

func TestClamp(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want uint16
	}{
		{name: "below range", in: 500, want: 1000},
		{name: "negative", in: -20, want: 1000},
		{name: "lower bound", in: 1000, want: 1000},
		{name: "neutral", in: 1500, want: 1500},
		{name: "upper bound", in: 2000, want: 2000},
		{name: "above range", in: 3000, want: 2000},
		{name: "way above", in: 1 << 20, want: 2000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clamp(tt.in); got != tt.want {
				t.Errorf("Clamp(%d) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestSyncGap(t *testing.T) {
	timing := DefaultTiming()

	tests := []struct {
		name   string
		values []uint16
		want   uint32
	}{
		{
			name:   "eight neutral channels",
			values: []uint16{1500, 1500, 1500, 1500, 1500, 1500, 1500, 1500},
			want:   22500 - 8*400 - 8*1500, // 7300
		},
		{
			name:   "eight full-scale channels",
			values: []uint16{2000, 2000, 2000, 2000, 2000, 2000, 2000, 2000},
			want:   22500 - 8*400 - 8*2000, // 3300
		},
		{
			name:   "out of range values are clamped first",
			values: []uint16{500, 3000},
			want:   22500 - 2*400 - 1000 - 2000,
		},
		{
			name: "sixteen full-scale channels hit the floor",
			values: []uint16{
				2000, 2000, 2000, 2000, 2000, 2000, 2000, 2000,
				2000, 2000, 2000, 2000, 2000, 2000, 2000, 2000,
			},
			want: SyncGapFloorUS,
		},
		{
			name:   "no channels",
			values: nil,
			want:   22500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SyncGap(tt.values, timing); got != tt.want {
				t.Errorf("SyncGap() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFrameBudget(t *testing.T) {
	timing := DefaultTiming()

	// Sweep channel counts and magnitudes; the budget is exact until the
	// floor takes over, after which it grows past FrameLenUS.
	for n := 1; n <= MaxChannels; n++ {
		for _, v := range []uint16{1000, 1250, 1500, 1750, 2000} {
			values := make([]uint16, n)
			for i := range values {
				values[i] = v
			}

			used := uint32(n)*PulseLenUS + uint32(n)*uint32(v)
			want := uint32(FrameLenUS)
			if used > FrameLenUS-SyncGapFloorUS {
				want = used + SyncGapFloorUS
			}

			if got := FrameBudget(values, timing); got != want {
				t.Errorf("FrameBudget(n=%d, v=%d) = %d, want %d", n, v, got, want)
			}
		}
	}
}

func TestFrameValues(t *testing.T) {
	f := Frame{Count: 3}
	f.Channels[0], f.Channels[1], f.Channels[2], f.Channels[3] = 1000, 1100, 1200, 1300

	got := f.Values()
	if len(got) != 3 {
		t.Fatalf("len(Values()) = %d, want 3", len(got))
	}
	if got[2] != 1200 {
		t.Errorf("Values()[2] = %d, want 1200", got[2])
	}
}
