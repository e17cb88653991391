package protocol

// Frame holds up to MaxChannels pulse widths in microseconds.
// Only the first Count entries are meaningful.
type Frame struct {
	Channels [MaxChannels]uint16
	Count    int
}

// Values returns the meaningful part of the frame. The slice aliases f.
func (f *Frame) Values() []uint16 { return f.Channels[:f.Count] }

// Timing is the per-deployment frame geometry used by the encoder.
type Timing struct {
	FrameLenUS uint32
	PulseLenUS uint32
}

// DefaultTiming returns the reference 22.5 ms / 400 µs geometry.
func DefaultTiming() Timing {
	return Timing{FrameLenUS: FrameLenUS, PulseLenUS: PulseLenUS}
}

// Clamp limits v to [MinChannelUS, MaxChannelUS].
func Clamp(v int) uint16 {
	if v < MinChannelUS {
		return MinChannelUS
	}
	if v > MaxChannelUS {
		return MaxChannelUS
	}
	return uint16(v)
}

// ClampSlice clamps every element of src into dst and returns the number
// of elements written.
func ClampSlice(dst, src []uint16) int {
	n := min(len(dst), len(src))
	for i := 0; i < n; i++ {
		dst[i] = Clamp(int(src[i]))
	}
	return n
}

// SyncGap returns the trailing gap for a frame carrying values:
//
//	FrameLenUS - N*PulseLenUS - sum(clamped values), floored at SyncGapFloorUS.
//
// The subtraction counts every channel's pulse twice (once in PulseLenUS,
// once inside its value), so the emitted period is shorter than FrameLenUS
// when unfloored and longer when the floor applies. The arithmetic is kept
// as is; receivers in the field are tuned to it.
func SyncGap(values []uint16, t Timing) uint32 {
	used := int64(len(values)) * int64(t.PulseLenUS)
	for _, v := range values {
		used += int64(Clamp(int(v)))
	}
	rest := int64(t.FrameLenUS) - used
	if rest < SyncGapFloorUS {
		return SyncGapFloorUS
	}
	return uint32(rest)
}

// FrameBudget returns N*PulseLenUS + sum(clamped values) + SyncGap, the
// frame length the sync-gap arithmetic accounts for. It equals
// t.FrameLenUS whenever the floor does not apply.
func FrameBudget(values []uint16, t Timing) uint32 {
	budget := uint32(len(values)) * t.PulseLenUS
	for _, v := range values {
		budget += uint32(Clamp(int(v)))
	}
	return budget + SyncGap(values, t)
}
