package protocol

// Generic PPM timing constants (platform independent). All higher layers should depend on this file.
// Every duration is in microseconds unless the name says otherwise.
//
// Frame layout on the output line (idle high):
//
//	| P low | ch0-P high | P low | ch1-P high | ... | P low | sync gap high |
//
// where P is PulseLenUS. The sync gap is computed once per frame, see SyncGap.
const (
	// Frame sizing
	FrameLenUS     = 22500 // nominal frame length
	PulseLenUS     = 400   // fixed low pulse preceding every gap
	SyncGapFloorUS = 1000  // shortest sync gap ever emitted

	// Channel magnitudes
	MinChannelUS     = 1000
	MaxChannelUS     = 2000
	NeutralChannelUS = 1500

	// Decoder classification windows
	SyncMinUS       = 3000 // dt > SyncMinUS marks a frame boundary
	ChannelWindowLo = 900  // accepted channel interval, inclusive
	ChannelWindowHi = 2100

	// Channel counts
	MaxChannels     = 16
	DefaultChannels = 8

	// Encoder timer: 16 MHz clock, /8 prescaler => 0.5 µs per tick.
	TicksPerMicrosecond = 2

	// Bridge defaults: channels 0..5 come from commands, 6 and 7 from the decoder.
	DefaultDirectChannels = 6
	DefaultSmoothingShift = 3
	MaxSmoothingShift     = 15

	// Status report interval (milliseconds)
	StatusInterval = 1000
)
