package protocol

import "errors"

var (
	ErrNoValues      = errors.New("no channel values")
	ErrChannelCount  = errors.New("invalid channel count (valid range: 1-16)")
	ErrPortRange     = errors.New("port outside channel store")
	ErrPortOverlap   = errors.New("port overlaps an existing writer")
	ErrInvalidShift  = errors.New("invalid smoothing shift (valid range: 0-15)")
	ErrInvalidEdge   = errors.New("invalid edge (valid: rising, falling)")
	ErrNotConfigured = errors.New("no driver or endpoint configured")
)
