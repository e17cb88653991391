package protocol

import (
	"strconv"
	"strings"
)

// Command is a parsed channel update line.
//
// Line grammar: up to MaxChannels comma-separated decimal integers
// terminated by a line break, e.g. "1500,1500,2000\n". Token i targets
// channel i. Each value is clamped to [MinChannelUS, MaxChannelUS].
// A token that does not parse as an integer leaves its channel untouched,
// and so do channels past the end of a short line.
type Command struct {
	Values [MaxChannels]uint16
	Mask   uint16 // bit i set => Values[i] is an update
	Count  int    // number of set bits in Mask
}

// ParseCommand parses line, honouring at most limit tokens.
// An empty (or whitespace-only) line yields a zero Command and nil error;
// a non-empty line without any numeric token yields ErrNoValues.
func ParseCommand(line string, limit int) (Command, error) {
	var cmd Command
	line = strings.TrimSpace(line)
	if line == "" {
		return cmd, nil
	}
	if limit > MaxChannels {
		limit = MaxChannels
	}

	for i, tok := range strings.Split(line, ",") {
		if i >= limit {
			break
		}
		v, err := strconv.Atoi(strings.TrimSpace(tok))
		if err != nil {
			continue
		}
		cmd.Values[i] = Clamp(v)
		cmd.Mask |= 1 << uint(i)
		cmd.Count++
	}

	if cmd.Count == 0 {
		return cmd, ErrNoValues
	}
	return cmd, nil
}

// FormatCommand renders values as a command line, including the trailing
// newline.
func FormatCommand(values []uint16) string {
	var b strings.Builder
	for i, v := range values {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(int(v)))
	}
	b.WriteByte('\n')
	return b.String()
}

// Ack texts returned to the command channel.
const (
	AckOK    = "OK"
	AckError = "ERR"
)

// FormatAck renders the acknowledgment for a successful update of n channels.
func FormatAck(n int) string { return AckOK + " " + strconv.Itoa(n) }

// FormatNack renders the acknowledgment for a rejected line.
func FormatNack(err error) string { return AckError + " " + err.Error() }
