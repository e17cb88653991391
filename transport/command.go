package transport

import (
	"bufio"
	"io"
	"log"

	proto "github.com/ystepanoff/ppmlink/protocol"
)

// maxLineLen bounds the LineBuffer; 16 five-digit tokens plus commas fit.
const maxLineLen = 128

// CommandHandler applies command lines to the channels behind a Port.
type CommandHandler struct {
	port *Port
}

func NewCommandHandler(p *Port) *CommandHandler {
	return &CommandHandler{port: p}
}

// Handle parses line and applies it. It returns the acknowledgment to send
// back, or "" for an empty line. A line without numeric tokens is rejected
// with proto.ErrNoValues and leaves the channels untouched.
func (h *CommandHandler) Handle(line string) (string, error) {
	cmd, err := proto.ParseCommand(line, h.port.Len())
	if err != nil {
		return proto.FormatNack(err), err
	}
	if cmd.Count == 0 {
		return "", nil
	}
	n := h.port.WriteMasked(&cmd.Values, cmd.Mask)
	return proto.FormatAck(n), nil
}

// Serve reads lines from r until EOF, applies them, and writes one
// acknowledgment line per non-empty input line to w.
func (h *CommandHandler) Serve(r io.Reader, w io.Writer) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		ack, err := h.Handle(sc.Text())
		if err != nil {
			log.Printf("[Command] rejected %q: %v\r\n", sc.Text(), err)
		}
		if ack == "" {
			continue
		}
		if _, err := io.WriteString(w, ack+"\r\n"); err != nil {
			return err
		}
	}
	return sc.Err()
}

// LineBuffer assembles bytes from a polled UART into lines.
// Bytes past maxLineLen are dropped until the next line break.
type LineBuffer struct {
	buf [maxLineLen]byte
	n   int
}

// Feed appends b. When b ends a line, it returns the line without its
// terminator and ok=true.
func (lb *LineBuffer) Feed(b byte) (line string, ok bool) {
	switch b {
	case '\n':
		line = string(lb.buf[:lb.n])
		lb.n = 0
		return line, true
	case '\r':
		return "", false
	}
	if lb.n < len(lb.buf) {
		lb.buf[lb.n] = b
		lb.n++
	}
	return "", false
}
