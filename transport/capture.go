package transport

import proto "github.com/ystepanoff/ppmlink/protocol"

// Capture is the single-slot outbox between the Decoder (interrupt context)
// and the application loop. The latest frame wins: publishing over an
// unread frame replaces it.
type Capture struct {
	guard Guard
	frame proto.Frame
	ready bool

	published   bool
	publishedAt uint32 // edge timestamp (µs) of the latest publish
}

func NewCapture(guard Guard) *Capture {
	return &Capture{guard: guard}
}

// publish copies values into the outbox and marks it ready. It reports
// whether an unread frame was overwritten.
func (c *Capture) publish(values []uint16, nowUS uint32) bool {
	c.guard.Lock()
	overwrote := c.ready
	c.frame.Count = copy(c.frame.Channels[:], values)
	c.ready = true
	c.published = true
	c.publishedAt = nowUS
	c.guard.Unlock()
	return overwrote
}

// Take returns the pending frame and clears the ready flag. ok is false
// when nothing new has been published since the last Take.
func (c *Capture) Take() (f proto.Frame, ok bool) {
	c.guard.Lock()
	if c.ready {
		f, ok = c.frame, true
		c.ready = false
	}
	c.guard.Unlock()
	return f, ok
}

// Ready reports whether an unread frame is waiting.
func (c *Capture) Ready() bool {
	c.guard.Lock()
	defer c.guard.Unlock()
	return c.ready
}

// LastPublished returns the edge timestamp of the latest published frame.
// ok is false until the first frame arrives.
func (c *Capture) LastPublished() (nowUS uint32, ok bool) {
	c.guard.Lock()
	defer c.guard.Unlock()
	return c.publishedAt, c.published
}
