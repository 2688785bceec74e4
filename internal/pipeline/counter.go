package pipeline

import "sync/atomic"

// Counter hands out increasing sequence numbers for log correlation. It is safe for
// concurrent use and carries no other meaning.
type Counter struct {
	n atomic.Uint64
}

// NewCounter returns a counter whose first value is 1.
func NewCounter() *Counter {
	return &Counter{}
}

// Next returns the next sequence number.
func (c *Counter) Next() uint64 {
	return c.n.Add(1)
}
