package link

import (
	"context"
	"sync/atomic"

	"github.com/robotalks/mkmx/pkg/mkmx"
)

// Mailbox is a FrameHandler holding at most one frame for a consumer on
// another goroutine. While it is occupied, newer frames are dropped.
type Mailbox struct {
	ch      chan *mkmx.Frame
	dropped uint64
}

// NewMailbox creates a Mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{ch: make(chan *mkmx.Frame, 1)}
}

// HandleFrame implements FrameHandler.
func (m *Mailbox) HandleFrame(_ context.Context, frame *mkmx.Frame) {
	select {
	case m.ch <- frame:
	default:
		atomic.AddUint64(&m.dropped, 1)
	}
}

// C returns the chan delivering frames.
func (m *Mailbox) C() <-chan *mkmx.Frame {
	return m.ch
}

// Take returns the waiting frame if any.
func (m *Mailbox) Take() (*mkmx.Frame, bool) {
	select {
	case frame := <-m.ch:
		return frame, true
	default:
		return nil, false
	}
}

// Dropped returns the number of frames dropped.
func (m *Mailbox) Dropped() uint64 {
	return atomic.LoadUint64(&m.dropped)
}
