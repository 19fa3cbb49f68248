// Package radio defines the transport a board uses to exchange frames.
//
// A radio is half-duplex and channelized: a frame is sent on the channel
// of its destination board and heard by whoever listens on that channel.
// Completion and reception are reported asynchronously through Events,
// the way an interrupt handler would.
package radio

import (
	"errors"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/edas/pkg/mesh/wire"
)

var (
	// ErrNotAttached is returned when a radio is used before Attach.
	ErrNotAttached = errors.New("radio not attached")
	// ErrClosed is returned when a radio is used after Close.
	ErrClosed = errors.New("radio closed")
	// ErrFrameLength indicates a frame of unexpected size.
	ErrFrameLength = wire.ErrFrameLength
)

// Events receives the asynchronous notifications of a radio. All methods
// must be safe to call from any goroutine and must not block.
type Events interface {
	PacketReceived()
	PacketSent()
	RxError(error)
	TxError(error)
	CalibrationError(error)
}

// Radio is the transport of one board.
type Radio interface {
	// Attach installs the event sink. It must be called before Send
	// and BeginReceive.
	Attach(Events)
	// Send starts transmitting frame on channel. Completion is reported
	// with Events.PacketSent or Events.TxError.
	Send(frame []byte, channel int) error
	// BeginReceive tunes the receiver to channel.
	BeginReceive(channel int) error
	// Receive pops the oldest held frame.
	Receive() ([]byte, bool)
}

// DefaultInboxSize is the number of frames held before the oldest
// ones are dropped.
const DefaultInboxSize = 64

// Inbox holds received frames until the board drains them, and raises
// PacketReceived for each. It is the receive half shared by all radio
// implementations.
type Inbox struct {
	Size int

	lock    sync.Mutex
	frames  [][]byte
	events  Events
	dropped int
}

// Attach installs the event sink.
func (b *Inbox) Attach(events Events) {
	b.lock.Lock()
	b.events = events
	b.lock.Unlock()
}

// Events returns the attached sink, nil if not attached.
func (b *Inbox) Events() Events {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.events
}

// Deliver queues a copy of frame and raises PacketReceived.
func (b *Inbox) Deliver(frame []byte) {
	size := b.Size
	if size <= 0 {
		size = DefaultInboxSize
	}
	b.lock.Lock()
	if len(b.frames) >= size {
		b.frames = b.frames[1:]
		b.dropped++
		glog.Warningf("inbox full, oldest frame dropped (%d total)", b.dropped)
	}
	b.frames = append(b.frames, append([]byte(nil), frame...))
	events := b.events
	b.lock.Unlock()
	if events != nil {
		events.PacketReceived()
	}
}

// Receive implements Radio.
func (b *Inbox) Receive() ([]byte, bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if len(b.frames) == 0 {
		return nil, false
	}
	frame := b.frames[0]
	b.frames[0] = nil
	b.frames = b.frames[1:]
	return frame, true
}

// Pending is the number of frames not yet received.
func (b *Inbox) Pending() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return len(b.frames)
}

// Dropped is the number of frames discarded on overflow.
func (b *Inbox) Dropped() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.dropped
}
