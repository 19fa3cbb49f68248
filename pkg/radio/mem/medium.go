// Package mem is an in-process radio medium for simulations and tests.
// Delivery is synchronous: when Send returns, every board listening on
// the channel holds the frame and the sender got PacketSent.
package mem

import (
	"fmt"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/edas/pkg/mesh/wire"
	"github.com/robotalks/edas/pkg/radio"
)

// DropFunc decides whether a frame sent by src on channel is lost.
type DropFunc func(src int, frame []byte, channel int) bool

// Medium is the shared air of a set of radios.
type Medium struct {
	lock   sync.Mutex
	radios map[int]*Radio
	drop   DropFunc

	sent      int
	delivered int
	dropped   int
}

// NewMedium creates an empty Medium.
func NewMedium() *Medium {
	return &Medium{radios: make(map[int]*Radio)}
}

// SetDrop installs a fault injector. nil disables it.
func (m *Medium) SetDrop(fn DropFunc) {
	m.lock.Lock()
	m.drop = fn
	m.lock.Unlock()
}

// Radio returns the radio of board id, creating it on first use.
func (m *Medium) Radio(id int) *Radio {
	m.lock.Lock()
	defer m.lock.Unlock()
	r := m.radios[id]
	if r == nil {
		r = &Radio{id: id, medium: m, channel: -1}
		m.radios[id] = r
	}
	return r
}

// Sent is the number of frames transmitted so far.
func (m *Medium) Sent() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.sent
}

// Delivered is the number of frames handed to listeners.
func (m *Medium) Delivered() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.delivered
}

// Dropped is the number of frames lost by the fault injector.
func (m *Medium) Dropped() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.dropped
}

func (m *Medium) transmit(src int, frame []byte, channel int) {
	m.lock.Lock()
	m.sent++
	if m.drop != nil && m.drop(src, frame, channel) {
		m.dropped++
		m.lock.Unlock()
		glog.V(2).Infof("mem: frame from %d on %d lost: %s", src, channel, wire.Dump(frame))
		return
	}
	var listeners []*Radio
	for id, r := range m.radios {
		if id != src && r.listening(channel) {
			listeners = append(listeners, r)
		}
	}
	m.delivered += len(listeners)
	m.lock.Unlock()
	for _, r := range listeners {
		r.Deliver(frame)
	}
}

// Radio is the radio of one board on a Medium.
type Radio struct {
	radio.Inbox

	id     int
	medium *Medium

	lock    sync.Mutex
	channel int
}

// ID is the board id the radio belongs to.
func (r *Radio) ID() int {
	return r.id
}

// BeginReceive implements radio.Radio.
func (r *Radio) BeginReceive(channel int) error {
	if r.Events() == nil {
		return radio.ErrNotAttached
	}
	r.lock.Lock()
	r.channel = channel
	r.lock.Unlock()
	return nil
}

// Send implements radio.Radio. The receiver of the sender stays tuned
// to its channel.
func (r *Radio) Send(frame []byte, channel int) error {
	events := r.Events()
	if events == nil {
		return radio.ErrNotAttached
	}
	if len(frame) != wire.FrameLen {
		err := fmt.Errorf("%w: %d", radio.ErrFrameLength, len(frame))
		events.TxError(err)
		return err
	}
	r.medium.transmit(r.id, frame, channel)
	events.PacketSent()
	return nil
}

func (r *Radio) listening(channel int) bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.channel >= 0 && r.channel == channel
}
