package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/edas/pkg/framework"
	"github.com/robotalks/edas/pkg/mesh/wire"
	"github.com/robotalks/edas/pkg/radio"
)

// ErrTimeout is returned when the broker does not acknowledge in time.
var ErrTimeout = errors.New("mqtt timeout")

// ChannelTopic is the topic carrying the frames of a radio channel.
func ChannelTopic(channel int) string {
	return fmt.Sprintf("air/%d", channel)
}

// Radio is a radio.Radio publishing frames to the topic of the
// destination channel and subscribing to the topic of the channel it
// listens on.
type Radio struct {
	radio.Inbox
	Queue *Queue

	lock    sync.Mutex
	channel int
	sub     *Subscription
}

// NewRadio creates a Radio on q.
func NewRadio(q *Queue) *Radio {
	return &Radio{Queue: q, channel: -1}
}

// Send implements radio.Radio. PacketSent is raised once the broker
// accepted the frame.
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
	token := r.Queue.Pub(ChannelTopic(channel), append([]byte(nil), frame...))
	go func() {
		if err := Wait(token); err != nil {
			events.TxError(err)
			return
		}
		events.PacketSent()
	}()
	return nil
}

// BeginReceive implements radio.Radio.
func (r *Radio) BeginReceive(channel int) error {
	if r.Events() == nil {
		return radio.ErrNotAttached
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.channel == channel && r.sub != nil {
		return nil
	}
	if r.sub != nil {
		if err := r.sub.Close(); err != nil {
			glog.Warningf("unsubscribe channel %d: %v", r.channel, err)
		}
	}
	r.channel = channel
	r.sub = r.Queue.Sub(ChannelTopic(channel), r.deliver)
	return nil
}

// Close stops listening.
func (r *Radio) Close() error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.sub == nil {
		return nil
	}
	err := r.sub.Close()
	r.sub, r.channel = nil, -1
	return err
}

// AddToLoop implements framework.LoopAdder.
func (r *Radio) AddToLoop(l *framework.Loop) {
	l.AddRunnable(r)
}

// Run implements framework.Runnable. It keeps the broker connection
// until ctx is done.
func (r *Radio) Run(ctx context.Context) error {
	if err := r.Queue.Connect(); err != nil {
		return err
	}
	<-ctx.Done()
	r.Close()
	return r.Queue.Close()
}

func (r *Radio) deliver(topic string, payload []byte) {
	if len(payload) != wire.FrameLen {
		if events := r.Events(); events != nil {
			events.RxError(fmt.Errorf("%w: %d on %s", radio.ErrFrameLength, len(payload), topic))
		}
		return
	}
	r.Deliver(payload)
}
