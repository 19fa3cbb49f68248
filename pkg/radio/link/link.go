// Package link implements a radio over a packet connection to an air
// hub which relays frames between the boards tuned to a channel.
package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/edas/pkg/framework"
	"github.com/robotalks/edas/pkg/mesh/wire"
	"github.com/robotalks/edas/pkg/radio"
)

// PacketReader reads packets in bytes.
type PacketReader interface {
	ReadPacket() ([]byte, error)
}

// PacketWriter writes packets in bytes.
type PacketWriter interface {
	WritePacket([]byte) error
}

// PacketReadWriter reads/writes packets in bytes.
type PacketReadWriter interface {
	PacketReader
	PacketWriter
}

// Op is the operation of a link packet.
type Op byte

// Link operations.
const (
	// OpTune tunes the receiver of the sender to a channel.
	OpTune Op = iota + 1
	// OpFrame carries a frame on a channel.
	OpFrame
)

// MaxChannel is the highest channel a packet can address.
const MaxChannel = 0xff

var (
	// ErrShortPacket indicates a packet without header.
	ErrShortPacket = errors.New("short packet")
	// ErrUnknownOp indicates a packet with unknown operation.
	ErrUnknownOp = errors.New("unknown op")
)

// Packet is a decoded link packet: [op][channel][frame...].
type Packet struct {
	Op      Op
	Channel int
	Frame   []byte
}

// Encode encodes the packet.
func (p Packet) Encode() []byte {
	pkt := make([]byte, 2, 2+len(p.Frame))
	pkt[0], pkt[1] = byte(p.Op), byte(p.Channel)
	return append(pkt, p.Frame...)
}

// DecodePacket decodes a link packet.
func DecodePacket(pkt []byte) (Packet, error) {
	if len(pkt) < 2 {
		return Packet{}, ErrShortPacket
	}
	p := Packet{Op: Op(pkt[0]), Channel: int(pkt[1]), Frame: pkt[2:]}
	if p.Op != OpTune && p.Op != OpFrame {
		return p, fmt.Errorf("%w: %d", ErrUnknownOp, pkt[0])
	}
	return p, nil
}

// Radio is a radio.Radio over a PacketReadWriter.
type Radio struct {
	radio.Inbox
	ReadWriter PacketReadWriter

	sendLock sync.Mutex
}

// NewRadio creates a Radio.
func NewRadio(rw PacketReadWriter) *Radio {
	return &Radio{ReadWriter: rw}
}

// Send implements radio.Radio. PacketSent is raised once the packet is
// written.
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
	if err := r.write(Packet{Op: OpFrame, Channel: channel, Frame: frame}); err != nil {
		events.TxError(err)
		return err
	}
	events.PacketSent()
	return nil
}

// BeginReceive implements radio.Radio.
func (r *Radio) BeginReceive(channel int) error {
	if r.Events() == nil {
		return radio.ErrNotAttached
	}
	return r.write(Packet{Op: OpTune, Channel: channel})
}

func (r *Radio) write(p Packet) error {
	if p.Channel < 0 || p.Channel > MaxChannel {
		return fmt.Errorf("invalid channel %d", p.Channel)
	}
	r.sendLock.Lock()
	defer r.sendLock.Unlock()
	return r.ReadWriter.WritePacket(p.Encode())
}

// AddToLoop implements framework.LoopAdder.
func (r *Radio) AddToLoop(l *framework.Loop) {
	l.AddRunnable(r)
}

// Run implements framework.Runnable. It receives packets until the
// connection fails or ctx is done, in which case the connection is
// closed if it is an io.Closer.
func (r *Radio) Run(ctx context.Context) error {
	if closer, ok := r.ReadWriter.(io.Closer); ok {
		return framework.RunWithContextCloser(ctx, closer, func() error { return r.receive(ctx) })
	}
	return r.receive(ctx)
}

func (r *Radio) receive(ctx context.Context) error {
	for {
		pkt, err := r.ReadWriter.ReadPacket()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		p, err := DecodePacket(pkt)
		if err == nil && p.Op != OpFrame {
			err = fmt.Errorf("%w: %d", ErrUnknownOp, p.Op)
		}
		if err == nil && len(p.Frame) != wire.FrameLen {
			err = fmt.Errorf("%w: %d", radio.ErrFrameLength, len(p.Frame))
		}
		if err != nil {
			glog.Warningf("link: %v", err)
			if events := r.Events(); events != nil {
				events.RxError(err)
			}
			continue
		}
		r.Deliver(p.Frame)
	}
}
