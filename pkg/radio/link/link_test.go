package link

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/edas/pkg/mesh/wire"
	"github.com/robotalks/edas/pkg/radio"
)

type recorder struct {
	received, sent int
	rxErrs, txErrs []error
}

func (e *recorder) PacketReceived()        { e.received++ }
func (e *recorder) PacketSent()            { e.sent++ }
func (e *recorder) RxError(err error)      { e.rxErrs = append(e.rxErrs, err) }
func (e *recorder) TxError(err error)      { e.txErrs = append(e.txErrs, err) }
func (e *recorder) CalibrationError(error) {}

// packets replays queued packets and records written ones.
type packets struct {
	in       [][]byte
	out      [][]byte
	writeErr error
}

var errDone = errors.New("done")

func (p *packets) ReadPacket() ([]byte, error) {
	if len(p.in) == 0 {
		return nil, errDone
	}
	pkt := p.in[0]
	p.in = p.in[1:]
	return pkt, nil
}

func (p *packets) WritePacket(pkt []byte) error {
	if p.writeErr != nil {
		return p.writeErr
	}
	p.out = append(p.out, append([]byte(nil), pkt...))
	return nil
}

func TestPacket(t *testing.T) {
	p := Packet{Op: OpFrame, Channel: 3, Frame: []byte{1, 2}}
	decoded, err := DecodePacket(p.Encode())
	require.NoError(t, err)
	require.Equal(t, p, decoded)

	_, err = DecodePacket([]byte{1})
	require.ErrorIs(t, err, ErrShortPacket)
	_, err = DecodePacket([]byte{7, 0})
	require.ErrorIs(t, err, ErrUnknownOp)
}

func TestRadioSend(t *testing.T) {
	rw := &packets{}
	r := NewRadio(rw)
	frame := wire.Baton(1, 2, 0).Bytes()
	require.ErrorIs(t, r.Send(frame, 2), radio.ErrNotAttached)

	var events recorder
	r.Attach(&events)
	require.NoError(t, r.BeginReceive(1))
	require.NoError(t, r.Send(frame, 2))
	require.Equal(t, 1, events.sent)
	require.Equal(t, [][]byte{
		{byte(OpTune), 1},
		append([]byte{byte(OpFrame), 2}, frame...),
	}, rw.out)

	require.ErrorIs(t, r.Send(frame[:4], 2), radio.ErrFrameLength)
	require.Error(t, r.BeginReceive(MaxChannel+1))
	rw.writeErr = errDone
	require.ErrorIs(t, r.Send(frame, 2), errDone)
	require.Len(t, events.txErrs, 2)
	require.Equal(t, 1, events.sent)
}

func TestRadioReceive(t *testing.T) {
	frame := wire.Restart(0, 4, 2).Bytes()
	rw := &packets{in: [][]byte{
		Packet{Op: OpFrame, Channel: 4, Frame: frame}.Encode(),
		{byte(OpFrame), 4, 1, 2},
		{byte(OpTune), 4},
		{0},
	}}
	r := NewRadio(rw)
	var events recorder
	r.Attach(&events)
	require.ErrorIs(t, r.Run(context.Background()), errDone)
	require.Equal(t, 1, events.received)
	require.Len(t, events.rxErrs, 3)
	got, ok := r.Receive()
	require.True(t, ok)
	require.True(t, bytes.Equal(frame, got))
}
