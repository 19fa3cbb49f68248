package mem

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/edas/pkg/mesh/wire"
	"github.com/robotalks/edas/pkg/radio"
)

type recorder struct {
	lock     sync.Mutex
	received int
	sent     int
	errs     []error
}

func (r *recorder) PacketReceived() { r.lock.Lock(); r.received++; r.lock.Unlock() }
func (r *recorder) PacketSent()     { r.lock.Lock(); r.sent++; r.lock.Unlock() }
func (r *recorder) RxError(err error) {
	r.lock.Lock()
	r.errs = append(r.errs, err)
	r.lock.Unlock()
}
func (r *recorder) TxError(err error)          { r.RxError(err) }
func (r *recorder) CalibrationError(err error) { r.RxError(err) }

func TestMedium(t *testing.T) {
	m := NewMedium()
	var ev [3]recorder
	radios := make([]*Radio, 3)
	for i := range radios {
		radios[i] = m.Radio(i)
		require.ErrorIs(t, radios[i].BeginReceive(i), radio.ErrNotAttached)
		radios[i].Attach(&ev[i])
		require.NoError(t, radios[i].BeginReceive(i))
	}
	require.Same(t, radios[1], m.Radio(1))

	frame := wire.Baton(0, 1, 2).Bytes()
	require.NoError(t, radios[0].Send(frame, 1))
	require.Equal(t, 1, ev[0].sent)
	require.Equal(t, 1, ev[1].received)
	require.Zero(t, ev[2].received)
	got, ok := radios[1].Receive()
	require.True(t, ok)
	require.Equal(t, frame, got)

	// a sender does not hear itself.
	require.NoError(t, radios[1].Send(frame, 1))
	require.Equal(t, 1, ev[1].received)

	require.Error(t, radios[2].Send([]byte{1, 2}, 0))
	require.Len(t, ev[2].errs, 1)

	m.SetDrop(func(src int, frame []byte, channel int) bool { return src == 2 })
	require.NoError(t, radios[2].Send(frame, 0))
	require.Equal(t, 1, ev[2].sent)
	require.Zero(t, ev[0].received)
	require.Equal(t, 3, m.Sent())
	require.Equal(t, 1, m.Delivered())
	require.Equal(t, 1, m.Dropped())
}
