package wire

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	testCases := []struct {
		name   string
		msg    Message
		expect []byte
	}{
		{"restart", Restart(1, 2, 6), []byte{0, 1, 2, 6}},
		{"start task", StartTask(5, 0, TaskAveraging), []byte{1, 5, 0, 1}},
		{"baton", Baton(3, 2, 4), []byte{3, 3, 2, 4}},
		{"baton sleep", Baton(2, 3, SleepTally), []byte{3, 2, 3, 0xff}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			frame := tc.msg.Bytes()
			require.Len(t, frame, FrameLen)
			require.Equal(t, tc.expect, frame[:len(tc.expect)])
			for _, b := range frame[len(tc.expect):] {
				require.Zero(t, b)
			}
		})
	}
}

func TestConsensusStateBytes(t *testing.T) {
	frame := ConsensusState(4, 5, 21.5).Bytes()
	require.Equal(t, []byte{2, 4, 5}, frame[:3])
	require.Equal(t, math.Float32bits(21.5), binary.NativeEndian.Uint32(frame[3:7]))

	m, err := Parse(frame)
	require.NoError(t, err)
	require.Equal(t, float32(21.5), m.State)
	require.Equal(t, 4, m.Src)
	require.Equal(t, 5, m.Dst)
}

func TestParse(t *testing.T) {
	frame := make([]byte, FrameLen+4)
	frame[0], frame[1], frame[2], frame[3] = 3, 1, 0, 0xff
	frame[FrameLen+1] = 0x55
	m, err := Parse(frame)
	require.NoError(t, err)
	require.Equal(t, Baton(1, 0, SleepTally), m)

	_, err = Parse(frame[:FrameLen-1])
	require.ErrorIs(t, err, ErrFrameLength)

	frame[0] = 9
	_, err = Parse(frame)
	require.ErrorIs(t, err, ErrUnknownKind)

	require.Equal(t, 0, Destination(frame))
	require.Equal(t, -1, Destination(nil))
}

func TestString(t *testing.T) {
	require.Equal(t, "BATON 1->0 tally=-1", Baton(1, 0, SleepTally).String())
	require.Equal(t, "START_TASK 5->0 task=averaging", StartTask(5, 0, TaskAveraging).String())
	require.Equal(t, "KIND(7)", Kind(7).String())
}

func TestBatonTallyRange(t *testing.T) {
	for _, tally := range []int{0, 6, math.MaxInt8} {
		m, err := Parse(Baton(0, 1, tally).Bytes())
		require.NoError(t, err)
		require.Equal(t, tally, m.Tally)
	}
}
