package board

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/edas/pkg/framework"
	"github.com/robotalks/edas/pkg/mesh/topology"
	"github.com/robotalks/edas/pkg/radio/mem"
	"github.com/robotalks/edas/pkg/sensor"
)

type statusRecorder []Status

func (r *statusRecorder) ReportStatus(_ context.Context, s Status) error {
	*r = append(*r, s)
	return nil
}

func TestController(t *testing.T) {
	ctx := context.Background()
	loop := framework.NewLoop()
	b, err := New(Config{
		ID:       3,
		Topology: topology.Default(),
		Radio:    mem.NewMedium().Radio(3),
		Sensor:   sensor.Fixed(20),
		Waker:    loop,
	})
	require.NoError(t, err)
	ctl := NewController(b)
	var reports statusRecorder
	ctl.Reporters = append(ctl.Reporters, &reports)
	loop.Add(ctl)

	_, ok := ctl.LastStatus()
	require.False(t, ok)

	// commands run before the tick: the board is not asleep yet.
	f := DoCommand(loop, &AverageRequest{})
	loop.Step(ctx)
	require.ErrorIs(t, Wait(ctx, f).Err, ErrBusy)
	s, ok := ctl.LastStatus()
	require.True(t, ok)
	require.True(t, s.Asleep)
	require.Equal(t, Idle, s.State)
	require.Len(t, reports, 1)

	f = DoCommand(loop, &StatusQuery{})
	loop.Step(ctx)
	res := Wait(ctx, f)
	require.NoError(t, res.Err)
	require.Equal(t, 3, res.Msg.(*StatusReply).Status.ID)
	require.Len(t, reports, 1)

	f = DoCommand(loop, &AverageRequest{})
	loop.Step(ctx)
	require.NoError(t, Wait(ctx, f).Err)
	s, _ = ctl.LastStatus()
	require.True(t, s.HoldsToken)
	require.False(t, s.Asleep)
	require.Equal(t, 3, s.Starting)
	require.Len(t, reports, 2)

	f = DoCommand(loop, &StatusReply{})
	loop.Step(ctx)
	require.ErrorIs(t, Wait(ctx, f).Err, ErrUnknownCommand)
}
