package mqtt

import (
	"context"
	"testing"

	"github.com/golang/protobuf/proto"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/edas/pkg/mesh/board"
	"github.com/robotalks/edas/pkg/msgs"
)

func TestBoardFromTopic(t *testing.T) {
	id, ok := BoardFromTopic(StatusTopic(12))
	require.True(t, ok)
	require.Equal(t, 12, id)
	_, ok = BoardFromTopic("boards/x/meta")
	require.False(t, ok)
	_, ok = BoardFromTopic("air/1")
	require.False(t, ok)
}

func TestRegistrarMonitor(t *testing.T) {
	broker := newFakeBroker()
	meta := &msgs.BoardMeta{Id: 2, MachineId: "m", Neighbors: []int32{1, 3}, Online: true}
	data, err := proto.Marshal(meta)
	require.NoError(t, err)
	r := &Registrar{
		Queue:    &Queue{Client: broker.client(), TopicPrefix: "edas/"},
		Meta:     meta,
		metaData: data,
	}
	r.onConnected()

	var metas []*msgs.BoardMeta
	var statuses []*msgs.BoardStatus
	var gone []int
	m := &Monitor{
		Queue:    &Queue{Client: broker.client(), TopicPrefix: "edas/"},
		OnMeta:   func(m *msgs.BoardMeta) { metas = append(metas, m) },
		OnStatus: func(s *msgs.BoardStatus) { statuses = append(statuses, s) },
		OnGone:   func(id int) { gone = append(gone, id) },
	}
	require.Len(t, m.Subscribe(), 2)
	require.Len(t, metas, 1)
	require.Equal(t, meta, metas[0])

	require.NoError(t, r.ReportStatus(context.Background(), board.Status{ID: 2, HoldsToken: true, Tally: 3}))
	require.Len(t, statuses, 1)
	require.Equal(t, int32(2), statuses[0].Id)
	require.True(t, statuses[0].HoldsToken)
	require.Equal(t, int32(3), statuses[0].Tally)

	broker.publish("edas/"+MetaTopic(2), nil, true)
	require.Equal(t, []int{2}, gone)
	broker.publish("edas/"+StatusTopic(2), []byte{0xff}, false)
	require.Len(t, statuses, 1)
}

func TestNewRegistrar(t *testing.T) {
	r, err := NewRegistrar("mqtt://localhost:1883/edas", &msgs.BoardMeta{Id: 5})
	require.NoError(t, err)
	require.Equal(t, "edas/", r.Queue.TopicPrefix)
	_, err = NewRegistrar("mqtt://bad:%zz", &msgs.BoardMeta{Id: 5})
	require.Error(t, err)
}
