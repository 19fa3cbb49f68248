package board

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/edas/pkg/mesh/topology"
	"github.com/robotalks/edas/pkg/mesh/wire"
	"github.com/robotalks/edas/pkg/radio/mem"
	"github.com/robotalks/edas/pkg/sensor"
)

type nopEvents struct{}

func (nopEvents) PacketReceived()        {}
func (nopEvents) PacketSent()            {}
func (nopEvents) RxError(error)          {}
func (nopEvents) TxError(error)          {}
func (nopEvents) CalibrationError(error) {}

type powerLog []string

func (p *powerLog) Sleep() { *p = append(*p, "sleep") }
func (p *powerLog) Wake()  { *p = append(*p, "wake") }

// rig runs one board among raw peer radios which record what they hear
// and inject frames on behalf of the other boards.
type rig struct {
	t     *testing.T
	clock clockwork.FakeClock
	topo  *topology.Topology
	board *Board
	peers map[int]*mem.Radio
	power powerLog
}

func newRig(t *testing.T, id int) *rig {
	r := &rig{
		t:     t,
		clock: clockwork.NewFakeClock(),
		topo:  topology.Default(),
		peers: make(map[int]*mem.Radio),
	}
	medium := mem.NewMedium()
	for i := 0; i < r.topo.Size(); i++ {
		if i == id {
			continue
		}
		peer := medium.Radio(i)
		peer.Attach(nopEvents{})
		require.NoError(t, peer.BeginReceive(i))
		r.peers[i] = peer
	}
	b, err := New(Config{
		ID:       id,
		Topology: r.topo,
		Radio:    medium.Radio(id),
		Sensor:   sensor.DefaultTable.For(id),
		Clock:    r.clock,
		Power:    &r.power,
	})
	require.NoError(t, err)
	r.board = b
	return r
}

func (r *rig) boot() {
	require.Equal(r.t, InitAndSleep, r.board.State())
	r.board.Tick()
	require.True(r.t, r.board.Asleep())
	require.Equal(r.t, Idle, r.board.State())
}

func (r *rig) deliver(msg wire.Message) {
	require.NoError(r.t, r.peers[msg.Src].Send(msg.Bytes(), msg.Dst))
}

// settle ticks until the board has nothing to do without a new signal.
func (r *rig) settle() {
	for i := 0; i < 100; i++ {
		r.board.Tick()
		if !r.board.Busy() {
			return
		}
	}
	r.t.Fatalf("board %d did not settle, state %s", r.board.ID(), r.board.State())
}

func (r *rig) heard(peer int) []wire.Message {
	var msgs []wire.Message
	for {
		frame, ok := r.peers[peer].Receive()
		if !ok {
			return msgs
		}
		msg, err := wire.Parse(frame)
		require.NoError(r.t, err)
		msgs = append(msgs, msg)
	}
}

func (r *rig) silent() {
	for id := range r.peers {
		require.Empty(r.t, r.heard(id), "peer %d", id)
	}
}

func TestNew(t *testing.T) {
	topo := topology.Default()
	medium := mem.NewMedium()
	testCases := []struct {
		name string
		cfg  Config
	}{
		{"no topology", Config{Radio: medium.Radio(0), Sensor: sensor.Fixed(1)}},
		{"no radio", Config{Topology: topo, Sensor: sensor.Fixed(1)}},
		{"no sensor", Config{Topology: topo, Radio: medium.Radio(0)}},
		{"out of range", Config{ID: 6, Topology: topo, Radio: medium.Radio(6), Sensor: sensor.Fixed(1)}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.cfg)
			require.Error(t, err)
		})
	}
}

func TestBoot(t *testing.T) {
	r := newRig(t, 1)
	require.ErrorIs(t, r.board.TriggerAverage(), ErrBusy)
	r.boot()
	require.Equal(t, powerLog{"sleep"}, r.power)
	require.Equal(t, 2, r.board.batonsPerCycle)
	require.False(t, r.board.HoldsToken())
	r.silent()
}

func TestTriggerAverage(t *testing.T) {
	r := newRig(t, 1)
	r.boot()
	require.NoError(t, r.board.TriggerAverage())
	require.ErrorIs(t, r.board.TriggerAverage(), ErrBusy)
	require.Equal(t, powerLog{"sleep", "wake"}, r.power)
	require.True(t, r.board.HoldsToken())
	require.Equal(t, 0, r.board.nextHolder)

	r.settle()
	require.False(t, r.board.HoldsToken())
	require.Equal(t, StartAveraging, r.board.State())
	require.Equal(t, wire.TaskAveraging, r.board.task)
	require.True(t, r.board.watchdog.Armed())
	require.Zero(t, r.board.stack.Len())

	require.Equal(t, []wire.Message{
		wire.StartTask(1, 0, wire.TaskAveraging),
		wire.Baton(1, 0, 0),
	}, r.heard(0))
	require.Equal(t, []wire.Message{wire.StartTask(1, 2, wire.TaskAveraging)}, r.heard(2))
	require.Equal(t, []wire.Message{wire.StartTask(1, 5, wire.TaskAveraging)}, r.heard(5))
	r.silent()
}

func TestInitiatorIteration(t *testing.T) {
	r := newRig(t, 1)
	r.boot()
	require.NoError(t, r.board.TriggerAverage())
	r.settle()
	r.heard(0)
	r.heard(2)
	r.heard(5)

	// first return through 5 is bypassed.
	r.deliver(wire.Baton(5, 1, 0))
	r.settle()
	require.Equal(t, []wire.Message{wire.Baton(1, 2, 0)}, r.heard(2))
	require.Equal(t, StartAveraging, r.board.State())
	require.Equal(t, 2, r.board.passCount)

	// second return through 2 starts the iteration: neighbors learn the
	// reading and the token moves on.
	r.deliver(wire.ConsensusState(0, 1, 10))
	r.deliver(wire.Baton(2, 1, 0))
	r.settle()
	require.Equal(t, []wire.Message{
		wire.ConsensusState(1, 0, 20),
		wire.Baton(1, 0, 0),
	}, r.heard(0))
	require.Equal(t, []wire.Message{wire.ConsensusState(1, 2, 20)}, r.heard(2))
	require.Equal(t, []wire.Message{wire.ConsensusState(1, 5, 20)}, r.heard(5))
	require.Equal(t, UpdateState, r.board.State())
	require.Equal(t, float32(20), r.board.Estimate())

	r.deliver(wire.Baton(5, 1, 0))
	r.settle()
	r.heard(2)
	r.deliver(wire.ConsensusState(2, 1, 30))
	r.deliver(wire.ConsensusState(5, 1, 25))
	r.deliver(wire.Baton(2, 1, 0))
	r.settle()
	// 0.25*10 + 0.25*20 + 0.25*30 + 0.25*25
	require.Equal(t, float32(21.25), r.board.Estimate())
	require.Equal(t, SendStates, r.board.State())
	require.Equal(t, []wire.Message{wire.Baton(1, 0, 0)}, r.heard(0))
}

func TestScenarioWrongPredecessor(t *testing.T) {
	r := newRig(t, 1)
	r.boot()
	r.deliver(wire.StartTask(0, 1, wire.TaskAveraging))
	r.settle()
	require.False(t, r.board.Asleep())
	require.True(t, r.board.averageCommand)

	r.deliver(wire.Baton(3, 1, 0))
	r.settle()
	require.False(t, r.board.HoldsToken())
	require.Equal(t, Idle, r.board.State())
	require.Zero(t, r.board.passCount)
	require.Equal(t, wire.TaskNone, r.board.task)
	r.silent()
}

func TestScenarioRestartEpoch(t *testing.T) {
	r := newRig(t, 4)
	r.boot()
	r.deliver(wire.Restart(5, 4, 5))
	r.settle()
	require.Equal(t, byte(5), r.board.Epoch())
	require.True(t, r.board.restartCommand)
	require.False(t, r.board.Asleep())

	r.board.restartCommand = false
	r.deliver(wire.Restart(5, 4, 5))
	r.settle()
	require.Equal(t, byte(5), r.board.Epoch())
	require.False(t, r.board.restartCommand)

	r.deliver(wire.Restart(5, 4, 6))
	r.settle()
	require.Equal(t, byte(6), r.board.Epoch())
	require.True(t, r.board.restartCommand)
	r.silent()
}

func TestRestartRelay(t *testing.T) {
	r := newRig(t, 4)
	r.boot()
	r.deliver(wire.Restart(5, 4, 3))
	r.deliver(wire.Baton(5, 4, 0))
	r.settle()
	// board 4 only neighbors 5.
	require.Equal(t, []wire.Message{
		wire.Restart(4, 5, 3),
		wire.Baton(4, 5, 0),
	}, r.heard(5))
	require.Equal(t, byte(3), r.board.Epoch())
	require.False(t, r.board.restartCommand)
	require.False(t, r.board.averageCommand)
	require.False(t, r.board.HoldsToken())
	require.Equal(t, 1, r.board.passCount)
	r.silent()
}

func TestBypass(t *testing.T) {
	r := newRig(t, 5)
	r.boot()
	r.deliver(wire.StartTask(0, 5, wire.TaskAveraging))
	r.deliver(wire.Baton(0, 5, 0))
	r.settle()
	for _, id := range []int{0, 1} {
		require.Equal(t, []wire.Message{wire.StartTask(5, id, wire.TaskAveraging)}, r.heard(id))
	}
	require.Equal(t, []wire.Message{
		wire.StartTask(5, 4, wire.TaskAveraging),
		wire.Baton(5, 4, 0),
	}, r.heard(4))
	require.False(t, r.board.watchdog.Armed())

	r.deliver(wire.Baton(4, 5, 3))
	r.settle()
	require.Equal(t, []wire.Message{wire.Baton(5, 1, 3)}, r.heard(1))
	require.Equal(t, StartAveraging, r.board.State())
	r.silent()
}

func TestSleepOnSentinel(t *testing.T) {
	r := newRig(t, 3)
	r.boot()
	r.deliver(wire.StartTask(2, 3, wire.TaskAveraging))
	r.deliver(wire.ConsensusState(2, 3, 18))
	r.settle()
	require.Equal(t, []float32{0, 0, 18, 0, 0, 0}, r.board.engine.States())

	r.deliver(wire.Baton(2, 3, wire.SleepTally))
	r.settle()
	require.Equal(t, []wire.Message{wire.Baton(3, 2, wire.SleepTally)}, r.heard(2))
	require.True(t, r.board.Asleep())
	require.Equal(t, Idle, r.board.State())
	require.False(t, r.board.HoldsToken())
	require.Zero(t, r.board.tally)
	_, ok := r.board.LastEstimate()
	require.True(t, ok)
	require.Equal(t, powerLog{"sleep", "wake", "sleep"}, r.power)

	// asleep boards ignore estimates and tokens.
	r.deliver(wire.ConsensusState(2, 3, 18))
	r.deliver(wire.Baton(2, 3, 0))
	r.settle()
	require.Equal(t, make([]float32, 6), r.board.engine.States())
	require.False(t, r.board.HoldsToken())
	r.silent()
}

func TestSentinelPromotion(t *testing.T) {
	r := newRig(t, 1)
	r.boot()
	require.NoError(t, r.board.TriggerAverage())
	r.settle()
	r.heard(0)
	r.heard(2)
	r.heard(5)

	r.deliver(wire.Baton(5, 1, 6))
	r.settle()
	require.Equal(t, []wire.Message{wire.Baton(1, 2, 6)}, r.heard(2))
	require.True(t, r.board.watchdog.Armed())

	r.deliver(wire.Baton(2, 1, 6))
	r.board.Tick()
	require.Equal(t, wire.SleepTally, r.board.tally)
	require.False(t, r.board.watchdog.Armed())
	r.settle()
	require.False(t, r.board.Asleep())

	// the next return completes the share of the initiator.
	r.deliver(wire.Baton(5, 1, wire.SleepTally))
	r.settle()
	require.True(t, r.board.Asleep())
	msgs := r.heard(2)
	require.Equal(t, wire.Baton(1, 2, wire.SleepTally), msgs[len(msgs)-1])
	require.False(t, r.board.watchdog.Armed())
}

func TestWatchdogRestart(t *testing.T) {
	r := newRig(t, 1)
	r.boot()
	require.NoError(t, r.board.TriggerAverage())
	r.settle()
	r.heard(0)
	r.heard(2)
	r.heard(5)

	r.clock.Advance(watchdogTimeout(r.topo))
	require.Eventually(t, func() bool {
		return r.board.Signals().Pending()&SigWatchdog != 0
	}, time.Second, time.Millisecond)
	r.settle()

	require.Equal(t, byte(1), r.board.Epoch())
	require.True(t, r.board.averageCommand)
	require.False(t, r.board.HoldsToken())
	require.Equal(t, 1, r.board.starting)
	require.Equal(t, Idle, r.board.State())
	require.Equal(t, []wire.Message{
		wire.Restart(1, 0, 1),
		wire.Baton(1, 0, 0),
	}, r.heard(0))
	require.Equal(t, []wire.Message{wire.Restart(1, 2, 1)}, r.heard(2))
	require.Equal(t, []wire.Message{wire.Restart(1, 5, 1)}, r.heard(5))
	require.True(t, r.board.watchdog.Armed())

	// token returns: averaging starts over.
	r.deliver(wire.Baton(5, 1, 0))
	r.settle()
	r.deliver(wire.Baton(2, 1, 0))
	r.settle()
	require.Equal(t, []wire.Message{
		wire.StartTask(1, 0, wire.TaskAveraging),
		wire.Baton(1, 0, 0),
	}, r.heard(0))
}

func watchdogTimeout(topo *topology.Topology) time.Duration {
	return time.Duration(topo.TourLen()-1) * time.Second
}

func TestErrorStates(t *testing.T) {
	failure := errors.New("radio failure")
	testCases := []struct {
		name  string
		raise func(*Signals)
	}{
		{"rx error", func(s *Signals) { s.RxError(failure) }},
		{"tx error", func(s *Signals) { s.TxError(failure) }},
		{"calibration error", func(s *Signals) { s.CalibrationError(failure) }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := newRig(t, 1)
			r.boot()
			r.board.state = Transmit
			tc.raise(r.board.Signals())
			require.Equal(t, failure, r.board.Signals().LastError())
			r.board.Tick()
			require.Equal(t, Idle, r.board.State())
			require.Zero(t, r.board.Signals().Pending())
			r.silent()
		})
	}
}

func TestUnexpectedState(t *testing.T) {
	for _, state := range []State{State(42), Invalid} {
		r := newRig(t, 1)
		r.boot()
		r.board.state = state
		r.board.Tick()
		require.Equal(t, Idle, r.board.State(), "from %s", state)
	}
}
