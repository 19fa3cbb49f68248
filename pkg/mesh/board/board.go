// Package board implements the protocol engine of one board: token
// circulation along the tour, the consensus iterations carried out on
// token visits, wire message dispatch and watchdog restart recovery.
//
// All Board state is owned by the goroutine calling Tick. Other
// goroutines interact through Signals, the framework message queue
// (see Controller) and Status snapshots.
package board

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/jonboulle/clockwork"

	"github.com/robotalks/edas/pkg/framework"
	"github.com/robotalks/edas/pkg/mesh/consensus"
	"github.com/robotalks/edas/pkg/mesh/stack"
	"github.com/robotalks/edas/pkg/mesh/topology"
	"github.com/robotalks/edas/pkg/mesh/watchdog"
	"github.com/robotalks/edas/pkg/mesh/wire"
	"github.com/robotalks/edas/pkg/radio"
	"github.com/robotalks/edas/pkg/sensor"
)

// ErrBusy is returned when averaging is requested on a board which is
// awake, i.e. a task is already running in the mesh.
var ErrBusy = errors.New("boards are busy")

// noHolder marks an unknown next holder or starting board.
const noHolder = -1

// Power is notified when the board goes to sleep or wakes up.
type Power interface {
	Sleep()
	Wake()
}

// Config configures a Board.
type Config struct {
	ID       int
	Topology *topology.Topology
	Radio    radio.Radio
	Sensor   sensor.Sensor

	// Optional.
	Clock      clockwork.Clock
	Threshold  float32
	HopBudget  time.Duration
	StackDepth int
	Power      Power
	Waker      framework.Waker
}

// Board is the protocol engine of one board.
type Board struct {
	id        int
	topo      *topology.Topology
	radio     radio.Radio
	sensor    sensor.Sensor
	power     Power
	threshold float32

	signals  *Signals
	watchdog *watchdog.Watchdog
	engine   *consensus.Engine
	stack    *stack.Stack[State]

	state   State
	task    wire.Task
	txOp    TxOp
	pending int

	holdsToken     bool
	passCount      int
	nextHolder     int
	batonsPerCycle int
	starting       int
	tally          int
	converged      bool

	epoch          byte
	averageCommand bool
	restartCommand bool
	asleep         bool
	temperature    float32
	lastEstimate   float32
	hasEstimate    bool
}

// New validates cfg and creates a Board in InitAndSleep: the first tick
// initializes it and puts it to sleep.
func New(cfg Config) (*Board, error) {
	if cfg.Topology == nil {
		return nil, errors.New("missing topology")
	}
	if cfg.Radio == nil {
		return nil, errors.New("missing radio")
	}
	if cfg.Sensor == nil {
		return nil, errors.New("missing sensor")
	}
	if cfg.ID < 0 || cfg.ID >= cfg.Topology.Size() {
		return nil, fmt.Errorf("board %d out of range [0, %d)", cfg.ID, cfg.Topology.Size())
	}
	if cfg.Topology.Repetitions(cfg.ID) == 0 {
		return nil, fmt.Errorf("board %d is not on the tour", cfg.ID)
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = consensus.DefaultThreshold
	}
	if cfg.HopBudget <= 0 {
		cfg.HopBudget = watchdog.DefaultHopBudget
	}
	b := &Board{
		id:             cfg.ID,
		topo:           cfg.Topology,
		radio:          cfg.Radio,
		sensor:         cfg.Sensor,
		power:          cfg.Power,
		threshold:      cfg.Threshold,
		signals:        NewSignals(cfg.Waker),
		engine:         consensus.New(cfg.Topology, cfg.ID),
		stack:          stack.New(cfg.StackDepth, Invalid),
		state:          InitAndSleep,
		nextHolder:     noHolder,
		batonsPerCycle: cfg.Topology.Repetitions(cfg.ID),
		starting:       noHolder,
		temperature:    sensor.Invalid,
	}
	b.watchdog = watchdog.New(cfg.Clock,
		watchdog.Timeout(cfg.Topology.TourLen(), cfg.HopBudget),
		func() { b.signals.Raise(SigWatchdog) })
	b.radio.Attach(b.signals)
	return b, nil
}

// ID is the board id.
func (b *Board) ID() int { return b.id }

// Signals is the event register the radio reports to.
func (b *Board) Signals() *Signals { return b.signals }

// State is the current protocol state.
func (b *Board) State() State { return b.state }

// Asleep tells whether the board is sleeping.
func (b *Board) Asleep() bool { return b.asleep }

// HoldsToken tells whether the board holds the token.
func (b *Board) HoldsToken() bool { return b.holdsToken }

// Epoch is the last applied restart epoch.
func (b *Board) Epoch() byte { return b.epoch }

// Estimate is the current own consensus estimate.
func (b *Board) Estimate() float32 { return b.engine.Estimate() }

// LastEstimate is the estimate reported when the last task ended.
func (b *Board) LastEstimate() (float32, bool) { return b.lastEstimate, b.hasEstimate }

// Busy tells whether the next tick may make progress without a new
// signal.
func (b *Board) Busy() bool {
	if b.signals.Pending() != 0 || b.holdsToken {
		return true
	}
	switch b.state {
	case Idle, StartAveraging, SendStates, UpdateState:
		return false
	}
	return true
}

// TriggerAverage starts an averaging task with this board as the
// initiator. It fails with ErrBusy unless the board is asleep.
func (b *Board) TriggerAverage() error {
	if !b.asleep {
		glog.Info("boards are busy, try again in a while")
		return ErrBusy
	}
	b.wake()
	b.averageCommand = true
	b.starting = b.id
	b.holdsToken = true
	b.passCount = 1
	b.nextHolder = b.topo.FirstSuccessor(b.id)
	glog.Infof("board %d: averaging requested", b.id)
	return nil
}

// Tick runs one scheduler step: at most one event intake decision
// followed by one state execution.
func (b *Board) Tick() {
	if b.signals.TakeWatchdog() {
		b.watchdogExpired()
	}
	b.intake()
	b.execute()
}

// watchdogExpired regains the token after it was lost in the tour and
// requests a mesh-wide restart with a new epoch.
func (b *Board) watchdogExpired() {
	b.holdsToken = true
	b.nextHolder = b.topo.FirstSuccessor(b.id)
	b.restartCommand = true
	b.epoch++
	glog.Warningf("board %d: token lost, restarting with epoch %d", b.id, b.epoch)
}

func (b *Board) intake() {
	switch sig := b.signals.Take(); sig {
	case SigPacketReceived:
		b.stack.Push(b.state)
		b.state = PacketReceived
		return
	case SigPacketSent:
		b.state = PacketSent
		return
	case SigRxError:
		b.state = RxError
		return
	case SigTxError:
		b.state = TxError
		return
	case SigCalibrationError:
		b.state = CalibrationError
		return
	}

	switch {
	case b.holdsToken && b.tally == wire.SleepTally && b.passCount%b.batonsPerCycle == 0:
		b.lastEstimate, b.hasEstimate = b.engine.Estimate(), true
		glog.Infof("board %d: estimated average %.2f", b.id, b.lastEstimate)
		b.stack.Clear()
		b.temperature = sensor.Invalid
		b.task = wire.TaskNone
		b.passCount = 0
		b.converged = false
		b.stack.Push(InitAndSleep)
		b.txOp = TxGiveBaton
		b.state = Transmit
	case b.restartCommand && b.holdsToken:
		glog.Infof("board %d: restarting, epoch %d", b.id, b.epoch)
		next, starting, epoch := b.nextHolder, b.starting, b.epoch
		b.reinit()
		b.starting, b.nextHolder, b.epoch = starting, next, epoch
		b.passCount = 1
		b.holdsToken = true
		b.broadcast(TxRestart)
		b.stack.Push(RestartCompleted)
	case b.holdsToken && (b.passCount-1)%b.batonsPerCycle != 0:
		b.stack.Push(b.state)
		b.txOp = TxGiveBaton
		b.state = Transmit
	case b.averageCommand && b.holdsToken:
		glog.Infof("board %d: starting distributed averaging", b.id)
		b.averageCommand = false
		b.task = wire.TaskAveraging
		b.broadcast(TxStartTask)
		b.stack.Push(StartAveraging)
	}
}

func (b *Board) broadcast(op TxOp) {
	b.pending = b.topo.Size()
	b.txOp = op
	b.state = Transmit
}

func (b *Board) execute() {
	switch b.state {
	case RestartCompleted:
		if b.starting == b.id {
			b.averageCommand = true
		}
		b.state = Idle
	case StartAveraging:
		if b.holdsToken {
			b.measure()
			if err := b.engine.Init(b.temperature); err != nil {
				glog.Errorf("board %d: %v", b.id, err)
			}
			b.state = SendStates
			glog.Infof("board %d: averaging initialized", b.id)
		}
	case SendStates:
		if b.holdsToken {
			glog.V(1).Infof("board %d: iteration %d, sending state", b.id, b.engine.Iterations()+1)
			b.stack.Push(UpdateState)
			b.broadcast(TxSendState)
		}
	case UpdateState:
		if b.holdsToken {
			b.update()
		}
	case InitAndSleep:
		b.reinit()
		b.state = Idle
		b.sleep()
	case Transmit:
		b.transmit()
	case PacketReceived:
		b.drain()
		b.state = b.stack.Pop()
	case PacketSent:
		b.beginReceive()
		b.state = b.stack.Pop()
	case RxError:
		glog.Errorf("board %d: radio RX error: %v", b.id, b.signals.LastError())
		b.state = Idle
	case TxError:
		glog.Errorf("board %d: radio TX error: %v", b.id, b.signals.LastError())
		b.state = Idle
	case CalibrationError:
		glog.Errorf("board %d: radio calibration error: %v", b.id, b.signals.LastError())
		b.state = Idle
	case Idle:
	default:
		glog.Errorf("board %d: unexpected state %s", b.id, b.state)
		b.state = Idle
	}
}

func (b *Board) measure() {
	v, err := b.sensor.Read()
	if err != nil {
		glog.Warningf("board %d: sensor: %v", b.id, err)
		return
	}
	b.temperature = v
	glog.Infof("board %d: temperature %.2f", b.id, v)
}

func (b *Board) update() {
	delta := b.engine.Update()
	glog.V(1).Infof("board %d: state updated to %f", b.id, b.engine.Estimate())
	b.stack.Push(SendStates)
	b.txOp = TxGiveBaton
	b.state = Transmit
	within := consensus.Converged(delta, b.threshold)
	switch {
	case within && !b.converged:
		b.converged = true
		b.tally++
		glog.V(1).Infof("board %d: change below threshold, agrees to terminate", b.id)
	case !within && b.converged && b.tally != wire.SleepTally:
		b.converged = false
		b.tally--
		glog.V(1).Infof("board %d: change above threshold again", b.id)
	}
}

func (b *Board) transmit() {
	sent := b.send(b.txOp)
	if b.txOp.broadcast() {
		b.pending--
		b.stack.Push(Transmit)
		if b.pending == 0 {
			b.txOp = TxGiveBaton
		}
	} else {
		b.holdsToken = false
		if b.starting == b.id {
			b.watchdog.Arm()
		}
		glog.V(1).Infof("board %d: released token %d, tally %d", b.id, b.passCount, b.tally)
		b.tally = 0
	}
	if sent {
		b.state = Idle
	} else {
		b.state = b.stack.Pop()
	}
}

// send builds and transmits the frame of op. Broadcast frames go to
// board N-pending and only if it is adjacent.
func (b *Board) send(op TxOp) bool {
	var msg wire.Message
	if op == TxGiveBaton {
		msg = wire.Baton(b.id, b.nextHolder, b.tally)
	} else {
		dst := b.topo.Size() - b.pending
		if dst == b.id || !b.topo.Adjacent(b.id, dst) {
			return false
		}
		switch op {
		case TxRestart:
			msg = wire.Restart(b.id, dst, b.epoch)
		case TxStartTask:
			msg = wire.StartTask(b.id, dst, b.task)
		case TxSendState:
			msg = wire.ConsensusState(b.id, dst, b.engine.Estimate())
		default:
			glog.Errorf("board %d: invalid tx operation %s", b.id, op)
			return false
		}
	}
	frame := msg.Bytes()
	glog.V(2).Infof("board %d: TX %s [%s]", b.id, msg, wire.Dump(frame))
	if err := b.radio.Send(frame, msg.Dst); err != nil {
		glog.Warningf("board %d: send %s: %v", b.id, msg, err)
	}
	return true
}

func (b *Board) drain() {
	for {
		frame, ok := b.radio.Receive()
		if !ok {
			return
		}
		if len(frame) != wire.FrameLen {
			glog.Errorf("board %d: invalid length (%d) of received frame", b.id, len(frame))
			continue
		}
		if wire.Destination(frame) != b.id {
			continue
		}
		msg, err := wire.Parse(frame)
		if err != nil {
			glog.V(2).Infof("board %d: RX dropped: %v", b.id, err)
			continue
		}
		glog.V(2).Infof("board %d: RX %s [%s]", b.id, msg, wire.Dump(frame))
		b.receive(msg)
	}
}

func (b *Board) receive(msg wire.Message) {
	switch msg.Kind {
	case wire.KindRestart:
		if msg.Epoch > b.epoch {
			b.wake()
			b.restartCommand = true
			b.epoch = msg.Epoch
		}
	case wire.KindStartTask:
		b.wake()
		if msg.Task != b.task && msg.Task == wire.TaskAveraging {
			b.averageCommand = true
		}
	case wire.KindConsensusState:
		if !b.asleep {
			b.engine.Store(msg.Src, msg.State)
		}
	case wire.KindBaton:
		if !b.asleep {
			b.receiveToken(msg)
		}
	}
}

func (b *Board) receiveToken(msg wire.Message) {
	next, err := b.topo.NextHop(b.id, msg.Src)
	if err != nil {
		glog.Errorf("board %d: token dropped: %v", b.id, err)
		return
	}
	b.nextHolder = next
	if b.starting == b.id {
		b.watchdog.Cancel()
	}
	b.holdsToken = true
	b.passCount++
	b.tally = msg.Tally
	if b.tally >= b.topo.Size() && b.starting == b.id && (b.passCount-1)%b.batonsPerCycle == 0 {
		b.tally = wire.SleepTally
	}
	glog.V(1).Infof("board %d: received token %d, tally %d", b.id, b.passCount, b.tally)
}

func (b *Board) reinit() {
	b.beginReceive()
	b.temperature = sensor.Invalid
	b.averageCommand = false
	b.restartCommand = false
	b.epoch = 0
	b.stack.Clear()
	b.watchdog.Cancel()
	b.signals.Clear()
	b.holdsToken = false
	b.batonsPerCycle = b.topo.Repetitions(b.id)
	b.passCount = 0
	b.task = wire.TaskNone
	b.tally = 0
	b.converged = false
	b.starting = noHolder
	b.engine.Reset()
}

func (b *Board) beginReceive() {
	if err := b.radio.BeginReceive(b.id); err != nil {
		glog.Warningf("board %d: begin receive: %v", b.id, err)
	}
}

func (b *Board) sleep() {
	glog.Infof("board %d: going to sleep", b.id)
	b.asleep = true
	if b.power != nil {
		b.power.Sleep()
	}
}

func (b *Board) wake() {
	if !b.asleep {
		return
	}
	glog.Infof("board %d: woke up", b.id)
	b.asleep = false
	if b.power != nil {
		b.power.Wake()
	}
}
