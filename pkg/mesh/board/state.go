package board

import "fmt"

// State is a state of the board protocol machine.
type State int

// States. Invalid is what an empty continuation stack yields.
const (
	Invalid State = iota - 1
	RestartCompleted
	StartAveraging
	SendStates
	UpdateState
	InitAndSleep
	Transmit
	PacketReceived
	PacketSent
	RxError
	TxError
	CalibrationError
	Idle
)

var stateNames = []string{
	"RestartCompleted",
	"StartAveraging",
	"SendStates",
	"UpdateState",
	"InitAndSleep",
	"Transmit",
	"PacketReceived",
	"PacketSent",
	"RxError",
	"TxError",
	"CalibrationError",
	"Idle",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// TxOp selects the frame the Transmit state sends.
type TxOp int

// Transmit operations. The broadcast ones address every adjacent board,
// one per tick.
const (
	TxRestart TxOp = iota
	TxStartTask
	TxSendState
	TxGiveBaton
)

func (op TxOp) String() string {
	switch op {
	case TxRestart:
		return "restart"
	case TxStartTask:
		return "start-task"
	case TxSendState:
		return "send-state"
	case TxGiveBaton:
		return "give-baton"
	}
	return fmt.Sprintf("TxOp(%d)", int(op))
}

func (op TxOp) broadcast() bool {
	return op == TxRestart || op == TxStartTask || op == TxSendState
}
