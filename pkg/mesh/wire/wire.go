// Package wire encodes and decodes the fixed-size frames boards exchange
// over the radio.
//
// Frame layout:
//
//	byte 0     kind
//	byte 1     source board
//	byte 2     destination board
//	byte 3..   payload (epoch, task, tally or float32 estimate)
//
// Floats are carried as raw IEEE-754 bytes in the host byte order, so
// all boards of a mesh must share the same endianness.
package wire

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
)

// FrameLen is the length of every frame on the air.
const FrameLen = 16

const (
	idxKind    = 0
	idxSrc     = 1
	idxDst     = 2
	idxPayload = 3
)

// SleepTally is the tally value announcing that the task is over and
// boards may go to sleep once their share of the cycle is done.
const SleepTally = -1

var (
	// ErrFrameLength indicates a frame shorter than FrameLen.
	ErrFrameLength = errors.New("invalid frame length")
	// ErrUnknownKind indicates an unsupported message kind.
	ErrUnknownKind = errors.New("unknown message kind")
)

// Kind is the message type tag.
type Kind byte

// Message kinds.
const (
	KindRestart Kind = iota
	KindStartTask
	KindConsensusState
	KindBaton
)

var kindNames = []string{"RESTART", "START_TASK", "CONSENSUS_STATE", "BATON"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("KIND(%d)", byte(k))
}

// Task identifies a foreground task.
type Task byte

// Tasks.
const (
	TaskNone Task = iota
	TaskAveraging
)

func (t Task) String() string {
	switch t {
	case TaskNone:
		return "none"
	case TaskAveraging:
		return "averaging"
	}
	return fmt.Sprintf("task(%d)", byte(t))
}

// Message is a decoded frame. Only the payload field matching Kind is
// meaningful.
type Message struct {
	Kind  Kind
	Src   int
	Dst   int
	Epoch byte    // KindRestart
	Task  Task    // KindStartTask
	State float32 // KindConsensusState
	Tally int     // KindBaton, SleepTally or 0..127
}

// Restart creates a restart announcement.
func Restart(src, dst int, epoch byte) Message {
	return Message{Kind: KindRestart, Src: src, Dst: dst, Epoch: epoch}
}

// StartTask creates a task start announcement.
func StartTask(src, dst int, task Task) Message {
	return Message{Kind: KindStartTask, Src: src, Dst: dst, Task: task}
}

// ConsensusState creates a message carrying the estimate of src.
func ConsensusState(src, dst int, state float32) Message {
	return Message{Kind: KindConsensusState, Src: src, Dst: dst, State: state}
}

// Baton creates a token transfer carrying the completion tally.
func Baton(src, dst, tally int) Message {
	return Message{Kind: KindBaton, Src: src, Dst: dst, Tally: tally}
}

// Bytes encodes the message into a new frame.
func (m Message) Bytes() []byte {
	frame := make([]byte, FrameLen)
	m.Encode(frame)
	return frame
}

// Encode writes the message into frame which must hold at least
// FrameLen bytes. Unused payload bytes are zeroed.
func (m Message) Encode(frame []byte) {
	frame = frame[:FrameLen]
	for i := range frame {
		frame[i] = 0
	}
	frame[idxKind] = byte(m.Kind)
	frame[idxSrc] = byte(m.Src)
	frame[idxDst] = byte(m.Dst)
	switch m.Kind {
	case KindRestart:
		frame[idxPayload] = m.Epoch
	case KindStartTask:
		frame[idxPayload] = byte(m.Task)
	case KindConsensusState:
		binary.NativeEndian.PutUint32(frame[idxPayload:], math.Float32bits(m.State))
	case KindBaton:
		frame[idxPayload] = byte(int8(m.Tally))
	}
}

// Destination peeks the destination board of a frame without decoding
// the rest. It returns -1 for short frames.
func Destination(frame []byte) int {
	if len(frame) < FrameLen {
		return -1
	}
	return int(frame[idxDst])
}

// Parse decodes a frame. Bytes beyond the payload are ignored.
func Parse(frame []byte) (Message, error) {
	if len(frame) < FrameLen {
		return Message{}, fmt.Errorf("%w: %d", ErrFrameLength, len(frame))
	}
	m := Message{
		Kind: Kind(frame[idxKind]),
		Src:  int(frame[idxSrc]),
		Dst:  int(frame[idxDst]),
	}
	switch m.Kind {
	case KindRestart:
		m.Epoch = frame[idxPayload]
	case KindStartTask:
		m.Task = Task(frame[idxPayload])
	case KindConsensusState:
		m.State = math.Float32frombits(binary.NativeEndian.Uint32(frame[idxPayload:]))
	case KindBaton:
		m.Tally = int(int8(frame[idxPayload]))
	default:
		return m, fmt.Errorf("%w: %d", ErrUnknownKind, frame[idxKind])
	}
	return m, nil
}

// String formats the message for logs.
func (m Message) String() string {
	var payload string
	switch m.Kind {
	case KindRestart:
		payload = fmt.Sprintf("epoch=%d", m.Epoch)
	case KindStartTask:
		payload = fmt.Sprintf("task=%s", m.Task)
	case KindConsensusState:
		payload = fmt.Sprintf("state=%g", m.State)
	case KindBaton:
		payload = fmt.Sprintf("tally=%d", m.Tally)
	}
	return fmt.Sprintf("%s %d->%d %s", m.Kind, m.Src, m.Dst, payload)
}

// Dump formats a raw frame in hex for traces.
func Dump(frame []byte) string {
	return hex.EncodeToString(frame)
}
