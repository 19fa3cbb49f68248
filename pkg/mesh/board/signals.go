package board

import (
	"sync"
	"sync/atomic"

	"github.com/robotalks/edas/pkg/framework"
)

// Signal is one edge-triggered event raised outside the tick.
type Signal uint32

// Transport signals in intake priority order, then the watchdog.
const (
	SigPacketReceived Signal = 1 << iota
	SigPacketSent
	SigRxError
	SigTxError
	SigCalibrationError
	SigWatchdog

	transportSignals = SigPacketReceived | SigPacketSent | SigRxError | SigTxError | SigCalibrationError
)

func (s Signal) String() string {
	switch s {
	case SigPacketReceived:
		return "packet-received"
	case SigPacketSent:
		return "packet-sent"
	case SigRxError:
		return "rx-error"
	case SigTxError:
		return "tx-error"
	case SigCalibrationError:
		return "calibration-error"
	case SigWatchdog:
		return "watchdog"
	case 0:
		return "none"
	}
	return "multiple"
}

// Signals is the register the radio and the watchdog write to and the
// tick consumes from. It implements radio.Events.
type Signals struct {
	bits  atomic.Uint32
	waker framework.Waker

	lock    sync.Mutex
	lastErr error
}

// NewSignals creates a register. waker, if not nil, is triggered on
// every raised signal.
func NewSignals(waker framework.Waker) *Signals {
	return &Signals{waker: waker}
}

// Raise sets sig.
func (s *Signals) Raise(sig Signal) {
	for {
		old := s.bits.Load()
		if s.bits.CompareAndSwap(old, old|uint32(sig)) {
			break
		}
	}
	if s.waker != nil {
		s.waker.TriggerNext()
	}
}

// Pending returns the raised signals without consuming them.
func (s *Signals) Pending() Signal {
	return Signal(s.bits.Load())
}

// Take consumes the highest priority transport signal. It returns 0
// if none is raised.
func (s *Signals) Take() Signal {
	for {
		old := s.bits.Load()
		pending := old & uint32(transportSignals)
		if pending == 0 {
			return 0
		}
		sig := pending & -pending
		if s.bits.CompareAndSwap(old, old&^sig) {
			return Signal(sig)
		}
	}
}

// TakeWatchdog consumes the watchdog signal.
func (s *Signals) TakeWatchdog() bool {
	for {
		old := s.bits.Load()
		if old&uint32(SigWatchdog) == 0 {
			return false
		}
		if s.bits.CompareAndSwap(old, old&^uint32(SigWatchdog)) {
			return true
		}
	}
}

// Clear drops all raised signals.
func (s *Signals) Clear() {
	s.bits.Store(0)
	s.lock.Lock()
	s.lastErr = nil
	s.lock.Unlock()
}

// LastError is the error carried by the latest error signal.
func (s *Signals) LastError() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.lastErr
}

func (s *Signals) raiseErr(sig Signal, err error) {
	s.lock.Lock()
	s.lastErr = err
	s.lock.Unlock()
	s.Raise(sig)
}

// PacketReceived implements radio.Events.
func (s *Signals) PacketReceived() { s.Raise(SigPacketReceived) }

// PacketSent implements radio.Events.
func (s *Signals) PacketSent() { s.Raise(SigPacketSent) }

// RxError implements radio.Events.
func (s *Signals) RxError(err error) { s.raiseErr(SigRxError, err) }

// TxError implements radio.Events.
func (s *Signals) TxError(err error) { s.raiseErr(SigTxError, err) }

// CalibrationError implements radio.Events.
func (s *Signals) CalibrationError(err error) { s.raiseErr(SigCalibrationError, err) }
