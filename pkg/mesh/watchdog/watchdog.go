// Package watchdog detects a lost token at the board which started the
// task.
package watchdog

import (
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/jonboulle/clockwork"
)

// DefaultHopBudget is the time allowed to each token hop.
const DefaultHopBudget = time.Second

// Timeout is the time a full tour of length tourLen may take after the
// starting board released the token.
func Timeout(tourLen int, hop time.Duration) time.Duration {
	if tourLen < 2 {
		return hop
	}
	return time.Duration(tourLen-1) * hop
}

// Watchdog is a one-shot cancelable timer. The expiry callback runs in
// the clock's goroutine and must only record the event.
type Watchdog struct {
	clock    clockwork.Clock
	timeout  time.Duration
	onExpire func()

	lock  sync.Mutex
	timer clockwork.Timer
	gen   uint64
}

// New creates a disarmed Watchdog.
func New(clock clockwork.Clock, timeout time.Duration, onExpire func()) *Watchdog {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Watchdog{clock: clock, timeout: timeout, onExpire: onExpire}
}

// Timeout returns the configured timeout.
func (w *Watchdog) Timeout() time.Duration {
	return w.timeout
}

// Arm (re)starts the timer.
func (w *Watchdog) Arm() {
	w.lock.Lock()
	defer w.lock.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.gen++
	gen := w.gen
	w.timer = w.clock.AfterFunc(w.timeout, func() { w.expire(gen) })
	glog.V(2).Infof("watchdog armed for %s", w.timeout)
}

// Cancel stops the timer. It reports whether the timer was armed.
func (w *Watchdog) Cancel() bool {
	w.lock.Lock()
	defer w.lock.Unlock()
	if w.timer == nil {
		return false
	}
	w.timer.Stop()
	w.timer = nil
	w.gen++
	glog.V(2).Info("watchdog canceled")
	return true
}

// Armed tells whether the timer is running.
func (w *Watchdog) Armed() bool {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.timer != nil
}

func (w *Watchdog) expire(gen uint64) {
	w.lock.Lock()
	if gen != w.gen || w.timer == nil {
		w.lock.Unlock()
		return
	}
	w.timer = nil
	w.lock.Unlock()
	glog.Warningf("watchdog expired after %s", w.timeout)
	if w.onExpire != nil {
		w.onExpire()
	}
}
