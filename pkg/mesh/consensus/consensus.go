// Package consensus implements the per-board average consensus update
// with max-degree weights.
package consensus

import (
	"fmt"

	"github.com/robotalks/edas/pkg/mesh/topology"
	"github.com/robotalks/edas/pkg/sensor"
)

// DefaultThreshold is the change below which an estimate is considered
// converged.
const DefaultThreshold float32 = 0.1

// Weights computes the weight row of board self:
// neighbors get 1/(maxDeg+1), self keeps the rest, others 0.
func Weights(topo *topology.Topology, self int) []float32 {
	n := topo.Size()
	div := float64(topo.MaxDegree() + 1)
	w := make([]float32, n)
	for j := 0; j < n; j++ {
		switch {
		case !topo.Adjacent(self, j):
			w[j] = 0
		case j == self:
			w[j] = float32(1.0 - float64(topo.Degree(self))/div)
		default:
			w[j] = float32(1.0 / div)
		}
	}
	return w
}

// Engine holds the latest known estimate of every board and updates the
// own one.
type Engine struct {
	self    int
	weights []float32
	states  []float32
	iters   int
	ready   bool
}

// New creates the engine of board self.
func New(topo *topology.Topology, self int) *Engine {
	return &Engine{
		self:    self,
		weights: Weights(topo, self),
		states:  make([]float32, topo.Size()),
	}
}

// Init starts a task with the local reading as own estimate. Estimates
// of other boards already stored are kept.
func (e *Engine) Init(reading float32) error {
	if !sensor.Valid(reading) {
		return fmt.Errorf("consensus setup: %w", sensor.ErrNoReading)
	}
	e.iters = 0
	e.states[e.self] = reading
	e.ready = true
	return nil
}

// Reset forgets all estimates.
func (e *Engine) Reset() {
	for i := range e.states {
		e.states[i] = 0
	}
	e.iters = 0
	e.ready = false
}

// Store records the estimate announced by board src. Out of range
// sources are ignored.
func (e *Engine) Store(src int, v float32) {
	if src >= 0 && src < len(e.states) {
		e.states[src] = v
	}
}

// Update computes one iteration and returns the change of the own
// estimate.
func (e *Engine) Update() float32 {
	prev := e.states[e.self]
	var next float32
	for i, w := range e.weights {
		next += w * e.states[i]
	}
	e.states[e.self] = next
	e.iters++
	return next - prev
}

// Estimate is the own current estimate.
func (e *Engine) Estimate() float32 {
	return e.states[e.self]
}

// Ready tells whether Init succeeded since the last Reset.
func (e *Engine) Ready() bool {
	return e.ready
}

// Iterations is the number of updates since Init.
func (e *Engine) Iterations() int {
	return e.iters
}

// Weights returns a copy of the weight row.
func (e *Engine) Weights() []float32 {
	return append([]float32(nil), e.weights...)
}

// States returns a copy of the known estimates.
func (e *Engine) States() []float32 {
	return append([]float32(nil), e.states...)
}

// Converged tells whether a change is within threshold.
func Converged(delta, threshold float32) bool {
	if delta < 0 {
		delta = -delta
	}
	return delta <= threshold
}
