package board

import "github.com/robotalks/edas/pkg/mesh/wire"

// Status is a snapshot of a board.
type Status struct {
	ID           int
	State        State
	Asleep       bool
	HoldsToken   bool
	Task         wire.Task
	PassCount    int
	NextHolder   int
	Starting     int
	Tally        int
	Converged    bool
	Epoch        byte
	Estimate     float32
	Iterations   int
	LastEstimate float32
	HasEstimate  bool
	StackDepth   int
}

// Status takes a snapshot. It must be called from the goroutine
// running Tick.
func (b *Board) Status() Status {
	return Status{
		ID:           b.id,
		State:        b.state,
		Asleep:       b.asleep,
		HoldsToken:   b.holdsToken,
		Task:         b.task,
		PassCount:    b.passCount,
		NextHolder:   b.nextHolder,
		Starting:     b.starting,
		Tally:        b.tally,
		Converged:    b.converged,
		Epoch:        b.epoch,
		Estimate:     b.engine.Estimate(),
		Iterations:   b.engine.Iterations(),
		LastEstimate: b.lastEstimate,
		HasEstimate:  b.hasEstimate,
		StackDepth:   b.stack.Len(),
	}
}

// Summary drops the fields which change without observable progress.
func (s Status) Summary() Status {
	s.StackDepth = 0
	return s
}
