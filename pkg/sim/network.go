// Package sim runs a whole mesh of boards in one process over the mem
// radio medium with a fake clock. Boards are ticked round-robin from a
// single goroutine which makes runs deterministic.
package sim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/jonboulle/clockwork"

	"github.com/robotalks/edas/pkg/framework"
	"github.com/robotalks/edas/pkg/mesh/board"
	"github.com/robotalks/edas/pkg/mesh/topology"
	"github.com/robotalks/edas/pkg/mesh/watchdog"
	"github.com/robotalks/edas/pkg/radio/mem"
	"github.com/robotalks/edas/pkg/sensor"
)

var (
	// ErrNotSettled is returned when the mesh is still busy after the
	// maximum number of rounds.
	ErrNotSettled = errors.New("mesh did not settle")
	// ErrMultipleHolders is returned when more than one board held the
	// token at the same time.
	ErrMultipleHolders = errors.New("more than one token holder")
)

// DefaultMaxRounds bounds a Run.
const DefaultMaxRounds = 20000

// Config configures a Network.
type Config struct {
	Topology   *topology.Topology
	Readings   sensor.Table
	Threshold  float32
	HopBudget  time.Duration
	StackDepth int
	MaxRounds  int
	Reporters  []board.StatusReporter
}

// Node is one simulated board.
type Node struct {
	Board      *board.Board
	Controller *board.Controller
	Loop       *framework.Loop
}

// Network is a simulated mesh.
type Network struct {
	Config Config
	Clock  clockwork.FakeClock
	Medium *mem.Medium
	Nodes  []*Node

	// OnRound is called by Run after every round.
	OnRound func(round int)
}

// Result summarizes a run.
type Result struct {
	Rounds     int
	Restarts   int
	MaxHolders int
	FramesSent int
	Estimates  []float32
}

// New creates a Network. Every board starts in its boot state.
func New(cfg Config) (*Network, error) {
	if cfg.Topology == nil {
		cfg.Topology = topology.Default()
	}
	if cfg.Readings == nil {
		cfg.Readings = sensor.DefaultTable
	}
	if len(cfg.Readings) < cfg.Topology.Size() {
		return nil, fmt.Errorf("%d readings for %d boards", len(cfg.Readings), cfg.Topology.Size())
	}
	if cfg.HopBudget <= 0 {
		cfg.HopBudget = watchdog.DefaultHopBudget
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultMaxRounds
	}
	n := &Network{
		Config: cfg,
		Clock:  clockwork.NewFakeClock(),
		Medium: mem.NewMedium(),
	}
	for id := 0; id < cfg.Topology.Size(); id++ {
		loop := framework.NewLoop()
		loop.Clock = n.Clock
		b, err := board.New(board.Config{
			ID:         id,
			Topology:   cfg.Topology,
			Radio:      n.Medium.Radio(id),
			Sensor:     cfg.Readings.For(id),
			Clock:      n.Clock,
			Threshold:  cfg.Threshold,
			HopBudget:  cfg.HopBudget,
			StackDepth: cfg.StackDepth,
			Waker:      loop,
		})
		if err != nil {
			return nil, fmt.Errorf("board %d: %w", id, err)
		}
		ctl := board.NewController(b)
		ctl.Reporters = cfg.Reporters
		loop.Add(ctl)
		n.Nodes = append(n.Nodes, &Node{Board: b, Controller: ctl, Loop: loop})
	}
	return n, nil
}

// Round steps every board once in id order and then advances the
// clock by one loop interval.
func (n *Network) Round(ctx context.Context) {
	for _, node := range n.Nodes {
		node.Loop.Step(ctx)
	}
	n.Clock.Advance(framework.DefaultInterval)
}

// Boot runs one round so every board initializes and sleeps.
func (n *Network) Boot(ctx context.Context) {
	n.Round(ctx)
}

// Average asks board id to start averaging.
func (n *Network) Average(ctx context.Context, id int) error {
	if id < 0 || id >= len(n.Nodes) {
		return fmt.Errorf("unknown board %d", id)
	}
	node := n.Nodes[id]
	f := board.DoCommand(node.Loop, &board.AverageRequest{})
	node.Loop.Step(ctx)
	return board.Wait(ctx, f).Err
}

// Holders counts the boards holding the token.
func (n *Network) Holders() int {
	count := 0
	for _, node := range n.Nodes {
		if node.Board.HoldsToken() {
			count++
		}
	}
	return count
}

// Asleep tells whether every board sleeps.
func (n *Network) Asleep() bool {
	for _, node := range n.Nodes {
		if !node.Board.Asleep() {
			return false
		}
	}
	return true
}

// Estimates collects the estimate each board reported when it went to
// sleep, or its current estimate if it has not.
func (n *Network) Estimates() []float32 {
	estimates := make([]float32, len(n.Nodes))
	for i, node := range n.Nodes {
		if v, ok := node.Board.LastEstimate(); ok {
			estimates[i] = v
		} else {
			estimates[i] = node.Board.Estimate()
		}
	}
	return estimates
}

// Epoch is the highest restart epoch among the boards.
func (n *Network) Epoch() byte {
	var epoch byte
	for _, node := range n.Nodes {
		if e := node.Board.Epoch(); e > epoch {
			epoch = e
		}
	}
	return epoch
}

// Run rounds until every board sleeps again. A lost token is recovered
// by the initiator's watchdog once the clock passed its timeout.
func (n *Network) Run(ctx context.Context) (Result, error) {
	var res Result
	start := n.Medium.Sent()
	var epoch byte
	for res.Rounds < n.Config.MaxRounds {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		n.Round(ctx)
		res.Rounds++
		if n.OnRound != nil {
			n.OnRound(res.Rounds)
		}
		if h := n.Holders(); h > res.MaxHolders {
			res.MaxHolders = h
		}
		if e := n.Epoch(); e > epoch {
			glog.Infof("sim: restart epoch %d after %d rounds", e, res.Rounds)
			res.Restarts += int(e - epoch)
			epoch = e
		}
		if n.Asleep() {
			res.FramesSent = n.Medium.Sent() - start
			res.Estimates = n.Estimates()
			if res.MaxHolders > 1 {
				return res, ErrMultipleHolders
			}
			return res, nil
		}
	}
	res.FramesSent = n.Medium.Sent() - start
	res.Estimates = n.Estimates()
	return res, ErrNotSettled
}
