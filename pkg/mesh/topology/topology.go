// Package topology describes the fixed mesh of boards: who can hear whom
// and the tour the token travels along.
package topology

import (
	"errors"
	"fmt"
	"math"
)

// MaxBoards bounds the mesh size. The completion tally travels as a
// signed byte and must be able to reach the number of boards.
const MaxBoards = math.MaxInt8

// ErrTooManyBoards is reported for graphs larger than MaxBoards.
var ErrTooManyBoards = errors.New("too many boards")

// ErrNoNextHop is reported when a token arrives from a board which is
// never a predecessor of the receiving board in the tour.
var ErrNoNextHop = errors.New("no valid next hop")

// Topology is the immutable adjacency graph and token tour of a mesh.
type Topology struct {
	graph [][]bool
	tour  []int
}

// RuleError reports a tour entry breaking one of the tour rules.
type RuleError struct {
	Rule  int
	Index int
	Msg   string
}

// Error implements error.
func (e *RuleError) Error() string {
	return fmt.Sprintf("tour rule %d violated at %d: %s", e.Rule, e.Index, e.Msg)
}

// New validates and creates a Topology. graph and tour are copied.
func New(graph [][]bool, tour []int) (*Topology, error) {
	t := &Topology{
		graph: make([][]bool, len(graph)),
		tour:  append([]int(nil), tour...),
	}
	for i, row := range graph {
		t.graph[i] = append([]bool(nil), row...)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Must is New which panics on invalid input. Use it for built-in
// configurations only.
func Must(graph [][]bool, tour []int) *Topology {
	t, err := New(graph, tour)
	if err != nil {
		panic(err)
	}
	return t
}

// Default returns the built-in 6-board mesh.
func Default() *Topology {
	return Must([][]bool{
		{true, true, false, false, false, true},
		{true, true, true, false, false, true},
		{false, true, true, true, false, false},
		{false, false, true, true, false, false},
		{false, false, false, false, true, true},
		{true, true, false, false, true, true},
	}, []int{3, 2, 1, 0, 5, 4, 5, 1, 2})
}

// Validate checks the graph shape and the three tour rules:
// every board is visited, consecutive boards (wrapping) are adjacent and
// the predecessor of an occurrence determines its successor.
func (t *Topology) Validate() error {
	n := len(t.graph)
	if n == 0 {
		return errors.New("empty graph")
	}
	if n > MaxBoards {
		return fmt.Errorf("%w: %d, at most %d", ErrTooManyBoards, n, MaxBoards)
	}
	for i, row := range t.graph {
		if len(row) != n {
			return fmt.Errorf("graph row %d has %d columns, want %d", i, len(row), n)
		}
		if !row[i] {
			return fmt.Errorf("graph[%d][%d] must be true", i, i)
		}
		for j := range row {
			if row[j] != t.graph[j][i] {
				return fmt.Errorf("graph is not symmetric at (%d, %d)", i, j)
			}
		}
	}
	if len(t.tour) < 2 {
		return &RuleError{Rule: 1, Index: 0, Msg: "tour too short"}
	}
	visited := make([]bool, n)
	for i, b := range t.tour {
		if b < 0 || b >= n {
			return &RuleError{Rule: 1, Index: i, Msg: fmt.Sprintf("unknown board %d", b)}
		}
		visited[b] = true
	}
	for b, ok := range visited {
		if !ok {
			return &RuleError{Rule: 1, Index: -1, Msg: fmt.Sprintf("board %d never visited", b)}
		}
	}
	l := len(t.tour)
	for i, b := range t.tour {
		next := t.tour[(i+1)%l]
		if b == next {
			return &RuleError{Rule: 2, Index: i, Msg: fmt.Sprintf("board %d passes to itself", b)}
		}
		if !t.graph[b][next] {
			return &RuleError{Rule: 2, Index: i, Msg: fmt.Sprintf("boards %d and %d are not adjacent", b, next)}
		}
	}
	type hop struct{ from, at int }
	succ := make(map[hop]int)
	for i, b := range t.tour {
		h := hop{from: t.tour[(i+l-1)%l], at: b}
		next := t.tour[(i+1)%l]
		if prev, ok := succ[h]; ok && prev != next {
			return &RuleError{Rule: 3, Index: i,
				Msg: fmt.Sprintf("board %d from %d continues to both %d and %d", b, h.from, prev, next)}
		}
		succ[h] = next
	}
	return nil
}

// Size is the number of boards N.
func (t *Topology) Size() int {
	return len(t.graph)
}

// TourLen is the length L of the tour.
func (t *Topology) TourLen() int {
	return len(t.tour)
}

// Tour returns a copy of the tour.
func (t *Topology) Tour() []int {
	return append([]int(nil), t.tour...)
}

// Graph returns a copy of the adjacency matrix.
func (t *Topology) Graph() [][]bool {
	g := make([][]bool, len(t.graph))
	for i, row := range t.graph {
		g[i] = append([]bool(nil), row...)
	}
	return g
}

// Adjacent tells whether i and j can hear each other. Every board is
// adjacent to itself. Out of range ids are never adjacent.
func (t *Topology) Adjacent(i, j int) bool {
	n := len(t.graph)
	if i < 0 || j < 0 || i >= n || j >= n {
		return false
	}
	return t.graph[i][j]
}

// Degree counts the neighbors of b, excluding b itself.
func (t *Topology) Degree(b int) int {
	deg := 0
	for j, adj := range t.graph[b] {
		if adj && j != b {
			deg++
		}
	}
	return deg
}

// MaxDegree is the largest Degree in the graph.
func (t *Topology) MaxDegree() int {
	max := 0
	for b := range t.graph {
		if d := t.Degree(b); d > max {
			max = d
		}
	}
	return max
}

// Repetitions counts the occurrences of b in the tour, which is the
// number of token receipts b sees per cycle.
func (t *Topology) Repetitions(b int) int {
	count := 0
	for _, id := range t.tour {
		if id == b {
			count++
		}
	}
	return count
}

// FirstSuccessor is the board following the first occurrence of b in
// the tour (wrapping). It is where a board starting a cycle sends the
// token. Returns -1 if b is not in the tour.
func (t *Topology) FirstSuccessor(b int) int {
	for i, id := range t.tour {
		if id == b {
			return t.tour[(i+1)%len(t.tour)]
		}
	}
	return -1
}

// NextHop finds where self forwards a token received from from.
// The wrap-around occurrences are checked first, then the inner ones
// in tour order.
func (t *Topology) NextHop(self, from int) (int, error) {
	l := len(t.tour)
	switch {
	case t.tour[l-1] == from && t.tour[0] == self:
		return t.tour[1], nil
	case t.tour[l-2] == from && t.tour[l-1] == self:
		return t.tour[0], nil
	}
	for i := 1; i < l-1; i++ {
		if t.tour[i] == self && t.tour[i-1] == from {
			return t.tour[i+1], nil
		}
	}
	return -1, fmt.Errorf("board %d from %d: %w", self, from, ErrNoNextHop)
}
