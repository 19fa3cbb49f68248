// Package see is the adapter to visualize a mesh of boards in
// github.com/robotalks/see.
package see

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/robotalks/edas/pkg/mesh/board"
	"github.com/robotalks/edas/pkg/mesh/topology"
)

// Adapter collects board statuses and writes them as see messages.
type Adapter struct {
	Config   *Config
	Topology *topology.Topology
	Writer   io.Writer

	lock    sync.Mutex
	initial bool
	updated map[int]board.Status
}

// NewAdapter creates the adapter.
func NewAdapter(config *Config, topo *topology.Topology, w io.Writer) *Adapter {
	return &Adapter{
		Config:   config,
		Topology: topo,
		Writer:   w,
		initial:  true,
	}
}

// ReportStatus implements board.StatusReporter.
func (a *Adapter) ReportStatus(ctx context.Context, s board.Status) error {
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.updated == nil {
		a.updated = make(map[int]board.Status)
	}
	a.updated[s.ID] = s
	return nil
}

// Flush writes the changes since the last flush as one JSON line.
func (a *Adapter) Flush() error {
	a.lock.Lock()
	var msgs []Message
	if a.initial {
		msgs = a.scene()
		a.initial = false
	}
	ids := make([]int, 0, len(a.updated))
	for id := range a.updated {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		msgs = append(msgs, Message{Action: ActionObject, Object: a.boardObject(a.updated[id])})
	}
	a.updated = nil
	a.lock.Unlock()

	if len(msgs) == 0 {
		return nil
	}
	encoded, err := json.Marshal(msgs)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.Writer, string(encoded))
	return err
}

func (a *Adapter) scene() []Message {
	w, h := a.Config.W/2, a.Config.H/2
	msgs := []Message{
		{Action: ActionReset},
		{Action: ActionObject, Object: NewObject(TypeCorner, "corner-lt").With("loc", "lt").At(-w, -h).Radius(1)},
		{Action: ActionObject, Object: NewObject(TypeCorner, "corner-lb").With("loc", "lb").At(-w, h).Radius(1)},
		{Action: ActionObject, Object: NewObject(TypeCorner, "corner-rt").With("loc", "rt").At(w, -h).Radius(1)},
		{Action: ActionObject, Object: NewObject(TypeCorner, "corner-rb").With("loc", "rb").At(w, h).Radius(1)},
	}
	n, r := a.Topology.Size(), a.Config.Radius()
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if !a.Topology.Adjacent(i, j) {
				continue
			}
			from, to := Placement(i, n, r), Placement(j, n, r)
			msgs = append(msgs, Message{
				Action: ActionObject,
				Object: NewObject(TypeLink, LinkID(i, j)).At(from.X, from.Y).To(to.X, to.Y),
			})
		}
	}
	for i := 0; i < n; i++ {
		msgs = append(msgs, Message{Action: ActionObject, Object: a.boardObject(board.Status{ID: i, Asleep: true})})
	}
	return msgs
}

func (a *Adapter) boardObject(s board.Status) Object {
	n := a.Topology.Size()
	pos := Placement(s.ID, n, a.Config.Radius())
	var styles []string
	if s.Asleep {
		styles = append(styles, "asleep")
	}
	if s.HoldsToken {
		styles = append(styles, "token")
	}
	if s.Converged {
		styles = append(styles, "converged")
	}
	label := fmt.Sprintf("%d", s.ID)
	if s.Iterations > 0 {
		label = fmt.Sprintf("%d: %.2f", s.ID, s.Estimate)
	} else if s.HasEstimate {
		label = fmt.Sprintf("%d: %.2f", s.ID, s.LastEstimate)
	}
	return NewObject(TypeBoard, BoardID(s.ID)).
		At(pos.X, pos.Y).
		Radius(a.Config.Radius() / float64(2*n)).
		Styles(styles...).
		With(PropLabel, label).
		With("state", s.State.String()).
		With("epoch", s.Epoch)
}
