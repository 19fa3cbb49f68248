// Command edas-sim runs a whole mesh in one process and prints the
// outcome of an averaging run. With -see, the scene updates are
// written to stdout as JSON lines.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/golang/glog"

	"github.com/robotalks/edas/pkg/env"
	"github.com/robotalks/edas/pkg/mesh/board"
	"github.com/robotalks/edas/pkg/sim"
	"github.com/robotalks/edas/pkg/sim/visualization/see"
)

var (
	initiator    = 0
	runs         = 1
	maxRounds    = sim.DefaultMaxRounds
	topologyFile string
	seeOutput    bool
)

func init() {
	see.SetupFlags()
	flag.IntVar(&initiator, "initiator", initiator, "Board which starts averaging.")
	flag.IntVar(&runs, "runs", runs, "Number of consecutive averaging runs.")
	flag.IntVar(&maxRounds, "max-rounds", maxRounds, "Rounds after which a run is given up.")
	flag.StringVar(&topologyFile, "topology", topologyFile, "Topology file, default built-in.")
	flag.BoolVar(&seeOutput, "see", seeOutput, "Write scene updates to stdout.")
}

func main() {
	flag.Parse()
	defer glog.Flush()

	topo, readings, err := env.LoadTopology(topologyFile)
	if err != nil {
		log.Fatalln(err)
	}
	cfg := sim.Config{Topology: topo, Readings: readings, MaxRounds: maxRounds}
	var adapter *see.Adapter
	if seeOutput {
		adapter = see.NewAdapter(see.Default(), topo, os.Stdout)
		cfg.Reporters = []board.StatusReporter{adapter}
	}
	n, err := sim.New(cfg)
	if err != nil {
		log.Fatalln(err)
	}

	ctx := context.Background()
	n.Boot(ctx)
	for i := 0; i < runs; i++ {
		if err := n.Average(ctx, initiator); err != nil {
			log.Fatalln(err)
		}
		res, err := runObserved(ctx, n, adapter)
		if !seeOutput {
			fmt.Printf("run %d: %d rounds, %d frames, %d restarts\n", i, res.Rounds, res.FramesSent, res.Restarts)
			for id, v := range res.Estimates {
				fmt.Printf("  board %d: %.3f\n", id, v)
			}
		}
		if err != nil {
			log.Fatalln(err)
		}
	}
}

// runObserved is sim.Network.Run with the scene flushed after every
// round.
func runObserved(ctx context.Context, n *sim.Network, adapter *see.Adapter) (sim.Result, error) {
	if adapter != nil {
		if err := adapter.Flush(); err != nil {
			return sim.Result{}, err
		}
		n.OnRound = func(int) {
			if err := adapter.Flush(); err != nil {
				glog.Warningf("flush scene: %v", err)
			}
		}
	}
	return n.Run(ctx)
}
