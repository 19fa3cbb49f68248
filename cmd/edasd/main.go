// Command edasd runs one board of the mesh.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/golang/glog"

	"github.com/robotalks/edas/pkg/cli/sh"
	"github.com/robotalks/edas/pkg/env"
	"github.com/robotalks/edas/pkg/framework"
)

var shell bool

func init() {
	env.SetupFlags()
	flag.BoolVar(&shell, "shell", shell, "Run the interactive shell, remaining args are evaluated as a command.")
}

func main() {
	flag.Parse()
	defer glog.Flush()

	e := env.Default().MustNewEnv()
	runner := framework.NewRunner().HandleSignals()
	ctx, cancel := context.WithCancel(runner.Context)
	defer cancel()
	runner.GoWith(ctx, framework.NamedRun("loop", e.Loop))
	glog.Infof("board %d up, radio %s", e.Config.BoardID, e.Config.RadioURL)

	if shell {
		sh.New(sh.Target{
			Loop:      e.Loop,
			ID:        e.Config.BoardID,
			Topology:  e.Topology,
			MachineID: env.MachineID(),
		}).Run(flag.Args()...)
		cancel()
	}
	if err := runner.Wait(); err != nil {
		log.Fatalln(err)
	}
}
