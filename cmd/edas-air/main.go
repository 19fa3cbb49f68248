// Command edas-air relays frames between boards connected over TCP or
// websocket links.
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/edas/pkg/air"
	"github.com/robotalks/edas/pkg/framework"
)

var (
	tcpAddr    = ":7117"
	httpAddr   = ":7118"
	wsPath     = "/air"
	statsEvery = time.Minute
)

func init() {
	flag.StringVar(&tcpAddr, "tcp", tcpAddr, "TCP listen address, empty to disable.")
	flag.StringVar(&httpAddr, "http", httpAddr, "Websocket listen address, empty to disable.")
	flag.StringVar(&wsPath, "path", wsPath, "Websocket path.")
	flag.DurationVar(&statsEvery, "stats", statsEvery, "Interval of stats logging.")
}

func main() {
	flag.Parse()
	defer glog.Flush()

	hub := air.NewHub()
	runner := framework.NewRunner().HandleSignals()
	if tcpAddr != "" {
		ln, err := net.Listen("tcp", tcpAddr)
		if err != nil {
			log.Fatalln(err)
		}
		glog.Infof("air: listening on %s", ln.Addr())
		runner.Go(framework.NamedRun("tcp", framework.RunFunc(func(ctx context.Context) error {
			return hub.ServeListener(ctx, ln)
		})))
	}
	if httpAddr != "" {
		runner.Go(framework.NamedRun("websocket", framework.RunFunc(func(ctx context.Context) error {
			mux := http.NewServeMux()
			mux.Handle(wsPath, hub.WebsocketHandler(ctx))
			server := &http.Server{Addr: httpAddr, Handler: mux}
			glog.Infof("air: websocket on %s%s", httpAddr, wsPath)
			return framework.RunWithContextCloser(ctx, server, func() error {
				if err := server.ListenAndServe(); err != http.ErrServerClosed {
					return err
				}
				return nil
			})
		})))
	}
	runner.Go(framework.NamedRun("stats", framework.RunFunc(func(ctx context.Context) error {
		ticker := time.NewTicker(statsEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				s := hub.Stats()
				glog.Infof("air: %d connections, %d frames, %d delivered, %d errors",
					s.Conns, s.Frames, s.Delivered, s.Errors)
			}
		}
	})))
	if err := runner.Wait(); err != nil {
		log.Fatalln(err)
	}
}
