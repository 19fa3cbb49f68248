// Command edas-mon prints the telemetry boards publish to the broker.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/robotalks/edas/pkg/msgs"
	"github.com/robotalks/edas/pkg/radio/mqtt"
)

var (
	mqttURL = "mqtt://localhost:1883/edas/"
)

func init() {
	if val := os.Getenv("EDAS_TELEMETRY_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	mon := &mqtt.Monitor{
		Queue: q,
		OnMeta: func(meta *msgs.BoardMeta) {
			log.Printf("board %d online: machine=%s neighbors=%v", meta.Id, meta.MachineId, meta.Neighbors)
		},
		OnStatus: func(s *msgs.BoardStatus) {
			log.Printf("board %d: %s", s.Id, s.String())
		},
		OnGone: func(id int) {
			log.Printf("board %d offline", id)
		},
	}
	mon.Subscribe()
	if err := q.Connect(); err != nil {
		log.Fatalln(err)
	}
	<-(chan struct{})(nil)
}
