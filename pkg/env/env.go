// Package env sets up a board process from flags and environment
// variables.
package env

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/edas/pkg/framework"
	"github.com/robotalks/edas/pkg/mesh/board"
	"github.com/robotalks/edas/pkg/mesh/stack"
	"github.com/robotalks/edas/pkg/mesh/topology"
	"github.com/robotalks/edas/pkg/mesh/watchdog"
	"github.com/robotalks/edas/pkg/msgs"
	"github.com/robotalks/edas/pkg/radio"
	"github.com/robotalks/edas/pkg/radio/link"
	"github.com/robotalks/edas/pkg/radio/link/stream"
	"github.com/robotalks/edas/pkg/radio/link/websocket"
	"github.com/robotalks/edas/pkg/radio/mqtt"
	"github.com/robotalks/edas/pkg/sensor"
)

// Config provides common options to setup a board.
type Config struct {
	BoardID int

	// RadioURL selects the transport:
	// mqtt://host:port/prefix, ws://host:port/air or tcp://host:port.
	RadioURL string
	// TelemetryURL is the MQTT broker board meta and status are
	// published to. Empty disables telemetry.
	TelemetryURL string
	// TopologyFile is the mesh description, the built-in mesh if empty.
	TopologyFile string

	Threshold      float64
	HopBudget      time.Duration
	StackDepth     int
	TickInterval   time.Duration
	SimulateSensor bool
	SensorPath     string
}

var defaultConfig = Config{
	RadioURL:       "tcp://localhost:7117",
	Threshold:      0.1,
	HopBudget:      watchdog.DefaultHopBudget,
	StackDepth:     stack.DefaultCapacity,
	TickInterval:   framework.DefaultInterval,
	SimulateSensor: true,
	SensorPath:     sensor.DefaultThermalPath,
}

func init() {
	if val := os.Getenv("EDAS_BOARD_ID"); val != "" {
		if id, err := strconv.Atoi(val); err == nil {
			defaultConfig.BoardID = id
		}
	}
	if val := os.Getenv("EDAS_RADIO_URL"); val != "" {
		defaultConfig.RadioURL = val
	}
	if val := os.Getenv("EDAS_TELEMETRY_URL"); val != "" {
		defaultConfig.TelemetryURL = val
	}
	if val := os.Getenv("EDAS_TOPOLOGY"); val != "" {
		defaultConfig.TopologyFile = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.IntVar(&defaultConfig.BoardID, "board", defaultConfig.BoardID, "Board ID")
	flag.StringVar(&defaultConfig.RadioURL, "radio", defaultConfig.RadioURL, "Radio URL (mqtt://, ws://, tcp://)")
	flag.StringVar(&defaultConfig.TelemetryURL, "telemetry", defaultConfig.TelemetryURL, "MQTT broker URL for board telemetry")
	flag.StringVar(&defaultConfig.TopologyFile, "topology", defaultConfig.TopologyFile, "Topology JSON file")
	flag.Float64Var(&defaultConfig.Threshold, "threshold", defaultConfig.Threshold, "Stop threshold of estimate changes")
	flag.DurationVar(&defaultConfig.HopBudget, "hop-budget", defaultConfig.HopBudget, "Time budget of one token hop")
	flag.IntVar(&defaultConfig.StackDepth, "stack-depth", defaultConfig.StackDepth, "Depth of the state stack")
	flag.DurationVar(&defaultConfig.TickInterval, "tick", defaultConfig.TickInterval, "Scheduler tick interval")
	flag.BoolVar(&defaultConfig.SimulateSensor, "simulate-sensor", defaultConfig.SimulateSensor, "Use the simulated temperature table")
	flag.StringVar(&defaultConfig.SensorPath, "sensor", defaultConfig.SensorPath, "Thermal zone of the real sensor")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Transport is a radio together with its connection lifecycle.
type Transport interface {
	radio.Radio
	framework.LoopAdder
}

// NewRadio creates the transport selected by RadioURL.
func (c *Config) NewRadio() (Transport, error) {
	u, err := url.Parse(c.RadioURL)
	if err != nil {
		return nil, fmt.Errorf("invalid radio URL: %w", err)
	}
	switch u.Scheme {
	case "mqtt":
		q, err := mqtt.NewQueueFromURL(c.RadioURL)
		if err != nil {
			return nil, err
		}
		return mqtt.NewRadio(q), nil
	case "ws", "wss":
		rw, err := websocket.Dial(c.RadioURL)
		if err != nil {
			return nil, err
		}
		return link.NewRadio(rw), nil
	case "tcp":
		rw, err := stream.Dial(u.Host)
		if err != nil {
			return nil, err
		}
		return link.NewRadio(rw), nil
	default:
		return nil, fmt.Errorf("unknown radio URL scheme: %q", u.Scheme)
	}
}

// NewSensor creates the temperature sensor of the board.
func (c *Config) NewSensor(readings sensor.Table) sensor.Sensor {
	if c.SimulateSensor {
		return readings.For(c.BoardID)
	}
	return &sensor.Thermal{Path: c.SensorPath}
}

// Env is a fully assembled board.
type Env struct {
	Config     *Config
	Topology   *topology.Topology
	Readings   sensor.Table
	Radio      Transport
	Board      *board.Board
	Controller *board.Controller
	Registrar  *mqtt.Registrar
	Loop       *framework.Loop
}

// NewEnv assembles the board from config.
func (c *Config) NewEnv() (*Env, error) {
	topo, readings, err := LoadTopology(c.TopologyFile)
	if err != nil {
		return nil, err
	}
	rd, err := c.NewRadio()
	if err != nil {
		return nil, err
	}
	return c.newEnv(topo, readings, rd)
}

// newEnv takes ownership of rd: it is closed if the board can't be
// assembled.
func (c *Config) newEnv(topo *topology.Topology, readings sensor.Table, rd Transport) (_ *Env, err error) {
	defer func() {
		if err != nil {
			closeRadio(rd)
		}
	}()
	e := &Env{
		Config:   c,
		Topology: topo,
		Readings: readings,
		Radio:    rd,
		Loop:     framework.NewLoop(),
	}
	e.Loop.Interval = c.TickInterval
	b, err := board.New(board.Config{
		ID:         c.BoardID,
		Topology:   topo,
		Radio:      rd,
		Sensor:     c.NewSensor(readings),
		Threshold:  float32(c.Threshold),
		HopBudget:  c.HopBudget,
		StackDepth: c.StackDepth,
		Waker:      e.Loop,
	})
	if err != nil {
		return nil, err
	}
	e.Board = b
	e.Controller = board.NewController(b)
	if c.TelemetryURL != "" {
		var reg *mqtt.Registrar
		reg, err = mqtt.NewRegistrar(c.TelemetryURL, e.Meta())
		if err != nil {
			return nil, fmt.Errorf("create MQTT registrar error: %w", err)
		}
		e.Registrar = reg
		e.Controller.Reporters = append(e.Controller.Reporters, reg)
	}
	e.Loop.Add(e.Radio, e.Controller)
	if e.Registrar != nil {
		e.Loop.Add(e.Registrar)
	}
	return e, nil
}

func closeRadio(rd Transport) {
	if closer, ok := rd.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			glog.Warningf("close radio: %v", err)
		}
	}
}

// MustNewEnv creates Env and fails on error.
func (c *Config) MustNewEnv() *Env {
	e, err := c.NewEnv()
	if err != nil {
		log.Fatalln(err)
	}
	return e
}

// Meta describes the board for telemetry.
func (e *Env) Meta() *msgs.BoardMeta {
	meta := &msgs.BoardMeta{
		Id:        int32(e.Config.BoardID),
		MachineId: MachineID(),
		Online:    true,
	}
	for id := 0; id < e.Topology.Size(); id++ {
		if id != e.Config.BoardID && e.Topology.Adjacent(e.Config.BoardID, id) {
			meta.Neighbors = append(meta.Neighbors, int32(id))
		}
	}
	return meta
}
