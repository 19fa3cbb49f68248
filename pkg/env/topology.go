package env

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/robotalks/edas/pkg/mesh/topology"
	"github.com/robotalks/edas/pkg/sensor"
)

// TopologyFile is the JSON description of a mesh: the adjacency matrix
// with 0/1 entries, the tour and optionally the simulated temperature
// of every board.
type TopologyFile struct {
	Graph        [][]int   `json:"graph"`
	Tour         []int     `json:"tour"`
	Temperatures []float32 `json:"temperatures,omitempty"`
}

// ParseTopology decodes and validates a topology description.
func ParseTopology(data []byte) (*topology.Topology, sensor.Table, error) {
	var f TopologyFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, nil, err
	}
	graph := make([][]bool, len(f.Graph))
	for i, row := range f.Graph {
		graph[i] = make([]bool, len(row))
		for j, v := range row {
			graph[i][j] = v != 0
		}
	}
	topo, err := topology.New(graph, f.Tour)
	if err != nil {
		return nil, nil, err
	}
	readings := sensor.Table(f.Temperatures)
	if len(readings) == 0 && topo.Size() <= len(sensor.DefaultTable) {
		readings = sensor.DefaultTable
	}
	if len(readings) < topo.Size() {
		return nil, nil, fmt.Errorf("%d temperatures for %d boards", len(readings), topo.Size())
	}
	return topo, readings, nil
}

// LoadTopology reads a topology file. An empty path selects the built-in
// six board mesh.
func LoadTopology(path string) (*topology.Topology, sensor.Table, error) {
	if path == "" {
		return topology.Default(), sensor.DefaultTable, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	topo, readings, err := ParseTopology(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return topo, readings, nil
}
