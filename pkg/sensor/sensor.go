// Package sensor provides the readings boards average.
package sensor

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// MinTemperature is the lowest plausible reading in degrees Celsius.
const MinTemperature float32 = -273

// Invalid is the reading a board holds before it measured anything.
const Invalid = MinTemperature - 1

// ErrNoReading indicates no plausible reading is available.
var ErrNoReading = errors.New("temperature not measured")

// Sensor reads the local scalar.
type Sensor interface {
	Read() (float32, error)
}

// Valid tells whether v is a plausible reading.
func Valid(v float32) bool {
	return v >= MinTemperature
}

// Fixed always reads the same value.
type Fixed float32

// Read implements Sensor.
func (f Fixed) Read() (float32, error) {
	v := float32(f)
	if !Valid(v) {
		return Invalid, ErrNoReading
	}
	return v, nil
}

// Table holds simulated readings indexed by board id.
type Table []float32

// DefaultTable is the built-in set of simulated readings of the 6-board
// mesh. Its average is 20.
var DefaultTable = Table{10, 20, 30, 20, 15, 25}

// For returns the sensor of board id.
func (t Table) For(id int) Sensor {
	if id < 0 || id >= len(t) {
		return Fixed(Invalid)
	}
	return Fixed(t[id])
}

// Average is the arithmetic mean of the table.
func (t Table) Average() float32 {
	if len(t) == 0 {
		return 0
	}
	var sum float64
	for _, v := range t {
		sum += float64(v)
	}
	return float32(sum / float64(len(t)))
}

// DefaultThermalPath is the sysfs node of the first thermal zone.
const DefaultThermalPath = "/sys/class/thermal/thermal_zone0/temp"

// Thermal reads milli-degrees from a sysfs thermal zone.
type Thermal struct {
	Path string
}

// Read implements Sensor.
func (s *Thermal) Read() (float32, error) {
	path := s.Path
	if path == "" {
		path = DefaultThermalPath
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return Invalid, fmt.Errorf("read %s: %w", path, err)
	}
	milli, err := strconv.ParseInt(strings.TrimSpace(string(content)), 10, 64)
	if err != nil {
		return Invalid, fmt.Errorf("parse %s: %w", path, err)
	}
	v := float32(milli) / 1000
	if !Valid(v) {
		return Invalid, fmt.Errorf("%s: %g: %w", path, v, ErrNoReading)
	}
	return v, nil
}
