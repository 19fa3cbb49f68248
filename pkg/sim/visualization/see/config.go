package see

import "flag"

// Config represents configuration for see.
type Config struct {
	W float64
	H float64
}

var defaultConfig = Config{
	W: 1000,
	H: 1000,
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.Float64Var(&defaultConfig.W, "see-w", defaultConfig.W, "Width of visualization area")
	flag.Float64Var(&defaultConfig.H, "see-h", defaultConfig.H, "Height of visualization area")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a default config.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Radius is the radius of the circle boards are placed on.
func (c *Config) Radius() float64 {
	r := c.W
	if c.H < r {
		r = c.H
	}
	return r * 0.4
}
