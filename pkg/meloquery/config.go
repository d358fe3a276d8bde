package meloquery

import (
	"github.com/aaravkhatri/MeloQuery/internal/align"
	"github.com/aaravkhatri/MeloQuery/internal/scan"
)

type Config struct {
	DBPath     string
	TempDir    string
	Params     scan.Params
	Weights    align.Weights
	MinNoteDur float64
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

func WithTempDir(dir string) Option {
	return func(c *Config) {
		c.TempDir = dir
	}
}

// WithScanParams overrides the window schedule and ranking controls.
func WithScanParams(params scan.Params) Option {
	return func(c *Config) {
		c.Params = params
	}
}

// WithWeights overrides the alignment cost weights.
func WithWeights(w align.Weights) Option {
	return func(c *Config) {
		c.Weights = w
	}
}

// WithMinNoteDur sets the shortest MIDI note kept during indexing, in
// seconds.
func WithMinNoteDur(sec float64) Option {
	return func(c *Config) {
		c.MinNoteDur = sec
	}
}

func defaultConfig() *Config {
	return &Config{
		DBPath:  "meloquery.sqlite3",
		TempDir: "/tmp/meloquery",
		Params:  scan.DefaultParams(),
		Weights: align.DefaultWeights(),
	}
}
