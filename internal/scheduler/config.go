package scheduler

import "time"

// Config controls the cycle cadence.
type Config struct {
	// RunInterval <= 0 means one cycle per process invocation; the cadence
	// then belongs to an external trigger.
	RunInterval  time.Duration
	CycleTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.CycleTimeout <= 0 {
		c.CycleTimeout = 5 * time.Minute
	}
	return c
}
