package scheduler

import "time"

// Config controls how often the scheduler wakes up and how long one sweep
// may take.
type Config struct {
	RunInterval time.Duration
	RunTimeout  time.Duration
}

func ProvideConfig() Config {
	return DefaultConfig()
}

func DefaultConfig() Config {
	return Config{
		RunInterval: time.Hour,
		RunTimeout:  10 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = defaults.RunTimeout
	}
	return c
}
