package jobqueue

import (
	"fmt"
	"time"

	"github.com/smallbiznis/premium/internal/config"
)

// Config controls the worker loop. Lease must match the lease the queue
// hands out; the worker renews it every Heartbeat while a job runs.
type Config struct {
	Backend      string
	BatchSize    int
	PollInterval time.Duration
	Lease        time.Duration
	Heartbeat    time.Duration
	MaxAttempts  int
	JobTimeout   time.Duration
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
}

func DefaultConfig() Config {
	return Config{
		Backend:      config.QueueBackendDatabase,
		BatchSize:    10,
		PollInterval: 2 * time.Second,
		Lease:        5 * time.Minute,
		MaxAttempts:  10,
		JobTimeout:   30 * time.Minute,
		BaseBackoff:  5 * time.Second,
		MaxBackoff:   10 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Backend == "" {
		c.Backend = defaults.Backend
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaults.PollInterval
	}
	if c.Lease <= 0 {
		c.Lease = defaults.Lease
	}
	if c.Heartbeat <= 0 {
		c.Heartbeat = c.Lease / 3
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaults.MaxAttempts
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = defaults.BaseBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = defaults.MaxBackoff
	}
	return c
}

// Validate rejects settings under which a running job could outlive its
// lease without being renewed.
func (c Config) Validate() error {
	if c.Heartbeat >= c.Lease {
		return fmt.Errorf("%w: heartbeat %s must be shorter than lease %s", ErrInvalidConfig, c.Heartbeat, c.Lease)
	}
	return nil
}

func provideConfig(cfg config.Config) (Config, error) {
	c := Config{
		Backend:      cfg.Queue.Backend,
		BatchSize:    cfg.Queue.BatchSize,
		PollInterval: cfg.Queue.PollInterval,
		Lease:        cfg.Queue.Lease,
		Heartbeat:    cfg.Queue.Heartbeat,
		MaxAttempts:  cfg.Queue.MaxAttempts,
		JobTimeout:   cfg.Queue.JobTimeout,
	}.withDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}
