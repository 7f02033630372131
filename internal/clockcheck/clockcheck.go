// Package clockcheck watches local clock offset against NTP. Failure
// detection rides on a fixed session timeout, so a badly skewed clock
// quietly stretches or shrinks the window in which a dead peer goes
// unnoticed; the daemon warns before that happens.
package clockcheck

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/beevik/ntp"
)

const (
	defaultPool     = "pool.ntp.org"
	defaultInterval = 60 * time.Second
	// defaultThreshold is 1s: well below the session timeout but large
	// enough to ignore ordinary jitter.
	defaultThreshold = 1 * time.Second
)

// Status is the result of the most recent check.
type Status struct {
	Offset    time.Duration
	Healthy   bool
	Error     string
	CheckedAt time.Time
}

// Checker periodically queries an NTP pool and keeps the last status.
type Checker struct {
	mu        sync.RWMutex
	status    Status
	pool      string
	interval  time.Duration
	threshold time.Duration
	log       *slog.Logger

	// CheckFunc overrides real NTP queries for testing.
	CheckFunc func() Status
}

// New returns a checker with the default pool, interval, and threshold.
func New() *Checker {
	return &Checker{
		pool:      defaultPool,
		interval:  defaultInterval,
		threshold: defaultThreshold,
		log:       slog.With("component", "clockcheck"),
	}
}

// Run checks immediately and then on every interval until ctx ends.
func (c *Checker) Run(ctx context.Context) {
	c.check()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.check()
		}
	}
}

func (c *Checker) check() {
	if c.CheckFunc != nil {
		c.setStatus(c.CheckFunc())
		return
	}

	resp, err := ntp.Query(c.pool)
	now := time.Now()
	if err != nil {
		c.setStatus(Status{Error: err.Error(), CheckedAt: now})
		return
	}

	offset := resp.ClockOffset
	healthy := offset > -c.threshold && offset < c.threshold
	c.setStatus(Status{Offset: offset, Healthy: healthy, CheckedAt: now})
}

func (c *Checker) setStatus(s Status) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
	if !s.Healthy {
		if s.Error != "" {
			c.log.Debug("clock check failed", "err", s.Error)
		} else {
			c.log.Warn("local clock skew detected", "offset", s.Offset)
		}
	}
}

// Status returns the most recent check result.
func (c *Checker) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}
