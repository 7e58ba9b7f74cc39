package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Purger deletes rows that can no longer be used.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Janitor periodically removes expired admin sessions and OTP requests.
type Janitor struct {
	Interval time.Duration
	Targets  map[string]Purger
	Log      *logrus.Logger
}

// Run sweeps once at start and then every Interval until ctx ends.
func (j *Janitor) Run(ctx context.Context) error {
	interval := j.Interval
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		j.Sweep(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Sweep runs every target once. A failing target is logged and skipped.
func (j *Janitor) Sweep(ctx context.Context) {
	for name, p := range j.Targets {
		n, err := p.PurgeExpired(ctx)
		l := j.Log.WithField("target", name)
		if err != nil {
			l.WithError(err).Warn("purge failed")
			continue
		}
		if n > 0 {
			l.WithField("rows", n).Info("purged expired rows")
		}
	}
}
