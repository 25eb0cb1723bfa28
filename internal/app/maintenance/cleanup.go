// Package maintenance runs the periodic background sweeps: evicting expired
// rate-limiter entries so the in-memory map stays bounded, and pruning
// generated audio files past their retention window.
package maintenance

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/voiceclone/internal/middleware"
	"github.com/charlesng35/voiceclone/pkg/logger"
)

const defaultSweepSpec = "@hourly"

// Cleaner coordinates the background maintenance jobs.
type Cleaner struct {
	limiter   *middleware.Limiter
	audioDir  string
	retention time.Duration

	cron     *cron.Cron
	now      func() time.Time
	log      *zap.Logger
	schedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for retention comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithSchedule overrides the cron specification for the sweep.
func WithSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.schedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner. A nil limiter skips limiter eviction; an
// empty audioDir or non-positive retention skips audio pruning.
func NewCleaner(limiter *middleware.Limiter, audioDir string, retention time.Duration, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		limiter:   limiter,
		audioDir:  audioDir,
		retention: retention,
		now:       time.Now,
		schedule:  defaultSweepSpec,
		log:       logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers the sweep with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if _, err := c.cron.AddFunc(c.schedule, func() {
		if err := c.RunOnce(context.Background()); err != nil {
			c.log.Warn("maintenance sweep failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured sweeps sequentially. Also used during
// graceful shutdown and in tests.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.limiter != nil {
		evicted := c.limiter.EvictExpired(c.now())
		if evicted > 0 {
			c.log.Debug("evicted expired rate-limit entries", zap.Int("count", evicted))
		}
	}

	if c.audioDir != "" && c.retention > 0 {
		pruned, err := pruneAudioFiles(c.audioDir, c.now().Add(-c.retention))
		if err != nil {
			errs = multierr.Append(errs, err)
		}
		if pruned > 0 {
			c.log.Info("pruned generated audio files", zap.Int("count", pruned))
		}
	}

	return errs
}

// pruneAudioFiles removes regular files under dir whose modification time is
// before cutoff. Subdirectories are left untouched.
func pruneAudioFiles(dir string, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	pruned := 0
	var errs error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		pruned++
	}

	return pruned, errs
}
