// Package scheduler runs the recurring daily-digest job on a cron spec.
package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/devtrack-agent/internal/metrics"
)

// DigestRunner generates and delivers a digest. Satisfied by digest.Generator.
type DigestRunner interface {
	Run() (string, error)
}

// Scheduler owns the cron runner. Jobs run in UTC so the digest fires at
// the same wall-clock time regardless of host timezone.
type Scheduler struct {
	cron    *cron.Cron
	digest  DigestRunner
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// New creates a scheduler. Call Register before Start.
func New(dg DigestRunner, m *metrics.Metrics, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		digest:  dg,
		metrics: m,
		logger:  logger.With().Str("component", "scheduler").Logger(),
	}
}

// Register adds the digest job under the given cron spec.
func (s *Scheduler) Register(spec string) error {
	_, err := s.cron.AddFunc(spec, s.runDigest)
	if err != nil {
		return err
	}
	s.logger.Info().Str("spec", spec).Msg("digest job registered")
	return nil
}

func (s *Scheduler) runDigest() {
	start := time.Now()
	if _, err := s.digest.Run(); err != nil {
		s.metrics.ObserveDigestRun("scheduled", "error")
		s.logger.Error().Err(err).Msg("scheduled digest failed")
		return
	}
	s.metrics.ObserveDigestRun("scheduled", "ok")
	s.logger.Info().Dur("duration", time.Since(start)).Msg("scheduled digest completed")
}

// Start begins the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for any running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("scheduler stopped")
}
