// Gazetteer - Diaspora Place and Event Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gazetteer

package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/gazetteer/internal/aggregate"
	"github.com/tomtom215/gazetteer/internal/config"
	"github.com/tomtom215/gazetteer/internal/logging"
	"github.com/tomtom215/gazetteer/internal/metrics"
)

// Refresher re-aggregates one domain and reports the record count.
type Refresher interface {
	Refresh(ctx context.Context, domain string) (int, error)
}

// job is one cron-driven refresh: an expression, an optional extra
// firing condition, and the domains it sweeps.
type job struct {
	name    string
	expr    *Expression
	guard   func(time.Time) bool
	domains []string
	nextRun time.Time
}

// Scheduler drives periodic domain refreshes. It runs as a supervised
// service: Serve blocks until the context is canceled.
//
// Two jobs are registered: a daily event refresh, since listings churn
// quickly, and a monthly sweep of the place domains. The monthly
// expression fires on days 28-31 and a guard lets only the actual last
// day of the month through.
type Scheduler struct {
	refresher Refresher
	cfg       config.SchedulerConfig
	jobs      []*job
	log       zerolog.Logger

	now func() time.Time
}

// New creates the scheduler from configuration.
func New(refresher Refresher, cfg config.SchedulerConfig) (*Scheduler, error) {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 30 * time.Second
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 30 * time.Minute
	}

	daily, err := Parse(cfg.DailyCron)
	if err != nil {
		return nil, fmt.Errorf("daily cron %q: %w", cfg.DailyCron, err)
	}
	monthly, err := Parse(cfg.MonthlyCron)
	if err != nil {
		return nil, fmt.Errorf("monthly cron %q: %w", cfg.MonthlyCron, err)
	}

	return &Scheduler{
		refresher: refresher,
		cfg:       cfg,
		log:       logging.WithComponent("scheduler"),
		now:       time.Now,
		jobs: []*job{
			{
				name:    "daily-events",
				expr:    daily,
				domains: []string{aggregate.DomainEvents},
			},
			{
				name:    "monthly-places",
				expr:    monthly,
				guard:   isLastDayOfMonth,
				domains: []string{aggregate.DomainWorship, aggregate.DomainCatering, aggregate.DomainRealEstate},
			},
		},
	}, nil
}

// Serve runs the scheduling loop until ctx is canceled. It satisfies
// the suture service contract.
func (s *Scheduler) Serve(ctx context.Context) error {
	if !s.cfg.Enabled {
		s.log.Info().Msg("Scheduler disabled")
		<-ctx.Done()
		return ctx.Err()
	}

	now := s.now()
	for _, j := range s.jobs {
		j.nextRun = j.expr.NextRun(now, time.UTC)
		s.log.Info().Str("job", j.name).
			Time("next_run", j.nextRun).
			Msg("Refresh job scheduled")
	}

	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// tick fires every job whose next run time has passed and reschedules
// it.
func (s *Scheduler) tick(ctx context.Context) {
	now := s.now()
	for _, j := range s.jobs {
		if now.Before(j.nextRun) {
			continue
		}

		due := j.nextRun
		j.nextRun = j.expr.NextRun(now, time.UTC)

		if j.guard != nil && !j.guard(due.In(time.UTC)) {
			s.log.Debug().Str("job", j.name).
				Time("fired_at", due).
				Msg("Refresh job skipped by guard")
			continue
		}

		s.runJob(ctx, j)
	}
}

// runJob refreshes the job's domains sequentially under one timeout.
// A failed domain doesn't stop the remaining ones.
func (s *Scheduler) runJob(ctx context.Context, j *job) {
	runCtx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()

	start := s.now()
	s.log.Info().Str("job", j.name).Msg("Refresh job started")

	for _, domain := range j.domains {
		count, err := s.refresher.Refresh(runCtx, domain)
		if err != nil {
			metrics.RecordSchedulerRun(domain, "error")
			s.log.Error().Err(err).
				Str("job", j.name).
				Str("domain", domain).
				Msg("Scheduled refresh failed")
			continue
		}

		metrics.RecordSchedulerRun(domain, "success")
		s.log.Info().Str("job", j.name).
			Str("domain", domain).
			Int("records", count).
			Msg("Scheduled refresh complete")
	}

	s.log.Info().Str("job", j.name).
		Dur("elapsed", s.now().Sub(start)).
		Msg("Refresh job finished")
}

// isLastDayOfMonth reports whether t falls on the final day of its
// month. The monthly cron fires on days 28-31; months end on different
// days, so only the firing where tomorrow is the 1st counts.
func isLastDayOfMonth(t time.Time) bool {
	return t.AddDate(0, 0, 1).Day() == 1
}

// String identifies the service in supervisor logs.
func (s *Scheduler) String() string {
	return "refresh-scheduler"
}
