// Package scheduler triggers refreshes on a cron schedule.
//
// Every tick the scheduler checks whether the schedule fired since the
// previous tick. Missed fire times collapse into a single refresh. The
// coordinator's lock and cooldown make it safe for several instances to run
// the same schedule.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/FuJacob/mapletenders-sub000/internal/domain"
)

type Refresher interface {
	Refresh(ctx context.Context) (domain.RefreshResult, error)
}

type CronParser interface {
	Parse(expression string, timezone string) (CronSchedule, error)
}

type CronSchedule interface {
	Next(after time.Time) time.Time
}

// MetricsSink defines the interface for recording scheduler metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	TickStarted()
	TickCompleted(duration time.Duration, refreshesTriggered int, err error)
	TickDrift(drift time.Duration)
}

type Config struct {
	TickInterval time.Duration
	Expression   string
	Timezone     string
}

type Scheduler struct {
	config    Config
	refresher Refresher
	parser    CronParser
	metrics   MetricsSink // optional, nil = disabled
	clock     func() time.Time
	lastTick  time.Time
}

func New(config Config, refresher Refresher, parser CronParser) *Scheduler {
	return &Scheduler{
		config:    config,
		refresher: refresher,
		parser:    parser,
		clock:     time.Now,
	}
}

// WithMetrics attaches a metrics sink to the scheduler.
func (s *Scheduler) WithMetrics(sink MetricsSink) *Scheduler {
	s.metrics = sink
	return s
}

func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	log.Printf("scheduler: started, tick=%s schedule=%q tz=%s", s.config.TickInterval, s.config.Expression, s.timezone())
	s.lastTick = s.clock().UTC()

	for {
		select {
		case <-ctx.Done():
			log.Println("scheduler: stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.processTick(ctx); err != nil {
				log.Printf("scheduler: tick error: %v", err)
			}
		}
	}
}

// Next returns the next fire time after now.
func (s *Scheduler) Next() (time.Time, error) {
	sched, err := s.parser.Parse(s.config.Expression, s.timezone())
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron: %w", err)
	}
	return sched.Next(s.clock()).UTC(), nil
}

func (s *Scheduler) processTick(ctx context.Context) (err error) {
	start := s.clock()
	now := start.UTC()
	triggered := 0

	if s.metrics != nil {
		s.metrics.TickStarted()
		if !s.lastTick.IsZero() {
			s.metrics.TickDrift(now.Sub(s.lastTick) - s.config.TickInterval)
		}
		defer func() {
			s.metrics.TickCompleted(s.clock().Sub(start), triggered, err)
		}()
	}

	sched, err := s.parser.Parse(s.config.Expression, s.timezone())
	if err != nil {
		return fmt.Errorf("parse cron: %w", err)
	}

	if s.lastTick.IsZero() {
		s.lastTick = now
		return nil
	}

	// Count every fire time since last tick; they all collapse into one run.
	const maxIterations = 1000
	due := 0
	var fired time.Time
	for t := sched.Next(s.lastTick); due < maxIterations && !t.After(now); t = sched.Next(t) {
		fired = t
		due++
	}
	s.lastTick = now

	if due == 0 {
		return nil
	}
	if due > 1 {
		log.Printf("scheduler: %d fire times since last tick, running once", due)
	}

	log.Printf("scheduler: refresh due at %s", fired.UTC().Format(time.RFC3339))
	triggered = 1
	res, err := s.refresher.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}

	if res.Status == domain.RefreshSkipped {
		log.Printf("scheduler: refresh run=%s skipped (%s)", res.RunID, res.SkipReason)
	} else {
		log.Printf("scheduler: refresh run=%s imported=%d failed=%d", res.RunID, res.ImportedCount, len(res.Failed()))
	}
	return nil
}

func (s *Scheduler) timezone() string {
	if s.config.Timezone == "" {
		return "UTC"
	}
	return s.config.Timezone
}
