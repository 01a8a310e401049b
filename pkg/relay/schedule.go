package relay

import (
	"context"
	"time"
	_ "time/tzdata" // Europe/Paris on hosts without zoneinfo

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Schedule settings.
const (
	ScheduleTimezone = "Europe/Paris"
	HourlySpec       = "0 * * * *"
	tickTimeout      = time.Minute
)

var (
	weekendHours = map[int]bool{9: true, 10: true, 11: true, 13: true, 14: true, 15: true, 16: true}
	weekdayHours = map[int]bool{10: true, 14: true}
)

// ShouldRun reports whether an hourly tick at t falls in a recording slot,
// judged on the wall clock of loc.
func ShouldRun(t time.Time, loc *time.Location) bool {
	local := t.In(loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return weekendHours[local.Hour()]
	default:
		return weekdayHours[local.Hour()]
	}
}

// Scheduler fires the trigger on gated hourly ticks.
type Scheduler struct {
	cron    *cron.Cron
	trigger *Trigger
	loc     *time.Location
	now     func() time.Time
	log     *zap.Logger
}

// NewScheduler registers the hourly job. Call Start to begin ticking.
func NewScheduler(trigger *Trigger, log *zap.Logger) (*Scheduler, error) {
	if log == nil {
		log = zap.NewNop()
	}
	loc, err := time.LoadLocation(ScheduleTimezone)
	if err != nil {
		return nil, errors.Wrap(err, "load schedule timezone")
	}

	s := &Scheduler{
		trigger: trigger,
		loc:     loc,
		now:     time.Now,
		log:     log.Named("scheduler"),
	}
	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cron.PrintfLogger(zap.NewStdLog(s.log))),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := s.cron.AddFunc(HourlySpec, func() { s.tick(s.now()) }); err != nil {
		return nil, errors.Wrap(err, "register hourly job")
	}
	return s, nil
}

// Start begins ticking in the background.
func (s *Scheduler) Start() {
	s.log.Info("Scheduler started", zap.String("timezone", ScheduleTimezone), zap.String("spec", HourlySpec))
	s.cron.Start()
}

// Stop halts the scheduler and waits for a running tick.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// tick reports whether a dispatch was attempted.
func (s *Scheduler) tick(at time.Time) bool {
	local := at.In(s.loc)
	if !ShouldRun(at, s.loc) {
		s.log.Info("Skipping tick, not in schedule",
			zap.String("weekday", local.Weekday().String()),
			zap.Int("hour", local.Hour()))
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
	defer cancel()
	if _, err := s.trigger.Fire(ctx, "cron"); err != nil {
		s.log.Error("Scheduled dispatch failed", zap.Error(err))
	}
	return true
}
