// Package scheduler drives the two background jobs: the periodic meter
// scrape and the once-a-day usage report.
package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jgoulah/meterwatch/internal/civil"
)

// Jobs are the callbacks the scheduler fires. Both run on the
// scheduler's goroutine, one at a time; a slow scrape delays the next
// tick instead of overlapping it.
type Jobs struct {
	FetchAll    func(ctx context.Context)
	SendReports func(ctx context.Context)
}

// Scheduler runs the fetch loop and the daily report timer
type Scheduler struct {
	interval   time.Duration
	reportHour int
	jobs       Jobs
	now        func() time.Time
	log        *logrus.Entry
}

// New creates a scheduler that scrapes every interval and reports at
// reportHour (civil time)
func New(interval time.Duration, reportHour int, jobs Jobs) *Scheduler {
	return &Scheduler{
		interval:   interval,
		reportHour: reportHour,
		jobs:       jobs,
		now:        civil.Now,
		log:        logrus.WithField("component", "scheduler"),
	}
}

// Run blocks until ctx is canceled. The first scrape fires immediately
// so a fresh start is never an empty dashboard.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.WithFields(logrus.Fields{
		"interval":    s.interval,
		"report_hour": s.reportHour,
	}).Info("scheduler started")

	s.jobs.FetchAll(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	reportTimer := time.NewTimer(time.Until(s.nextReport(s.now())))
	defer reportTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.jobs.FetchAll(ctx)
		case <-reportTimer.C:
			s.jobs.SendReports(ctx)
			reportTimer.Reset(time.Until(s.nextReport(s.now())))
		}
	}
}

// nextReport returns the next occurrence of the report hour after now
func (s *Scheduler) nextReport(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.reportHour, 0, 0, 0, civil.Location)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
