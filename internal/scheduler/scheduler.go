package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	appLog "availcal/internal/log"
)

// Refresher runs one fetch cycle and reports whether it was published.
type Refresher interface {
	Refresh(ctx context.Context) bool
}

// Scheduler triggers periodic refreshes on a cron schedule.
type Scheduler struct {
	cron      *cron.Cron
	spec      string
	refresher Refresher
	ctx       context.Context
}

// New builds a Scheduler. An empty spec or "off" disables it, in which case
// nil is returned with no error.
func New(spec string, loc *time.Location, r Refresher) (*Scheduler, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" || strings.EqualFold(spec, "off") {
		return nil, nil
	}
	if loc == nil {
		loc = time.Local
	}

	s := &Scheduler{
		cron:      cron.New(cron.WithLocation(loc)),
		spec:      spec,
		refresher: r,
		ctx:       context.Background(),
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("add refresh job %q: %w", spec, err)
	}
	return s, nil
}

// Start runs the cron loop in the background. Cycles started by the schedule
// use ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
	appLog.Info("scheduler started", "spec", s.spec, "next", s.Next())
}

// Stop halts the schedule and waits for a running tick to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	appLog.Info("scheduler stopped")
}

// Next is the next scheduled run, zero before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) tick() {
	if s.ctx.Err() != nil {
		return
	}
	appLog.Debug("scheduled refresh")
	if !s.refresher.Refresh(s.ctx) {
		appLog.Debug("scheduled refresh superseded")
	}
}
