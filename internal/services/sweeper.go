// Package services runs the background sweep that keeps the catalog fresh.
package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Target is one sweepable crawl source.
type Target interface {
	Name() string
	RunSweep(ctx context.Context, startPage, pages int) error
}

// ServiceStatus is the observable state of one sweep target.
type ServiceStatus struct {
	Name      string    `json:"name"`
	Running   bool      `json:"running"`
	LastRun   time.Time `json:"last_run"`
	NextRun   time.Time `json:"next_run"`
	LastError string    `json:"last_error,omitempty"`
	RunCount  int64     `json:"run_count"`
}

// Sweeper re-crawls every registered target on a cron schedule. Targets run
// sequentially; an overlapping trigger is skipped rather than queued.
type Sweeper struct {
	targets   []Target
	schedule  string
	startPage int
	pages     int

	cron    *cron.Cron
	entryID cron.EntryID

	mu       sync.RWMutex
	sweeping bool
	status   map[string]*ServiceStatus
}

func NewSweeper(targets []Target, schedule string, startPage, pages int) *Sweeper {
	status := make(map[string]*ServiceStatus, len(targets))
	for _, t := range targets {
		status[t.Name()] = &ServiceStatus{Name: t.Name()}
	}
	return &Sweeper{
		targets:   targets,
		schedule:  schedule,
		startPage: startPage,
		pages:     pages,
		cron:      cron.New(),
		status:    status,
	}
}

// Start registers the schedule and launches the cron loop. The first sweep
// fires on schedule, not at startup; use RunAll for an immediate pass.
func (s *Sweeper) Start(ctx context.Context) error {
	id, err := s.cron.AddFunc(s.schedule, func() {
		s.RunAll(ctx)
	})
	if err != nil {
		return err
	}
	s.entryID = id
	s.cron.Start()
	log.Printf("[Sweeper] Scheduled sweep %q for %d target(s)", s.schedule, len(s.targets))
	return nil
}

// Stop halts the cron loop and waits for a running trigger to return.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// RunAll sweeps every target once, sequentially. Returns false when a sweep
// is already in flight.
func (s *Sweeper) RunAll(ctx context.Context) bool {
	s.mu.Lock()
	if s.sweeping {
		s.mu.Unlock()
		log.Printf("[Sweeper] Sweep already running, skipping trigger")
		return false
	}
	s.sweeping = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.sweeping = false
		s.mu.Unlock()
	}()

	for _, target := range s.targets {
		if ctx.Err() != nil {
			return true
		}

		s.markRunning(target.Name())
		log.Printf("[Sweeper] Sweeping %s", target.Name())
		err := target.RunSweep(ctx, s.startPage, s.pages)
		s.markComplete(target.Name(), err)
		if err != nil {
			log.Printf("[Sweeper] Sweep of %s failed: %v", target.Name(), err)
		}
	}
	return true
}

// Status returns a snapshot of every target's state.
func (s *Sweeper) Status() []ServiceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statuses := make([]ServiceStatus, 0, len(s.targets))
	for _, t := range s.targets {
		statuses = append(statuses, *s.status[t.Name()])
	}
	return statuses
}

func (s *Sweeper) markRunning(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[name].Running = true
}

func (s *Sweeper) markComplete(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.status[name]
	st.Running = false
	st.LastRun = time.Now()
	st.RunCount++
	if entry := s.cron.Entry(s.entryID); !entry.Next.IsZero() {
		st.NextRun = entry.Next
	}
	if err != nil {
		st.LastError = err.Error()
	} else {
		st.LastError = ""
	}
}
