package main

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Scheduler starts a cycle every interval until its context ends. Ticks that
// land while a cycle is still running are dropped.
type Scheduler struct {
	interval time.Duration
	runtime  *Runtime

	mu      sync.RWMutex
	running bool
	nextRun time.Time
	done    chan struct{}
}

type SchedulerStatus struct {
	Running  bool          `json:"running"`
	Interval time.Duration `json:"-"`
	Every    string        `json:"interval"`
	NextRun  *time.Time    `json:"next_run,omitempty"`
}

func NewScheduler(runtime *Runtime, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{interval: interval, runtime: runtime}
}

func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.nextRun = time.Now().Add(s.interval)
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{"interval": s.interval.String()}).Info("scheduler: started")
	go s.loop(ctx, done)
}

// Wait blocks until the loop has exited after its context was cancelled.
func (s *Scheduler) Wait() {
	s.mu.RLock()
	done := s.done
	s.mu.RUnlock()
	if done != nil {
		<-done
	}
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer func() {
		ticker.Stop()
		s.mu.Lock()
		s.running = false
		s.nextRun = time.Time{}
		s.mu.Unlock()
		close(done)
		logrus.Info("scheduler: stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			schedulerTicks.Inc()
			_, err := s.runtime.RunCycle(ctx, "schedule")
			if err != nil && !errors.Is(err, ErrCycleInFlight) && ctx.Err() == nil {
				logrus.Warnf("scheduler: cycle ended with error: %v", err)
			}
			s.mu.Lock()
			s.nextRun = time.Now().Add(s.interval)
			s.mu.Unlock()
		}
	}
}

func (s *Scheduler) Status() SchedulerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := SchedulerStatus{Running: s.running, Interval: s.interval, Every: s.interval.String()}
	if !s.nextRun.IsZero() {
		next := s.nextRun
		st.NextRun = &next
	}
	return st
}
