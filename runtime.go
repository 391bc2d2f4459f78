package main

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lazyninja/reddit-influencer/bot"
)

var ErrCycleInFlight = errors.New("a cycle is already in progress")

func shortenOneLine(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.TrimSpace(s)
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

type CycleRunner interface {
	Run(ctx context.Context) (*bot.Report, error)
	CreatePost(ctx context.Context, kind bot.PostKind) (*bot.Report, error)
}

// Runtime owns the single in-flight cycle. The scheduler, the dashboard
// and MCP all start cycles through RunCycle.
type Runtime struct {
	runner CycleRunner
	log    bot.ActivityLog
	Runs   *RunStore

	inFlight atomic.Bool

	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

func NewRuntime(runner CycleRunner, log bot.ActivityLog, history int) *Runtime {
	return &Runtime{
		runner: runner,
		log:    log,
		Runs:   NewRunStore(history),
	}
}

func (r *Runtime) InFlight() bool {
	return r.inFlight.Load()
}

// RunCycle runs one cycle synchronously. An overlapping call returns
// ErrCycleInFlight immediately instead of queueing.
func (r *Runtime) RunCycle(ctx context.Context, trigger string) (RunSnapshot, error) {
	return r.exclusive(ctx, trigger, r.runner.Run)
}

// CreatePost submits a single post of the given kind under the same guard
// as a full cycle.
func (r *Runtime) CreatePost(ctx context.Context, trigger string, kind bot.PostKind) (RunSnapshot, error) {
	return r.exclusive(ctx, trigger, func(ctx context.Context) (*bot.Report, error) {
		return r.runner.CreatePost(ctx, kind)
	})
}

func (r *Runtime) exclusive(ctx context.Context, trigger string, fn func(context.Context) (*bot.Report, error)) (RunSnapshot, error) {
	if !r.inFlight.CompareAndSwap(false, true) {
		r.log.Write("Run skipped: a cycle is already in progress.")
		cyclesTotal.WithLabelValues(trigger, string(RunStatusSkipped)).Inc()
		logrus.WithFields(logrus.Fields{"trigger": trigger}).Warn("runtime: cycle skipped")
		return RunSnapshot{}, ErrCycleInFlight
	}
	defer r.inFlight.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	r.cancelMu.Lock()
	r.cancel = cancel
	r.cancelMu.Unlock()
	defer func() {
		r.cancelMu.Lock()
		r.cancel = nil
		r.cancelMu.Unlock()
		cancel()
	}()

	run := r.Runs.Create(trigger)
	logrus.WithFields(logrus.Fields{"run_id": run.ID, "trigger": trigger}).Info("runtime: cycle started")

	report, err := runSafely(ctx, fn)
	snap := r.Runs.Finish(run.ID, report, err)

	cyclesTotal.WithLabelValues(trigger, string(snap.Status)).Inc()
	cycleDuration.Observe(snap.FinishedAt.Sub(snap.StartedAt).Seconds())
	fields := logrus.Fields{
		"run_id":      run.ID,
		"trigger":     trigger,
		"status":      snap.Status,
		"duration_ms": int(snap.FinishedAt.Sub(snap.StartedAt) / time.Millisecond),
	}
	if err != nil {
		fields["error"] = shortenOneLine(err.Error(), 200)
		logrus.WithFields(fields).Error("runtime: cycle failed")
		r.log.Write("❌ Cycle failed: " + shortenOneLine(err.Error(), 500))
		return snap, err
	}
	logrus.WithFields(fields).Info("runtime: cycle finished")
	return snap, nil
}

func runSafely(ctx context.Context, fn func(context.Context) (*bot.Report, error)) (report *bot.Report, err error) {
	defer func() {
		if p := recover(); p != nil {
			logrus.Errorf("runtime: cycle panicked: %v\n%s", p, debug.Stack())
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn(ctx)
}

// CancelInFlight aborts the running cycle, if any.
func (r *Runtime) CancelInFlight() {
	r.cancelMu.Lock()
	defer r.cancelMu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
}

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusSkipped   RunStatus = "skipped"
)

type Run struct {
	ID         string
	Trigger    string
	Status     RunStatus
	StartedAt  time.Time
	FinishedAt time.Time
	Error      string
	Report     *bot.Report
}

type RunSnapshot struct {
	ID         string      `json:"id"`
	Trigger    string      `json:"trigger"`
	Status     RunStatus   `json:"status"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at,omitempty"`
	Error      string      `json:"error,omitempty"`
	Report     *bot.Report `json:"report,omitempty"`
}

// RunStore keeps the most recent runs in memory, evicting the oldest once
// capacity is reached.
type RunStore struct {
	cap   int
	mu    sync.Mutex
	order []string
	runs  map[string]*Run
	now   func() time.Time
}

func NewRunStore(capacity int) *RunStore {
	if capacity < 1 {
		capacity = 1
	}
	return &RunStore{cap: capacity, runs: make(map[string]*Run), now: time.Now}
}

func (s *RunStore) Create(trigger string) *Run {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.order) >= s.cap {
		oldest := s.order[0]
		delete(s.runs, oldest)
		s.order = s.order[1:]
	}

	run := &Run{ID: newRunID(), Trigger: trigger, Status: RunStatusRunning, StartedAt: s.now()}
	s.runs[run.ID] = run
	s.order = append(s.order, run.ID)
	return run
}

func (s *RunStore) Finish(id string, report *bot.Report, err error) RunSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok {
		return RunSnapshot{ID: id}
	}
	run.FinishedAt = s.now()
	run.Report = report
	if err != nil {
		run.Status = RunStatusFailed
		run.Error = err.Error()
	} else {
		run.Status = RunStatusCompleted
	}
	return snapshotOf(run)
}

func (s *RunStore) Snapshot(id string) (RunSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok {
		return RunSnapshot{}, false
	}
	return snapshotOf(run), true
}

// List returns up to limit runs, newest first. limit <= 0 returns all.
func (s *RunStore) List(limit int) []RunSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]RunSnapshot, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, snapshotOf(s.runs[s.order[i]]))
	}
	return out
}

func snapshotOf(run *Run) RunSnapshot {
	var report *bot.Report
	if run.Report != nil {
		cp := *run.Report
		report = &cp
	}
	return RunSnapshot{
		ID:         run.ID,
		Trigger:    run.Trigger,
		Status:     run.Status,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Error:      run.Error,
		Report:     report,
	}
}

func newRunID() string {
	b := make([]byte, 8)
	if _, err := crand.Read(b); err == nil {
		return hex.EncodeToString(b)
	}
	return hex.EncodeToString([]byte(time.Now().Format("20060102150405.000000000")))
}
