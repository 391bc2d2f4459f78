package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lazyninja/reddit-influencer/bot"
)

type stubRunner struct {
	mu      sync.Mutex
	calls   int
	kinds   []bot.PostKind
	err     error
	report  *bot.Report
	block   chan struct{}
	started chan struct{}
	panic   bool
}

func (r *stubRunner) Run(ctx context.Context) (*bot.Report, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.panic {
		panic("boom")
	}
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return r.report, r.err
}

func (r *stubRunner) CreatePost(ctx context.Context, kind bot.PostKind) (*bot.Report, error) {
	r.mu.Lock()
	r.kinds = append(r.kinds, kind)
	r.mu.Unlock()
	return &bot.Report{PostKind: kind.String(), PostSubmitted: r.err == nil}, r.err
}

func (r *stubRunner) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type memActivity struct {
	mu    sync.Mutex
	lines []string
}

func (l *memActivity) Write(message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, message)
}

func (l *memActivity) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

func TestRunStore_EvictOldest(t *testing.T) {
	store := NewRunStore(5)
	ids := make([]string, 0, 6)
	for i := 0; i < 6; i++ {
		ids = append(ids, store.Create("schedule").ID)
	}
	_, ok := store.Snapshot(ids[0])
	require.False(t, ok)
	_, ok = store.Snapshot(ids[5])
	require.True(t, ok)

	list := store.List(0)
	require.Len(t, list, 5)
	require.Equal(t, ids[5], list[0].ID)
	require.Len(t, store.List(2), 2)
}

func TestRunStore_Finish(t *testing.T) {
	store := NewRunStore(2)
	ok := store.Create("manual")
	failed := store.Create("schedule")

	snap := store.Finish(ok.ID, &bot.Report{Upvotes: 3}, nil)
	require.Equal(t, RunStatusCompleted, snap.Status)
	require.Equal(t, 3, snap.Report.Upvotes)
	require.False(t, snap.FinishedAt.IsZero())

	snap = store.Finish(failed.ID, nil, errors.New("classifier down"))
	require.Equal(t, RunStatusFailed, snap.Status)
	require.Equal(t, "classifier down", snap.Error)
}

func TestRuntime_RunCycleRecordsRun(t *testing.T) {
	runner := &stubRunner{report: &bot.Report{HotPosts: 5, Upvotes: 5}}
	log := &memActivity{}
	rt := NewRuntime(runner, log, 3)

	snap, err := rt.RunCycle(context.Background(), "manual")
	require.NoError(t, err)
	require.Equal(t, RunStatusCompleted, snap.Status)
	require.Equal(t, "manual", snap.Trigger)
	require.Equal(t, 5, snap.Report.Upvotes)
	require.False(t, rt.InFlight())
	require.Len(t, rt.Runs.List(0), 1)
}

func TestRuntime_OverlappingCycleIsSkipped(t *testing.T) {
	runner := &stubRunner{block: make(chan struct{}), started: make(chan struct{}, 1)}
	log := &memActivity{}
	rt := NewRuntime(runner, log, 3)

	done := make(chan error, 1)
	go func() {
		_, err := rt.RunCycle(context.Background(), "schedule")
		done <- err
	}()
	<-runner.started
	require.True(t, rt.InFlight())

	_, err := rt.RunCycle(context.Background(), "manual")
	require.ErrorIs(t, err, ErrCycleInFlight)
	require.Contains(t, log.Lines(), "Run skipped: a cycle is already in progress.")

	close(runner.block)
	require.NoError(t, <-done)
	require.Equal(t, 1, runner.Calls())
	require.Len(t, rt.Runs.List(0), 1)
}

func TestRuntime_FailedCycleIsLogged(t *testing.T) {
	runner := &stubRunner{err: errors.New("classifier down")}
	log := &memActivity{}
	rt := NewRuntime(runner, log, 3)

	snap, err := rt.RunCycle(context.Background(), "schedule")
	require.Error(t, err)
	require.Equal(t, RunStatusFailed, snap.Status)
	require.Contains(t, log.Lines(), "❌ Cycle failed: classifier down")

	// the guard is released after a failure
	_, err = rt.RunCycle(context.Background(), "schedule")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrCycleInFlight)
}

func TestRuntime_PanicBecomesError(t *testing.T) {
	runner := &stubRunner{panic: true}
	rt := NewRuntime(runner, &memActivity{}, 3)

	snap, err := rt.RunCycle(context.Background(), "manual")
	require.Error(t, err)
	require.Contains(t, err.Error(), "panic: boom")
	require.Equal(t, RunStatusFailed, snap.Status)
	require.False(t, rt.InFlight())
}

func TestRuntime_CancelInFlight(t *testing.T) {
	runner := &stubRunner{block: make(chan struct{}), started: make(chan struct{}, 1)}
	rt := NewRuntime(runner, &memActivity{}, 3)

	done := make(chan error, 1)
	go func() {
		_, err := rt.RunCycle(context.Background(), "schedule")
		done <- err
	}()
	<-runner.started
	rt.CancelInFlight()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cycle did not stop after cancel")
	}
}

func TestScheduler_RunsOnEveryTick(t *testing.T) {
	runner := &stubRunner{}
	rt := NewRuntime(runner, &memActivity{}, 10)
	s := NewScheduler(rt, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	require.True(t, s.Status().Running)

	deadline := time.Now().Add(2 * time.Second)
	for runner.Calls() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("scheduler ran %d cycles", runner.Calls())
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	s.Wait()
	require.False(t, s.Status().Running)
	for _, run := range rt.Runs.List(0) {
		require.Equal(t, "schedule", run.Trigger)
	}
}
