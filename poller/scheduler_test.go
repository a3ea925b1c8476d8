package poller

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type blockingRunner struct {
	runs    int32
	started chan struct{}
	release chan struct{}
}

func (r *blockingRunner) Run(ctx context.Context) (RunReport, error) {
	atomic.AddInt32(&r.runs, 1)
	r.started <- struct{}{}
	<-r.release
	return RunReport{RunId: "run-1", Snapshots: 4, PersistResult: PersistResult{Outcome: PersistSuccess, Attempts: 1}}, nil
}

func waitForIdle(t *testing.T, s *Scheduler) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.Status().State == StateIdle {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("scheduler never returned to idle")
}

func TestScheduler_OverlappingTicksRunOnce(t *testing.T) {
	runner := &blockingRunner{started: make(chan struct{}, 1), release: make(chan struct{})}
	s := NewScheduler(time.Hour, runner, testLogger(), nil)

	s.tick(context.Background())
	<-runner.started

	// Three ticks land while the first run is still in flight. Exactly zero
	// of them may start a second run.
	for i := 0; i < 3; i++ {
		s.tick(context.Background())
	}

	if got := atomic.LoadInt32(&runner.runs); got != 1 {
		t.Fatalf("expected exactly 1 run in flight, got %d", got)
	}
	status := s.Status()
	if status.State != StateRunning {
		t.Fatalf("expected running state, got %s", status.State)
	}
	if status.SkippedTicks != 3 {
		t.Fatalf("expected 3 skipped ticks, got %d", status.SkippedTicks)
	}

	close(runner.release)
	waitForIdle(t, s)

	// A tick after completion starts a fresh run.
	runner.release = make(chan struct{})
	s.tick(context.Background())
	<-runner.started
	if got := atomic.LoadInt32(&runner.runs); got != 2 {
		t.Fatalf("expected second run after completion, got %d", got)
	}
	close(runner.release)
	waitForIdle(t, s)
}

func TestScheduler_StatusReflectsCompletedRun(t *testing.T) {
	runner := &blockingRunner{started: make(chan struct{}, 1), release: make(chan struct{})}
	s := NewScheduler(time.Hour, runner, testLogger(), nil)

	s.tick(context.Background())
	<-runner.started
	close(runner.release)
	waitForIdle(t, s)

	status := s.Status()
	if status.RunsCompleted != 1 {
		t.Fatalf("expected 1 completed run, got %d", status.RunsCompleted)
	}
	if status.LastRunId != "run-1" {
		t.Fatalf("expected last run id recorded, got %q", status.LastRunId)
	}
	if status.LastSnapshots != 4 {
		t.Fatalf("expected 4 snapshots recorded, got %d", status.LastSnapshots)
	}
	if status.LastPersistOutcome != PersistSuccess {
		t.Fatalf("expected persist outcome %s, got %s", PersistSuccess, status.LastPersistOutcome)
	}
	if status.LastSuccessAt == nil {
		t.Fatal("expected last success timestamp")
	}
	if status.LastError != "" {
		t.Fatalf("expected empty last error, got %q", status.LastError)
	}
	if status.NextRunAt == nil {
		t.Fatal("expected next run timestamp")
	}
}

func TestScheduler_SkippedTickRefreshesNextRun(t *testing.T) {
	runner := &blockingRunner{started: make(chan struct{}, 1), release: make(chan struct{})}
	s := NewScheduler(time.Hour, runner, testLogger(), nil)

	s.tick(context.Background())
	<-runner.started
	first := s.Status().NextRunAt
	if first == nil {
		t.Fatal("expected next run timestamp after first tick")
	}

	time.Sleep(10 * time.Millisecond)
	s.tick(context.Background())

	status := s.Status()
	if status.SkippedTicks != 1 {
		t.Fatalf("expected 1 skipped tick, got %d", status.SkippedTicks)
	}
	if status.NextRunAt == nil || !status.NextRunAt.After(*first) {
		t.Fatalf("expected next run advanced past %s on skip, got %v", first, status.NextRunAt)
	}

	close(runner.release)
	waitForIdle(t, s)
}

type failingRunner struct{}

func (failingRunner) Run(ctx context.Context) (RunReport, error) {
	return RunReport{RunId: "run-err", PersistResult: PersistResult{Outcome: PersistExhausted, Attempts: 3}}, errors.New("historian unreachable")
}

func TestScheduler_FailedRunKeepsLastSuccess(t *testing.T) {
	s := NewScheduler(time.Hour, failingRunner{}, testLogger(), nil)

	earlier := time.Now().UTC().Add(-time.Hour)
	s.status.LastSuccessAt = &earlier

	s.tick(context.Background())
	waitForIdle(t, s)

	status := s.Status()
	if status.LastError != "historian unreachable" {
		t.Fatalf("expected failure recorded, got %q", status.LastError)
	}
	if status.LastSuccessAt == nil || !status.LastSuccessAt.Equal(earlier) {
		t.Fatalf("expected last success untouched at %s, got %v", earlier, status.LastSuccessAt)
	}
	if status.LastPersistOutcome != PersistExhausted {
		t.Fatalf("expected persist outcome %s, got %s", PersistExhausted, status.LastPersistOutcome)
	}
}
