package poller

import (
	"context"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("pulse-backend/poller")

const schedulerLockKey = "Lock:PollerRun"

// RunStatus is the observable state of the scheduler, served by the status
// endpoint. All fields are written under the scheduler's mutex; readers get a
// copy.
type RunStatus struct {
	State              string         `json:"state"`
	LastRunAt          *time.Time     `json:"last_run_at"`
	LastSuccessAt      *time.Time     `json:"last_success_at"`
	LastError          string         `json:"last_error,omitempty"`
	LastRunId          string         `json:"last_run_id,omitempty"`
	NextRunAt          *time.Time     `json:"next_run_at"`
	RunsCompleted      int64          `json:"runs_completed"`
	SkippedTicks       int64          `json:"skipped_ticks"`
	LastSnapshots      int            `json:"last_snapshots"`
	LastSafetyEvents   int            `json:"last_safety_events"`
	LastPersistOutcome PersistOutcome `json:"last_persist_outcome,omitempty"`
}

const (
	StateIdle    = "idle"
	StateRunning = "running"
)

// Runner is the unit of work the scheduler drives once per tick.
type Runner interface {
	Run(ctx context.Context) (RunReport, error)
}

// Scheduler fires the pipeline on a fixed interval, once immediately at
// startup and then on every tick. At most one run is ever in flight: a tick
// that lands while a run is still going is skipped and counted, never queued.
type Scheduler struct {
	Interval time.Duration
	Pipeline Runner
	Logger   *logrus.Logger

	// Locker guards against concurrent polls from multiple replicas. Best
	// effort: when redis is unreachable the scheduler proceeds alone, the
	// in-process mutex still holds the single-flight invariant.
	Locker *redislock.Client

	mu      sync.Mutex
	running bool
	status  RunStatus
}

func NewScheduler(interval time.Duration, pipeline Runner, logger *logrus.Logger, locker *redislock.Client) *Scheduler {
	return &Scheduler{
		Interval: interval,
		Pipeline: pipeline,
		Logger:   logger,
		Locker:   locker,
		status:   RunStatus{State: StateIdle},
	}
}

// Status returns a point-in-time copy of the scheduler state.
func (s *Scheduler) Status() RunStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Start blocks until ctx is cancelled. The first run fires immediately so a
// fresh deploy does not sit dark for a full interval.
func (s *Scheduler) Start(ctx context.Context) {
	s.Logger.WithFields(logrus.Fields{
		"field":    "Scheduler",
		"interval": s.Interval.String(),
	}).Info("scheduler started")

	s.tick(ctx)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.Logger.WithFields(logrus.Fields{"field": "Scheduler"}).Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick attempts one run. Returns immediately when a run is already in
// flight.
func (s *Scheduler) tick(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.status.SkippedTicks++
		skipped := s.status.SkippedTicks
		// The ticker keeps firing while a long run holds the slot; advertise
		// the next tick, not the one that already passed.
		next := time.Now().UTC().Add(s.Interval)
		s.status.NextRunAt = &next
		s.mu.Unlock()
		s.Logger.WithFields(logrus.Fields{
			"field":         "Scheduler",
			"skipped_ticks": skipped,
		}).Warn("previous run still in flight, skipping tick")
		return
	}
	s.running = true
	now := time.Now().UTC()
	next := now.Add(s.Interval)
	s.status.State = StateRunning
	s.status.LastRunAt = &now
	s.status.NextRunAt = &next
	s.mu.Unlock()

	go s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.status.State = StateIdle
		s.mu.Unlock()
	}()

	// Replica guard. ErrNotObtained means another replica is mid-poll; the
	// snapshot upsert makes a double poll harmless, so losing the lock only
	// costs a skipped cycle, never correctness.
	if s.Locker != nil {
		lock, err := s.Locker.Obtain(ctx, schedulerLockKey, s.Interval, nil)
		if err == redislock.ErrNotObtained {
			s.mu.Lock()
			s.status.SkippedTicks++
			s.mu.Unlock()
			s.Logger.WithFields(logrus.Fields{
				"field": "Scheduler",
			}).Warn("another replica holds the poll lock, skipping run")
			return
		} else if err != nil {
			s.Logger.WithFields(logrus.Fields{
				"field": "Scheduler",
			}).Warn("redis lock unavailable, proceeding without replica guard: " + err.Error())
		} else {
			defer lock.Release(context.Background())
		}
	}

	runCtx, span := tracer.Start(ctx, "poller.run")
	defer span.End()

	report, err := s.Pipeline.Run(runCtx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.RunsCompleted++
	s.status.LastRunId = report.RunId
	s.status.LastSnapshots = report.Snapshots
	s.status.LastSafetyEvents = report.SafetyEvents
	s.status.LastPersistOutcome = report.PersistResult.Outcome
	if err != nil {
		s.status.LastError = err.Error()
		return
	}
	s.status.LastError = ""
	done := time.Now().UTC()
	s.status.LastSuccessAt = &done
}
