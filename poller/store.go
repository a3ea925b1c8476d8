package poller

import (
	"context"
	"time"

	"github.com/plantpulse/pulse_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PersistOutcome classifies one bounded-retry write.
type PersistOutcome string

const (
	PersistSuccess        PersistOutcome = "success"
	PersistRetriedSuccess PersistOutcome = "retried_success"
	PersistExhausted      PersistOutcome = "exhausted"
)

// PersistResult is returned instead of a bare error so the health surface can
// distinguish a clean write, a write that needed retries, and a write that
// gave up.
type PersistResult struct {
	Outcome  PersistOutcome
	Attempts int
	Err      error
}

// Store persists snapshot batches and enforces the retention window.
// The two operations are independent: cleanup failure never rolls back a
// write, and a failed write never blocks the next cycle's cleanup.
type Store struct {
	DB     *gorm.DB
	Logger *logrus.Logger

	Retention      time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
}

func NewStore(db *gorm.DB, logger *logrus.Logger, retention time.Duration) *Store {
	return &Store{
		DB:             db,
		Logger:         logger,
		Retention:      retention,
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
	}
}

// SaveSnapshots upserts a batch on (asset_id, captured_at). Conflicting rows
// are dropped, keeping snapshots immutable once written. Failures retry with
// exponential backoff up to MaxAttempts, then surface as a logged, non-fatal
// exhausted result.
func (s *Store) SaveSnapshots(ctx context.Context, snapshots []models.Snapshot) PersistResult {
	if len(snapshots) == 0 {
		return PersistResult{Outcome: PersistSuccess}
	}

	result := RetryWithBackoff(ctx, s.MaxAttempts, s.InitialBackoff, func() error {
		return s.DB.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "asset_id"}, {Name: "captured_at"}},
				DoNothing: true,
			}).
			Create(&snapshots).Error
	})

	if result.Outcome == PersistExhausted && s.Logger != nil {
		s.Logger.WithFields(logrus.Fields{
			"field":    "Store",
			"attempts": result.Attempts,
			"rows":     len(snapshots),
		}).Error("snapshot write exhausted retries: " + result.Err.Error())
	}
	return result
}

// Cleanup deletes snapshots older than the retention window and returns the
// number of rows purged.
func (s *Store) Cleanup(ctx context.Context) (int64, error) {
	cutoff := RetentionCutoff(time.Now().UTC(), s.Retention)
	res := s.DB.WithContext(ctx).
		Where("captured_at < ?", cutoff).
		Delete(&models.Snapshot{})
	if res.Error != nil {
		if s.Logger != nil {
			s.Logger.WithFields(logrus.Fields{
				"field":  "Store",
				"cutoff": cutoff.Format(time.RFC3339),
			}).Error("snapshot cleanup failed: " + res.Error.Error())
		}
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// RetentionCutoff returns the oldest timestamp still retained.
func RetentionCutoff(now time.Time, retention time.Duration) time.Time {
	return now.Add(-retention)
}

// RetryWithBackoff runs fn up to maxAttempts times, doubling the delay after
// each failure. Modeled as an explicit attempts loop, not exception-driven
// retry; the result type distinguishes success, retried-success and
// exhausted-failure.
func RetryWithBackoff(ctx context.Context, maxAttempts int, initialBackoff time.Duration, fn func() error) PersistResult {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	backoff := initialBackoff
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			outcome := PersistSuccess
			if attempt > 1 {
				outcome = PersistRetriedSuccess
			}
			return PersistResult{Outcome: outcome, Attempts: attempt}
		}
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return PersistResult{Outcome: PersistExhausted, Attempts: attempt, Err: ctx.Err()}
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return PersistResult{Outcome: PersistExhausted, Attempts: maxAttempts, Err: lastErr}
}
