package alerts

import (
	"context"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/plantpulse/pulse_backend/config"
	"github.com/plantpulse/pulse_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Dispatcher drains the safety-alert outbox to Pub/Sub. Rows are claimed in
// small batches with row locks so multiple replicas can run it concurrently;
// a row that keeps failing backs off exponentially and parks as DEAD after
// the attempt budget, where only the ops replay endpoint can revive it.
//
// Alert delivery is at-least-once. The subscriber side dedups on the alert id
// carried in the payload.
type Dispatcher struct {
	DB        *gorm.DB
	Logger    *logrus.Logger
	WorkerID  string
	BatchSize int
	Interval  time.Duration
	LockTTL   time.Duration
}

func NewDispatcher(db *gorm.DB, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		DB:        db,
		Logger:    logger,
		WorkerID:  "alerts-" + time.Now().Format("20060102-150405.000"),
		BatchSize: 50,
		Interval:  5 * time.Second,
		LockTTL:   30 * time.Second,
	}
}

type retryConfig struct {
	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

func getRetryConfig() retryConfig {
	cfg := retryConfig{
		maxAttempts: 8,
		baseBackoff: 5 * time.Second,
		maxBackoff:  10 * time.Minute,
	}

	if v := os.Getenv("ALERT_PUBLISH_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.maxAttempts = n
		}
	}
	if v := os.Getenv("ALERT_PUBLISH_BASE_BACKOFF_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.baseBackoff = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("ALERT_PUBLISH_MAX_BACKOFF_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.maxBackoff = time.Duration(n) * time.Second
		}
	}

	return cfg
}

func publishBackoff(attempt int, cfg retryConfig) time.Duration {
	if attempt <= 0 {
		return cfg.baseBackoff
	}
	// base * 2^(attempt-1), capped.
	exp := float64(attempt - 1)
	delay := time.Duration(float64(cfg.baseBackoff) * math.Pow(2, exp))
	if delay > cfg.maxBackoff {
		return cfg.maxBackoff
	}
	return delay
}

// Run loops until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	if d == nil || d.DB == nil {
		return
	}
	if d.Logger != nil {
		d.Logger.WithFields(logrus.Fields{
			"field":     "Dispatcher",
			"worker_id": d.WorkerID,
			"interval":  d.Interval.String(),
		}).Info("alert dispatcher started")
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.processOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.Interval):
		}
	}
}

// claimBatch locks due rows for this worker. SKIP LOCKED keeps replicas from
// blocking on each other's claims; a stale lock from a crashed worker is
// reclaimable after the TTL.
func (d *Dispatcher) claimBatch(ctx context.Context) []models.SafetyAlertRecord {
	now := time.Now().UTC()
	staleBefore := now.Add(-d.LockTTL)

	var claimed []models.SafetyAlertRecord
	err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.
			Where("publish_status IN ?", []string{models.AlertPublishStatusPending, models.AlertPublishStatusFailed}).
			Where("(next_attempt_at IS NULL OR next_attempt_at <= ?)", now).
			Where("(locked_at IS NULL OR locked_at <= ?)", staleBefore).
			Order("id ASC").
			Limit(d.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}
		for i := range claimed {
			claimed[i].LockedAt = &now
			claimed[i].LockedBy = &d.WorkerID
			if err := tx.Model(&models.SafetyAlertRecord{}).
				Where("id = ?", claimed[i].ID).
				Updates(map[string]interface{}{
					"publish_status": models.AlertPublishStatusProcessing,
					"locked_at":      claimed[i].LockedAt,
					"locked_by":      claimed[i].LockedBy,
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if d.Logger != nil {
			d.Logger.WithFields(logrus.Fields{
				"field":     "Dispatcher",
				"worker_id": d.WorkerID,
			}).Error("failed to claim alert batch: " + err.Error())
		}
		return nil
	}
	return claimed
}

func (d *Dispatcher) processOnce(ctx context.Context) {
	claimed := d.claimBatch(ctx)
	for _, rec := range claimed {
		msg := models.ConvertToSafetyAlertMessage(rec)
		messageID, err := config.PublishSafetyAlertWithResult(ctx, msg)
		if err != nil {
			d.markFailure(ctx, rec, err)
			continue
		}
		d.markSent(ctx, rec, messageID)
	}
}

func (d *Dispatcher) markSent(ctx context.Context, rec models.SafetyAlertRecord, messageID string) {
	now := time.Now().UTC()
	_ = d.DB.WithContext(ctx).Model(&models.SafetyAlertRecord{}).
		Where("id = ? AND publish_status <> ?", rec.ID, models.AlertPublishStatusDead).
		Updates(map[string]interface{}{
			"publish_status":     models.AlertPublishStatusSent,
			"pub_sub_message_id": &messageID,
			"published_at":       &now,
			"next_attempt_at":    nil,
			"last_publish_error": nil,
			"locked_at":          nil,
			"locked_by":          nil,
		}).Error

	if d.Logger != nil {
		d.Logger.WithFields(logrus.Fields{
			"field":      "Dispatcher",
			"record_id":  rec.ID,
			"asset_code": rec.AssetCode,
			"message_id": messageID,
		}).Info("safety alert published")
	}
}

func (d *Dispatcher) markFailure(ctx context.Context, rec models.SafetyAlertRecord, pubErr error) {
	cfg := getRetryConfig()
	now := time.Now().UTC()
	errMsg := pubErr.Error()

	attempts := rec.PublishAttempts + 1
	status := models.AlertPublishStatusFailed

	var nextAttemptAt *time.Time
	if attempts >= cfg.maxAttempts {
		status = models.AlertPublishStatusDead
		nextAttemptAt = nil
	} else {
		t := now.Add(publishBackoff(attempts, cfg))
		nextAttemptAt = &t
	}

	_ = d.DB.WithContext(ctx).Model(&models.SafetyAlertRecord{}).
		Where("id = ?", rec.ID).
		Updates(map[string]interface{}{
			"last_publish_error": &errMsg,
			"publish_attempts":   attempts,
			"next_attempt_at":    nextAttemptAt,
			"publish_status":     status,
			"locked_at":          nil,
			"locked_by":          nil,
		}).Error

	if d.Logger != nil {
		d.Logger.WithFields(logrus.Fields{
			"field":            "Dispatcher",
			"record_id":        rec.ID,
			"asset_code":       rec.AssetCode,
			"publish_status":   status,
			"publish_attempts": attempts,
		}).Error("safety alert publish failed: " + errMsg)
	}
}

// ReplayDead requeues DEAD rows for another publish cycle. Exposed through
// the ops endpoint; never happens automatically.
func ReplayDead(ctx context.Context, db *gorm.DB, ids []int) (int64, error) {
	q := db.WithContext(ctx).Model(&models.SafetyAlertRecord{}).
		Where("publish_status = ?", models.AlertPublishStatusDead)
	if len(ids) > 0 {
		q = q.Where("id IN ?", ids)
	}
	res := q.Updates(map[string]interface{}{
		"publish_status":     models.AlertPublishStatusPending,
		"publish_attempts":   0,
		"next_attempt_at":    nil,
		"last_publish_error": nil,
		"locked_at":          nil,
		"locked_by":          nil,
	})
	return res.RowsAffected, res.Error
}
