package poller

import (
	"context"
	"time"

	"github.com/plantpulse/pulse_backend/models"
	"github.com/plantpulse/pulse_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Detector scans downtime rows for the safety sentinel and records one
// SafetyEvent per incident. The alert-outbox row is written in the same
// transaction so a detected incident can never exist without a pending alert.
type Detector struct {
	DB     *gorm.DB
	Logger *logrus.Logger
}

func NewDetector(db *gorm.DB, logger *logrus.Logger) *Detector {
	return &Detector{DB: db, Logger: logger}
}

// candidateKey is the dedup key: asset + event timestamp truncated to the
// second. Truncation absorbs sub-second clock jitter between overlapping
// polls that re-observe the same incident.
type candidateKey struct {
	assetID int
	unix    int64
}

// safetyCandidates filters downtime rows down to deduplicated sentinel
// matches. Only an exact reason-code match counts; near-matches and partial
// strings stay ordinary downtime. Duplicate asset+second pairs within the
// batch collapse to one candidate.
func (d *Detector) safetyCandidates(downtime []DowntimeRow, assetsByCode map[string]models.Asset) []models.SafetyEvent {
	seen := make(map[candidateKey]bool)
	candidates := make([]models.SafetyEvent, 0)

	for _, row := range downtime {
		if row.ReasonCode != models.SafetyReasonCode {
			continue
		}

		asset, ok := assetsByCode[row.AssetCode]
		if !ok {
			d.warn(row, "skipping safety row for unregistered asset")
			continue
		}
		if row.StartedAt.IsZero() {
			d.warn(row, "skipping safety row with zero timestamp")
			continue
		}

		eventTs := row.StartedAt.UTC().Truncate(time.Second)
		key := candidateKey{assetID: asset.ID, unix: eventTs.Unix()}
		if seen[key] {
			continue
		}
		seen[key] = true

		candidates = append(candidates, models.SafetyEvent{
			AssetID:        asset.ID,
			AssetCode:      asset.Code,
			EventTimestamp: eventTs,
			ReasonCode:     row.ReasonCode,
			Detail:         row.Detail,
			Acknowledged:   utils.NewFalse(),
		})
	}
	return candidates
}

// Detect emits safety events for rows whose reason code exactly equals the
// sentinel, skipping duplicates within the batch and rows already stored.
// Returns the number of new events created. A malformed row is logged and
// skipped without blocking its siblings.
func (d *Detector) Detect(ctx context.Context, downtime []DowntimeRow, assetsByCode map[string]models.Asset) (int, error) {
	if d.DB == nil {
		return 0, gorm.ErrInvalidDB
	}

	created := 0
	correlationID, _ := utils.GetRunIdFromContext(ctx)

	for _, event := range d.safetyCandidates(downtime, assetsByCode) {
		event := event

		inserted := false
		err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "asset_id"}, {Name: "event_timestamp"}},
				DoNothing: true,
			}).Create(&event)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				// Already recorded by an earlier overlapping poll.
				return nil
			}
			inserted = true

			alert := models.SafetyAlertRecord{
				SafetyEventID:  event.ID,
				AssetID:        event.AssetID,
				AssetCode:      event.AssetCode,
				EventTimestamp: event.EventTimestamp,
				ReasonCode:     event.ReasonCode,
				Detail:         event.Detail,
				CorrelationId:  correlationID,
				PublishStatus:  models.AlertPublishStatusPending,
			}
			if err := tx.Create(&alert).Error; err != nil {
				return err
			}

			if d.Logger != nil {
				d.Logger.WithFields(logrus.Fields{
					"field":           "Detector",
					"asset_code":      event.AssetCode,
					"event_timestamp": event.EventTimestamp.Format(time.RFC3339),
					"detail":          event.Detail,
				}).Warn("safety incident detected")
			}
			return nil
		})
		if err != nil {
			// Row-level persistence failure: isolated, logged, siblings
			// continue.
			if d.Logger != nil {
				d.Logger.WithFields(logrus.Fields{
					"field":      "Detector",
					"asset_code": event.AssetCode,
				}).Warn("failed to record safety event: " + err.Error())
			}
			continue
		}
		if inserted {
			created++
		}
	}
	return created, nil
}

func (d *Detector) warn(row DowntimeRow, msg string) {
	if d.Logger == nil {
		return
	}
	d.Logger.WithFields(logrus.Fields{
		"field":      "Detector",
		"asset_code": row.AssetCode,
		"row_id":     row.ID,
	}).Warn(msg)
}
