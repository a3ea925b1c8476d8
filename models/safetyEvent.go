package models

import (
	"context"
	"time"

	"github.com/plantpulse/pulse_backend/config"
)

// SafetyEvent is an incident record emitted by the detector. Never
// auto-deleted; the only in-place update is acknowledgment, owned by the
// safety review workflow.
//
// Dedup key is (asset_id, event_timestamp), not a content hash: the same
// incident is re-observed across overlapping polling windows and must land
// exactly once. Timestamps are truncated to the second before insert so
// sub-second clock jitter between polls cannot split one incident in two.
type SafetyEvent struct {
	ID             int       `gorm:"primary_key" json:"id"`
	AssetID        int       `gorm:"not null;uniqueIndex:uq_safety_asset_ts,priority:1" json:"asset_id"`
	AssetCode      string    `gorm:"size:64;not null;index" json:"asset_code"`
	EventTimestamp time.Time `gorm:"not null;uniqueIndex:uq_safety_asset_ts,priority:2" json:"event_timestamp"`
	ReasonCode     string    `gorm:"size:100;not null" json:"reason_code"`
	Detail         string    `gorm:"size:500" json:"detail"`

	Acknowledged   *bool      `gorm:"not null;default:false" json:"acknowledged"`
	AcknowledgedBy *string    `gorm:"size:100" json:"acknowledged_by"`
	AcknowledgedAt *time.Time `json:"acknowledged_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// UnresolvedSafetyEvents returns unacknowledged events, oldest first.
func UnresolvedSafetyEvents(ctx context.Context) ([]SafetyEvent, error) {
	db := config.GetDB()
	var events []SafetyEvent
	err := db.WithContext(ctx).
		Where("acknowledged = ?", false).
		Order("event_timestamp ASC").
		Find(&events).Error
	return events, err
}

// SafetyEventsOn returns events whose timestamp falls on the given calendar day (UTC).
func SafetyEventsOn(ctx context.Context, day time.Time) ([]SafetyEvent, error) {
	db := config.GetDB()
	start := day.UTC().Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)
	var events []SafetyEvent
	err := db.WithContext(ctx).
		Where("event_timestamp >= ? AND event_timestamp < ?", start, end).
		Order("event_timestamp ASC").
		Find(&events).Error
	return events, err
}

// AcknowledgeSafetyEvent marks one event reviewed. This is the only mutation
// this table ever sees.
func AcknowledgeSafetyEvent(ctx context.Context, id int, reviewer string) error {
	db := config.GetDB()
	now := time.Now().UTC()
	return db.WithContext(ctx).Model(&SafetyEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"acknowledged":    true,
			"acknowledged_by": &reviewer,
			"acknowledged_at": &now,
		}).Error
}
