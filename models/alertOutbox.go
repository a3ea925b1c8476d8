package models

import (
	"time"

	"github.com/plantpulse/pulse_backend/config"
)

// SafetyAlertRecord is the outbox row for one safety-alert publication.
// The detector writes it in the same transaction as the SafetyEvent; the
// dispatcher publishes it to Pub/Sub after commit. Publishing is a side
// channel: pipeline correctness never depends on it.
type SafetyAlertRecord struct {
	ID            int    `gorm:"primary_key" json:"id"`
	SafetyEventID int    `gorm:"not null;index" json:"safety_event_id"`
	AssetID       int    `gorm:"not null" json:"asset_id"`
	AssetCode     string `gorm:"size:64;not null" json:"asset_code"`

	EventTimestamp time.Time `gorm:"not null" json:"event_timestamp"`
	ReasonCode     string    `gorm:"size:100;not null" json:"reason_code"`
	Detail         string    `gorm:"size:500" json:"detail"`
	CorrelationId  string    `gorm:"size:64" json:"correlation_id"`

	PublishStatus    string     `gorm:"size:16;not null;default:PENDING;index" json:"publish_status"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `json:"next_attempt_at"`
	LockedAt         *time.Time `json:"locked_at"`
	LockedBy         *string    `gorm:"size:64" json:"locked_by"`
	LastPublishError *string    `gorm:"size:500" json:"last_publish_error"`
	PubSubMessageId  *string    `gorm:"size:64" json:"pub_sub_message_id"`
	PublishedAt      *time.Time `json:"published_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// ConvertToSafetyAlertMessage maps an outbox row to its wire payload.
func ConvertToSafetyAlertMessage(rec SafetyAlertRecord) config.SafetyAlertMessage {
	return config.SafetyAlertMessage{
		ID:             rec.ID,
		AssetID:        rec.AssetID,
		AssetCode:      rec.AssetCode,
		EventTimestamp: rec.EventTimestamp,
		ReasonCode:     rec.ReasonCode,
		Detail:         rec.Detail,
		CorrelationId:  rec.CorrelationId,
	}
}
