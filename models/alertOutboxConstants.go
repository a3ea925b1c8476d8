package models

// Outbox publish statuses for SafetyAlertRecord.PublishStatus.
// Keep these as strings (DB values) for backwards compatibility.
const (
	AlertPublishStatusPending    = "PENDING"
	AlertPublishStatusProcessing = "PROCESSING"
	AlertPublishStatusSent       = "SENT"
	AlertPublishStatusFailed     = "FAILED"
	AlertPublishStatusDead       = "DEAD"
)
