package models

import (
	"log"

	"github.com/plantpulse/pulse_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Asset{}, &CostCenter{},
		&Snapshot{}, &SafetyEvent{}, &DailySummary{},
		&SafetyAlertRecord{},
		&User{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
