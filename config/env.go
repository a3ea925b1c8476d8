package config

import (
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Poller / insights tuning knobs. Everything here has a stated default and is
// overridable from the environment without a code change.

// PollInterval is the scheduler tick interval.
// Env: POLL_INTERVAL_MINUTES (default 15)
func PollInterval() time.Duration {
	return time.Duration(intFromEnv("POLL_INTERVAL_MINUTES", 15)) * time.Minute
}

// RollingWindow is the trailing interval each poll queries from the historian.
// Env: ROLLING_WINDOW_MINUTES (default 30)
func RollingWindow() time.Duration {
	return time.Duration(intFromEnv("ROLLING_WINDOW_MINUTES", 30)) * time.Minute
}

// SnapshotRetention is the maximum age of a stored snapshot before cleanup.
// Env: RETENTION_HOURS (default 24)
func SnapshotRetention() time.Duration {
	return time.Duration(intFromEnv("RETENTION_HOURS", 24)) * time.Hour
}

// PollTimeout bounds a single historian fetch.
// Env: POLL_TIMEOUT_SECONDS (default 60)
func PollTimeout() time.Duration {
	return time.Duration(intFromEnv("POLL_TIMEOUT_SECONDS", 60)) * time.Second
}

// SummaryTimeout bounds a single text-generation call.
// Env: SUMMARY_TIMEOUT_SECONDS (default 30)
func SummaryTimeout() time.Duration {
	return time.Duration(intFromEnv("SUMMARY_TIMEOUT_SECONDS", 30)) * time.Second
}

// DefaultHourlyRate is the cost fallback when an asset has no cost center.
// Results computed with it are flagged estimated.
// Env: DEFAULT_HOURLY_RATE (default 250)
func DefaultHourlyRate() decimal.Decimal {
	return decimalFromEnv("DEFAULT_HOURLY_RATE", decimal.NewFromInt(250))
}

// FinancialActionThreshold is the daily loss above which an asset earns a
// financial action item.
// Env: FINANCIAL_ACTION_THRESHOLD (default 1000)
func FinancialActionThreshold() decimal.Decimal {
	return decimalFromEnv("FINANCIAL_ACTION_THRESHOLD", decimal.NewFromInt(1000))
}

// SafetyAlertTopic is the Pub/Sub topic for safety alert publications.
// Env: SAFETY_ALERT_TOPIC (default "safety-alerts")
func SafetyAlertTopic() string {
	return envOrDefault("SAFETY_ALERT_TOPIC", "safety-alerts")
}

func decimalFromEnv(key string, def decimal.Decimal) decimal.Decimal {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return def
	}
	return d
}
