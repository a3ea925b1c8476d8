package poller

import (
	"testing"
	"time"

	"github.com/plantpulse/pulse_backend/models"
	"github.com/shopspring/decimal"
)

func TestSafetyCandidates_ExactSentinelMatchOnly(t *testing.T) {
	now := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	assets := map[string]models.Asset{"PRESS-02": {ID: 3, Code: "PRESS-02"}}

	rows := []DowntimeRow{
		{ID: 1, AssetCode: "PRESS-02", StartedAt: now, Minutes: decimal.NewFromInt(10), ReasonCode: "Safety Issue", Detail: "guard door open"},
		{ID: 2, AssetCode: "PRESS-02", StartedAt: now.Add(time.Minute), Minutes: decimal.NewFromInt(5), ReasonCode: "safety issue"},
		{ID: 3, AssetCode: "PRESS-02", StartedAt: now.Add(2 * time.Minute), Minutes: decimal.NewFromInt(5), ReasonCode: "Safety Issue - minor"},
		{ID: 4, AssetCode: "PRESS-02", StartedAt: now.Add(3 * time.Minute), Minutes: decimal.NewFromInt(5), ReasonCode: "Changeover"},
	}

	d := NewDetector(nil, nil)
	candidates := d.safetyCandidates(rows, assets)
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if candidates[0].Detail != "guard door open" {
		t.Fatalf("wrong row matched: %+v", candidates[0])
	}
}

func TestSafetyCandidates_DedupsWithinBatchOnSecond(t *testing.T) {
	base := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	assets := map[string]models.Asset{"PRESS-02": {ID: 3, Code: "PRESS-02"}}

	// Same incident observed by two overlapping polls with sub-second clock
	// jitter between the readings.
	rows := []DowntimeRow{
		{ID: 1, AssetCode: "PRESS-02", StartedAt: base.Add(120 * time.Millisecond), Minutes: decimal.NewFromInt(10), ReasonCode: models.SafetyReasonCode},
		{ID: 2, AssetCode: "PRESS-02", StartedAt: base.Add(740 * time.Millisecond), Minutes: decimal.NewFromInt(10), ReasonCode: models.SafetyReasonCode},
		// A full second later is a distinct incident.
		{ID: 3, AssetCode: "PRESS-02", StartedAt: base.Add(time.Second), Minutes: decimal.NewFromInt(10), ReasonCode: models.SafetyReasonCode},
	}

	d := NewDetector(nil, nil)
	candidates := d.safetyCandidates(rows, assets)
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates after dedup, got %d", len(candidates))
	}
	if !candidates[0].EventTimestamp.Equal(base) {
		t.Fatalf("expected first candidate at %s, got %s", base, candidates[0].EventTimestamp)
	}
	if !candidates[1].EventTimestamp.Equal(base.Add(time.Second)) {
		t.Fatalf("expected second candidate at %s, got %s", base.Add(time.Second), candidates[1].EventTimestamp)
	}
}

func TestSafetyCandidates_SameSecondDifferentAssetsBothKept(t *testing.T) {
	now := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	assets := map[string]models.Asset{
		"PRESS-02": {ID: 3, Code: "PRESS-02"},
		"CNC-01":   {ID: 7, Code: "CNC-01"},
	}
	rows := []DowntimeRow{
		{ID: 1, AssetCode: "PRESS-02", StartedAt: now, Minutes: decimal.NewFromInt(10), ReasonCode: models.SafetyReasonCode},
		{ID: 2, AssetCode: "CNC-01", StartedAt: now, Minutes: decimal.NewFromInt(10), ReasonCode: models.SafetyReasonCode},
	}

	d := NewDetector(nil, nil)
	if got := len(d.safetyCandidates(rows, assets)); got != 2 {
		t.Fatalf("expected 2 candidates, got %d", got)
	}
}

func TestSafetyCandidates_SkipsUnregisteredAndZeroTimestamp(t *testing.T) {
	now := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	assets := map[string]models.Asset{"PRESS-02": {ID: 3, Code: "PRESS-02"}}
	rows := []DowntimeRow{
		{ID: 1, AssetCode: "GHOST", StartedAt: now, ReasonCode: models.SafetyReasonCode},
		{ID: 2, AssetCode: "PRESS-02", ReasonCode: models.SafetyReasonCode},
	}

	d := NewDetector(nil, nil)
	if got := len(d.safetyCandidates(rows, assets)); got != 0 {
		t.Fatalf("expected 0 candidates, got %d", got)
	}
}
