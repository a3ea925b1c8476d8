package poller

import (
	"testing"
	"time"

	"github.com/plantpulse/pulse_backend/models"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestComputeVariance_BandBoundaries(t *testing.T) {
	cases := []struct {
		name     string
		actual   string
		target   string
		variance string
		status   models.SnapshotStatus
	}{
		{"exactly on target", "100", "100", "0", models.SnapshotStatusOnTarget},
		{"at lower band edge", "95", "100", "-5", models.SnapshotStatusOnTarget},
		{"at upper band edge", "105", "100", "5", models.SnapshotStatusOnTarget},
		{"just below band", "94.9", "100", "-5.1", models.SnapshotStatusBelowTarget},
		{"just above band", "105.1", "100", "5.1", models.SnapshotStatusAboveTarget},
		{"far below", "50", "100", "-50", models.SnapshotStatusBelowTarget},
		{"zero actual", "0", "100", "-100", models.SnapshotStatusBelowTarget},
	}
	for _, tc := range cases {
		variance, status := ComputeVariance(dec(tc.actual), dec(tc.target))
		if !variance.Valid {
			t.Fatalf("%s: expected valid variance", tc.name)
		}
		if !variance.Decimal.Equal(dec(tc.variance)) {
			t.Fatalf("%s: expected variance %s, got %s", tc.name, tc.variance, variance.Decimal.String())
		}
		if status != tc.status {
			t.Fatalf("%s: expected status %s, got %s", tc.name, tc.status, status)
		}
	}
}

func TestComputeVariance_ZeroTargetIsUnknownNotError(t *testing.T) {
	variance, status := ComputeVariance(dec("120"), decimal.Zero)
	if variance.Valid {
		t.Fatalf("expected null variance for zero target, got %s", variance.Decimal.String())
	}
	if status != models.SnapshotStatusUnknown {
		t.Fatalf("expected unknown status for zero target, got %s", status)
	}
}

func TestComputeOEE_NullComponentPropagates(t *testing.T) {
	valid := decimal.NullDecimal{Decimal: dec("90"), Valid: true}
	null := decimal.NullDecimal{}

	cases := []struct {
		name    string
		a, p, q decimal.NullDecimal
	}{
		{"null availability", null, valid, valid},
		{"null performance", valid, null, valid},
		{"null quality", valid, valid, null},
		{"all null", null, null, null},
	}
	for _, tc := range cases {
		if oee := ComputeOEE(tc.a, tc.p, tc.q); oee.Valid {
			t.Fatalf("%s: expected null OEE, got %s", tc.name, oee.Decimal.String())
		}
	}
}

func TestComputeOEE_AllComponents(t *testing.T) {
	a := decimal.NullDecimal{Decimal: dec("90"), Valid: true}
	p := decimal.NullDecimal{Decimal: dec("95"), Valid: true}
	q := decimal.NullDecimal{Decimal: dec("99"), Valid: true}
	oee := ComputeOEE(a, p, q)
	if !oee.Valid {
		t.Fatal("expected valid OEE")
	}
	// 90 * 95 * 99 / 10000 = 84.645
	if !oee.Decimal.Equal(dec("84.645")) {
		t.Fatalf("expected OEE 84.645, got %s", oee.Decimal.String())
	}
}

func TestComputeAvailability_ZeroPlannedMinutes(t *testing.T) {
	if avail := ComputeAvailability(decimal.Zero, dec("10")); avail.Valid {
		t.Fatalf("expected null availability, got %s", avail.Decimal.String())
	}
}

func TestComputeQuality_ZeroTotalUnits(t *testing.T) {
	if qual := ComputeQuality(dec("0"), decimal.Zero); qual.Valid {
		t.Fatalf("expected null quality, got %s", qual.Decimal.String())
	}
}

func TestComputeFinancialLoss(t *testing.T) {
	// 90 minutes at 200/hour = 300.
	loss := ComputeFinancialLoss(dec("90"), dec("200"))
	if !loss.Equal(dec("300")) {
		t.Fatalf("expected loss 300, got %s", loss.String())
	}
}

func TestTransform_SkipsUnregisteredAssets(t *testing.T) {
	now := time.Date(2026, 8, 24, 10, 30, 0, 0, time.UTC)
	batch := &RawBatch{
		WindowStart: now.Add(-30 * time.Minute),
		WindowEnd:   now,
		Output: []OutputRow{
			{ID: 1, AssetCode: "CNC-01", RecordedAt: now, ActualOutput: dec("100"), TargetOutput: dec("100")},
			{ID: 2, AssetCode: "GHOST", RecordedAt: now, ActualOutput: dec("50"), TargetOutput: dec("100")},
		},
	}
	assets := map[string]models.Asset{
		"CNC-01": {ID: 7, Code: "CNC-01"},
	}

	tr := NewTransformer(nil)
	snapshots := tr.Transform(batch, assets)
	if len(snapshots) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(snapshots))
	}
	if snapshots[0].AssetID != 7 || snapshots[0].AssetCode != "CNC-01" {
		t.Fatalf("unexpected snapshot asset: %+v", snapshots[0])
	}
	if snapshots[0].Status != models.SnapshotStatusOnTarget {
		t.Fatalf("expected on_target, got %s", snapshots[0].Status)
	}
}

func TestTransform_UsesLatestOEERowPerAsset(t *testing.T) {
	now := time.Date(2026, 8, 24, 10, 30, 0, 0, time.UTC)
	batch := &RawBatch{
		Output: []OutputRow{
			{ID: 1, AssetCode: "CNC-01", RecordedAt: now, ActualOutput: dec("100"), TargetOutput: dec("100")},
		},
		OEE: []OEERow{
			// Older row: perfect run. Newer row: zero planned minutes, so the
			// snapshot must carry a null OEE, proving the newer row won.
			{ID: 1, AssetCode: "CNC-01", RecordedAt: now.Add(-20 * time.Minute), PlannedMinutes: dec("60"), DowntimeMinutes: dec("0"), TotalUnits: dec("60"), GoodUnits: dec("60"), IdealRatePerMinute: dec("1")},
			{ID: 2, AssetCode: "CNC-01", RecordedAt: now.Add(-5 * time.Minute), PlannedMinutes: dec("0")},
		},
	}
	assets := map[string]models.Asset{"CNC-01": {ID: 7, Code: "CNC-01"}}

	snapshots := NewTransformer(nil).Transform(batch, assets)
	if len(snapshots) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(snapshots))
	}
	if snapshots[0].OEE.Valid {
		t.Fatalf("expected null OEE from latest row, got %s", snapshots[0].OEE.Decimal.String())
	}
}

func TestTransform_TruncatesCapturedAtToSecond(t *testing.T) {
	recorded := time.Date(2026, 8, 24, 10, 30, 15, 987654321, time.UTC)
	batch := &RawBatch{
		Output: []OutputRow{
			{ID: 1, AssetCode: "CNC-01", RecordedAt: recorded, ActualOutput: dec("1"), TargetOutput: dec("1")},
		},
	}
	assets := map[string]models.Asset{"CNC-01": {ID: 7, Code: "CNC-01"}}

	snapshots := NewTransformer(nil).Transform(batch, assets)
	want := time.Date(2026, 8, 24, 10, 30, 15, 0, time.UTC)
	if !snapshots[0].CapturedAt.Equal(want) {
		t.Fatalf("expected captured_at %s, got %s", want, snapshots[0].CapturedAt)
	}
}
