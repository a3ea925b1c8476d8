package poller

import (
	"time"

	"github.com/plantpulse/pulse_backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// varianceBand is the ±% band around target output that still counts as on
// target.
var varianceBand = decimal.NewFromInt(5)

var (
	oneHundred  = decimal.NewFromInt(100)
	tenThousand = decimal.NewFromInt(10000)
	sixty       = decimal.NewFromInt(60)
)

// Transformer turns validated historian rows into snapshot records. All
// arithmetic is exact decimal. A missing denominator becomes a null component
// and an unknown status, never a division error.
type Transformer struct {
	Logger *logrus.Logger
}

func NewTransformer(logger *logrus.Logger) *Transformer {
	return &Transformer{Logger: logger}
}

// ComputeVariance returns (actual - target) / target * 100 and its status
// classification. A zero or negative-zero target yields a null variance and
// SnapshotStatusUnknown, never a division error.
func ComputeVariance(actual, target decimal.Decimal) (decimal.NullDecimal, models.SnapshotStatus) {
	if target.IsZero() {
		return decimal.NullDecimal{}, models.SnapshotStatusUnknown
	}
	variance := actual.Sub(target).Div(target).Mul(oneHundred)
	switch {
	case variance.LessThan(varianceBand.Neg()):
		return decimal.NullDecimal{Decimal: variance, Valid: true}, models.SnapshotStatusBelowTarget
	case variance.GreaterThan(varianceBand):
		return decimal.NullDecimal{Decimal: variance, Valid: true}, models.SnapshotStatusAboveTarget
	default:
		return decimal.NullDecimal{Decimal: variance, Valid: true}, models.SnapshotStatusOnTarget
	}
}

// ComputeAvailability = (planned - downtime) / planned * 100.
func ComputeAvailability(plannedMinutes, downtimeMinutes decimal.Decimal) decimal.NullDecimal {
	if plannedMinutes.IsZero() {
		return decimal.NullDecimal{}
	}
	avail := plannedMinutes.Sub(downtimeMinutes).Div(plannedMinutes).Mul(oneHundred)
	return decimal.NullDecimal{Decimal: avail, Valid: true}
}

// ComputePerformance = totalUnits / (idealRate * runtimeMinutes) * 100.
func ComputePerformance(totalUnits, idealRatePerMinute, runtimeMinutes decimal.Decimal) decimal.NullDecimal {
	idealOutput := idealRatePerMinute.Mul(runtimeMinutes)
	if idealOutput.IsZero() {
		return decimal.NullDecimal{}
	}
	perf := totalUnits.Div(idealOutput).Mul(oneHundred)
	return decimal.NullDecimal{Decimal: perf, Valid: true}
}

// ComputeQuality = goodUnits / totalUnits * 100.
func ComputeQuality(goodUnits, totalUnits decimal.Decimal) decimal.NullDecimal {
	if totalUnits.IsZero() {
		return decimal.NullDecimal{}
	}
	qual := goodUnits.Div(totalUnits).Mul(oneHundred)
	return decimal.NullDecimal{Decimal: qual, Valid: true}
}

// ComputeOEE = availability * performance * quality / 10000, components
// expressed as percentages. Any null component propagates to a null OEE,
// not a zero.
func ComputeOEE(availability, performance, quality decimal.NullDecimal) decimal.NullDecimal {
	if !availability.Valid || !performance.Valid || !quality.Valid {
		return decimal.NullDecimal{}
	}
	oee := availability.Decimal.Mul(performance.Decimal).Mul(quality.Decimal).Div(tenThousand)
	return decimal.NullDecimal{Decimal: oee, Valid: true}
}

// ComputeFinancialLoss = downtime minutes × hourly rate / 60.
func ComputeFinancialLoss(downtimeMinutes, hourlyRate decimal.Decimal) decimal.Decimal {
	return downtimeMinutes.Mul(hourlyRate).Div(sixty)
}

// ComputeOEEFromRow derives the full component chain for one historian OEE row.
func ComputeOEEFromRow(row OEERow) decimal.NullDecimal {
	availability := ComputeAvailability(row.PlannedMinutes, row.DowntimeMinutes)
	runtime := row.PlannedMinutes.Sub(row.DowntimeMinutes)
	performance := ComputePerformance(row.TotalUnits, row.IdealRatePerMinute, runtime)
	quality := ComputeQuality(row.GoodUnits, row.TotalUnits)
	return ComputeOEE(availability, performance, quality)
}

// Transform converts one raw batch into snapshot records, resolving asset
// codes through the registry. A row for an unregistered asset is logged and
// skipped; it never aborts the batch.
func (t *Transformer) Transform(batch *RawBatch, assetsByCode map[string]models.Asset) []models.Snapshot {
	if batch == nil {
		return nil
	}

	// Latest OEE row per asset within the window.
	latestOEE := make(map[string]OEERow, len(batch.OEE))
	for _, row := range batch.OEE {
		prev, ok := latestOEE[row.AssetCode]
		if !ok || row.RecordedAt.After(prev.RecordedAt) {
			latestOEE[row.AssetCode] = row
		}
	}

	snapshots := make([]models.Snapshot, 0, len(batch.Output))
	for _, row := range batch.Output {
		asset, ok := assetsByCode[row.AssetCode]
		if !ok {
			if t.Logger != nil {
				t.Logger.WithFields(logrus.Fields{
					"field":      "Transformer",
					"asset_code": row.AssetCode,
					"row_id":     row.ID,
				}).Warn("skipping output row for unregistered asset")
			}
			continue
		}

		variance, status := ComputeVariance(row.ActualOutput, row.TargetOutput)

		var oee decimal.NullDecimal
		if oeeRow, ok := latestOEE[row.AssetCode]; ok {
			oee = ComputeOEEFromRow(oeeRow)
		}

		snapshots = append(snapshots, models.Snapshot{
			AssetID:         asset.ID,
			AssetCode:       asset.Code,
			CapturedAt:      row.RecordedAt.UTC().Truncate(time.Second),
			ActualOutput:    row.ActualOutput,
			TargetOutput:    row.TargetOutput,
			VariancePercent: variance,
			Status:          status,
			OEE:             oee,
		})
	}
	return snapshots
}
